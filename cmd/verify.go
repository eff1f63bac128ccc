package cmd

import (
	"fmt"
	"os"

	"piplock/lockfile"
	"piplock/report"
	"piplock/verify"

	"github.com/spf13/cobra"
)

var verifyOffline bool

var verifyCmd = &cobra.Command{
	Use:   "verify <requirements.txt>",
	Short: "Check a lockfile's pins, via closure and referrer constraints",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyOffline, "offline", false, "skip checks that need index metadata")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading lockfile: %w", err)
	}

	lf, err := lockfile.Parse(string(data))
	if err != nil {
		return fmt.Errorf("parsing lockfile: %w", err)
	}

	verifier := &verify.Verifier{Log: logger}

	if !verifyOffline {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		manager, _, closeDB, err := newManager(cmd, cfg, logger)
		if err != nil {
			return err
		}
		defer closeDB()
		verifier.Index = manager
	}

	rep, err := verifier.Verify(cmd.Context(), lf)
	if err != nil {
		return err
	}

	if err := report.PrintVerify(cmd.OutOrStdout(), rep, report.Options{Format: outputFormat}); err != nil {
		return err
	}

	if rep.Failed() {
		return fmt.Errorf("lockfile verification failed")
	}
	return nil
}
