package cmd

import (
	"fmt"
	"os"
	"strings"

	"piplock/requirements"
	"piplock/resolve"

	"github.com/spf13/cobra"
)

var compileOutputFile string

var compileCmd = &cobra.Command{
	Use:   "compile <requirements.in>...",
	Short: "Compile requirement sources into a pinned lockfile",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCompile,
}

func init() {
	compileCmd.Flags().StringVarP(&compileOutputFile, "output-file", "f", "", "write the lockfile here instead of stdout")
	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	src, err := requirements.Load(args...)
	if err != nil {
		return err
	}

	manager, _, closeDB, err := newManager(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	resolver := &resolve.Resolver{
		Index:   manager,
		Log:     logger,
		Command: "piplock compile " + strings.Join(args, " "),
	}

	lf, err := resolver.Compile(cmd.Context(), src)
	if err != nil {
		return err
	}

	out := lf.Canonical()
	if compileOutputFile == "" {
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	}

	if err := os.WriteFile(compileOutputFile, []byte(out), 0o644); err != nil {
		return fmt.Errorf("writing lockfile: %w", err)
	}
	logger.Infof("Pinned %d packages to %s", len(lf.Entries), compileOutputFile)
	return nil
}
