package cmd

import (
	"fmt"
	"os"

	"piplock/lockfile"
	"piplock/report"

	"github.com/spf13/cobra"
)

var diffFailOnChange bool

var diffCmd = &cobra.Command{
	Use:   "diff <old.txt> <new.txt>",
	Short: "Show added, removed and repinned packages between two lockfiles",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func init() {
	diffCmd.Flags().BoolVar(&diffFailOnChange, "fail-on-change", false, "exit with error if the lockfiles differ")
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	readLock := func(path string) (*lockfile.Lockfile, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		lf, err := lockfile.Parse(string(data))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return lf, nil
	}

	oldLf, err := readLock(args[0])
	if err != nil {
		return err
	}
	newLf, err := readLock(args[1])
	if err != nil {
		return err
	}

	d := lockfile.Compare(oldLf, newLf)
	if err := report.PrintDiff(cmd.OutOrStdout(), d, report.Options{Format: outputFormat}); err != nil {
		return err
	}

	if diffFailOnChange && !d.Empty() {
		return fmt.Errorf("lockfiles differ: exiting with error as requested")
	}
	return nil
}
