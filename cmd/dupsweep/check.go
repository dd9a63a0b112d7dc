package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dupsweep/internal/duplicate"
	"dupsweep/internal/exitcodes"
	"dupsweep/internal/logging"
	"dupsweep/internal/runner"
)

func newCheckCmd(_ *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <pool.json>",
		Short: "Verify that every path of a pool document is still a regular file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.Component(logging.New(), "check")
			defer logger.Sync() //nolint:errcheck

			pool, err := duplicate.ReadFile(args[0], logger)
			if err != nil {
				return withCode(exitcodes.InvalidConfig, err)
			}
			report := pool.SanityCheck()
			out := cmd.OutOrStdout()
			for _, p := range report.Missing {
				fmt.Fprintf(out, "missing    %s\n", p)
			}
			for _, p := range report.Symlinks {
				fmt.Fprintf(out, "symlink    %s\n", p)
			}
			for _, p := range report.Unreadable {
				fmt.Fprintf(out, "unreadable %s\n", p)
			}
			for p, n := range report.Repeated {
				fmt.Fprintf(out, "repeated   %s (%d sets)\n", p, n)
			}
			for _, p := range report.HardLinked {
				fmt.Fprintf(out, "hardlink   %s\n", p)
			}
			if !report.OK() {
				return fmt.Errorf("%w: %d paths", runner.ErrInconsistentPool, len(report.Failed()))
			}
			fmt.Fprintf(out, "OK: %d sets, %d redundant files\n", pool.Len(), pool.NumberOfRedundant())
			return nil
		},
	}
}
