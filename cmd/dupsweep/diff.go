package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dupsweep/internal/duplicate"
	"dupsweep/internal/exitcodes"
)

func newDiffCmd(_ *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <old.json> <new.json>",
		Short: "Compare two pool documents",
		Long: `Prints paths only present in the new document prefixed with '+' and
paths only present in the old one prefixed with '-'. Exits 1 when the
documents differ.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			old, err := duplicate.ReadFile(args[0], nil)
			if err != nil {
				return withCode(exitcodes.InvalidConfig, err)
			}
			cur, err := duplicate.ReadFile(args[1], nil)
			if err != nil {
				return withCode(exitcodes.InvalidConfig, err)
			}
			old.Sort()
			cur.Sort()
			if old.Equal(cur) {
				fmt.Fprintln(cmd.OutOrStdout(), "documents are equal")
				return nil
			}
			out := cmd.OutOrStdout()
			for _, p := range old.Diff(cur) {
				fmt.Fprintf(out, "+ %s\n", p)
			}
			for _, p := range old.ReverseDiff(cur) {
				fmt.Fprintf(out, "- %s\n", p)
			}
			return withCode(1, fmt.Errorf("documents differ"))
		},
	}
}
