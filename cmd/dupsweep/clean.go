package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dupsweep/internal/database"
	"dupsweep/internal/exitcodes"
	"dupsweep/internal/runner"
)

func newCleanCmd(g *globalFlags) *cobra.Command {
	var (
		poolPath string
		dryRun   bool
		mode     string
		trashDir string
		explain  string
		dbPath   string
		noVerify bool
		scan     bool
	)
	cmd := &cobra.Command{
		Use:   "clean [root...]",
		Short: "Apply the configured rules to the pool document and remove the duplicates they mark",
		Long: `Loads the pool document, runs every configured cleanup rule in order and
deletes (or moves to the trash directory) the duplicates the rules marked.
Only files below the roots are touched. Dry run is the default; pass
--dry-run=false to act.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(args)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("pool") {
				cfg.PoolPath = poolPath
			}
			if flags.Changed("dry-run") {
				cfg.Cleanup.DryRun = &dryRun
			}
			if flags.Changed("mode") {
				cfg.Cleanup.Mode = mode
			}
			if flags.Changed("trash") {
				cfg.Cleanup.TrashDir = trashDir
			}
			if flags.Changed("db") {
				cfg.DatabasePath = dbPath
			}
			if noVerify {
				verify := false
				cfg.Cleanup.Verify = &verify
			}
			if err := cfg.Validate(); err != nil {
				return withCode(exitcodes.InvalidConfig, err)
			}
			if len(cfg.Cleanup.Rules) == 0 {
				return withCode(exitcodes.InvalidConfig, fmt.Errorf("no cleanup rules configured"))
			}

			logger := newLogger(cfg)
			defer logger.Sync() //nolint:errcheck

			var db *database.ActionDB
			if cfg.DatabasePath != "" {
				db, err = database.NewActionDB(cfg.DatabasePath)
				if err != nil {
					return err
				}
				defer db.Close()
			}

			run := runner.Clean
			if scan {
				run = runner.RunOnce
			}
			report, err := run(cmd.Context(), cfg, logger, db, explain)
			if err != nil {
				return err
			}
			printCleanReport(cmd, report, cfg.IsDryRun())
			return nil
		},
	}
	cmd.Flags().StringVar(&poolPath, "pool", "", "Pool document to read (overrides pool_path)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", true, "Only report what would be done")
	cmd.Flags().StringVar(&mode, "mode", "", "delete or move (overrides cleanup.mode)")
	cmd.Flags().StringVar(&trashDir, "trash", "", "Destination directory in move mode")
	cmd.Flags().StringVar(&explain, "explain", "", "Write the keeper -> duplicates map to this file")
	cmd.Flags().StringVar(&dbPath, "db", "", "Action history database (overrides database_path)")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Skip the byte comparison before acting on a set")
	cmd.Flags().BoolVar(&scan, "scan", false, "Rescan the roots before cleaning")
	return cmd
}

func printCleanReport(cmd *cobra.Command, r *runner.CleanReport, dryRun bool) {
	out := cmd.OutOrStdout()

	names := make([]string, 0, len(r.Rules))
	for name := range r.Rules {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(out, "Rules:")
	for _, name := range names {
		st := r.Rules[name]
		fmt.Fprintf(out, "  %-20s %d sets committed, %d duplicates marked, %d rolled back\n",
			name, st.Committed, st.Marked, st.AllMarked)
	}

	res := r.Result
	if dryRun {
		fmt.Fprintf(out, "DRY RUN: %d duplicates would be removed (%s)\n", res.DryRun, humanize.IBytes(uint64(res.BytesPlanned)))
	} else {
		fmt.Fprintf(out, "Deleted: %d  Moved: %d  Reclaimed: %s\n", res.Deleted, res.Moved, humanize.IBytes(uint64(res.BytesReclaimed)))
	}
	fmt.Fprintf(out, "Skipped: %d  Errors: %d  Refused sets: %d\n", res.Skipped, res.Errors, res.SetsRefused)
}
