package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"dupsweep/internal/finder"
	"dupsweep/internal/runner"
)

func newScanCmd(g *globalFlags) *cobra.Command {
	var (
		poolPath    string
		fastIO      bool
		partialHash bool
		workers     int
	)
	cmd := &cobra.Command{
		Use:   "scan [root...]",
		Short: "Find duplicate files and write the pool document",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(args)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("pool") {
				cfg.PoolPath = poolPath
			}
			if flags.Changed("fast-io") {
				cfg.Finder.FastIO = fastIO
			}
			if flags.Changed("partial-hash") {
				cfg.Finder.UsePartialHash = partialHash
			}
			if flags.Changed("workers") {
				cfg.Finder.Workers = workers
			}

			logger := newLogger(cfg)
			defer logger.Sync() //nolint:errcheck

			report, err := runner.Scan(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			printScanReport(cmd, report, cfg.PoolPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&poolPath, "pool", "", "Pool document to write (overrides pool_path)")
	cmd.Flags().BoolVar(&fastIO, "fast-io", false, "Read features in (device, inode) order")
	cmd.Flags().BoolVar(&partialHash, "partial-hash", false, "Run the partial hash stage before the full hash")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent group workers")
	return cmd
}

func printScanReport(cmd *cobra.Command, r *runner.ScanReport, poolPath string) {
	out := cmd.OutOrStdout()
	st := r.Find
	fmt.Fprintf(out, "Scanned:        %d entries in %d directories\n", st.Scanned, r.Walk.Directories)
	fmt.Fprintf(out, "Rejected:       %d (symlinks, empty, unreadable or repeated)\n", st.Rejected)
	fmt.Fprintf(out, "Candidates:     %d files sharing a size\n", st.Candidates)
	for _, stage := range []finder.Stage{finder.StageSize, finder.StageFirstBytes, finder.StageLastBytes, finder.StagePartialHash, finder.StageFullHash} {
		if n := st.Eliminated[stage]; n > 0 {
			fmt.Fprintf(out, "  eliminated by %-13s %d\n", stage.String()+":", n)
		}
	}
	fmt.Fprintf(out, "Hashed:         %s\n", humanize.IBytes(uint64(st.BytesHashed)))
	fmt.Fprintf(out, "Read errors:    %d\n", st.Errors)
	fmt.Fprintf(out, "Duplicate sets: %d (%d redundant files)\n", st.Groups, st.Duplicates)
	fmt.Fprintf(out, "Reclaimable:    %s\n", humanize.IBytes(uint64(r.Reclaimable)))
	fmt.Fprintf(out, "Elapsed:        %s\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Pool document:  %s\n", poolPath)
}
