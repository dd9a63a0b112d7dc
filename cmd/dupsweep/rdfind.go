package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dupsweep/internal/logging"
	"dupsweep/internal/rdfind"
)

func newRdfindCmd(g *globalFlags) *cobra.Command {
	var poolPath string
	cmd := &cobra.Command{
		Use:   "rdfind [root...]",
		Short: "Build a pool document from an rdfind scan of the roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(args)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("pool") {
				cfg.PoolPath = poolPath
			}
			logger := newLogger(cfg)
			defer logger.Sync() //nolint:errcheck

			r := rdfind.NewRunner(cfg.Rdfind.Binary, cfg.Rdfind.Checksum, logging.Component(logger, "rdfind"))
			pool, err := r.Run(cmd.Context(), cfg.Roots)
			if err != nil {
				return err
			}
			pool.Sort()
			if err := pool.WriteFile(cfg.PoolPath, true); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d duplicate sets written to %s\n", pool.Len(), cfg.PoolPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&poolPath, "pool", "", "Pool document to write (overrides pool_path)")
	return cmd
}
