package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dupsweep/internal/config"
	"dupsweep/internal/exitcodes"
	"dupsweep/internal/logging"
	"dupsweep/internal/runner"
	"dupsweep/internal/safety"
)

// exitError carries a process exit code up to main.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

func exitCode(err error) int {
	var ee *exitError
	switch {
	case err == nil:
		return exitcodes.Success
	case errors.As(err, &ee):
		return ee.code
	case safety.IsViolation(err):
		return exitcodes.SafetyViolation
	case errors.Is(err, runner.ErrInconsistentPool):
		return exitcodes.InconsistentPool
	}
	return exitcodes.RuntimeError
}

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "dupsweep",
		Short:         "Find duplicate files and clean them up",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	root.AddCommand(
		newScanCmd(g),
		newCleanCmd(g),
		newCheckCmd(g),
		newDiffCmd(g),
		newRdfindCmd(g),
		newHistoryCmd(g),
	)
	return root
}

// loadConfig reads --config, or builds a default configuration over roots
// when no file is given.
func (g *globalFlags) loadConfig(roots []string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case g.configPath != "":
		cfg, err = config.Load(g.configPath)
		if err == nil && len(roots) > 0 {
			cfg.Roots = roots
			err = cfg.Validate()
		}
	case len(roots) > 0:
		cfg, err = config.Default(roots...)
	default:
		err = errors.New("either --config or at least one root is required")
	}
	if err != nil {
		return nil, withCode(exitcodes.InvalidConfig, err)
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *zap.Logger {
	return logging.NewWithConfig(cfg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	}
	os.Exit(exitCode(err))
}
