// Package runner wires the pieces of a dupsweep run together: scanning a
// tree into a pool document and cleaning the duplicates a document lists.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"dupsweep/internal/cleanup"
	"dupsweep/internal/config"
	"dupsweep/internal/database"
	"dupsweep/internal/duplicate"
	"dupsweep/internal/finder"
	"dupsweep/internal/limiter"
	"dupsweep/internal/logging"
	"dupsweep/internal/metrics"
	"dupsweep/internal/safety"
	"dupsweep/internal/walker"
)

// ErrInconsistentPool is returned when a pool document fails its sanity check.
var ErrInconsistentPool = errors.New("pool document failed sanity check")

// ScanReport summarizes Scan.
type ScanReport struct {
	Pool        *duplicate.Pool
	Walk        walker.Stats
	Find        finder.Stats
	Reclaimable int64
	Elapsed     time.Duration
}

// CleanReport summarizes Clean.
type CleanReport struct {
	Rules  map[string]cleanup.CleanStats
	Result cleanup.Result
	Pool   *duplicate.Pool // what remains after the actions
}

// Scan walks the configured roots, finds duplicate sets and writes the pool
// document to cfg.PoolPath.
func Scan(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*ScanReport, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var lim *limiter.CPULimiter
	if cfg.ResourceLimits.MaxCPUPercent > 0 {
		lim = limiter.NewCPULimiter(cfg.ResourceLimits.MaxCPUPercent)
	}

	w := walker.New(walker.Options{
		TopDown:        cfg.Walker.TopDown,
		FollowSymlinks: cfg.Walker.FollowSymlinks,
		MaxDepth:       cfg.MaxDepth(),
		Excludes:       cfg.Excludes,
	}, logging.Component(logger, "walker"))

	f := finder.New(finder.Options{
		SomeBytesSize:   cfg.Finder.SomeBytesSize,
		PartialHashSize: cfg.Finder.PartialHashSize,
		UsePartialHash:  cfg.Finder.UsePartialHash,
		FastIO:          cfg.Finder.FastIO,
		Workers:         cfg.Finder.Workers,
	}, logging.Component(logger, "finder"), lim)

	roots, err := usableRoots(cfg.Roots, logger)
	if err != nil {
		return nil, err
	}
	if err := f.Populate(ctx, w, roots); err != nil {
		metrics.ErrorsTotal.Inc()
		return nil, fmt.Errorf("walk roots: %w", err)
	}
	pool, err := f.Find(ctx)
	if err != nil {
		metrics.ErrorsTotal.Inc()
		return nil, err
	}
	if err := pool.WriteFile(cfg.PoolPath, true); err != nil {
		metrics.ErrorsTotal.Inc()
		return nil, err
	}

	report := &ScanReport{
		Pool:        pool,
		Walk:        w.Stats(),
		Find:        f.Stats(),
		Reclaimable: pool.ReclaimableBytes(),
		Elapsed:     time.Since(start),
	}
	logger.Info("pool document written",
		zap.String("path", cfg.PoolPath),
		zap.Int("sets", pool.Len()),
		zap.Int("redundant", pool.NumberOfRedundant()),
		zap.String("reclaimable", humanize.IBytes(uint64(report.Reclaimable))))
	writeMetrics(cfg, logger)
	return report, nil
}

// Clean loads the pool document, applies the configured rules in order,
// acts on the committed duplicates and, outside dry runs, rewrites the
// document with what remains. explainPath, when set, receives the
// keeper -> removed duplicates map.
func Clean(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *database.ActionDB, explainPath string) (*CleanReport, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	rules, err := cleanup.RulesFromConfig(cfg.Cleanup.Rules)
	if err != nil {
		return nil, err
	}

	pool, err := duplicate.ReadFile(cfg.PoolPath, logging.Component(logger, "pool"))
	if err != nil {
		return nil, err
	}
	if report := pool.SanityCheck(); !report.OK() {
		return nil, fmt.Errorf("%s: %w: %v", cfg.PoolPath, ErrInconsistentPool, report.Failed())
	}
	pool.Sort()

	cleaner := cleanup.NewCleaner(cleanup.Options{
		DryRun:       cfg.IsDryRun(),
		Mode:         cfg.Cleanup.Mode,
		TrashDir:     cfg.Cleanup.TrashDir,
		Hierarchical: cfg.Cleanup.Hierarchical,
		Verify:       cfg.ShouldVerify(),
	}, logging.Component(logger, "cleanup"), db)
	cleaner.SetValidator(safety.NewValidator(cfg.Roots, cfg.Cleanup.ProtectedPaths))
	if !cfg.IsDryRun() {
		checkTrashMount(cfg, logger)
	}

	report := &CleanReport{Rules: make(map[string]cleanup.CleanStats, len(rules))}
	for _, rule := range rules {
		st := cleaner.Clean(pool, rule)
		prev := report.Rules[rule.Name()]
		report.Rules[rule.Name()] = cleanup.CleanStats{
			Sets:      prev.Sets + st.Sets,
			Committed: prev.Committed + st.Committed,
			Marked:    prev.Marked + st.Marked,
			AllMarked: prev.AllMarked + st.AllMarked,
		}
	}

	if explainPath != "" {
		if err := pool.WriteExplain(explainPath); err != nil {
			return nil, err
		}
	}

	report.Result, err = cleaner.Apply(ctx, pool)
	if err != nil {
		metrics.ErrorsTotal.Inc()
		return nil, err
	}

	report.Pool = pool
	if !cfg.IsDryRun() {
		report.Pool = pool.Remaining()
		if err := report.Pool.WriteFile(cfg.PoolPath, true); err != nil {
			return nil, err
		}
	}
	writeMetrics(cfg, logger)
	return report, nil
}

// RunOnce scans and then cleans the fresh document, as a single cycle.
func RunOnce(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *database.ActionDB, explainPath string) (*CleanReport, error) {
	if _, err := Scan(ctx, cfg, logger); err != nil {
		return nil, err
	}
	return Clean(ctx, cfg, logger, db, explainPath)
}

func writeMetrics(cfg *config.Config, logger *zap.Logger) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warn("metrics export failed", zap.Error(err))
	}
}
