package runner

import (
	"errors"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"dupsweep/internal/config"
	"dupsweep/internal/disk"
	"dupsweep/internal/metrics"
)

// ErrNoUsableRoot is returned when every root sits on an unresponsive mount.
var ErrNoUsableRoot = errors.New("no usable root")

var staleTimeout = 5 * time.Second

// usableRoots drops roots on stale network mounts and records the free
// space of the others.
func usableRoots(roots []string, logger *zap.Logger) ([]string, error) {
	out := make([]string, 0, len(roots))
	for _, root := range roots {
		if disk.IsStale(root, staleTimeout) {
			logger.Warn("skipping root on unresponsive mount", zap.String("root", root))
			metrics.ErrorsTotal.Inc()
			continue
		}
		out = append(out, root)

		u, err := disk.GetUsage(root)
		if err != nil {
			logger.Debug("no usage figures for root", zap.String("root", root), zap.Error(err))
			continue
		}
		metrics.SetRootFree(root, u.FreeBytes)
		logger.Info("root filesystem",
			zap.String("root", root),
			zap.String("free", humanize.IBytes(uint64(u.FreeBytes))),
			zap.String("total", humanize.IBytes(uint64(u.TotalBytes))),
			zap.Float64("used_percent", u.UsedPercent))
	}
	if len(out) == 0 {
		return nil, ErrNoUsableRoot
	}
	return out, nil
}

// checkTrashMount warns when moving into the trash directory crosses a
// filesystem boundary, since every move then turns into a copy.
func checkTrashMount(cfg *config.Config, logger *zap.Logger) {
	if cfg.Cleanup.Mode != "move" || cfg.Cleanup.TrashDir == "" {
		return
	}
	table, err := disk.ReadMounts()
	if err != nil {
		logger.Debug("mount table unavailable", zap.Error(err))
		return
	}
	trash, _ := table.Of(cfg.Cleanup.TrashDir)
	for _, root := range cfg.Roots {
		if !table.SameMount(root, cfg.Cleanup.TrashDir) {
			m, _ := table.Of(root)
			logger.Warn("trash directory is on another filesystem, moves will copy",
				zap.String("root", root),
				zap.Stringer("root_mount", m),
				zap.Stringer("trash_mount", trash))
		}
	}
}
