// Package disk answers filesystem level questions about scan roots: how
// much space their filesystem has, whether a network mount stopped
// responding and which mount point a path belongs to.
package disk

import (
	"errors"
	"os"
	"syscall"
	"time"
)

// Usage describes the filesystem holding a path.
type Usage struct {
	TotalBytes  int64
	FreeBytes   int64 // available to unprivileged users
	UsedPercent float64
}

// GetUsage returns the space figures of the filesystem holding path.
func GetUsage(path string) (Usage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return Usage{}, &os.PathError{Op: "statfs", Path: path, Err: err}
	}

	u := Usage{
		TotalBytes: int64(stat.Blocks) * int64(stat.Bsize),
		FreeBytes:  int64(stat.Bavail) * int64(stat.Bsize),
	}
	if u.TotalBytes > 0 {
		u.UsedPercent = float64(u.TotalBytes-u.FreeBytes) / float64(u.TotalBytes) * 100.0
	}
	return u, nil
}

// IsStale reports whether path sits on a network mount that stopped
// answering: the stat either times out or fails with EIO, ESTALE or ENXIO.
func IsStale(path string, timeout time.Duration) bool {
	done := make(chan error, 1)
	go func() {
		_, err := os.Stat(path)
		done <- err
	}()

	select {
	case err := <-done:
		if err == nil {
			return false
		}
		return os.IsTimeout(err) ||
			errors.Is(err, syscall.EIO) ||
			errors.Is(err, syscall.ESTALE) ||
			errors.Is(err, syscall.ENXIO)
	case <-time.After(timeout):
		return true
	}
}
