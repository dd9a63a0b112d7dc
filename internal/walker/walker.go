// Package walker enumerates directory trees and reports every non-directory
// entry as raw (parent, name) bytes. It does no filtering beyond excluded
// directory names; deciding which entries matter is the caller's business.
package walker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
)

// Options controls traversal order and reach.
type Options struct {
	TopDown        bool     // report a directory's files before descending
	FollowSymlinks bool     // descend into symlinked directories
	MaxDepth       int      // -1 = unlimited, 0 = root only
	Excludes       []string // directory base names to skip
}

// Visit is called once per discovered entry. Returning an error stops the walk.
type Visit func(parent, name []byte) error

// ErrStop can be returned by a Visit to end the walk early; Walk passes it
// through unchanged.
var ErrStop = errors.New("walk stopped")

// Stats summarizes a walk.
type Stats struct {
	Directories int64
	Entries     int64
	Errors      int64
}

type Walker struct {
	opts     Options
	excludes map[string]struct{}
	logger   *zap.Logger
	stats    Stats
}

type dirKey struct {
	dev uint64
	ino uint64
}

func New(opts Options, logger *zap.Logger) *Walker {
	if logger == nil {
		logger = zap.NewNop()
	}
	ex := make(map[string]struct{}, len(opts.Excludes))
	for _, e := range opts.Excludes {
		ex[e] = struct{}{}
	}
	return &Walker{opts: opts, excludes: ex, logger: logger}
}

// Stats returns the counters accumulated by previous walks.
func (w *Walker) Stats() Stats {
	return w.stats
}

// Walk traverses root. Unreadable directories are logged and skipped.
func (w *Walker) Walk(ctx context.Context, root string, visit Visit) error {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}
	if !info.IsDir() {
		return visit([]byte(filepath.Dir(root)), []byte(filepath.Base(root)))
	}
	return w.walkDir(ctx, root, 0, make(map[dirKey]struct{}), visit)
}

// WalkAll walks every root in order.
func (w *Walker) WalkAll(ctx context.Context, roots []string, visit Visit) error {
	for _, root := range roots {
		if err := w.Walk(ctx, root, visit); err != nil {
			return err
		}
	}
	return nil
}

func (w *Walker) walkDir(ctx context.Context, dir string, depth int, seen map[dirKey]struct{}, visit Visit) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Symlinked directories can reach the same directory twice or loop.
	if w.opts.FollowSymlinks {
		if info, err := os.Stat(dir); err == nil {
			if key, ok := keyOf(info); ok {
				if _, dup := seen[key]; dup {
					w.logger.Debug("directory already visited", zap.String("dir", dir))
					return nil
				}
				seen[key] = struct{}{}
			}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.stats.Errors++
		w.logger.Warn("cannot read directory", zap.String("dir", dir), zap.Error(err))
		return nil
	}
	w.stats.Directories++

	parent := []byte(dir)
	var subdirs []string
	var files [][]byte

	for _, entry := range entries {
		name := entry.Name()
		isDir := entry.IsDir()

		if entry.Type()&os.ModeSymlink != 0 && w.opts.FollowSymlinks {
			if target, err := os.Stat(filepath.Join(dir, name)); err == nil && target.IsDir() {
				isDir = true
			}
		}

		if isDir {
			if _, skip := w.excludes[name]; skip {
				continue
			}
			if w.opts.MaxDepth < 0 || depth < w.opts.MaxDepth {
				subdirs = append(subdirs, filepath.Join(dir, name))
			}
			continue
		}
		files = append(files, []byte(name))
	}

	emit := func() error {
		for _, name := range files {
			w.stats.Entries++
			if err := visit(parent, name); err != nil {
				return err
			}
		}
		return nil
	}

	if w.opts.TopDown {
		if err := emit(); err != nil {
			return err
		}
	}
	for _, sub := range subdirs {
		if err := w.walkDir(ctx, sub, depth+1, seen, visit); err != nil {
			return err
		}
	}
	if !w.opts.TopDown {
		return emit()
	}
	return nil
}

func keyOf(info os.FileInfo) (dirKey, bool) {
	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return dirKey{}, false
	}
	return dirKey{dev: uint64(sys.Dev), ino: uint64(sys.Ino)}, true
}
