// Package finder narrows a file population down to groups of identical
// files. Files are grouped by size, then each group is split by cheap
// features (first bytes, last bytes, optionally a partial hash) and finally
// by a full content hash. A file alone in its sub-group is unique and drops
// out, so the expensive stages only read files that survived the cheap ones.
package finder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dupsweep/internal/duplicate"
	"dupsweep/internal/file"
	"dupsweep/internal/limiter"
	"dupsweep/internal/metrics"
	"dupsweep/internal/walker"
)

// Options tunes the elimination stages and their concurrency.
type Options struct {
	SomeBytesSize   int  // first/last bytes window
	PartialHashSize int  // partial hash window
	UsePartialHash  bool // run the partial hash stage before the full hash
	FastIO          bool // read each stage's features in (device, inode) order
	Workers         int  // concurrent groups in lazy mode
}

// Stats summarizes a run. Eliminated is indexed by Stage.
type Stats struct {
	Scanned     int64
	Rejected    int64
	Errors      int64
	Candidates  int64
	Eliminated  [numStages]int64
	BytesHashed int64
	Groups      int
	Duplicates  int
	Duration    time.Duration
}

// Finder collects file handles and narrows them down to duplicate sets.
type Finder struct {
	opts    Options
	logger  *zap.Logger
	limiter *limiter.CPULimiter

	mu      sync.Mutex
	handles []*file.Handle
	seen    map[string]struct{}

	scanned     atomic.Int64
	rejected    atomic.Int64
	errors      atomic.Int64
	eliminated  [numStages]atomic.Int64
	bytesHashed atomic.Int64
	stats       Stats
}

// New creates a finder. A nil limiter disables throttling.
func New(opts Options, logger *zap.Logger, lim *limiter.CPULimiter) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SomeBytesSize <= 0 {
		opts.SomeBytesSize = file.SomeBytesSize
	}
	if opts.PartialHashSize <= 0 {
		opts.PartialHashSize = file.PartialHashBytes
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	metrics.Init()
	return &Finder{
		opts:    opts,
		logger:  logger,
		limiter: lim,
		seen:    make(map[string]struct{}),
	}
}

func (f *Finder) handleOptions() file.Options {
	return file.Options{SomeBytesSize: f.opts.SomeBytesSize, PartialHashBytes: f.opts.PartialHashSize}
}

// Populate walks every root and adds each entry.
func (f *Finder) Populate(ctx context.Context, w *walker.Walker, roots []string) error {
	return w.WalkAll(ctx, roots, func(parent, name []byte) error {
		h, err := file.NewWithOptions(parent, name, f.handleOptions())
		if err != nil {
			f.logger.Debug("skipping entry", zap.ByteString("name", name), zap.Error(err))
			return nil
		}
		f.Add(h)
		return nil
	})
}

// Add offers one handle to the finder. Symlinks, empty and unreadable files
// and paths already added are rejected.
func (f *Finder) Add(h *file.Handle) bool {
	f.scanned.Add(1)
	metrics.FilesScannedTotal.Inc()

	ok, err := h.Eligible()
	if err != nil {
		f.errors.Add(1)
		f.logger.Warn("cannot stat file", zap.String("path", h.Path()), zap.Error(err))
	}
	if !ok {
		f.rejected.Add(1)
		metrics.FilesRejectedTotal.Inc()
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	path := h.Path()
	if _, dup := f.seen[path]; dup {
		f.rejected.Add(1)
		metrics.FilesRejectedTotal.Inc()
		return false
	}
	f.seen[path] = struct{}{}
	f.handles = append(f.handles, h)
	return true
}

// Find runs the elimination stages and returns the surviving groups as a
// sorted pool. Cancellation is honored between groups (lazy mode) or
// between stages (fast-I/O mode).
func (f *Finder) Find(ctx context.Context) (*duplicate.Pool, error) {
	start := time.Now()

	f.mu.Lock()
	handles := append([]*file.Handle(nil), f.handles...)
	f.mu.Unlock()

	groups := f.groupBySize(handles)
	var candidates int64
	for _, g := range groups {
		candidates += int64(len(g))
	}
	f.logger.Info("grouped by size",
		zap.Int("files", len(handles)),
		zap.Int("groups", len(groups)),
		zap.Int64("candidates", candidates))

	var err error
	if f.opts.FastIO {
		groups, err = f.runFastIO(ctx, groups)
	} else {
		groups, err = f.runLazy(ctx, groups)
	}
	if err != nil {
		return nil, err
	}

	pool := duplicate.NewPool(f.logger)
	duplicates := 0
	for _, g := range groups {
		set, err := duplicate.NewSet(g)
		if err != nil {
			return nil, fmt.Errorf("build duplicate set: %w", err)
		}
		pool.Add(set)
		duplicates += len(g) - 1
		if size, err := g[0].Size(); err == nil {
			for range g {
				metrics.DuplicateSizes.Observe(float64(size))
			}
		}
	}
	pool.Sort()

	elapsed := time.Since(start)
	metrics.RecordScan(pool.Len(), duplicates, elapsed)

	f.mu.Lock()
	f.stats = f.snapshot()
	f.stats.Candidates = candidates
	f.stats.Groups = pool.Len()
	f.stats.Duplicates = duplicates
	f.stats.Duration = elapsed
	f.mu.Unlock()

	f.logger.Info("scan complete",
		zap.Int("groups", pool.Len()),
		zap.Int("duplicates", duplicates),
		zap.Int64("bytes_hashed", f.bytesHashed.Load()),
		zap.Duration("elapsed", elapsed))
	return pool, nil
}

// Stats returns the counters of the last Find, or live counters before it.
func (f *Finder) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stats.Duration > 0 {
		return f.stats
	}
	return f.snapshot()
}

func (f *Finder) snapshot() Stats {
	st := Stats{
		Scanned:     f.scanned.Load(),
		Rejected:    f.rejected.Load(),
		Errors:      f.errors.Load(),
		BytesHashed: f.bytesHashed.Load(),
	}
	for i := range f.eliminated {
		st.Eliminated[i] = f.eliminated[i].Load()
	}
	return st
}

func (f *Finder) groupBySize(handles []*file.Handle) [][]*file.Handle {
	bySize := make(map[int64][]*file.Handle)
	var sizes []int64
	for _, h := range handles {
		size, err := h.Size()
		if err != nil {
			f.dropFile(StageSize, h, err)
			continue
		}
		if _, ok := bySize[size]; !ok {
			sizes = append(sizes, size)
		}
		bySize[size] = append(bySize[size], h)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] > sizes[j] })

	var out [][]*file.Handle
	for _, size := range sizes {
		g := bySize[size]
		if len(g) < 2 {
			f.eliminate(StageSize, 1)
			continue
		}
		out = append(out, g)
	}
	return out
}

// runLazy processes groups concurrently; each group runs every stage in
// order before its worker picks the next group.
func (f *Finder) runLazy(ctx context.Context, groups [][]*file.Handle) ([][]*file.Handle, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.opts.Workers)

	var mu sync.Mutex
	var out [][]*file.Handle
	for _, group := range groups {
		group := group
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			survivors, err := f.processGroup(ctx, group)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, survivors...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("find duplicates: %w", err)
	}
	return out, nil
}

// processGroup runs every stage over one size group. It stops with the
// context error as soon as the scan is cancelled.
func (f *Finder) processGroup(ctx context.Context, group []*file.Handle) ([][]*file.Handle, error) {
	current := [][]*file.Handle{group}
	for _, st := range f.stages() {
		compute := f.featureOf(st)
		keyOf := func(h *file.Handle) (string, error) {
			if err := f.limiter.Throttle(ctx); err != nil {
				return "", err
			}
			return compute(h)
		}
		var next [][]*file.Handle
		for _, g := range current {
			sub, err := f.partition(ctx, st, g, keyOf)
			if err != nil {
				return nil, err
			}
			next = append(next, sub...)
		}
		current = next
		if len(current) == 0 {
			break
		}
	}
	return current, nil
}

type featureResult struct {
	key string
	err error
}

// runFastIO processes stage by stage. Before each stage every surviving
// file is read once in (device, inode) order; partitioning then uses the
// stored results, so the groups are the same as in lazy mode.
func (f *Finder) runFastIO(ctx context.Context, groups [][]*file.Handle) ([][]*file.Handle, error) {
	for _, st := range f.stages() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("find duplicates: %w", err)
		}

		var all []*file.Handle
		for _, g := range groups {
			all = append(all, g...)
		}
		sortByInode(all)

		compute := f.featureOf(st)
		results := make(map[*file.Handle]featureResult, len(all))
		for _, h := range all {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("find duplicates: %w", err)
			}
			if err := f.limiter.Throttle(ctx); err != nil {
				return nil, fmt.Errorf("find duplicates: %w", err)
			}
			key, err := compute(h)
			results[h] = featureResult{key: key, err: err}
		}
		f.logger.Debug("stage read", zap.Stringer("stage", st), zap.Int("files", len(all)))

		keyOf := func(h *file.Handle) (string, error) {
			r := results[h]
			return r.key, r.err
		}
		var next [][]*file.Handle
		for _, g := range groups {
			sub, err := f.partition(ctx, st, g, keyOf)
			if err != nil {
				return nil, fmt.Errorf("find duplicates: %w", err)
			}
			next = append(next, sub...)
		}
		groups = next
		if len(groups) == 0 {
			break
		}
	}
	return groups, nil
}

func sortByInode(handles []*file.Handle) {
	sort.SliceStable(handles, func(i, j int) bool {
		a, _ := handles[i].Stat()
		b, _ := handles[j].Stat()
		if a.Device != b.Device {
			return a.Device < b.Device
		}
		return a.Inode < b.Inode
	})
}

// partition splits a group by feature value. Unreadable files are dropped
// and singletons eliminated; sub-groups keep the input order. Cancellation
// aborts the split with the context error.
func (f *Finder) partition(ctx context.Context, st Stage, group []*file.Handle, keyOf feature) ([][]*file.Handle, error) {
	buckets := make(map[string][]*file.Handle)
	var order []string
	for _, h := range group {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		key, err := keyOf(h)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			f.dropFile(st, h, err)
			continue
		}
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], h)
	}

	var out [][]*file.Handle
	for _, key := range order {
		b := buckets[key]
		if len(b) < 2 {
			f.eliminate(st, 1)
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *Finder) eliminate(st Stage, n int) {
	f.eliminated[st].Add(int64(n))
	metrics.RecordElimination(st.String(), n)
}

func (f *Finder) dropFile(st Stage, h *file.Handle, err error) {
	f.errors.Add(1)
	metrics.RecordFeatureError(st.String())
	f.logger.Warn("dropping unreadable file",
		zap.String("path", h.Path()),
		zap.Stringer("stage", st),
		zap.Error(err))
}
