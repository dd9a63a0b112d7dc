// Package cleanup decides which duplicates go, through ordered marking rules,
// and removes or moves the committed duplicates of a pool.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"dupsweep/internal/database"
	"dupsweep/internal/duplicate"
	"dupsweep/internal/file"
	"dupsweep/internal/fsops"
	"dupsweep/internal/metrics"
	"dupsweep/internal/safety"
)

const (
	ModeDelete = "delete"
	ModeMove   = "move"
)

var errNoValidator = errors.New("cleaner has no safety validator")

type Options struct {
	DryRun       bool
	Mode         string // delete | move
	TrashDir     string // move destination
	Hierarchical bool   // keep the absolute layout below TrashDir
	Verify       bool   // byte-compare each set before acting on it
}

// CleanStats summarizes one rule pass.
type CleanStats struct {
	Sets      int // non-singleton sets offered to the rule
	Committed int // sets whose marks were committed
	Marked    int // duplicates committed
	AllMarked int // sets rolled back because nothing would remain
}

// Result summarizes Apply.
type Result struct {
	Deleted        int
	Moved          int
	DryRun         int
	Skipped        int
	Errors         int
	SetsRefused    int // sets failing Check or Verify
	BytesReclaimed int64
	BytesPlanned   int64 // bytes a dry run would reclaim
}

// Cleaner applies marking rules to a pool and acts on the committed
// duplicates.
type Cleaner struct {
	opts      Options
	logger    *zap.Logger
	validator *safety.Validator
	ops       fsops.Ops
	db        *database.ActionDB // optional action history
	reasons   map[string]MarkReason
}

// NewCleaner creates a Cleaner using the real filesystem. A nil db disables
// the action history.
func NewCleaner(opts Options, logger *zap.Logger, db *database.ActionDB) *Cleaner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Mode == "" {
		opts.Mode = ModeDelete
	}
	metrics.Init()
	return &Cleaner{
		opts:    opts,
		logger:  logger,
		ops:     fsops.OSOps{},
		db:      db,
		reasons: make(map[string]MarkReason),
	}
}

// SetOps replaces the filesystem operations, for tests.
func (c *Cleaner) SetOps(ops fsops.Ops) { c.ops = ops }

// SetValidator sets the validator every target must pass.
func (c *Cleaner) SetValidator(v *safety.Validator) { c.validator = v }

// Reason returns why a committed duplicate was marked.
func (c *Cleaner) Reason(path string) (MarkReason, bool) {
	r, ok := c.reasons[path]
	return r, ok
}

// Clean offers every non-singleton set to the rule, committing its marks or
// rolling them back.
func (c *Cleaner) Clean(pool *duplicate.Pool, rule Rule) CleanStats {
	var st CleanStats
	now := time.Now()
	metrics.SetCleanupRule(rule.Name())

	for _, s := range pool.Sets() {
		if s.IsSingleton() {
			continue
		}
		st.Sets++

		detail, ok := rule.Mark(s)
		if !ok || s.NumberOfMarked() == 0 {
			s.Rollback(false)
			continue
		}
		marked := s.Marked()
		if err := s.Commit(); err != nil {
			if errors.Is(err, duplicate.ErrAllMarked) {
				st.AllMarked++
				c.logger.Debug("rule would remove every copy, rolled back",
					zap.String("rule", rule.Name()), zap.Stringer("set", s))
			}
			s.Rollback(false)
			continue
		}

		keeper := s.First().Path()
		for _, m := range marked {
			c.reasons[m.Path()] = MarkReason{
				Rule:        rule.Name(),
				Keeper:      keeper,
				Detail:      detail,
				EvaluatedAt: now,
			}
		}
		st.Committed++
		st.Marked += len(marked)
		metrics.SetsMarkedTotal.WithLabelValues(rule.Name()).Inc()
	}

	c.logger.Info("rule applied",
		zap.String("rule", rule.Name()),
		zap.Int("sets", st.Sets),
		zap.Int("committed", st.Committed),
		zap.Int("marked", st.Marked),
		zap.Int("all_marked", st.AllMarked))
	return st
}

// Apply deletes or moves the committed duplicates of every set. A set that
// fails Check, or Verify when enabled, is left untouched.
func (c *Cleaner) Apply(ctx context.Context, pool *duplicate.Pool) (Result, error) {
	var res Result
	if c.validator == nil {
		return res, errNoValidator
	}
	if c.opts.Mode == ModeMove {
		if err := c.validator.ValidateDestination(c.opts.TrashDir); err != nil {
			return res, fmt.Errorf("trash directory %s: %w", c.opts.TrashDir, err)
		}
	}

	start := time.Now()
	c.logger.Info("starting cleanup",
		zap.Int("duplicates", pool.NumberOfDuplicates()),
		zap.String("mode", c.opts.Mode),
		zap.Bool("dry_run", c.opts.DryRun))

	for _, s := range pool.Sets() {
		if s.NumberOfDuplicates() == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := c.checkSet(s); err != nil {
			res.SetsRefused++
			metrics.ErrorsTotal.Inc()
			c.logger.Error("refusing to clean set", zap.Stringer("set", s), zap.Error(err))
			for _, m := range s.Duplicates() {
				c.record(&res, database.ActionSkip, s, m, "", 0, err.Error())
			}
			continue
		}
		for _, m := range s.Duplicates() {
			c.applyOne(&res, s, m)
		}
	}

	elapsed := time.Since(start)
	metrics.RecordCleanupRun(elapsed)
	c.logger.Info("cleanup complete",
		zap.Int("deleted", res.Deleted),
		zap.Int("moved", res.Moved),
		zap.Int("dry_run", res.DryRun),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", res.Errors),
		zap.String("reclaimed", humanize.IBytes(uint64(res.BytesReclaimed))),
		zap.Duration("elapsed", elapsed))
	return res, nil
}

func (c *Cleaner) checkSet(s *duplicate.Set) error {
	if err := s.Check(); err != nil {
		return err
	}
	if !c.opts.Verify {
		return nil
	}
	same, err := s.Verify()
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	if !same {
		return fmt.Errorf("verify: content differs from %s", s.First())
	}
	return nil
}

func (c *Cleaner) applyOne(res *Result, s *duplicate.Set, m *duplicate.Member) {
	path := m.Path()
	st, err := m.File().Stat()
	if err != nil {
		if errors.Is(err, file.ErrNotFound) {
			c.logger.Info("duplicate already gone", zap.String("path", path))
			return
		}
		c.record(res, database.ActionError, s, m, "", 0, err.Error())
		return
	}

	// Removing a hard link of the keeper frees nothing.
	if kst, err := s.First().File().Stat(); err == nil && st.Inode != 0 &&
		kst.Device == st.Device && kst.Inode == st.Inode {
		c.record(res, database.ActionSkip, s, m, "", st.Size, "hard link of keeper")
		return
	}

	if err := c.validator.ValidateTarget(path); err != nil {
		c.logger.Warn("safety check blocked duplicate", zap.String("path", path), zap.Error(err))
		c.record(res, database.ActionSkip, s, m, "", st.Size, err.Error())
		return
	}

	var dest string
	if c.opts.Mode == ModeMove {
		dest = c.destination(path)
	}

	if c.opts.DryRun {
		if dest != "" {
			c.logger.Info("[DRY RUN] Would move duplicate", zap.String("path", path), zap.String("destination", dest))
		} else {
			c.logger.Info("[DRY RUN] Would delete duplicate", zap.String("path", path), zap.Int64("size", st.Size))
		}
		c.record(res, database.ActionDryRun, s, m, dest, st.Size, "")
		return
	}

	action := database.ActionDelete
	if dest != "" {
		action = database.ActionMove
		err = c.move(path, dest)
	} else {
		err = c.ops.Remove(path)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Info("duplicate already gone", zap.String("path", path))
			return
		}
		c.logger.Error("cleanup action failed", zap.String("path", path), zap.Error(err))
		c.record(res, database.ActionError, s, m, dest, st.Size, err.Error())
		return
	}
	c.record(res, action, s, m, dest, st.Size, "")
}

// destination maps a duplicate to its place below the trash directory.
func (c *Cleaner) destination(path string) string {
	if c.opts.Hierarchical {
		return filepath.Join(c.opts.TrashDir, path)
	}
	return filepath.Join(c.opts.TrashDir, filepath.Base(path))
}

func (c *Cleaner) move(src, dst string) error {
	if err := c.ops.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		dst = file.AlternativeName(dst)
	}
	return c.ops.Move(src, dst)
}

// record updates the result, metrics and the action history.
func (c *Cleaner) record(res *Result, action string, s *duplicate.Set, m *duplicate.Member, dest string, size int64, errMsg string) {
	var reclaimed int64
	switch action {
	case database.ActionDelete:
		res.Deleted++
		reclaimed = size
	case database.ActionMove:
		res.Moved++
		reclaimed = size
	case database.ActionDryRun:
		res.DryRun++
		res.BytesPlanned += size
	case database.ActionSkip:
		res.Skipped++
	case database.ActionError:
		res.Errors++
	}
	res.BytesReclaimed += reclaimed
	metrics.RecordAction(action, reclaimed)

	reason, ok := c.reasons[m.Path()]
	if !ok {
		reason = MarkReason{Keeper: s.First().Path()}
	}
	fields := []zap.Field{
		zap.String("action", action),
		zap.String("path", m.Path()),
		zap.Int64("size", size),
		zap.String("reason", reason.ToLogString()),
	}
	if dest != "" {
		fields = append(fields, zap.String("destination", dest))
	}
	if errMsg != "" {
		fields = append(fields, zap.String("error", errMsg))
	}
	c.logger.Info("duplicate action", fields...)

	if c.db == nil {
		return
	}
	err := c.db.RecordAction(database.ActionRecord{
		Action:       action,
		Path:         m.Path(),
		Keeper:       reason.Keeper,
		Destination:  dest,
		Size:         size,
		Rule:         reason.Rule,
		Reason:       reason.Detail,
		ErrorMessage: errMsg,
	})
	if err != nil {
		// Don't fail cleanup if the history write fails
		c.logger.Error("failed to record action", zap.Error(err))
	}
}
