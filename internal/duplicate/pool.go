package duplicate

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"dupsweep/internal/file"
)

// Pool is an ordered collection of duplicate sets.
type Pool struct {
	sets   []*Set
	logger *zap.Logger
}

// NewPool returns an empty pool. A nil logger discards sanity check output.
func NewPool(logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{logger: logger}
}

func (p *Pool) Add(s *Set) {
	p.sets = append(p.sets, s)
}

// AddFromPaths builds a set from paths and appends it.
func (p *Pool) AddFromPaths(paths []string) error {
	s, err := NewSetFromPaths(paths)
	if err != nil {
		return err
	}
	p.Add(s)
	return nil
}

func (p *Pool) Len() int { return len(p.sets) }

// Sets returns the sets in pool order.
func (p *Pool) Sets() []*Set { return append([]*Set(nil), p.sets...) }

// Sort puts the pool in canonical order: pending members of each set by
// byte path, then sets by their first pending path.
func (p *Pool) Sort() {
	for _, s := range p.sets {
		s.Sort(ByPath, false)
	}
	sort.SliceStable(p.sets, func(i, j int) bool {
		return p.sets[i].sortKey() < p.sets[j].sortKey()
	})
}

// sortKey is the first pending path, or the smallest member path of a set
// with nothing pending.
func (s *Set) sortKey() string {
	if first := s.First(); first != nil {
		return first.Path()
	}
	return s.minPath()
}

func (s *Set) minPath() string {
	lowest := s.files[0].Path()
	for _, m := range s.files[1:] {
		if p := m.Path(); p < lowest {
			lowest = p
		}
	}
	return lowest
}

// RemoveSingletons drops sets with a single pending member.
func (p *Pool) RemoveSingletons() {
	kept := p.sets[:0]
	for _, s := range p.sets {
		if !s.IsSingleton() {
			kept = append(kept, s)
		}
	}
	p.sets = kept
}

// Equal reports whether both pools hold the same sets of paths. Set order,
// member order and committed state do not matter.
func (p *Pool) Equal(other *Pool) bool {
	if len(p.sets) != len(other.sets) {
		return false
	}
	a, b := p.setKeys(), other.setKeys()
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// setKeys returns one key per set, the sorted member paths joined by NUL.
func (p *Pool) setKeys() []string {
	keys := make([]string, 0, len(p.sets))
	for _, s := range p.sets {
		keys = append(keys, strings.Join(s.sortedPaths(), "\x00"))
	}
	sort.Strings(keys)
	return keys
}

func (s *Set) sortedPaths() []string {
	out := s.Paths()
	sort.Strings(out)
	return out
}

// Paths returns every member path of the pool.
func (p *Pool) Paths() map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range p.sets {
		for _, m := range s.files {
			out[m.Path()] = struct{}{}
		}
	}
	return out
}

// Diff returns the paths present in other but absent from p, sorted.
func (p *Pool) Diff(other *Pool) []string {
	return difference(other.Paths(), p.Paths())
}

// ReverseDiff returns the paths present in p but absent from other, sorted.
func (p *Pool) ReverseDiff(other *Pool) []string {
	return difference(p.Paths(), other.Paths())
}

func difference(a, b map[string]struct{}) []string {
	var out []string
	for path := range a {
		if _, ok := b[path]; !ok {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

// Explain maps each set's kept file to its committed duplicates, for sets
// with at least one duplicate.
func (p *Pool) Explain() map[string][]string {
	out := make(map[string][]string)
	for _, s := range p.sets {
		if len(s.duplicates) == 0 {
			continue
		}
		out[s.First().Path()] = s.DuplicatePaths()
	}
	return out
}

// Remaining returns a pool of the pending members of every set that still
// holds at least two of them, dropping committed duplicates.
func (p *Pool) Remaining() *Pool {
	out := NewPool(p.logger)
	for _, s := range p.sets {
		if len(s.pending) < 2 {
			continue
		}
		files := make([]*file.Handle, 0, len(s.pending))
		for _, m := range s.pending {
			files = append(files, m.file)
		}
		set, err := NewSet(files)
		if err != nil {
			continue
		}
		out.Add(set)
	}
	out.Sort()
	return out
}

// NumberOfDuplicates counts committed duplicates across all sets.
func (p *Pool) NumberOfDuplicates() int {
	n := 0
	for _, s := range p.sets {
		n += len(s.duplicates)
	}
	return n
}

// NumberOfRedundant counts files beyond one per set.
func (p *Pool) NumberOfRedundant() int {
	n := 0
	for _, s := range p.sets {
		n += len(s.files) - 1
	}
	return n
}

// ReclaimableBytes sums the size of every redundant copy. Sets whose size
// cannot be read are skipped.
func (p *Pool) ReclaimableBytes() int64 {
	var total int64
	for _, s := range p.sets {
		size, err := s.Size()
		if err != nil {
			p.logger.Debug("size unavailable", zap.Stringer("set", s), zap.Error(err))
			continue
		}
		total += size * int64(len(s.files)-1)
	}
	return total
}
