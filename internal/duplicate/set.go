// Package duplicate holds groups of identical files and the decisions taken
// on them. A Set splits its members into pending (kept or undecided) and
// duplicates (to remove); marking is a two-phase operation committed with
// Commit and undone with Rollback.
package duplicate

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"dupsweep/internal/file"
)

var (
	// ErrTooFewFiles is returned when a set is built from fewer than two files
	ErrTooFewFiles = errors.New("duplicate set requires at least two files")

	// ErrNonUniqueInput is returned when a set is built with a repeated path
	ErrNonUniqueInput = errors.New("non-unique list of files")

	// ErrAllMarked is returned by Commit when no pending member would remain
	ErrAllMarked = errors.New("all pending files are marked")

	// ErrInconsistent reports a broken partition invariant
	ErrInconsistent = errors.New("inconsistent duplicate set")

	// ErrNotPending is returned when marking a member that is not pending
	ErrNotPending = errors.New("member is not pending")
)

// Member is one file of a Set with its removal intent.
type Member struct {
	file   *file.Handle
	marked bool
}

func (m *Member) File() *file.Handle { return m.file }
func (m *Member) Path() string       { return m.file.Path() }
func (m *Member) Marked() bool       { return m.marked }
func (m *Member) String() string     { return m.file.Path() }

// Parent returns the member's parent directory.
func (m *Member) Parent() string { return string(m.file.Parent()) }

// Name returns the member's base name.
func (m *Member) Name() string { return string(m.file.Name()) }

// Stem returns the name without its extension.
func (m *Member) Stem() string {
	name := m.Name()
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Set is a group of files with identical content.
type Set struct {
	files      []*Member // input order, never changes
	pending    []*Member
	duplicates []*Member
	input      map[string]struct{}
}

// NewSet builds a set from at least two distinct handles. Nothing is built
// on error.
func NewSet(files []*file.Handle) (*Set, error) {
	if len(files) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewFiles, len(files))
	}
	input := make(map[string]struct{}, len(files))
	members := make([]*Member, 0, len(files))
	for _, f := range files {
		p := f.Path()
		if _, dup := input[p]; dup {
			return nil, fmt.Errorf("%w: %q", ErrNonUniqueInput, p)
		}
		input[p] = struct{}{}
		members = append(members, &Member{file: f})
	}
	return &Set{
		files:   members,
		pending: append([]*Member(nil), members...),
		input:   input,
	}, nil
}

// NewSetFromPaths is NewSet over paths.
func NewSetFromPaths(paths []string) (*Set, error) {
	files := make([]*file.Handle, 0, len(paths))
	for _, p := range paths {
		h, err := file.FromPath(p)
		if err != nil {
			return nil, fmt.Errorf("duplicate set: %w", err)
		}
		files = append(files, h)
	}
	return NewSet(files)
}

func (s *Set) NumberOfFiles() int      { return len(s.files) }
func (s *Set) NumberOfPending() int    { return len(s.pending) }
func (s *Set) NumberOfDuplicates() int { return len(s.duplicates) }

// IsSingleton reports whether only one pending member is left.
func (s *Set) IsSingleton() bool { return len(s.pending) == 1 }

// Files returns every member in input order.
func (s *Set) Files() []*Member { return append([]*Member(nil), s.files...) }

func (s *Set) Pending() []*Member    { return append([]*Member(nil), s.pending...) }
func (s *Set) Duplicates() []*Member { return append([]*Member(nil), s.duplicates...) }

// First returns the first pending member, the reference copy.
func (s *Set) First() *Member {
	if len(s.pending) == 0 {
		return nil
	}
	return s.pending[0]
}

// Followings returns the pending members after the first.
func (s *Set) Followings() []*Member {
	if len(s.pending) < 2 {
		return nil
	}
	return append([]*Member(nil), s.pending[1:]...)
}

// Marked returns the marked pending members.
func (s *Set) Marked() []*Member {
	var out []*Member
	for _, m := range s.pending {
		if m.marked {
			out = append(out, m)
		}
	}
	return out
}

// Unmarked returns the unmarked pending members.
func (s *Set) Unmarked() []*Member {
	var out []*Member
	for _, m := range s.pending {
		if !m.marked {
			out = append(out, m)
		}
	}
	return out
}

func (s *Set) NumberOfMarked() int   { return len(s.Marked()) }
func (s *Set) NumberOfUnmarked() int { return len(s.Unmarked()) }

// Lookup returns the member with the given path.
func (s *Set) Lookup(path string) (*Member, bool) {
	for _, m := range s.files {
		if m.Path() == path {
			return m, true
		}
	}
	return nil, false
}

// Paths returns the member paths: pending first, then duplicates.
func (s *Set) Paths() []string {
	out := make([]string, 0, len(s.files))
	for _, m := range s.pending {
		out = append(out, m.Path())
	}
	for _, m := range s.duplicates {
		out = append(out, m.Path())
	}
	return out
}

// DuplicatePaths returns the committed duplicate paths.
func (s *Set) DuplicatePaths() []string {
	out := make([]string, 0, len(s.duplicates))
	for _, m := range s.duplicates {
		out = append(out, m.Path())
	}
	return out
}

func (s *Set) String() string {
	return fmt.Sprintf("%q", s.Paths())
}

// Size returns the common file size.
func (s *Set) Size() (int64, error) {
	return s.files[0].file.Size()
}

func (s *Set) isPending(m *Member) bool {
	for _, p := range s.pending {
		if p == m {
			return true
		}
	}
	return false
}

// Mark flags a pending member for removal. Marking twice is a no-op.
func (s *Set) Mark(m *Member) error {
	if !s.isPending(m) {
		return fmt.Errorf("mark %s: %w", m, ErrNotPending)
	}
	m.marked = true
	return nil
}

// Unmark clears a pending member's removal flag.
func (s *Set) Unmark(m *Member) error {
	if !s.isPending(m) {
		return fmt.Errorf("unmark %s: %w", m, ErrNotPending)
	}
	m.marked = false
	return nil
}

// MarkFunc marks every pending member matching pred and returns how many
// were marked.
func (s *Set) MarkFunc(pred func(*Member) bool) int {
	n := 0
	for _, m := range s.pending {
		if pred(m) {
			m.marked = true
			n++
		}
	}
	return n
}

// Commit moves marked pending members to duplicates. It fails with
// ErrAllMarked, leaving the partition untouched, when nothing would be kept.
func (s *Set) Commit() error {
	marked := s.NumberOfMarked()
	if marked == 0 {
		return nil
	}
	if marked == len(s.pending) {
		return fmt.Errorf("commit %s: %w", s, ErrAllMarked)
	}
	kept := s.pending[:0:0]
	for _, m := range s.pending {
		if m.marked {
			m.marked = false
			s.duplicates = append(s.duplicates, m)
		} else {
			kept = append(kept, m)
		}
	}
	s.pending = kept
	return nil
}

// Rollback clears every mark and, when restoreDuplicates is set, moves the
// duplicates back to pending.
func (s *Set) Rollback(restoreDuplicates bool) {
	if restoreDuplicates {
		s.pending = append(s.pending, s.duplicates...)
		s.duplicates = nil
	}
	for _, m := range s.pending {
		m.marked = false
	}
}

// Check verifies the partition: pending is not empty, no path is in both
// lists and together they cover exactly the input.
func (s *Set) Check() error {
	if len(s.pending) == 0 {
		return fmt.Errorf("%w: pending is empty", ErrInconsistent)
	}
	seen := make(map[string]bool, len(s.files))
	for _, m := range s.pending {
		if seen[m.Path()] {
			return fmt.Errorf("%w: %s is pending twice", ErrInconsistent, m)
		}
		seen[m.Path()] = true
	}
	for _, m := range s.duplicates {
		if seen[m.Path()] {
			return fmt.Errorf("%w: %s is both pending and duplicate or duplicate twice", ErrInconsistent, m)
		}
		seen[m.Path()] = true
	}
	if len(s.pending)+len(s.duplicates) != len(s.files) {
		return fmt.Errorf("%w: %d pending + %d duplicates != %d files",
			ErrInconsistent, len(s.pending), len(s.duplicates), len(s.files))
	}
	for p := range seen {
		if _, ok := s.input[p]; !ok {
			return fmt.Errorf("%w: %s is not an input path", ErrInconsistent, p)
		}
	}
	for p := range s.input {
		if !seen[p] {
			return fmt.Errorf("%w: %s is in neither partition", ErrInconsistent, p)
		}
	}
	return nil
}

// Verify byte-compares every member against the first pending one.
func (s *Set) Verify() (bool, error) {
	ref := s.First()
	if ref == nil {
		return false, fmt.Errorf("%w: pending is empty", ErrInconsistent)
	}
	others := append(s.Followings(), s.duplicates...)
	for _, m := range others {
		same, err := ref.file.ByteCompare(m.file)
		if err != nil {
			return false, err
		}
		if !same {
			return false, nil
		}
	}
	return true, nil
}

// SortCriterion orders pending members.
type SortCriterion int

const (
	ByPath SortCriterion = iota
	ByPathLength
	ByNameLength
	ByParentLength // parent length, then name length
)

func (c SortCriterion) String() string {
	switch c {
	case ByPath:
		return "path"
	case ByPathLength:
		return "path_length"
	case ByNameLength:
		return "name_length"
	case ByParentLength:
		return "parent_length"
	}
	return fmt.Sprintf("SortCriterion(%d)", int(c))
}

// ParseSortCriterion maps a criterion name back to its value.
func ParseSortCriterion(name string) (SortCriterion, error) {
	for _, c := range []SortCriterion{ByPath, ByPathLength, ByNameLength, ByParentLength} {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown sort criterion %q", name)
}

// Sort reorders pending members only; ties fall back to byte path order,
// reversed along with the criterion.
func (s *Set) Sort(c SortCriterion, reverse bool) {
	key := func(m *Member) []int {
		switch c {
		case ByPathLength:
			return []int{len(m.Path())}
		case ByNameLength:
			return []int{len(m.Name())}
		case ByParentLength:
			return []int{len(m.Parent()), len(m.Name())}
		}
		return nil
	}
	s.SortFunc(func(a, b *Member) int {
		if reverse {
			a, b = b, a
		}
		ka, kb := key(a), key(b)
		for k := range ka {
			if ka[k] != kb[k] {
				return ka[k] - kb[k]
			}
		}
		return bytes.Compare(a.file.PathBytes(), b.file.PathBytes())
	})
}

// SortFunc reorders pending members with cmp, which returns a negative
// number when a sorts first. Ties fall back to byte path order.
func (s *Set) SortFunc(cmp func(a, b *Member) int) {
	sort.SliceStable(s.pending, func(i, j int) bool {
		a, b := s.pending[i], s.pending[j]
		if c := cmp(a, b); c != 0 {
			return c < 0
		}
		return bytes.Compare(a.file.PathBytes(), b.file.PathBytes()) < 0
	})
}

// IsSameParent reports whether every member lives in the same directory.
func (s *Set) IsSameParent() bool {
	parent := s.files[0].Parent()
	for _, m := range s.files[1:] {
		if m.Parent() != parent {
			return false
		}
	}
	return true
}

// CommonParent returns the longest directory prefix shared by every member,
// compared component-wise, or "" when there is none.
func (s *Set) CommonParent() string {
	split := func(dir string) []string {
		var parts []string
		if filepath.IsAbs(dir) {
			parts = append(parts, string(filepath.Separator))
		}
		for _, p := range strings.Split(dir, string(filepath.Separator)) {
			if p != "" {
				parts = append(parts, p)
			}
		}
		return parts
	}

	common := split(s.files[0].Parent())
	for _, m := range s.files[1:] {
		parts := split(m.Parent())
		n := 0
		for n < len(common) && n < len(parts) && common[n] == parts[n] {
			n++
		}
		common = common[:n]
	}
	if len(common) == 0 {
		return ""
	}
	return filepath.Join(common...)
}
