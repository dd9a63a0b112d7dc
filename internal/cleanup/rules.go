package cleanup

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"dupsweep/internal/config"
	"dupsweep/internal/duplicate"
)

var errUnknownRule = errors.New("unknown cleanup rule")

// Rule marks the members of a set that should go. Mark returns a short
// explanation, or ok=false when the rule does not apply to the set. Marks
// are committed or rolled back by the Cleaner.
type Rule interface {
	Name() string
	Mark(s *duplicate.Set) (detail string, ok bool)
}

// NewRule builds a rule by name. See config for the argument of each rule.
func NewRule(name string, args []string) (Rule, error) {
	switch name {
	case "by_stem":
		return stemRule{}, nil
	case "by_directory":
		if len(args) == 0 {
			return nil, fmt.Errorf("%s: directory argument required", name)
		}
		dirs := make([]string, 0, len(args))
		for _, a := range args {
			dirs = append(dirs, filepath.Clean(a))
		}
		return directoryRule{dirs: dirs}, nil
	case "by_parent":
		if len(args) == 0 {
			return nil, fmt.Errorf("%s: parent name argument required", name)
		}
		return parentRule{names: args}, nil
	case "by_name":
		return nameRule{}, nil
	case "by_depth":
		excluded := make(map[string]bool, len(args))
		for _, a := range args {
			excluded[filepath.Clean(a)] = true
		}
		return depthRule{excluded: excluded}, nil
	case "keep_shortest_path", "keep_longest_path", "keep_oldest", "keep_newest":
		return keepRule{name: name}, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownRule, name)
}

// RulesFromConfig builds the configured rules in order.
func RulesFromConfig(specs []config.RuleSpec) ([]Rule, error) {
	rules := make([]Rule, 0, len(specs))
	for i, spec := range specs {
		r, err := NewRule(spec.Name, spec.Args)
		if err != nil {
			return nil, fmt.Errorf("cleanup rule %d: %w", i, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// markFollowings marks every pending member after the first one.
func markFollowings(s *duplicate.Set) int {
	n := 0
	for _, m := range s.Followings() {
		if err := s.Mark(m); err == nil {
			n++
		}
	}
	return n
}

// stemRule keeps the shortest name of a single directory and marks the
// names starting with its stem, such as "img (1).jpg" next to "img.jpg".
type stemRule struct{}

func (stemRule) Name() string { return "by_stem" }

func (stemRule) Mark(s *duplicate.Set) (string, bool) {
	if !s.IsSameParent() {
		return "", false
	}
	s.Sort(duplicate.ByNameLength, false)
	stem := s.First().Stem()
	n := s.MarkFunc(func(m *duplicate.Member) bool {
		return m != s.First() && strings.HasPrefix(m.Name(), stem)
	})
	return fmt.Sprintf("name starts with stem %q", stem), n > 0
}

// directoryRule marks members below one of its directories.
type directoryRule struct {
	dirs []string
}

func (directoryRule) Name() string { return "by_directory" }

func (r directoryRule) Mark(s *duplicate.Set) (string, bool) {
	var hit string
	n := s.MarkFunc(func(m *duplicate.Member) bool {
		for _, d := range r.dirs {
			if isBelow(m.Path(), d) {
				hit = d
				return true
			}
		}
		return false
	})
	return "located under " + hit, n > 0
}

func isBelow(path, dir string) bool {
	if dir == string(filepath.Separator) {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// parentRule marks members whose parent directory has one of the names,
// unless every member shares that parent name.
type parentRule struct {
	names []string
}

func (parentRule) Name() string { return "by_parent" }

func (r parentRule) Mark(s *duplicate.Set) (string, bool) {
	if s.IsSameParent() {
		return "", false
	}
	byParent := make(map[string][]*duplicate.Member)
	pending := s.Pending()
	for _, m := range pending {
		name := filepath.Base(m.Parent())
		byParent[name] = append(byParent[name], m)
	}

	var matched []string
	for _, name := range r.names {
		group, ok := byParent[name]
		if !ok || len(group) >= len(pending) {
			continue
		}
		for _, m := range group {
			_ = s.Mark(m)
		}
		matched = append(matched, name)
	}
	return fmt.Sprintf("parent directory named %s", strings.Join(matched, ", ")), len(matched) > 0
}

// nameRule keeps, within a single directory, the name with the most
// letters and marks the others.
type nameRule struct{}

func (nameRule) Name() string { return "by_name" }

func (nameRule) Mark(s *duplicate.Set) (string, bool) {
	if !s.IsSameParent() {
		return "", false
	}
	s.SortFunc(func(a, b *duplicate.Member) int {
		return countLetters(b.Stem()) - countLetters(a.Stem())
	})
	keeper := s.First().Name()
	return fmt.Sprintf("fewer letters than %q", keeper), markFollowings(s) > 0
}

func countLetters(name string) int {
	n := 0
	for _, r := range strings.ToLower(name) {
		if r >= 'a' && r <= 'z' {
			n++
		}
	}
	return n
}

// depthRule keeps the member closest to the common parent of the set,
// unless that common parent is excluded.
type depthRule struct {
	excluded map[string]bool
}

func (depthRule) Name() string { return "by_depth" }

func (r depthRule) Mark(s *duplicate.Set) (string, bool) {
	common := s.CommonParent()
	if common == "" || r.excluded[common] {
		return "", false
	}
	s.Sort(duplicate.ByParentLength, false)
	return "deeper below " + common + " than the keeper", markFollowings(s) > 0
}

// keepRule keeps one member chosen by path length or modification time and
// marks all the others.
type keepRule struct {
	name string
}

func (r keepRule) Name() string { return r.name }

func (r keepRule) Mark(s *duplicate.Set) (string, bool) {
	var detail string
	switch r.name {
	case "keep_shortest_path":
		s.Sort(duplicate.ByPathLength, false)
		detail = "longer path than the keeper"
	case "keep_longest_path":
		s.Sort(duplicate.ByPathLength, true)
		detail = "shorter path than the keeper"
	case "keep_oldest":
		s.SortFunc(func(a, b *duplicate.Member) int { return modTime(a).Compare(modTime(b)) })
		detail = "newer than the keeper"
	case "keep_newest":
		s.SortFunc(func(a, b *duplicate.Member) int { return modTime(b).Compare(modTime(a)) })
		detail = "older than the keeper"
	}
	return detail, markFollowings(s) > 0
}

// modTime returns the zero time for members that cannot be stat'ed.
func modTime(m *duplicate.Member) time.Time {
	st, err := m.File().Stat()
	if err != nil {
		return time.Time{}
	}
	return st.ModTime
}
