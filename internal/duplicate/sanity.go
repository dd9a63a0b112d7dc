package duplicate

import (
	"errors"
	"sort"

	"go.uber.org/zap"

	"dupsweep/internal/file"
)

// SanityReport lists the paths that failed a pool sanity check.
type SanityReport struct {
	Missing    []string       // no longer on disk
	Symlinks   []string       // replaced by a symlink
	Repeated   map[string]int // referenced by more than one set
	Unreadable []string       // stat failed for another reason
	HardLinked []string       // more than one link; informational only
}

// OK reports whether the pool can be acted upon. Hard links do not count.
func (r SanityReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Symlinks) == 0 && len(r.Repeated) == 0 && len(r.Unreadable) == 0
}

// Failed returns every failing path, sorted.
func (r SanityReport) Failed() []string {
	out := append([]string(nil), r.Missing...)
	out = append(out, r.Symlinks...)
	out = append(out, r.Unreadable...)
	for p := range r.Repeated {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// SanityCheck re-examines every member path on disk. Cached stats are
// ignored.
func (p *Pool) SanityCheck() SanityReport {
	counts := make(map[string]int)
	var order []string
	for _, s := range p.sets {
		for _, m := range s.files {
			path := m.Path()
			if counts[path] == 0 {
				order = append(order, path)
			}
			counts[path]++
		}
	}

	report := SanityReport{Repeated: make(map[string]int)}
	for _, path := range order {
		if n := counts[path]; n > 1 {
			p.logger.Error("path referenced by several sets", zap.String("path", path), zap.Int("count", n))
			report.Repeated[path] = n
		}

		h, err := file.FromPath(path)
		if err == nil {
			_, err = h.Stat()
		}
		if err != nil {
			if errors.Is(err, file.ErrNotFound) {
				p.logger.Error("path does not exist", zap.String("path", path))
				report.Missing = append(report.Missing, path)
			} else {
				p.logger.Error("cannot stat path", zap.String("path", path), zap.Error(err))
				report.Unreadable = append(report.Unreadable, path)
			}
			continue
		}

		st, _ := h.Stat()
		if link, _ := h.IsSymlink(); link {
			p.logger.Error("path is a symlink", zap.String("path", path))
			report.Symlinks = append(report.Symlinks, path)
		}
		if st.Nlink > 1 {
			p.logger.Warn("path has more than one hard link", zap.String("path", path), zap.Uint64("nlink", st.Nlink))
			report.HardLinked = append(report.HardLinked, path)
		}
	}
	return report
}
