package cleanup

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"dupsweep/internal/config"
	"dupsweep/internal/duplicate"
)

func pathPool(t *testing.T, groups ...[]string) *duplicate.Pool {
	t.Helper()
	p := duplicate.NewPool(nil)
	for _, g := range groups {
		if err := p.AddFromPaths(g); err != nil {
			t.Fatalf("AddFromPaths(%v): %v", g, err)
		}
	}
	return p
}

func duplicatesOf(pool *duplicate.Pool) [][]string {
	var out [][]string
	for _, s := range pool.Sets() {
		out = append(out, s.DuplicatePaths())
	}
	return out
}

func TestRules(t *testing.T) {
	tests := []struct {
		name     string
		rule     string
		args     []string
		sets     [][]string
		want     [][]string // committed duplicates per set
		wantStat CleanStats
	}{
		{
			name: "stem marks numbered copies",
			rule: "by_stem",
			sets: [][]string{
				{"/p/img (1).jpg", "/p/img.jpg", "/p/other.jpg"},
				{"/p/a.txt", "/q/a (1).txt"},
			},
			want:     [][]string{{"/p/img (1).jpg"}, nil},
			wantStat: CleanStats{Sets: 2, Committed: 1, Marked: 1},
		},
		{
			name: "directory rolls back when every copy is inside",
			rule: "by_directory",
			args: []string{"/trash"},
			sets: [][]string{
				{"/a/x", "/trash/x", "/trash/sub/y"},
				{"/trash/1", "/trash/2"},
				{"/trashcan/1", "/b/1"},
			},
			want:     [][]string{{"/trash/x", "/trash/sub/y"}, nil, nil},
			wantStat: CleanStats{Sets: 3, Committed: 1, Marked: 2, AllMarked: 1},
		},
		{
			name: "parent needs a kept sibling",
			rule: "by_parent",
			args: []string{"backup"},
			sets: [][]string{
				{"/a/backup/x", "/b/x"},
				{"/c/backup/x", "/d/backup/x"},
				{"/e/backup/1", "/e/backup/2"},
			},
			want:     [][]string{{"/a/backup/x"}, nil, nil},
			wantStat: CleanStats{Sets: 3, Committed: 1, Marked: 1},
		},
		{
			name: "name keeps the most letters",
			rule: "by_name",
			sets: [][]string{
				{"/d/IMG_0001.jpg", "/d/holiday.jpg", "/d/DSC01.jpg"},
			},
			want:     [][]string{{"/d/DSC01.jpg", "/d/IMG_0001.jpg"}},
			wantStat: CleanStats{Sets: 1, Committed: 1, Marked: 2},
		},
		{
			name: "depth keeps the shallowest copy",
			rule: "by_depth",
			sets: [][]string{
				{"/m/a/b/c/x", "/m/a/x", "/m/z/y/x"},
			},
			want:     [][]string{{"/m/z/y/x", "/m/a/b/c/x"}},
			wantStat: CleanStats{Sets: 1, Committed: 1, Marked: 2},
		},
		{
			name: "depth skips excluded common parents",
			rule: "by_depth",
			args: []string{"/m/a"},
			sets: [][]string{
				{"/m/a/b/x", "/m/a/x"},
			},
			want:     [][]string{nil},
			wantStat: CleanStats{Sets: 1},
		},
		{
			name: "longest path",
			rule: "keep_longest_path",
			sets: [][]string{
				{"/a/x", "/a/long/x", "/a/b/x"},
			},
			want:     [][]string{{"/a/b/x", "/a/x"}},
			wantStat: CleanStats{Sets: 1, Committed: 1, Marked: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := pathPool(t, tt.sets...)
			c := NewCleaner(Options{}, nil, nil)
			got := c.Clean(pool, mustRule(t, tt.rule, tt.args...))

			if diff := cmp.Diff(tt.wantStat, got); diff != "" {
				t.Errorf("stats mismatch (-want +got):\n%s", diff)
			}
			// pool order is input order; compare per set
			var want [][]string
			for _, w := range tt.want {
				if w == nil {
					w = []string{}
				}
				want = append(want, w)
			}
			var gotDup [][]string
			for _, d := range duplicatesOf(pool) {
				if d == nil {
					d = []string{}
				}
				gotDup = append(gotDup, d)
			}
			if diff := cmp.Diff(want, gotDup); diff != "" {
				t.Errorf("duplicates mismatch (-want +got):\n%s", diff)
			}
			for _, s := range pool.Sets() {
				if err := s.Check(); err != nil {
					t.Errorf("set left inconsistent: %v", err)
				}
				if s.NumberOfMarked() != 0 {
					t.Errorf("marks left behind in %s", s)
				}
			}
		})
	}
}

func TestKeepByModTime(t *testing.T) {
	dir := t.TempDir()
	names := []string{"new", "old", "mid"}
	ages := []time.Duration{time.Hour, 72 * time.Hour, 24 * time.Hour}
	var paths []string
	for i, n := range names {
		p := filepath.Join(dir, n)
		if err := os.WriteFile(p, []byte("same"), 0o644); err != nil {
			t.Fatal(err)
		}
		mt := time.Now().Add(-ages[i])
		if err := os.Chtimes(p, mt, mt); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	tests := []struct {
		rule   string
		keeper string
	}{
		{"keep_oldest", paths[1]},
		{"keep_newest", paths[0]},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			pool := pathPool(t, paths)
			c := NewCleaner(Options{}, nil, nil)
			c.Clean(pool, mustRule(t, tt.rule))

			s := pool.Sets()[0]
			if got := s.First().Path(); got != tt.keeper {
				t.Errorf("keeper = %s, want %s", got, tt.keeper)
			}
			if s.NumberOfDuplicates() != 2 {
				t.Errorf("duplicates = %v", s.DuplicatePaths())
			}
		})
	}
}

func TestRulesChainAndReasons(t *testing.T) {
	pool := pathPool(t, []string{"/p/img.jpg", "/p/img (1).jpg", "/backup/img.jpg"})
	c := NewCleaner(Options{}, nil, nil)

	c.Clean(pool, mustRule(t, "by_directory", "/backup"))
	// a second rule only sees what is still pending
	c.Clean(pool, mustRule(t, "by_stem"))

	s := pool.Sets()[0]
	if diff := cmp.Diff([]string{"/backup/img.jpg"}, s.DuplicatePaths()); diff != "" {
		t.Errorf("by_stem ran on a set with mixed parents (-want +got):\n%s", diff)
	}

	reason, ok := c.Reason("/backup/img.jpg")
	if !ok {
		t.Fatal("no reason recorded")
	}
	if reason.Rule != "by_directory" || reason.Keeper != "/p/img.jpg" {
		t.Errorf("unexpected reason %+v", reason)
	}
	if log := reason.ToLogString(); !strings.HasPrefix(log, "by_directory: located under /backup") {
		t.Errorf("ToLogString() = %q", log)
	}
	if _, ok := c.Reason("/p/img.jpg"); ok {
		t.Error("kept file has a reason")
	}
}

func TestMarkReasonFormatting(t *testing.T) {
	tests := []struct {
		reason MarkReason
		log    string
		human  string
	}{
		{MarkReason{}, "unknown", "Unknown reason"},
		{MarkReason{Keeper: "/k"}, "unknown", "Copy of /k"},
		{
			MarkReason{Rule: "by_stem", Keeper: "/p/img.jpg", Detail: `name starts with stem "img"`},
			`by_stem: name starts with stem "img" (keeper=/p/img.jpg)`,
			`Copy of /p/img.jpg, name starts with stem "img"`,
		},
	}
	for _, tt := range tests {
		if got := tt.reason.ToLogString(); got != tt.log {
			t.Errorf("ToLogString() = %q, want %q", got, tt.log)
		}
		if got := tt.reason.ToHumanReadable(); got != tt.human {
			t.Errorf("ToHumanReadable() = %q, want %q", got, tt.human)
		}
	}
}

func TestNewRuleErrors(t *testing.T) {
	if _, err := NewRule("by_color", nil); !errors.Is(err, errUnknownRule) {
		t.Errorf("expected errUnknownRule, got %v", err)
	}
	if _, err := NewRule("by_directory", nil); err == nil {
		t.Error("by_directory accepted no directory")
	}

	rules, err := RulesFromConfig([]config.RuleSpec{
		{Name: "by_stem"},
		{Name: "by_parent", Args: []string{"backup"}},
	})
	if err != nil {
		t.Fatalf("RulesFromConfig: %v", err)
	}
	if len(rules) != 2 || rules[1].Name() != "by_parent" {
		t.Errorf("unexpected rules %v", rules)
	}
}
