package duplicate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustPool(t *testing.T, groups ...[]string) *Pool {
	t.Helper()
	p := NewPool(nil)
	for _, g := range groups {
		if err := p.AddFromPaths(g); err != nil {
			t.Fatalf("AddFromPaths(%v): %v", g, err)
		}
	}
	return p
}

func TestPoolRoundTrip(t *testing.T) {
	p := mustPool(t,
		[]string{"/z/b", "/z/a"},
		[]string{"/m/x", "/a/y", "/c/z"},
	)
	s := p.Sets()[1]
	_ = s.Mark(member(t, s, "/m/x"))
	_ = s.Commit()

	data, err := p.Serialize(false)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	back, err := Deserialize(data, nil)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !p.Equal(back) {
		t.Errorf("round trip changed the pool:\n%s", data)
	}
}

func TestPoolSerializeExcludesSingletons(t *testing.T) {
	p := mustPool(t, []string{"/d/a", "/d/b"}, []string{"/e/a", "/e/b", "/e/c"})
	single := p.Sets()[0]
	_ = single.Mark(member(t, single, "/d/b"))
	_ = single.Commit()

	data, err := p.Serialize(true)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	back, err := Deserialize(data, nil)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if back.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", back.Len())
	}

	p.RemoveSingletons()
	if !p.Equal(back) {
		t.Error("pool without singletons differs from the filtered document")
	}
}

func TestPoolSerializeRejectsNonUTF8(t *testing.T) {
	p := mustPool(t, []string{"/d/\xff", "/d/b"})
	if _, err := p.Serialize(false); !errors.Is(err, ErrNonUTF8Path) {
		t.Fatalf("expected ErrNonUTF8Path, got %v", err)
	}
}

func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not json", "{", nil},
		{"short set", `[["/a"]]`, ErrTooFewFiles},
		{"repeated path", `[["/a", "/a"]]`, ErrNonUniqueInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Deserialize([]byte(tt.data), nil)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestPoolFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.json")
	p := mustPool(t, []string{"/d/a", "/d/b"})
	if err := p.WriteFile(path, true); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	back, err := ReadFile(path, nil)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !p.Equal(back) {
		t.Error("file round trip changed the pool")
	}
}

func TestPoolSortAndEqual(t *testing.T) {
	a := mustPool(t, []string{"/z/2", "/z/1"}, []string{"/a/2", "/a/1"})
	b := mustPool(t, []string{"/a/1", "/a/2"}, []string{"/z/1", "/z/2"})
	if !a.Equal(b) {
		t.Error("pools with the same sets in another order should be equal")
	}
	a.Sort()
	if got := a.Sets()[0].First().Path(); got != "/a/1" {
		t.Errorf("first set after Sort starts with %s, want /a/1", got)
	}

	c := mustPool(t, []string{"/a/1", "/a/3"}, []string{"/z/1", "/z/2"})
	if a.Equal(c) {
		t.Error("pools with different members should differ")
	}
}

func TestPoolSortUsesFirstPendingPath(t *testing.T) {
	p := mustPool(t, []string{"/a/1", "/m/2"}, []string{"/c/1", "/c/2"})
	var committed *Set
	for _, s := range p.Sets() {
		if _, ok := s.Lookup("/a/1"); ok {
			committed = s
		}
	}
	if err := committed.Mark(member(t, committed, "/a/1")); err != nil {
		t.Fatal(err)
	}
	if err := committed.Commit(); err != nil {
		t.Fatal(err)
	}

	p.Sort()
	var firsts []string
	for _, s := range p.Sets() {
		firsts = append(firsts, s.First().Path())
	}
	if diff := cmp.Diff([]string{"/c/1", "/m/2"}, firsts); diff != "" {
		t.Errorf("set order mismatch (-want +got):\n%s", diff)
	}

	data, err := p.Serialize(false)
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	back, err := Deserialize(data, nil)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if !p.Equal(back) {
		t.Error("reloaded document differs once commits are forgotten")
	}
}

func TestPoolDiff(t *testing.T) {
	a := mustPool(t, []string{"/d/a", "/d/b"})
	b := mustPool(t, []string{"/d/a", "/d/b", "/d/c"}, []string{"/e/x", "/e/y"})

	if diff := cmp.Diff([]string{"/d/c", "/e/x", "/e/y"}, a.Diff(b)); diff != "" {
		t.Errorf("Diff mismatch (-want +got):\n%s", diff)
	}
	if got := a.ReverseDiff(b); len(got) != 0 {
		t.Errorf("ReverseDiff = %v, want none", got)
	}
}

func TestPoolExplainAndCounters(t *testing.T) {
	dir := t.TempDir()
	paths := makeFiles(t, dir, "0123456789", "a", "b", "c")
	p := mustPool(t, paths)
	s := p.Sets()[0]
	_ = s.Mark(member(t, s, paths[2]))
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}

	want := map[string][]string{paths[0]: {paths[2]}}
	if diff := cmp.Diff(want, p.Explain()); diff != "" {
		t.Errorf("Explain mismatch (-want +got):\n%s", diff)
	}
	if p.NumberOfDuplicates() != 1 || p.NumberOfRedundant() != 2 {
		t.Errorf("counters: %d duplicates, %d redundant", p.NumberOfDuplicates(), p.NumberOfRedundant())
	}
	if got := p.ReclaimableBytes(); got != 20 {
		t.Errorf("ReclaimableBytes() = %d, want 20", got)
	}
}

func TestSanityCheck(t *testing.T) {
	dir := t.TempDir()
	paths := makeFiles(t, dir, "same", "a", "b", "c")
	link := filepath.Join(dir, "link")
	if err := os.Symlink(paths[0], link); err != nil {
		t.Fatal(err)
	}
	hard := filepath.Join(dir, "hard")
	if err := os.Link(paths[1], hard); err != nil {
		t.Fatal(err)
	}

	p := mustPool(t, []string{paths[0], paths[1]}, []string{paths[2], hard})
	if report := p.SanityCheck(); !report.OK() {
		t.Fatalf("healthy pool failed: %v", report.Failed())
	} else if len(report.HardLinked) != 2 {
		t.Errorf("HardLinked = %v, want the two linked paths", report.HardLinked)
	}

	if err := os.Remove(paths[2]); err != nil {
		t.Fatal(err)
	}
	p.Add(mustSet(t, paths[0], link))

	report := p.SanityCheck()
	if report.OK() {
		t.Fatal("sanity check passed with a deleted path")
	}
	if diff := cmp.Diff([]string{paths[2]}, report.Missing); diff != "" {
		t.Errorf("Missing mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{link}, report.Symlinks); diff != "" {
		t.Errorf("Symlinks mismatch (-want +got):\n%s", diff)
	}
	if report.Repeated[paths[0]] != 2 {
		t.Errorf("Repeated = %v, want %s twice", report.Repeated, paths[0])
	}
}

func TestPoolRemaining(t *testing.T) {
	p := mustPool(t,
		[]string{"/a/1", "/a/2", "/a/3"},
		[]string{"/b/1", "/b/2"},
		[]string{"/c/1", "/c/2"},
	)
	sets := p.Sets()
	_ = sets[0].Mark(member(t, sets[0], "/a/3"))
	_ = sets[0].Commit()
	_ = sets[1].Mark(member(t, sets[1], "/b/2"))
	_ = sets[1].Commit()

	want := mustPool(t, []string{"/a/1", "/a/2"}, []string{"/c/1", "/c/2"})
	if got := p.Remaining(); !got.Equal(want) {
		t.Errorf("Remaining() = %v, want %v", got.Paths(), want.Paths())
	}
	if p.Len() != 3 {
		t.Error("Remaining modified the receiver")
	}
}
