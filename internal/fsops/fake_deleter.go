package fsops

import (
	"io/fs"
	"sync"
)

// FakeOps implements Ops for testing
// Records all calls without touching the filesystem. Fail maps a path to the
// error returned for it.
type FakeOps struct {
	mu    sync.Mutex
	Calls []string
	Fail  map[string]error
}

func (f *FakeOps) record(call, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, call)
	if err, ok := f.Fail[path]; ok {
		return err
	}
	return nil
}

func (f *FakeOps) Remove(path string) error {
	return f.record("rm:"+path, path)
}

func (f *FakeOps) Move(src, dst string) error {
	return f.record("mv:"+src+"->"+dst, src)
}

func (f *FakeOps) MkdirAll(dir string, _ fs.FileMode) error {
	return f.record("mkdir:"+dir, dir)
}
