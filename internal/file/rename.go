package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrSameDestination is returned when a rename targets the file itself.
var ErrSameDestination = errors.New("destination is the file itself")

// AlternativeName returns the first "stem (i)suffix" sibling of dst that does
// not exist yet, counting i from 1.
func AlternativeName(dst string) string {
	dir := filepath.Dir(dst)
	base := filepath.Base(dst)
	suffix := filepath.Ext(base)
	stem := strings.TrimSuffix(base, suffix)
	for i := 1; ; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, suffix))
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}

// Rename moves the file to dst, picking an alternative name when dst is
// taken. The returned Handle points at the effective destination; the
// receiver keeps its old identity.
func (h *Handle) Rename(dst string) (*Handle, error) {
	dst = filepath.Clean(dst)
	if dst == filepath.Clean(h.Path()) {
		return nil, fmt.Errorf("rename %s: %w", dst, ErrSameDestination)
	}
	if _, err := os.Lstat(dst); err == nil {
		dst = AlternativeName(dst)
	}
	if err := os.Rename(h.Path(), dst); err != nil {
		return nil, wrapErr("rename", h.Path(), err)
	}
	return NewWithOptions([]byte(filepath.Dir(dst)), []byte(filepath.Base(dst)), h.opts)
}

// MoveTo renames the file into dir, keeping its name.
func (h *Handle) MoveTo(dir string) (*Handle, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrapErr("mkdir", dir, err)
	}
	return h.Rename(filepath.Join(dir, string(h.name)))
}
