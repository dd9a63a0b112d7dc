// Package file models one on-disk file whose metadata and content features
// are computed on first use and cached.
//
// Digests: the full hash is BLAKE3-256 and the partial hash is xxHash64 of
// the first PartialHashBytes bytes, both lowercase hex. Empty files hash to
// the empty string without being read.
package file

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

const (
	// SomeBytesSize is the default first/last bytes feature size (rdfind uses 64)
	SomeBytesSize = 64

	// PartialHashBytes is the default partial hash window
	PartialHashBytes = 10 * 1024

	// NBlockSize is the unit of st_blocks
	NBlockSize = 512
)

var (
	// ErrNotFound means the path vanished between discovery and use
	ErrNotFound = errors.New("file not found")

	// ErrIO wraps permission errors and read races
	ErrIO = errors.New("file i/o error")

	errEmptyName = errors.New("file name must be provided")
)

// Stat is the subset of lstat(2) a Handle keeps.
type Stat struct {
	Size    int64
	Device  uint64
	Inode   uint64
	ModTime time.Time
	UID     uint32
	GID     uint32
	Blocks  int64
	Nlink   uint64
	Mode    fs.FileMode
}

// Handle is a lazily-evaluated view of one file. Identity is fixed at
// construction; only cached values change afterwards.
//
// A Handle is safe for concurrent use, although the finder never shares one
// between goroutines.
type Handle struct {
	parent []byte
	name   []byte
	opts   Options

	mu          sync.Mutex
	stat        *Stat
	firstBytes  []byte
	lastBytes   []byte
	partialHash *string
	fullHash    *string
}

// Options sets the feature sizes whose values a Handle caches. Requests for
// other sizes are computed every time.
type Options struct {
	SomeBytesSize    int
	PartialHashBytes int
}

// DefaultOptions returns the rdfind-compatible feature sizes.
func DefaultOptions() Options {
	return Options{SomeBytesSize: SomeBytesSize, PartialHashBytes: PartialHashBytes}
}

func (o Options) normalize() Options {
	if o.SomeBytesSize <= 0 {
		o.SomeBytesSize = SomeBytesSize
	}
	if o.PartialHashBytes <= 0 {
		o.PartialHashBytes = PartialHashBytes
	}
	return o
}

// New builds a Handle from raw parent directory and name bytes.
func New(parent, name []byte) (*Handle, error) {
	return NewWithOptions(parent, name, DefaultOptions())
}

// NewWithOptions builds a Handle caching features of the given sizes.
func NewWithOptions(parent, name []byte, opts Options) (*Handle, error) {
	if len(name) == 0 {
		return nil, errEmptyName
	}
	return &Handle{
		parent: append([]byte(nil), parent...),
		name:   append([]byte(nil), name...),
		opts:   opts.normalize(),
	}, nil
}

// FromPath splits a path into parent and name.
func FromPath(path string) (*Handle, error) {
	path = filepath.Clean(path)
	return New([]byte(filepath.Dir(path)), []byte(filepath.Base(path)))
}

// MustFromPath is FromPath for paths known to be well formed.
func MustFromPath(path string) *Handle {
	h, err := FromPath(path)
	if err != nil {
		panic(err)
	}
	return h
}

// Parent returns the raw parent directory.
func (h *Handle) Parent() []byte { return h.parent }

// Name returns the raw file name.
func (h *Handle) Name() []byte { return h.name }

// PathBytes returns the raw joined path.
func (h *Handle) PathBytes() []byte {
	if len(h.parent) == 0 {
		return append([]byte(nil), h.name...)
	}
	out := make([]byte, 0, len(h.parent)+1+len(h.name))
	out = append(out, h.parent...)
	if !bytes.HasSuffix(h.parent, []byte{filepath.Separator}) {
		out = append(out, filepath.Separator)
	}
	return append(out, h.name...)
}

// Path returns the joined path as a string; Go strings carry arbitrary bytes,
// so non-UTF-8 names survive unchanged.
func (h *Handle) Path() string {
	return string(h.PathBytes())
}

func (h *Handle) String() string {
	return h.Path()
}

// Reset drops every cached value.
func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stat = nil
	h.firstBytes = nil
	h.lastBytes = nil
	h.partialHash = nil
	h.fullHash = nil
}

// Stat performs a non-following stat on first call and caches the result.
func (h *Handle) Stat() (Stat, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statLocked()
}

func (h *Handle) statLocked() (Stat, error) {
	if h.stat != nil {
		return *h.stat, nil
	}
	info, err := os.Lstat(h.Path())
	if err != nil {
		return Stat{}, wrapErr("stat", h.Path(), err)
	}
	st := Stat{
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Mode:    info.Mode(),
	}
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		st.Device = uint64(sys.Dev)
		st.Inode = uint64(sys.Ino)
		st.UID = sys.Uid
		st.GID = sys.Gid
		st.Blocks = int64(sys.Blocks)
		st.Nlink = uint64(sys.Nlink)
	}
	h.stat = &st
	return st, nil
}

// Size returns the size in bytes.
func (h *Handle) Size() (int64, error) {
	st, err := h.Stat()
	return st.Size, err
}

// IsEmpty reports whether the file has no content.
func (h *Handle) IsEmpty() (bool, error) {
	st, err := h.Stat()
	return st.Size == 0, err
}

// IsSymlink reports whether the path itself is a symbolic link.
func (h *Handle) IsSymlink() (bool, error) {
	st, err := h.Stat()
	return st.Mode&fs.ModeSymlink != 0, err
}

// AllocatedSize mirrors du: st_blocks * 512.
func (h *Handle) AllocatedSize() (int64, error) {
	st, err := h.Stat()
	return st.Blocks * NBlockSize, err
}

// Exists checks the live filesystem, ignoring any cached stat.
func (h *Handle) Exists() bool {
	_, err := os.Lstat(h.Path())
	return err == nil
}

// Eligible reports whether the file may take part in duplicate matching:
// symlinks and empty files never do.
func (h *Handle) Eligible() (bool, error) {
	st, err := h.Stat()
	if err != nil {
		return false, err
	}
	return st.Mode&fs.ModeSymlink == 0 && st.Mode.IsRegular() && st.Size > 0, nil
}

func wrapErr(op, path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s %s: %w: %w", op, path, ErrNotFound, err)
	}
	return fmt.Errorf("%s %s: %w: %w", op, path, ErrIO, err)
}
