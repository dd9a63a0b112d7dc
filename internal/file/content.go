package file

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// blockSize is the read buffer used for full hashing
const blockSize = 32 * 1024

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, blockSize)
		return &b
	},
}

// FirstBytes returns the first n bytes (n <= 0 selects the configured size).
func (h *Handle) FirstBytes(n int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 {
		n = h.opts.SomeBytesSize
	}
	cacheable := n == h.opts.SomeBytesSize
	if cacheable && h.firstBytes != nil {
		return h.firstBytes, nil
	}
	data, err := h.readHead(n)
	if err != nil {
		return nil, err
	}
	if cacheable {
		h.firstBytes = data
	}
	return data, nil
}

// LastBytes returns the last n bytes, or the whole content of a smaller file.
func (h *Handle) LastBytes(n int) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 {
		n = h.opts.SomeBytesSize
	}
	cacheable := n == h.opts.SomeBytesSize
	if cacheable && h.lastBytes != nil {
		return h.lastBytes, nil
	}
	data, err := h.readTail(n)
	if err != nil {
		return nil, err
	}
	if cacheable {
		h.lastBytes = data
	}
	return data, nil
}

// PartialHash hashes the first n bytes, or the whole file if smaller.
func (h *Handle) PartialHash(n int) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 {
		n = h.opts.PartialHashBytes
	}
	cacheable := n == h.opts.PartialHashBytes
	if cacheable && h.partialHash != nil {
		return *h.partialHash, nil
	}

	st, err := h.statLocked()
	if err != nil {
		return "", err
	}
	sum := ""
	if st.Size > 0 {
		data, err := h.readHead(n)
		if err != nil {
			return "", err
		}
		sum = fmt.Sprintf("%016x", xxhash.Sum64(data))
	}
	if cacheable {
		h.partialHash = &sum
	}
	return sum, nil
}

// FullHash hashes the entire content.
func (h *Handle) FullHash() (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.fullHash != nil {
		return *h.fullHash, nil
	}
	st, err := h.statLocked()
	if err != nil {
		return "", err
	}
	sum := ""
	if st.Size > 0 {
		sum, err = h.hashContent()
		if err != nil {
			return "", err
		}
	}
	h.fullHash = &sum
	return sum, nil
}

// CachedFeatures reports which features are held in memory, for diagnostics.
func (h *Handle) CachedFeatures() map[string]bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	partialKey := "partial_hash_" + strconv.Itoa(h.opts.PartialHashBytes)
	return map[string]bool{
		"stat":        h.stat != nil,
		"first_bytes": h.firstBytes != nil,
		"last_bytes":  h.lastBytes != nil,
		partialKey:    h.partialHash != nil,
		"full_hash":   h.fullHash != nil,
	}
}

func (h *Handle) readHead(n int) ([]byte, error) {
	f, err := os.Open(h.Path())
	if err != nil {
		return nil, wrapErr("open", h.Path(), err)
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, wrapErr("read", h.Path(), err)
	}
	return buf[:read], nil
}

func (h *Handle) readTail(n int) ([]byte, error) {
	f, err := os.Open(h.Path())
	if err != nil {
		return nil, wrapErr("open", h.Path(), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, wrapErr("stat", h.Path(), err)
	}
	if size := info.Size(); size > int64(n) {
		if _, err := f.Seek(-int64(n), io.SeekEnd); err != nil {
			return nil, wrapErr("seek", h.Path(), err)
		}
	}

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, wrapErr("read", h.Path(), err)
	}
	return buf[:read], nil
}

func (h *Handle) hashContent() (string, error) {
	f, err := os.Open(h.Path())
	if err != nil {
		return "", wrapErr("open", h.Path(), err)
	}
	defer f.Close()

	bufPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufPtr)

	digest := blake3.New()
	if _, err := io.CopyBuffer(digest, f, *bufPtr); err != nil {
		return "", wrapErr("read", h.Path(), err)
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
