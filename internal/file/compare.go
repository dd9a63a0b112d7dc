package file

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
)

// compareChunk is the ByteCompare read size
const compareChunk = 1024

// ByteCompare reports whether both files hold identical content. Sizes are
// checked first so differing files are usually rejected without reading.
func (h *Handle) ByteCompare(other *Handle) (bool, error) {
	a, err := h.Size()
	if err != nil {
		return false, err
	}
	b, err := other.Size()
	if err != nil {
		return false, err
	}
	if a != b {
		return false, nil
	}

	fa, err := os.Open(h.Path())
	if err != nil {
		return false, wrapErr("open", h.Path(), err)
	}
	defer fa.Close()
	fb, err := os.Open(other.Path())
	if err != nil {
		return false, wrapErr("open", other.Path(), err)
	}
	defer fb.Close()

	bufA := make([]byte, compareChunk)
	bufB := make([]byte, compareChunk)
	for {
		na, errA := io.ReadFull(fa, bufA)
		nb, errB := io.ReadFull(fb, bufB)
		if errA != nil && !isEOF(errA) {
			return false, wrapErr("read", h.Path(), errA)
		}
		if errB != nil && !isEOF(errB) {
			return false, wrapErr("read", other.Path(), errB)
		}
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if isEOF(errA) || isEOF(errB) {
			return isEOF(errA) && isEOF(errB), nil
		}
	}
}

// CmpCompare delegates the comparison to cmp(1). Exit status 1 means the
// files differ; anything else non-zero is an error.
func (h *Handle) CmpCompare(other *Handle) (bool, error) {
	cmd := exec.Command("cmp", "--silent", h.Path(), other.Path())
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, wrapErr("cmp", h.Path(), err)
}

func isEOF(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
