package finder

import (
	"dupsweep/internal/file"
	"dupsweep/internal/metrics"
)

// Stage names one elimination step.
type Stage int

const (
	StageSize Stage = iota
	StageFirstBytes
	StageLastBytes
	StagePartialHash
	StageFullHash
	numStages
)

func (s Stage) String() string {
	switch s {
	case StageSize:
		return "size"
	case StageFirstBytes:
		return "first_bytes"
	case StageLastBytes:
		return "last_bytes"
	case StagePartialHash:
		return "partial_hash"
	case StageFullHash:
		return "full_hash"
	}
	return "unknown"
}

// feature computes the partition key of a handle for a stage.
type feature func(h *file.Handle) (string, error)

func (f *Finder) featureOf(s Stage) feature {
	switch s {
	case StageFirstBytes:
		return func(h *file.Handle) (string, error) {
			b, err := h.FirstBytes(f.opts.SomeBytesSize)
			return string(b), err
		}
	case StageLastBytes:
		return func(h *file.Handle) (string, error) {
			b, err := h.LastBytes(f.opts.SomeBytesSize)
			return string(b), err
		}
	case StagePartialHash:
		return func(h *file.Handle) (string, error) {
			return h.PartialHash(f.opts.PartialHashSize)
		}
	case StageFullHash:
		return func(h *file.Handle) (string, error) {
			sum, err := h.FullHash()
			if err == nil {
				size, _ := h.Size()
				f.bytesHashed.Add(size)
				metrics.BytesHashedTotal.Add(float64(size))
			}
			return sum, err
		}
	}
	return nil
}

// stages returns the elimination order after grouping by size.
func (f *Finder) stages() []Stage {
	out := []Stage{StageFirstBytes, StageLastBytes}
	if f.opts.UsePartialHash {
		out = append(out, StagePartialHash)
	}
	return append(out, StageFullHash)
}
