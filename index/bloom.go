package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/bits-and-blooms/bloom/v3"
)

// Each segment carries a bloom filter over its distinct terms in a sidecar
// file. The searcher consults it before probing the skip index, so query
// terms a segment has never seen cost no block reads. The sidecar is
// strictly an accelerator: segments without one (or with an unreadable one)
// stay fully searchable.

const termFilterFP = 0.01

type termFilter struct {
	f *bloom.BloomFilter
}

func (tf *termFilter) mayContain(term uint32) bool {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], term)
	return tf.f.Test(b[:])
}

// termFilterWriter collects the distinct terms of a segment while postings
// stream through the data writer, then sizes and serializes the filter on
// close. Terms arrive ascending, so adjacent duplicates are already
// collapsed by the caller.
type termFilterWriter struct {
	out   OutputStream
	terms []uint32
}

func newTermFilterWriter(out OutputStream) *termFilterWriter {
	return &termFilterWriter{out: out}
}

func (w *termFilterWriter) add(term uint32) {
	w.terms = append(w.terms, term)
}

func (w *termFilterWriter) close() error {
	n := uint(len(w.terms))
	if n == 0 {
		n = 1
	}
	f := bloom.NewWithEstimates(n, termFilterFP)
	var b [4]byte
	for _, term := range w.terms {
		binary.LittleEndian.PutUint32(b[:], term)
		f.Add(b[:])
	}
	if _, err := f.WriteTo(w.out); err != nil {
		return fmt.Errorf("write term filter: %w", err)
	}
	if err := w.out.Close(); err != nil {
		return fmt.Errorf("close term filter: %w", err)
	}
	return nil
}

// openTermFilter loads a segment's filter sidecar. A missing sidecar is not
// an error; it just means no filtering for this segment.
func openTermFilter(dir Directory, info SegmentInfo) (*termFilter, error) {
	in, err := dir.OpenFile(info.FilterFileName())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer in.Close() // nolint:errcheck

	var f bloom.BloomFilter
	if _, err := f.ReadFrom(in); err != nil {
		return nil, fmt.Errorf("read term filter: %w", err)
	}
	return &termFilter{f: &f}, nil
}
