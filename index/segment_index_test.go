package index

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestSegmentIndexSearch(t *testing.T) {
	idx := &SegmentIndex{keys: []uint32{5, 7, 7, 7, 9}}

	cases := []struct {
		key         uint32
		first, last int
		found       bool
	}{
		{4, 0, 0, false},  // before the whole segment
		{5, 0, 0, true},   // equals the very first key
		{6, 0, 0, true},   // strictly inside the first interval
		{7, 0, 3, true},   // equal-first-key run, plus the block before it
		{8, 3, 3, true},   // between the run and the last block
		{9, 3, 4, true},   // equals a first key: previous block included
		{10, 4, 4, true},  // beyond every first key
	}

	for _, c := range cases {
		first, last, found := idx.Search(c.key)
		if found != c.found || (found && (first != c.first || last != c.last)) {
			t.Errorf("Search(%d) = (%d, %d, %v); want (%d, %d, %v)",
				c.key, first, last, found, c.first, c.last, c.found)
		}
	}
}

func TestSegmentIndexSearchEmpty(t *testing.T) {
	idx := &SegmentIndex{}
	if _, _, found := idx.Search(0); found {
		t.Error("expected found=false on empty index")
	}
}

func TestSegmentIndexRoundTrip(t *testing.T) {
	dir := NewRAMDirectory()
	out, err := dir.CreateFile("segment_1.fii")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	w := newSegmentIndexWriter(out)
	keys := []uint32{3, 10, 10, 250, 10000}
	for _, key := range keys {
		w.addBlock(key)
	}
	if err := w.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx, err := openSegmentIndex(dir, SegmentInfo{ID: 1, BlockCount: uint32(len(keys))})
	if err != nil {
		t.Fatalf("openSegmentIndex: %v", err)
	}
	if idx.LevelKeyCount() != len(keys) {
		t.Fatalf("expected %d blocks, got %d", len(keys), idx.LevelKeyCount())
	}
	for i, key := range keys {
		if idx.LevelKey(i) != key {
			t.Errorf("block %d: expected key %d, got %d", i, key, idx.LevelKey(i))
		}
	}
}

func TestSegmentIndexBlockCountMismatch(t *testing.T) {
	dir := NewRAMDirectory()
	out, _ := dir.CreateFile("segment_1.fii")
	w := newSegmentIndexWriter(out)
	w.addBlock(1)
	w.addBlock(2)
	if err := w.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// manifest claims a different block count
	if _, err := openSegmentIndex(dir, SegmentInfo{ID: 1, BlockCount: 3}); !errors.Is(err, ErrCorrupted) {
		t.Errorf("expected ErrCorrupted, got %v", err)
	}
}

func TestSegmentIndexCorruption(t *testing.T) {
	cases := map[string][]byte{
		"truncated header": {1, 0},
		"length mismatch":  binary.LittleEndian.AppendUint32(nil, 2), // count=2, no keys
		"descending keys": binary.LittleEndian.AppendUint32(
			binary.LittleEndian.AppendUint32(
				binary.LittleEndian.AppendUint32(nil, 2), 10), 5),
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := decodeSegmentIndex(data); !errors.Is(err, ErrCorrupted) {
				t.Errorf("expected ErrCorrupted, got %v", err)
			}
		})
	}
}
