package index

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// SegmentIndex is the in-memory skip index of one segment: the first key of
// every block, in block order. One u32 per block, so a segment of a million
// postings costs some tens of kilobytes to keep resident at the default
// block size.
type SegmentIndex struct {
	keys []uint32
}

func (idx *SegmentIndex) LevelKeyCount() int {
	return len(idx.keys)
}

func (idx *SegmentIndex) LevelKey(block int) uint32 {
	return idx.keys[block]
}

// Search returns the range of blocks that can contain postings with the
// given key. With strictly increasing first keys and a key falling inside
// an interval that is a single block; when the key equals a block's first
// key the preceding block is included, since a run of equal keys may start
// at its tail, and a run of blocks sharing the same first key widens the
// range further. found is false when the key precedes the whole segment.
func (idx *SegmentIndex) Search(key uint32) (first, last int, found bool) {
	n := len(idx.keys)
	if n == 0 || key < idx.keys[0] {
		return 0, 0, false
	}
	lo := sort.Search(n, func(i int) bool { return idx.keys[i] >= key })
	hi := sort.Search(n, func(i int) bool { return idx.keys[i] > key })
	first = lo
	if first > 0 {
		first--
	}
	last = hi - 1
	if last < first {
		last = first
	}
	return first, last, true
}

// segmentIndexWriter buffers block boundary keys and persists them on
// close. The on-disk form is a u32 count followed by the keys, all
// little-endian.
type segmentIndexWriter struct {
	out  OutputStream
	keys []uint32
}

func newSegmentIndexWriter(out OutputStream) *segmentIndexWriter {
	return &segmentIndexWriter{out: out}
}

func (w *segmentIndexWriter) addBlock(firstKey uint32) {
	w.keys = append(w.keys, firstKey)
}

func (w *segmentIndexWriter) close() error {
	buf := make([]byte, 0, 4+4*len(w.keys))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(w.keys)))
	for _, key := range w.keys {
		buf = binary.LittleEndian.AppendUint32(buf, key)
	}
	if _, err := w.out.Write(buf); err != nil {
		return fmt.Errorf("write segment index: %w", err)
	}
	if err := w.out.Close(); err != nil {
		return fmt.Errorf("close segment index: %w", err)
	}
	return nil
}

// index returns the in-memory form of what close persists, so a freshly
// written segment can be opened without re-reading its index file.
func (w *segmentIndexWriter) index() *SegmentIndex {
	return &SegmentIndex{keys: w.keys}
}

// openSegmentIndex reads and validates a segment's index file.
func openSegmentIndex(dir Directory, info SegmentInfo) (*SegmentIndex, error) {
	in, err := dir.OpenFile(info.IndexFileName())
	if err != nil {
		return nil, fmt.Errorf("open segment %d index: %w", info.ID, err)
	}
	defer in.Close() // nolint:errcheck

	data, err := readFile(in)
	if err != nil {
		return nil, fmt.Errorf("read segment %d index: %w", info.ID, err)
	}
	idx, err := decodeSegmentIndex(data)
	if err != nil {
		return nil, fmt.Errorf("segment %d: %w", info.ID, err)
	}
	if uint32(len(idx.keys)) != info.BlockCount {
		return nil, fmt.Errorf("%w: segment %d has %d blocks, manifest says %d",
			ErrCorrupted, info.ID, len(idx.keys), info.BlockCount)
	}
	return idx, nil
}

func decodeSegmentIndex(data []byte) (*SegmentIndex, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: segment index of %d bytes", ErrCorrupted, len(data))
	}
	count := binary.LittleEndian.Uint32(data)
	if uint64(len(data)) != 4+4*uint64(count) {
		return nil, fmt.Errorf("%w: segment index length %d does not match block count %d",
			ErrCorrupted, len(data), count)
	}
	keys := make([]uint32, count)
	for i := range keys {
		keys[i] = binary.LittleEndian.Uint32(data[4+4*i:])
		if i > 0 && keys[i] < keys[i-1] {
			return nil, fmt.Errorf("%w: segment index keys descend at block %d", ErrCorrupted, i)
		}
	}
	return &SegmentIndex{keys: keys}, nil
}
