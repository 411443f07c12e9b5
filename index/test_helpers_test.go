package index

import (
	"testing"

	"go.uber.org/zap"
)

type posting struct {
	key   uint32
	value uint32
}

// writeTestSegment streams already-sorted postings into a new segment in
// dir and returns its metadata together with a loaded handle.
func writeTestSegment(t *testing.T, dir Directory, id uint32, blockSize int, postings []posting) (SegmentInfo, *segmentHandle) {
	t.Helper()

	seg := SegmentInfo{ID: id}
	indexOut, err := dir.CreateFile(seg.IndexFileName())
	if err != nil {
		t.Fatalf("create index file: %v", err)
	}
	filterOut, err := dir.CreateFile(seg.FilterFileName())
	if err != nil {
		t.Fatalf("create filter file: %v", err)
	}
	dataOut, err := dir.CreateFile(seg.DataFileName())
	if err != nil {
		t.Fatalf("create data file: %v", err)
	}

	sdw := newSegmentDataWriter(dataOut, newSegmentIndexWriter(indexOut), newTermFilterWriter(filterOut), blockSize)
	for _, p := range postings {
		if err := sdw.add(p.key, p.value); err != nil {
			t.Fatalf("add (%d, %d): %v", p.key, p.value, err)
		}
	}
	if err := sdw.close(); err != nil {
		t.Fatalf("close segment writer: %v", err)
	}

	seg.BlockCount = sdw.BlockCount()
	seg.LastKey = sdw.LastKey()

	h, err := openSegmentHandle(dir, seg, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("open segment handle: %v", err)
	}
	return seg, h
}

// readAllPostings drains a segment through its enum.
func readAllPostings(t *testing.T, dir Directory, seg SegmentInfo, idx *SegmentIndex, blockSize int) []posting {
	t.Helper()

	in, err := dir.OpenFile(seg.DataFileName())
	if err != nil {
		t.Fatalf("open data file: %v", err)
	}
	defer in.Close() // nolint:errcheck

	e := newSegmentEnum(idx, newSegmentDataReader(in, seg.ID, blockSize, nil))
	var out []posting
	for e.next() {
		out = append(out, posting{key: postingTerm(e.posting()), value: postingDocID(e.posting())})
	}
	if err := e.err(); err != nil {
		t.Fatalf("enum segment %d: %v", seg.ID, err)
	}
	return out
}

// searchTestSegment runs the block-skipping searcher over one segment.
func searchTestSegment(t *testing.T, dir Directory, seg SegmentInfo, h *segmentHandle, blockSize int, query []uint32, collector Collector) {
	t.Helper()

	in, err := dir.OpenFile(seg.DataFileName())
	if err != nil {
		t.Fatalf("open data file: %v", err)
	}
	defer in.Close() // nolint:errcheck

	s := &segmentSearcher{
		index:   h.index,
		data:    newSegmentDataReader(in, seg.ID, blockSize, nil),
		filter:  h.filter,
		lastKey: seg.LastKey,
	}
	if err := s.search(query, collector); err != nil {
		t.Fatalf("search segment %d: %v", seg.ID, err)
	}
}

// sliceCollector records doc ids in collection order.
type sliceCollector []uint32

func (c *sliceCollector) Collect(docID uint32) {
	*c = append(*c, docID)
}

func setupTestWriter(t *testing.T, dir Directory, opts ...Option) *Writer {
	t.Helper()

	w, err := Open(dir, true, opts...)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}
