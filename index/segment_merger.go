package index

import "container/heap"

// postingSource yields the postings of one merge input in ascending order.
type postingSource interface {
	next() bool
	posting() uint64
	err() error
}

// segmentEnum walks every posting of one segment, block by block, through
// its data reader.
type segmentEnum struct {
	index *SegmentIndex
	data  *segmentDataReader
	block int
	it    *BlockDataIterator
	cur   uint64
	e     error
}

func newSegmentEnum(index *SegmentIndex, data *segmentDataReader) *segmentEnum {
	return &segmentEnum{index: index, data: data}
}

func (e *segmentEnum) next() bool {
	if e.e != nil {
		return false
	}
	for {
		if e.it == nil {
			if e.block >= e.index.LevelKeyCount() {
				return false
			}
			it, err := e.data.readBlock(e.block, e.index.LevelKey(e.block))
			if err != nil {
				e.e = err
				return false
			}
			e.it = it
		}
		if e.it.Next() {
			e.cur = packPosting(e.it.Key(), e.it.Value())
			return true
		}
		if err := e.it.Err(); err != nil {
			e.e = err
			return false
		}
		e.it = nil
		e.block++
	}
}

func (e *segmentEnum) posting() uint64 { return e.cur }
func (e *segmentEnum) err() error      { return e.e }

// segmentMerger streams the union of several sorted posting sources into
// one segment data writer. Ties across sources are emitted once.
type segmentMerger struct {
	writer  *segmentDataWriter
	sources []postingSource
}

func newSegmentMerger(writer *segmentDataWriter) *segmentMerger {
	return &segmentMerger{writer: writer}
}

func (m *segmentMerger) addSource(src postingSource) {
	m.sources = append(m.sources, src)
}

func (m *segmentMerger) merge() error {
	h := make(sourceHeap, 0, len(m.sources))
	for _, src := range m.sources {
		if src.next() {
			h = append(h, src)
		} else if err := src.err(); err != nil {
			return err
		}
	}
	heap.Init(&h)

	var last uint64
	started := false
	for h.Len() > 0 {
		src := h[0]
		p := src.posting()
		if !started || p != last {
			if err := m.writer.add(postingTerm(p), postingDocID(p)); err != nil {
				return err
			}
			last, started = p, true
		}
		if src.next() {
			heap.Fix(&h, 0)
		} else {
			if err := src.err(); err != nil {
				return err
			}
			heap.Pop(&h)
		}
	}
	return nil
}

// sourceHeap is a min-heap on each source's current posting.
type sourceHeap []postingSource

func (h sourceHeap) Len() int           { return len(h) }
func (h sourceHeap) Less(i, j int) bool { return h[i].posting() < h[j].posting() }
func (h sourceHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *sourceHeap) Push(x any) { *h = append(*h, x.(postingSource)) }

func (h *sourceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
