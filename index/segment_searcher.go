package index

import "math"

// segmentSearcher intersects one sorted, deduplicated query fingerprint
// with one segment. The skip index narrows each term down to a small block
// range; within a block, query cursor and block cursor advance in lockstep.
type segmentSearcher struct {
	index   *SegmentIndex
	data    *segmentDataReader
	filter  *termFilter
	lastKey uint32
}

func (s *segmentSearcher) search(query []uint32, collector Collector) error {
	i := 0
	block := 0
	lastBlock := -1 // no active block range yet

scan:
	for i < len(query) {
		if lastBlock < 0 || block > lastBlock {
			if query[i] > s.lastKey {
				// everything left in the query is beyond this segment
				return nil
			}
			if s.filter != nil && !s.filter.mayContain(query[i]) {
				i++
				continue
			}
			first, last, found := s.index.Search(query[i])
			if !found {
				i++
				continue
			}
			if block > last {
				// that range was already scanned; any matches were collected there
				i++
				continue
			}
			if first > block {
				block = first
			}
			lastBlock = last
		}

		firstKey := s.index.LevelKey(block)
		nextFirstKey := uint32(math.MaxUint32)
		if block+1 < s.index.LevelKeyCount() {
			nextFirstKey = s.index.LevelKey(block + 1)
		}

		it, err := s.data.readBlock(block, firstKey)
		if err != nil {
			return err
		}
		for it.Next() {
			key := it.Key()
			if key < query[i] {
				continue
			}
			for key > query[i] {
				i++
				if i == len(query) {
					return nil
				}
				if nextFirstKey < query[i] {
					// nothing left in this block can match the query anymore
					block++
					continue scan
				}
			}
			if key == query[i] {
				collector.Collect(it.Value())
			}
		}
		if err := it.Err(); err != nil {
			return err
		}
		block++
	}
	return nil
}
