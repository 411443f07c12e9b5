package index

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// BlockCache is an LRU over raw (still encoded) block bytes, shared across the data
// readers of all segments. Keys carry the segment id, so merged-away
// segments simply age out.
type BlockCache struct {
	c *lru.Cache[blockCacheKey, []byte]
}

type blockCacheKey struct {
	segment uint32
	block   uint32
}

// NewBlockCache holds up to the given number of blocks.
func NewBlockCache(blocks int) (*BlockCache, error) {
	c, err := lru.New[blockCacheKey, []byte](blocks)
	if err != nil {
		return nil, err
	}
	return &BlockCache{c: c}, nil
}

// segmentDataWriter streams strictly ascending postings into fixed-size
// blocks. Each time a block opens, its first key is handed to the index
// writer; each distinct key is handed to the filter writer.
type segmentDataWriter struct {
	out        OutputStream
	indexw     *segmentIndexWriter
	filterw    *termFilterWriter
	block      *blockBuffer
	blockCount uint32
	lastKey    uint32
	lastValue  uint32
	started    bool
}

func newSegmentDataWriter(out OutputStream, indexw *segmentIndexWriter, filterw *termFilterWriter, blockSize int) *segmentDataWriter {
	return &segmentDataWriter{
		out:     out,
		indexw:  indexw,
		filterw: filterw,
		block:   newBlockBuffer(blockSize),
	}
}

func (w *segmentDataWriter) add(key, value uint32) error {
	if w.started {
		if key < w.lastKey || (key == w.lastKey && value <= w.lastValue) {
			return fmt.Errorf("%w: (%d, %d) after (%d, %d)", ErrOutOfOrder, key, value, w.lastKey, w.lastValue)
		}
	}
	if w.filterw != nil && (!w.started || key != w.lastKey) {
		w.filterw.add(key)
	}

	newBlock := w.block.count == 0
	if !w.block.add(key, value) {
		// the record doesn't fit; close this block and retry
		if err := w.flushBlock(); err != nil {
			return err
		}
		newBlock = true
		w.block.add(key, value)
	}
	if newBlock {
		w.indexw.addBlock(key)
	}

	w.lastKey, w.lastValue, w.started = key, value, true
	return nil
}

func (w *segmentDataWriter) flushBlock() error {
	if _, err := w.out.Write(w.block.finish()); err != nil {
		return fmt.Errorf("write block %d: %w", w.blockCount, err)
	}
	w.blockCount++
	w.block.reset()
	return nil
}

func (w *segmentDataWriter) close() error {
	if w.block.count > 0 {
		if err := w.flushBlock(); err != nil {
			return err
		}
	}
	if err := w.indexw.close(); err != nil {
		return err
	}
	if w.filterw != nil {
		if err := w.filterw.close(); err != nil {
			return err
		}
	}
	if err := w.out.Close(); err != nil {
		return fmt.Errorf("close segment data: %w", err)
	}
	return nil
}

// BlockCount and LastKey are the metadata recorded in the segment's
// manifest entry; valid after close.
func (w *segmentDataWriter) BlockCount() uint32 { return w.blockCount }
func (w *segmentDataWriter) LastKey() uint32    { return w.lastKey }

// index exposes the freshly built skip index without a file round trip.
func (w *segmentDataWriter) index() *SegmentIndex { return w.indexw.index() }

// segmentDataReader materializes single blocks out of a segment's data
// file. Uncached, each readBlock is one seek plus one read of blockSize.
type segmentDataReader struct {
	in        InputStream
	segment   uint32
	blockSize int
	cache     *BlockCache
}

func newSegmentDataReader(in InputStream, segment uint32, blockSize int, cache *BlockCache) *segmentDataReader {
	return &segmentDataReader{in: in, segment: segment, blockSize: blockSize, cache: cache}
}

func (r *segmentDataReader) readBlock(block int, firstKey uint32) (*BlockDataIterator, error) {
	if r.cache != nil {
		if buf, ok := r.cache.c.Get(blockCacheKey{segment: r.segment, block: uint32(block)}); ok {
			return newBlockDataIterator(buf, firstKey)
		}
	}

	buf := make([]byte, r.blockSize)
	if _, err := r.in.ReadAt(buf, int64(block)*int64(r.blockSize)); err != nil {
		return nil, fmt.Errorf("read segment %d block %d: %w", r.segment, block, err)
	}
	if r.cache != nil {
		r.cache.c.Add(blockCacheKey{segment: r.segment, block: uint32(block)}, buf)
	}
	return newBlockDataIterator(buf, firstKey)
}
