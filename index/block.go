package index

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Block layout, all little-endian:
//
//	[2-byte record count][4-byte first value][varint key delta, varint value]...[zero padding]
//
// The first record's key is not stored here; it lives in the segment index
// and is handed to the decoder from there. Key deltas are relative to the
// previous record's key, values are stored whole. A block is always padded
// to the full block size, so block N starts at byte N*blockSize.

const blockHeaderLen = 2

// maxBlockRecords is the largest record count a block of the given size can
// physically hold: the first record takes 4 bytes, every other one at least
// one byte of delta and one of value.
func maxBlockRecords(blockSize int) int {
	return 1 + (blockSize-blockHeaderLen-4)/2
}

// blockBuffer accumulates one block's encoding in memory.
type blockBuffer struct {
	buf     []byte
	size    int
	count   int
	lastKey uint32
}

func newBlockBuffer(size int) *blockBuffer {
	b := &blockBuffer{size: size}
	b.reset()
	return b
}

func (b *blockBuffer) reset() {
	b.buf = make([]byte, blockHeaderLen, b.size)
	b.count = 0
	b.lastKey = 0
}

// add appends one record. It reports false when the encoded record does not
// fit, leaving the buffer unchanged; the first record of a block always
// fits.
func (b *blockBuffer) add(key, value uint32) bool {
	if b.count == 0 {
		b.buf = binary.LittleEndian.AppendUint32(b.buf, value)
	} else {
		n := len(b.buf)
		b.buf = binary.AppendUvarint(b.buf, uint64(key-b.lastKey))
		b.buf = binary.AppendUvarint(b.buf, uint64(value))
		if len(b.buf) > b.size {
			b.buf = b.buf[:n]
			return false
		}
	}
	b.lastKey = key
	b.count++
	return true
}

// finish writes the record count header and pads the block to full size.
// The buffer must be reset before the next block.
func (b *blockBuffer) finish() []byte {
	binary.LittleEndian.PutUint16(b.buf[:blockHeaderLen], uint16(b.count))
	for len(b.buf) < b.size {
		b.buf = append(b.buf, 0)
	}
	return b.buf
}

// BlockDataIterator is a one-shot cursor over the records of a single
// block. The block's first key comes from the segment index; every later
// key is reconstructed by accumulating deltas.
type BlockDataIterator struct {
	buf   []byte
	count int
	pos   int
	i     int
	key   uint32
	value uint32
	err   error
}

func newBlockDataIterator(buf []byte, firstKey uint32) (*BlockDataIterator, error) {
	if len(buf) < blockHeaderLen+4 {
		return nil, fmt.Errorf("%w: block of %d bytes", ErrCorrupted, len(buf))
	}
	count := int(binary.LittleEndian.Uint16(buf))
	if count < 1 || count > maxBlockRecords(len(buf)) {
		return nil, fmt.Errorf("%w: impossible record count %d for block size %d", ErrCorrupted, count, len(buf))
	}
	return &BlockDataIterator{buf: buf, count: count, key: firstKey}, nil
}

// Next advances to the next record. It returns false at the end of the
// block or on a decoding error; check Err afterwards.
func (it *BlockDataIterator) Next() bool {
	if it.err != nil || it.i >= it.count {
		return false
	}
	if it.i == 0 {
		// first record: key supplied externally, value stored whole
		it.value = binary.LittleEndian.Uint32(it.buf[blockHeaderLen:])
		it.pos = blockHeaderLen + 4
		it.i++
		return true
	}

	delta, n := binary.Uvarint(it.buf[it.pos:])
	if n <= 0 {
		it.err = fmt.Errorf("%w: bad key delta at offset %d", ErrCorrupted, it.pos)
		return false
	}
	it.pos += n
	value, n := binary.Uvarint(it.buf[it.pos:])
	if n <= 0 || value > math.MaxUint32 {
		it.err = fmt.Errorf("%w: bad value at offset %d", ErrCorrupted, it.pos)
		return false
	}
	it.pos += n

	key := uint64(it.key) + delta
	if key > math.MaxUint32 {
		it.err = fmt.Errorf("%w: key delta overflows at offset %d", ErrCorrupted, it.pos)
		return false
	}

	it.key = uint32(key)
	it.value = uint32(value)
	it.i++
	return true
}

func (it *BlockDataIterator) Key() uint32   { return it.key }
func (it *BlockDataIterator) Value() uint32 { return it.value }
func (it *BlockDataIterator) Err() error    { return it.err }
