package index

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// IndexInfo is the manifest: the ordered list of live segments plus the
// last assigned segment id. It lives on disk as info_<gen>, where gen grows
// by one per commit; the file with the highest generation is authoritative.
type IndexInfo struct {
	gen           uint32
	lastSegmentID uint32
	segments      []SegmentInfo
}

func (nfo *IndexInfo) Generation() uint32      { return nfo.gen }
func (nfo *IndexInfo) Segments() []SegmentInfo { return nfo.segments }

func (nfo *IndexInfo) clone() *IndexInfo {
	return &IndexInfo{
		gen:           nfo.gen,
		lastSegmentID: nfo.lastSegmentID,
		segments:      slices.Clone(nfo.segments),
	}
}

// nextSegmentID assigns a fresh segment id. Ids are monotone and never
// reused, even for segments that are later merged away.
func (nfo *IndexInfo) nextSegmentID() uint32 {
	nfo.lastSegmentID++
	return nfo.lastSegmentID
}

func (nfo *IndexInfo) addSegment(s SegmentInfo) error {
	if nfo.contains(s.ID) {
		return fmt.Errorf("%w: %d", ErrDuplicateSegment, s.ID)
	}
	nfo.segments = append(nfo.segments, s)
	return nil
}

func (nfo *IndexInfo) contains(id uint32) bool {
	return slices.ContainsFunc(nfo.segments, func(s SegmentInfo) bool { return s.ID == id })
}

// removeSegments drops the segments at the given indices from the list.
func (nfo *IndexInfo) removeSegments(indices []int) {
	drop := make(map[int]bool, len(indices))
	for _, i := range indices {
		drop[i] = true
	}
	kept := nfo.segments[:0]
	for i, s := range nfo.segments {
		if !drop[i] {
			kept = append(kept, s)
		}
	}
	nfo.segments = kept
}

func infoFileName(gen uint32) string {
	return fmt.Sprintf("info_%d", gen)
}

func parseInfoFileName(name string) (uint32, bool) {
	rest, ok := strings.CutPrefix(name, "info_")
	if !ok {
		return 0, false
	}
	gen, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(gen), true
}

func (nfo *IndexInfo) encode() []byte {
	buf := make([]byte, 0, 8+12*len(nfo.segments))
	buf = binary.LittleEndian.AppendUint32(buf, nfo.lastSegmentID)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(nfo.segments)))
	for _, s := range nfo.segments {
		buf = binary.LittleEndian.AppendUint32(buf, s.ID)
		buf = binary.LittleEndian.AppendUint32(buf, s.BlockCount)
		buf = binary.LittleEndian.AppendUint32(buf, s.LastKey)
	}
	return buf
}

func decodeIndexInfo(data []byte) (*IndexInfo, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: manifest of %d bytes", ErrCorrupted, len(data))
	}
	nfo := &IndexInfo{lastSegmentID: binary.LittleEndian.Uint32(data)}
	count := binary.LittleEndian.Uint32(data[4:])
	if uint64(len(data)) != 8+12*uint64(count) {
		return nil, fmt.Errorf("%w: manifest length %d does not match segment count %d",
			ErrCorrupted, len(data), count)
	}
	for i := uint32(0); i < count; i++ {
		off := 8 + 12*i
		s := SegmentInfo{
			ID:         binary.LittleEndian.Uint32(data[off:]),
			BlockCount: binary.LittleEndian.Uint32(data[off+4:]),
			LastKey:    binary.LittleEndian.Uint32(data[off+8:]),
		}
		if err := nfo.addSegment(s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
	}
	return nfo, nil
}

// loadIndexInfo opens the highest-generation manifest in the directory.
func loadIndexInfo(dir Directory) (*IndexInfo, error) {
	names, err := dir.ListFiles()
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	var gen uint32
	found := false
	for _, name := range names {
		if g, ok := parseInfoFileName(name); ok && (!found || g > gen) {
			gen = g
			found = true
		}
	}
	if !found {
		return nil, ErrNoIndex
	}

	in, err := dir.OpenFile(infoFileName(gen))
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer in.Close() // nolint:errcheck

	data, err := readFile(in)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	nfo, err := decodeIndexInfo(data)
	if err != nil {
		return nil, err
	}
	nfo.gen = gen
	return nfo, nil
}

// save publishes the manifest under the next generation number. The
// output stream's atomic close guarantees readers see the old or the new
// manifest, never a partial one.
func (nfo *IndexInfo) save(dir Directory) error {
	out, err := dir.CreateFile(infoFileName(nfo.gen + 1))
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	if _, err := out.Write(nfo.encode()); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("publish manifest: %w", err)
	}
	nfo.gen++
	return nil
}
