package index

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// Reader is a point-in-time view of the index. It pins the manifest it was
// opened with: segments merged away or deleted by later commits stay
// readable until Close. Writer snapshots open data files on first use,
// standalone readers at construction; either way the streams are held
// until the reader is released. Readers are independent of the writer and
// of each other; a single Reader must not be shared across goroutines
// while a search is running, since the collector is caller-supplied.
type Reader struct {
	dir       Directory
	log       *zap.SugaredLogger
	segments  []*segmentHandle
	streams   []InputStream
	blockSize int
	cache     *BlockCache
}

// OpenReader loads the committed manifest and the skip index of every live
// segment.
func OpenReader(dir Directory, opts ...Option) (*Reader, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}

	nfo, err := loadIndexInfo(dir)
	if err != nil {
		return nil, err
	}

	r := &Reader{dir: dir, log: cfg.log, blockSize: cfg.blockSize, cache: cfg.cache}
	for _, s := range nfo.segments {
		h, err := openSegmentHandle(dir, s, cfg.log)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.segments = append(r.segments, h)
	}

	// open the data files up front: a standalone reader shares no handle
	// refcounts with a writer, so holding the streams is what keeps the
	// snapshot readable across a concurrent writer's GC
	r.streams = make([]InputStream, len(r.segments))
	for i, h := range r.segments {
		in, err := dir.OpenFile(h.info.DataFileName())
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("open segment %d data: %w", h.info.ID, err)
		}
		r.streams[i] = in
	}
	return r, nil
}

// Search intersects the fingerprint with every live segment and hands each
// matching posting's doc id to the collector, once per matching term. The
// fingerprint may arrive in any order and with duplicates; it is sorted
// and deduplicated here.
func (r *Reader) Search(fingerprint []uint32, collector Collector) error {
	query := slices.Clone(fingerprint)
	slices.Sort(query)
	query = slices.Compact(query)
	if len(query) == 0 {
		return nil
	}

	for i, h := range r.segments {
		if err := r.searchSegment(i, query, collector); err != nil {
			return fmt.Errorf("search segment %d: %w", h.info.ID, err)
		}
	}
	return nil
}

func (r *Reader) searchSegment(i int, query []uint32, collector Collector) error {
	h := r.segments[i]
	if r.streams[i] == nil {
		in, err := r.dir.OpenFile(h.info.DataFileName())
		if err != nil {
			return err
		}
		r.streams[i] = in
	}
	s := &segmentSearcher{
		index:   h.index,
		data:    newSegmentDataReader(r.streams[i], h.info.ID, r.blockSize, r.cache),
		filter:  h.filter,
		lastKey: h.info.LastKey,
	}
	return s.search(query, collector)
}

// Close releases the reader's segment references and open data files;
// files owned by segments the writer has since dropped are deleted on the
// last release.
func (r *Reader) Close() error {
	for i, in := range r.streams {
		if in == nil {
			continue
		}
		if err := in.Close(); err != nil {
			r.log.Warnw("close segment data", "segment", r.segments[i].info.ID, "error", err)
		}
	}
	r.streams = nil
	for _, h := range r.segments {
		h.release()
	}
	r.segments = nil
	return nil
}
