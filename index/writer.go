// Package index implements an append-only inverted index for audio
// fingerprints: an on-disk segmented store of (term, doc id) postings with
// block-compressed segment files, tiered merging and snapshot readers.
package index

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
)

const (
	// DefaultBlockSize is the size of one data block on disk.
	DefaultBlockSize = 512

	// DefaultMaxBufferedPostings caps the writer's in-memory posting
	// buffer; one million postings is about 8 MiB.
	DefaultMaxBufferedPostings = 1 << 20
)

type config struct {
	blockSize           int
	maxBufferedPostings int
	policy              MergePolicy
	cache               *BlockCache
	log                 *zap.SugaredLogger
}

func defaultConfig() *config {
	return &config{
		blockSize:           DefaultBlockSize,
		maxBufferedPostings: DefaultMaxBufferedPostings,
		policy:              NewTieredMergePolicy(),
		log:                 zap.NewNop().Sugar(),
	}
}

type Option func(*config)

// WithBlockSize sets the on-disk block size. It must match the value the
// index was written with.
func WithBlockSize(n int) Option {
	return func(c *config) { c.blockSize = n }
}

// WithMaxBufferedPostings sets the buffered posting count above which
// AddDocument flushes.
func WithMaxBufferedPostings(n int) Option {
	return func(c *config) { c.maxBufferedPostings = n }
}

func WithMergePolicy(p MergePolicy) Option {
	return func(c *config) { c.policy = p }
}

// WithBlockCache shares an LRU block cache across searches.
func WithBlockCache(cache *BlockCache) Option {
	return func(c *config) { c.cache = cache }
}

func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *config) { c.log = log }
}

func buildConfig(opts []Option) (*config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.blockSize < blockHeaderLen+4+2 {
		return nil, fmt.Errorf("block size %d is too small", cfg.blockSize)
	}
	if cfg.maxBufferedPostings < 1 {
		return nil, fmt.Errorf("max buffered postings must be positive")
	}
	return cfg, nil
}

// Writer is the single-writer orchestrator: it buffers postings, flushes
// them into segments, runs the merge policy and commits the manifest. One
// Writer per index directory; its methods are not safe for concurrent use.
type Writer struct {
	dir       Directory
	log       *zap.SugaredLogger
	info      *IndexInfo // current in-memory view, may be ahead of disk
	committed *IndexInfo // what the published manifest says
	buffer    []uint64
	cfg       *config
	handles   map[uint32]*segmentHandle // every segment in info or committed
}

// Open loads the index in the directory, creating an empty one when create
// is set and no manifest exists. Segment files that no manifest references
// (left behind by a crash between flush and commit) are swept away.
func Open(dir Directory, create bool, opts ...Option) (*Writer, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}

	nfo, err := loadIndexInfo(dir)
	if errors.Is(err, ErrNoIndex) && create {
		nfo = &IndexInfo{}
		if err := nfo.save(dir); err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, err
	}

	w := &Writer{
		dir:       dir,
		log:       cfg.log,
		info:      nfo,
		committed: nfo.clone(),
		cfg:       cfg,
		handles:   make(map[uint32]*segmentHandle),
	}

	for _, s := range nfo.segments {
		h, err := openSegmentHandle(dir, s, cfg.log)
		if err != nil {
			w.Close()
			return nil, err
		}
		w.handles[s.ID] = h
	}

	w.cleanDirectory()
	return w, nil
}

// AddDocument indexes one document: one posting per term. The buffer is
// flushed into a new segment once it outgrows its cap.
func (w *Writer) AddDocument(docID uint32, terms []uint32) error {
	for _, term := range terms {
		w.buffer = append(w.buffer, packPosting(term, docID))
	}
	if len(w.buffer) > w.cfg.maxBufferedPostings {
		return w.Flush()
	}
	return nil
}

// Flush sorts and deduplicates the buffered postings, writes them into a
// new segment and runs the merge policy. The manifest is only updated in
// memory; nothing becomes visible to new readers until Commit.
func (w *Writer) Flush() error {
	if len(w.buffer) == 0 {
		return nil
	}
	slices.Sort(w.buffer)

	newInfo := w.info.clone()
	seg, handle, err := w.writeSegment(newInfo, w.buffer)
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := newInfo.addSegment(seg); err != nil {
		handle.release()
		return err
	}
	w.handles[seg.ID] = handle
	w.log.Infow("wrote segment", "segment", seg.ID, "blocks", seg.BlockCount, "postings", len(w.buffer))

	if err := w.maybeMerge(newInfo); err != nil {
		delete(w.handles, seg.ID)
		handle.release()
		return fmt.Errorf("merge: %w", err)
	}

	w.info = newInfo
	w.buffer = w.buffer[:0]
	return nil
}

// writeSegment streams sorted postings into a fresh segment, skipping
// adjacent duplicates, and returns the segment's metadata plus an already
// loaded handle. On error the partial files are left behind as orphans for
// the next open's sweep, per the no-rollback policy.
func (w *Writer) writeSegment(nfo *IndexInfo, postings []uint64) (SegmentInfo, *segmentHandle, error) {
	id := nfo.nextSegmentID()
	sdw, err := w.newSegmentDataWriter(SegmentInfo{ID: id})
	if err != nil {
		return SegmentInfo{}, nil, err
	}

	var last uint64
	started := false
	for _, p := range postings {
		if started && p == last {
			continue
		}
		if err := sdw.add(postingTerm(p), postingDocID(p)); err != nil {
			return SegmentInfo{}, nil, err
		}
		last, started = p, true
	}
	if err := sdw.close(); err != nil {
		return SegmentInfo{}, nil, err
	}

	seg := SegmentInfo{ID: id, BlockCount: sdw.BlockCount(), LastKey: sdw.LastKey()}
	filter, err := openTermFilter(w.dir, seg)
	if err != nil {
		w.log.Warnw("ignoring unreadable term filter", "segment", id, "error", err)
		filter = nil
	}
	return seg, newSegmentHandle(w.dir, seg, sdw.index(), filter, w.log), nil
}

func (w *Writer) newSegmentDataWriter(seg SegmentInfo) (*segmentDataWriter, error) {
	indexOut, err := w.dir.CreateFile(seg.IndexFileName())
	if err != nil {
		return nil, err
	}
	filterOut, err := w.dir.CreateFile(seg.FilterFileName())
	if err != nil {
		return nil, err
	}
	dataOut, err := w.dir.CreateFile(seg.DataFileName())
	if err != nil {
		return nil, err
	}
	return newSegmentDataWriter(dataOut, newSegmentIndexWriter(indexOut), newTermFilterWriter(filterOut), w.cfg.blockSize), nil
}

// maybeMerge asks the policy for a proposal and executes it, replacing the
// merged segments in the working manifest with the merge output. The
// merged-away segments stay on disk until a commit drops them from the
// published manifest.
func (w *Writer) maybeMerge(nfo *IndexInfo) error {
	proposal := w.cfg.policy.FindMerges(nfo.segments)
	if len(proposal) == 0 {
		return nil
	}
	for _, j := range proposal {
		if j < 0 || j >= len(nfo.segments) {
			return fmt.Errorf("%w: index %d of %d segments", ErrInvalidMerge, j, len(nfo.segments))
		}
	}

	id := nfo.nextSegmentID()
	sdw, err := w.newSegmentDataWriter(SegmentInfo{ID: id})
	if err != nil {
		return err
	}

	merger := newSegmentMerger(sdw)
	var inputs []InputStream
	defer func() {
		for _, in := range inputs {
			_ = in.Close()
		}
	}()
	var mergedIDs []uint32
	for _, j := range proposal {
		s := nfo.segments[j]
		in, err := w.dir.OpenFile(s.DataFileName())
		if err != nil {
			return err
		}
		inputs = append(inputs, in)
		merger.addSource(newSegmentEnum(w.handles[s.ID].index, newSegmentDataReader(in, s.ID, w.cfg.blockSize, w.cfg.cache)))
		mergedIDs = append(mergedIDs, s.ID)
	}
	if err := merger.merge(); err != nil {
		return err
	}
	if err := sdw.close(); err != nil {
		return err
	}

	seg := SegmentInfo{ID: id, BlockCount: sdw.BlockCount(), LastKey: sdw.LastKey()}
	filter, err := openTermFilter(w.dir, seg)
	if err != nil {
		w.log.Warnw("ignoring unreadable term filter", "segment", id, "error", err)
		filter = nil
	}

	nfo.removeSegments(proposal)
	if err := nfo.addSegment(seg); err != nil {
		return err
	}
	w.handles[seg.ID] = newSegmentHandle(w.dir, seg, sdw.index(), filter, w.log)
	w.log.Infow("merged segments", "segments", mergedIDs, "into", seg.ID, "blocks", seg.BlockCount)
	return nil
}

// Commit flushes and publishes the manifest. After it returns, a freshly
// opened reader sees every document added before the call. Segments that
// fell out of the committed set are deleted once the last reader lets go
// of them.
func (w *Writer) Commit() error {
	if err := w.Flush(); err != nil {
		return err
	}

	prevGen := w.info.gen
	if err := w.info.save(w.dir); err != nil {
		return err
	}
	if err := w.dir.DeleteFile(infoFileName(prevGen)); err != nil {
		w.log.Warnw("delete old manifest", "generation", prevGen, "error", err)
	}

	for id, h := range w.handles {
		if !w.info.contains(id) {
			h.doomed.Store(true)
			delete(w.handles, id)
			h.release()
		}
	}
	w.committed = w.info.clone()
	w.log.Infow("committed", "generation", w.info.gen, "segments", len(w.info.segments))
	return nil
}

// Snapshot returns a reader over the writer's current in-memory view,
// including flushed-but-uncommitted segments. The caller must Close it.
func (w *Writer) Snapshot() *Reader {
	segments := make([]*segmentHandle, 0, len(w.info.segments))
	for _, s := range w.info.segments {
		h := w.handles[s.ID]
		h.acquire()
		segments = append(segments, h)
	}
	return &Reader{
		dir:       w.dir,
		log:       w.log,
		segments:  segments,
		streams:   make([]InputStream, len(segments)),
		blockSize: w.cfg.blockSize,
		cache:     w.cfg.cache,
	}
}

// Close releases the writer's segment references. Postings added since the
// last commit are lost; segments flushed since then become orphans and are
// reclaimed by the next open.
func (w *Writer) Close() error {
	if len(w.buffer) > 0 {
		w.log.Warnw("closing writer with uncommitted postings", "postings", len(w.buffer))
	}
	for id, h := range w.handles {
		delete(w.handles, id)
		h.release()
	}
	return nil
}

// cleanDirectory deletes index files that the committed manifest does not
// reference: orphaned segments from an uncommitted flush, stale manifest
// generations, leftover temp files. Failures are logged and retried on the
// next open.
func (w *Writer) cleanDirectory() {
	names, err := w.dir.ListFiles()
	if err != nil {
		w.log.Warnw("list files for cleanup", "error", err)
		return
	}

	expected := mapset.NewThreadUnsafeSet[string](infoFileName(w.committed.gen))
	for _, s := range w.committed.segments {
		expected.Append(s.DataFileName(), s.IndexFileName(), s.FilterFileName())
	}

	actual := mapset.NewThreadUnsafeSet[string]()
	for _, name := range names {
		if strings.HasPrefix(name, "segment_") || strings.HasPrefix(name, "info_") {
			actual.Add(name)
		}
	}

	for name := range actual.Difference(expected).Iter() {
		if err := w.dir.DeleteFile(name); err != nil {
			w.log.Warnw("delete orphaned file", "file", name, "error", err)
			continue
		}
		w.log.Debugw("deleted orphaned file", "file", name)
	}
}
