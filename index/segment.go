package index

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"go.uber.org/zap"
)

// SegmentInfo describes one immutable segment: its id and the two metadata
// values needed to search it without touching the data file first.
type SegmentInfo struct {
	ID         uint32
	BlockCount uint32
	LastKey    uint32
}

func (s SegmentInfo) DataFileName() string   { return fmt.Sprintf("segment_%d.fid", s.ID) }
func (s SegmentInfo) IndexFileName() string  { return fmt.Sprintf("segment_%d.fii", s.ID) }
func (s SegmentInfo) FilterFileName() string { return fmt.Sprintf("segment_%d.fbf", s.ID) }

// segmentHandle is the shared in-memory state of one live segment: its skip
// index, its optional term filter and a reference count. The writer holds
// one reference for as long as the segment is live; each reader snapshot
// holds another. When a commit drops the segment from the manifest, the
// handle is doomed and the last release deletes the files.
type segmentHandle struct {
	info   SegmentInfo
	index  *SegmentIndex
	filter *termFilter
	dir    Directory
	log    *zap.SugaredLogger
	refs   atomic.Int32
	doomed atomic.Bool
}

func newSegmentHandle(dir Directory, info SegmentInfo, index *SegmentIndex, filter *termFilter, log *zap.SugaredLogger) *segmentHandle {
	h := &segmentHandle{info: info, index: index, filter: filter, dir: dir, log: log}
	h.refs.Store(1)
	return h
}

// openSegmentHandle loads a segment's skip index (and term filter, when the
// sidecar exists) from the directory.
func openSegmentHandle(dir Directory, info SegmentInfo, log *zap.SugaredLogger) (*segmentHandle, error) {
	idx, err := openSegmentIndex(dir, info)
	if err != nil {
		return nil, err
	}
	filter, err := openTermFilter(dir, info)
	if err != nil {
		// the filter is an accelerator, not part of the format
		log.Warnw("ignoring unreadable term filter", "segment", info.ID, "error", err)
		filter = nil
	}
	return newSegmentHandle(dir, info, idx, filter, log), nil
}

func (h *segmentHandle) acquire() {
	h.refs.Add(1)
}

func (h *segmentHandle) release() {
	if h.refs.Add(-1) > 0 {
		return
	}
	if h.doomed.Load() {
		deleteSegmentFiles(h.dir, h.info, h.log)
	}
}

func deleteSegmentFiles(dir Directory, info SegmentInfo, log *zap.SugaredLogger) {
	for _, name := range []string{info.DataFileName(), info.IndexFileName(), info.FilterFileName()} {
		if err := dir.DeleteFile(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warnw("delete segment file", "file", name, "error", err)
		}
	}
	log.Debugw("deleted segment files", "segment", info.ID)
}
