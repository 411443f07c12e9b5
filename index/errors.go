package index

import "errors"

var (
	// ErrNoIndex is returned by Open when the directory holds no manifest
	// and create was not requested.
	ErrNoIndex = errors.New("there is no index in the directory")

	// ErrCorrupted marks a block, segment index or manifest that fails its
	// structural checks. The affected segment is unreadable.
	ErrCorrupted = errors.New("index corrupted")

	// ErrOutOfOrder means a posting reached the segment writer out of
	// ascending order. Postings are sorted and deduplicated upstream, so
	// this indicates a bug in the caller.
	ErrOutOfOrder = errors.New("posting out of order")

	// ErrDuplicateSegment means a segment id was assigned twice.
	ErrDuplicateSegment = errors.New("duplicate segment id")

	// ErrInvalidMerge means a merge proposal referenced a segment index
	// outside the live segment list.
	ErrInvalidMerge = errors.New("invalid merge proposal")
)
