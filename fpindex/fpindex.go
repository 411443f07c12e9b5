// Package fpindex wraps the index engine in a net/rpc service so the
// server and client binaries can add fingerprints and search over TCP.
package fpindex

import (
	"sync"

	"github.com/NBICNamibia/acoustid-index/index"
)

// Service serializes access to the single writer; the core is not
// internally synchronized, so every RPC method takes the mutex.
type Service struct {
	mu     sync.Mutex
	writer *index.Writer
}

// Open opens (or creates) the index under the given filesystem path.
func Open(path string, opts ...index.Option) (*Service, error) {
	dir, err := index.OpenFSDirectory(path)
	if err != nil {
		return nil, err
	}
	writer, err := index.Open(dir, true, opts...)
	if err != nil {
		return nil, err
	}
	return &Service{writer: writer}, nil
}

type AddArgs struct {
	ID    uint32
	Terms []uint32
}

// Add indexes one fingerprint. The posting stays buffered until Commit or
// until the buffer cap forces a flush.
func (s *Service) Add(args *AddArgs, _ *struct{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.AddDocument(args.ID, args.Terms)
}

// Commit makes everything added so far visible to fresh readers.
func (s *Service) Commit(_ *struct{}, _ *struct{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer.Commit()
}

type SearchArgs struct {
	Terms []uint32
}

type SearchResult struct {
	ID    uint32
	Score int
}

type SearchReply struct {
	Results []SearchResult
}

// Search matches the fingerprint against the writer's current view,
// including postings flushed but not yet committed, and returns candidates
// ordered by match count.
func (s *Service) Search(args *SearchArgs, reply *SearchReply) error {
	s.mu.Lock()
	snapshot := s.writer.Snapshot()
	s.mu.Unlock()
	defer snapshot.Close() // nolint:errcheck

	counter := index.NewMatchCounter()
	if err := snapshot.Search(args.Terms, counter); err != nil {
		return err
	}
	for _, m := range counter.Matches() {
		reply.Results = append(reply.Results, SearchResult{ID: m.DocID, Score: m.Score})
	}
	return nil
}

// Close commits pending postings and releases the writer.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writer.Commit(); err != nil {
		return err
	}
	return s.writer.Close()
}
