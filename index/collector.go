package index

import "sort"

// Collector receives the doc id of every matching posting during a search.
// The same doc id is delivered once per matching query term; counting and
// deduplication happen here, not in the searcher.
type Collector interface {
	Collect(docID uint32)
}

// Match is one candidate document and how many query terms it matched.
type Match struct {
	DocID uint32
	Score int
}

// MatchCounter counts matches per document.
type MatchCounter struct {
	counts map[uint32]int
}

func NewMatchCounter() *MatchCounter {
	return &MatchCounter{counts: make(map[uint32]int)}
}

func (c *MatchCounter) Collect(docID uint32) {
	c.counts[docID]++
}

func (c *MatchCounter) Counts() map[uint32]int {
	return c.counts
}

// Matches returns the candidates ordered by score, best first; ties break
// on doc id so the order is stable.
func (c *MatchCounter) Matches() []Match {
	matches := make([]Match, 0, len(c.counts))
	for id, n := range c.counts {
		matches = append(matches, Match{DocID: id, Score: n})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].DocID < matches[j].DocID
	})
	return matches
}
