package index

import "math/bits"

// MergePolicy decides which live segments to compact after a flush. The
// returned values are indices into the segment list; an empty result means
// no merge. At most one proposal is made per call.
type MergePolicy interface {
	FindMerges(segments []SegmentInfo) []int
}

// TieredMergePolicy buckets segments into logarithmic size tiers by block
// count and proposes merging the smallest tier that holds more than
// TierWidth segments. Segments below FloorBlocks all share the bottom tier,
// so the small segments produced by individual flushes merge eagerly. This
// keeps the number of segments searched per query logarithmic in the total
// posting count.
type TieredMergePolicy struct {
	TierWidth   int
	FloorBlocks uint32
}

func NewTieredMergePolicy() *TieredMergePolicy {
	return &TieredMergePolicy{TierWidth: 3, FloorBlocks: 16}
}

func (p *TieredMergePolicy) tier(blockCount uint32) int {
	return bits.Len32(blockCount / p.FloorBlocks)
}

func (p *TieredMergePolicy) FindMerges(segments []SegmentInfo) []int {
	tiers := make(map[int][]int)
	for i, s := range segments {
		t := p.tier(s.BlockCount)
		tiers[t] = append(tiers[t], i)
	}

	// merge the smallest offending tier; each merge replaces that tier's
	// members with one segment, so repeated flush/merge rounds converge
	best := -1
	for t, members := range tiers {
		if len(members) > p.TierWidth && (best < 0 || t < best) {
			best = t
		}
	}
	if best < 0 {
		return nil
	}
	return tiers[best]
}
