package index

import (
	"slices"
	"testing"
)

func segmentsWithBlocks(blocks ...uint32) []SegmentInfo {
	segments := make([]SegmentInfo, len(blocks))
	for i, b := range blocks {
		segments[i] = SegmentInfo{ID: uint32(i + 1), BlockCount: b}
	}
	return segments
}

func TestTieredPolicyBelowWidth(t *testing.T) {
	p := NewTieredMergePolicy()

	if got := p.FindMerges(nil); got != nil {
		t.Errorf("empty list: expected no merge, got %v", got)
	}
	if got := p.FindMerges(segmentsWithBlocks(1, 2, 3)); got != nil {
		t.Errorf("three small segments: expected no merge, got %v", got)
	}
}

func TestTieredPolicyMergesSmallestTier(t *testing.T) {
	p := NewTieredMergePolicy()

	// four floor-tier segments exceed the width of three
	got := p.FindMerges(segmentsWithBlocks(1, 2, 3, 4))
	if !slices.Equal(got, []int{0, 1, 2, 3}) {
		t.Errorf("expected all four small segments, got %v", got)
	}

	// the small tier wins over an equally offending big tier
	got = p.FindMerges(segmentsWithBlocks(100, 100, 1, 100, 2, 100, 3, 4))
	if !slices.Equal(got, []int{2, 4, 6, 7}) {
		t.Errorf("expected the small tier, got %v", got)
	}
}

func TestTieredPolicyIgnoresOtherTiers(t *testing.T) {
	p := NewTieredMergePolicy()

	// three per tier is fine no matter how many tiers exist
	got := p.FindMerges(segmentsWithBlocks(1, 2, 3, 20, 25, 30, 100, 120, 140))
	if got != nil {
		t.Errorf("expected no merge, got %v", got)
	}

	// only the over-full big tier is proposed
	got = p.FindMerges(segmentsWithBlocks(1, 100, 100, 110, 120))
	if !slices.Equal(got, []int{1, 2, 3, 4}) {
		t.Errorf("expected the big tier, got %v", got)
	}
}

func TestTieredPolicyConverges(t *testing.T) {
	p := NewTieredMergePolicy()

	// simulate flush/merge rounds: apply each proposal, replacing the
	// merged segments with one of their combined size
	segments := segmentsWithBlocks(1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1)
	next := uint32(100)
	for rounds := 0; ; rounds++ {
		if rounds > 20 {
			t.Fatal("policy did not converge")
		}
		proposal := p.FindMerges(segments)
		if proposal == nil {
			break
		}
		var total uint32
		for _, i := range proposal {
			total += segments[i].BlockCount
		}
		drop := make(map[int]bool)
		for _, i := range proposal {
			drop[i] = true
		}
		var kept []SegmentInfo
		for i, s := range segments {
			if !drop[i] {
				kept = append(kept, s)
			}
		}
		next++
		segments = append(kept, SegmentInfo{ID: next, BlockCount: total})
	}

	if len(segments) > 4 {
		t.Errorf("expected a bounded segment count, got %d", len(segments))
	}
}
