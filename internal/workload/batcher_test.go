package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBatcherBoundaries(t *testing.T) {
	b := Batcher{GroupSize: 3}

	tests := []struct {
		index  int64
		begin  bool
		commit bool
	}{
		{0, true, false},
		{1, false, false},
		{2, false, true},
		{3, true, false},
		{5, false, true},
		{9, true, false},
	}

	for _, tt := range tests {
		got := b.Boundary(tt.index)
		assert.Equal(t, tt.begin, got.Begin, "begin at %d", tt.index)
		assert.Equal(t, tt.commit, got.Commit, "commit at %d", tt.index)
	}
}

func TestBatcherWithoutGroup(t *testing.T) {
	var b Batcher
	for i := int64(0); i < 10; i++ {
		assert.Equal(t, Boundary{}, b.Boundary(i))
	}
	assert.False(t, b.NeedsFinalize(4))
	assert.Equal(t, []Segment{{First: 0, Len: 10}}, b.Segments(0, 10))
}

func TestBatcherSegmentsTrailingGroup(t *testing.T) {
	b := Batcher{GroupSize: 3}

	segs := b.Segments(0, 10)
	require.Len(t, segs, 4)
	assert.Equal(t, Segment{First: 0, Len: 3, Begin: true, Commit: true}, segs[0])
	assert.Equal(t, Segment{First: 3, Len: 3, Begin: true, Commit: true}, segs[1])
	assert.Equal(t, Segment{First: 6, Len: 3, Begin: true, Commit: true}, segs[2])
	assert.Equal(t, Segment{First: 9, Len: 1, Begin: true, Commit: false}, segs[3])
	assert.True(t, b.NeedsFinalize(9))
	assert.False(t, b.NeedsFinalize(8))
}

func TestBatcherSegmentsMidGroup(t *testing.T) {
	b := Batcher{GroupSize: 4}

	// a paced run hands out one unit at a time
	assert.Equal(t, []Segment{{First: 5, Len: 1}}, b.Segments(5, 1))
	assert.Equal(t, []Segment{{First: 7, Len: 1, Commit: true}}, b.Segments(7, 1))
	assert.Equal(t, []Segment{
		{First: 2, Len: 2, Commit: true},
		{First: 4, Len: 3, Begin: true},
	}, b.Segments(2, 5))
}

func TestPropertyBatcherGroups(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := rapid.IntRange(1, 20).Draw(t, "groupSize")
		n := rapid.IntRange(1, 300).Draw(t, "targetCount")
		b := Batcher{GroupSize: g}

		for i := int64(0); i < int64(n); i++ {
			if b.BeginBeforeSend(i) != (i%int64(g) == 0) {
				t.Fatalf("begin mismatch at %d", i)
			}
			if b.CommitAfterSend(i) != ((i+1)%int64(g) == 0) {
				t.Fatalf("commit mismatch at %d", i)
			}
		}

		segs := b.Segments(0, n)
		next := int64(0)
		begins, commits := 0, 0
		for _, s := range segs {
			if s.First != next {
				t.Fatalf("segment starts at %d, want %d", s.First, next)
			}
			if s.Len <= 0 || s.Len > g {
				t.Fatalf("segment length %d outside (0, %d]", s.Len, g)
			}
			if s.Begin {
				begins++
			}
			if s.Commit {
				commits++
			}
			next += int64(s.Len)
		}
		if next != int64(n) {
			t.Fatalf("segments cover %d units, want %d", next, n)
		}

		groups := (n + g - 1) / g
		if begins != groups {
			t.Fatalf("%d begins, want %d", begins, groups)
		}
		// the trailing partial group is left for finalize, exactly once
		trailing := 0
		if b.NeedsFinalize(int64(n - 1)) {
			trailing = 1
		}
		if commits+trailing != groups {
			t.Fatalf("%d commits + %d finalize, want %d", commits, trailing, groups)
		}
		if (trailing == 1) != (n%g != 0) {
			t.Fatalf("finalize needed=%v for n=%d g=%d", trailing == 1, n, g)
		}
	})
}
