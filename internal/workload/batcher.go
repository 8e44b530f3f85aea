package workload

// Boundary tells the producer what to do around the send of one unit.
type Boundary struct {
	Begin  bool
	Commit bool
}

// Batcher decides transaction boundaries for a group size. The zero value
// (or any group size <= 0) never opens a transaction.
type Batcher struct {
	GroupSize int
}

// BeginBeforeSend is true at indices 0, G, 2G, ...
func (b Batcher) BeginBeforeSend(index int64) bool {
	if b.GroupSize <= 0 {
		return false
	}
	return index%int64(b.GroupSize) == 0
}

// CommitAfterSend is true at indices G-1, 2G-1, ...
func (b Batcher) CommitAfterSend(index int64) bool {
	if b.GroupSize <= 0 {
		return false
	}
	return (index+1)%int64(b.GroupSize) == 0
}

func (b Batcher) Boundary(index int64) Boundary {
	return Boundary{Begin: b.BeginBeforeSend(index), Commit: b.CommitAfterSend(index)}
}

// NeedsFinalize reports whether a run whose last attempted unit was
// lastIndex ends with a transaction still open.
func (b Batcher) NeedsFinalize(lastIndex int64) bool {
	if b.GroupSize <= 0 || lastIndex < 0 {
		return false
	}
	return !b.CommitAfterSend(lastIndex)
}

// Segment is a contiguous run of units sent in one call.
type Segment struct {
	First  int64
	Len    int
	Begin  bool
	Commit bool
}

// Segments splits the units [first, first+size) so that no segment crosses
// a transaction boundary. Without a group size the whole range is one
// segment.
func (b Batcher) Segments(first int64, size int) []Segment {
	if size <= 0 {
		return nil
	}
	if b.GroupSize <= 0 {
		return []Segment{{First: first, Len: size}}
	}

	var segs []Segment
	end := first + int64(size)
	for start := first; start < end; {
		stop := start
		for stop+1 < end && !b.CommitAfterSend(stop) {
			stop++
		}
		segs = append(segs, Segment{
			First:  start,
			Len:    int(stop - start + 1),
			Begin:  b.BeginBeforeSend(start),
			Commit: b.CommitAfterSend(stop),
		})
		start = stop + 1
	}
	return segs
}
