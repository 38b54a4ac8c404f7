package executor

// Group is one (grouping key, count) pair of a result set. Availability
// results carry a single group with a zero key and empty label.
type Group struct {
	Key   int64
	Label string
	Count int64
}

// RawResult is the unobfuscated output of one query execution.
type RawResult struct {
	Groups []Group
}

// Total sums the counts across groups.
func (r *RawResult) Total() int64 {
	var total int64
	for _, g := range r.Groups {
		total += g.Count
	}
	return total
}
