// Package merge combines per-source line sequences into one chronological view.
package merge

import (
	"sort"

	"github.com/crimson-sun/logdeck/internal/model"
)

// Merge flattens the given per-source sequences (each internally ordered by
// Seq) into one sequence ordered by instant, ascending.
//
// Lines without a resolved instant are not scattered: each is re-inserted
// immediately after the nearest preceding line from the same source that does
// have an instant, or at the very start of the merged sequence when no such
// line exists. Per-source causal order is therefore preserved even when
// timestamps are unrecoverable, and the result does not depend on the order
// sequences were fetched in.
func Merge(sequences ...[]model.LogLine) []model.LogLine {
	var timed []model.LogLine
	// untimed lines grouped by the same-source timed predecessor they follow;
	// the zero key collects lines with no timed predecessor at all.
	type anchor struct {
		source string
		seq    int
	}
	trailing := make(map[anchor][]model.LogLine)
	var leading []model.LogLine

	for _, seq := range sequences {
		last := anchor{}
		hasLast := false
		for _, line := range seq {
			if line.Instant != nil {
				timed = append(timed, line)
				last = anchor{source: line.Source, seq: line.Seq}
				hasLast = true
				continue
			}
			if hasLast {
				trailing[last] = append(trailing[last], line)
			} else {
				leading = append(leading, line)
			}
		}
	}

	// Stable sort keeps same-instant lines in their original relative order,
	// with the per-source sequence index breaking exact ties across sources.
	sort.SliceStable(timed, func(i, j int) bool {
		a, b := timed[i], timed[j]
		if !a.Instant.Equal(*b.Instant) {
			return a.Instant.Before(*b.Instant)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Seq < b.Seq
	})

	out := make([]model.LogLine, 0, len(timed)+len(leading)+len(trailing))
	out = append(out, leading...)
	for _, line := range timed {
		out = append(out, line)
		out = append(out, trailing[anchor{source: line.Source, seq: line.Seq}]...)
	}
	return out
}
