package processor

import (
	"slices"

	"gitlab.com/gomidi/midi/v2/smf"
)

// SortNoteOffFirst reorders events sharing a tick so that note ends come
// before state changes, which come before note starts. Order is otherwise kept.
func SortNoteOffFirst(track smf.Track) {
	// Groups are runs of the form Delta=<n> 0 0 ...; deltas get fixed up after sorting.
	fixup := func(begin, end int) {
		if end <= begin+1 {
			return
		}
		delta := track[begin].Delta
		slices.SortStableFunc(track[begin:end], func(a, b smf.Event) int {
			return tieRank(a.Message) - tieRank(b.Message)
		})
		track[begin].Delta = delta
		for i := begin + 1; i < end; i++ {
			track[i].Delta = 0
		}
	}

	begin := 0
	for i, ev := range track {
		if ev.Delta != 0 {
			fixup(begin, i)
			begin = i
		}
	}
	fixup(begin, len(track))
}
