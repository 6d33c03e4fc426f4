package processor

import (
	"slices"

	"gitlab.com/gomidi/midi/v2/smf"
)

// Bar is one measure of a score.
type Bar struct {
	// Begin and Length are in ticks.
	Begin  int64
	Length int64
	Beat   int64
	// Time signature applying to the bar.
	Num   int
	Denom int
}

// beatLength returns the length of one denominator note.
func (b Bar) beatLength() int64 {
	return b.Beat
}

func (b Bar) End() int64 {
	return b.Begin + b.Length
}

// FromTick returns the beat within the bar, counting from 0.
func (b Bar) FromTick(tick int64) float64 {
	return float64(tick-b.Begin) / float64(b.beatLength())
}

// Bars is the measure layout of a score.
type Bars []Bar

// FromTick returns the bar index and beat within it, both counting from 0.
// Ticks past the last bar continue counting in its time signature.
func (b Bars) FromTick(tick int64) (int, float64) {
	if len(b) == 0 {
		return 0, -1
	}
	last := len(b) - 1
	for i, bar := range b {
		if tick < bar.End() {
			return i, bar.FromTick(tick)
		}
		if i == last {
			over := (tick - bar.Begin) / bar.Length
			return i + int(over), bar.FromTick(tick - over*bar.Length)
		}
	}
	return 0, -1
}

// FindBars computes the bars of mid from its time signatures. A bar cut short
// by a new time signature keeps its signature but ends early.
func FindBars(mid *smf.SMF) Bars {
	ticks, ok := mid.TimeFormat.(smf.MetricTicks)
	if !ok || ticks == 0 {
		return nil
	}
	whole := 4 * int64(ticks)
	type timeSig struct {
		start      int64
		num, denom int
	}
	sigs := []timeSig{
		{start: 0, num: 4, denom: 4},
	}
	ForEachEventWithTime(mid, func(tick int64, track int, msg smf.Message) error {
		var num, denom, cpt, dsqpq uint8
		if msg.GetMetaTimeSig(&num, &denom, &cpt, &dsqpq) && num > 0 && denom > 0 {
			sigs = append(sigs, timeSig{start: tick, num: int(num), denom: int(denom)})
		}
		return nil
	})
	// Of several signatures at the same tick the last one wins.
	slices.Reverse(sigs)
	slices.SortStableFunc(sigs, func(a, b timeSig) int {
		switch {
		case a.start < b.start:
			return -1
		case a.start > b.start:
			return +1
		}
		return 0
	})
	sigs = slices.CompactFunc(sigs, func(a, b timeSig) bool {
		return a.start == b.start
	})

	end := LastTick(mid)
	var b Bars
	var tick int64
	for i, sig := range sigs {
		next := end
		if i+1 < len(sigs) {
			next = sigs[i+1].start
		}
		beat := max(whole/int64(sig.denom), 1)
		length := beat * int64(sig.num)
		for tick < next || (tick == 0 && len(b) == 0) {
			bar := Bar{Begin: tick, Length: length, Beat: beat, Num: sig.num, Denom: sig.denom}
			if i+1 < len(sigs) && bar.End() > next {
				bar.Length = next - tick
			}
			b = append(b, bar)
			tick = bar.End()
		}
	}
	return b
}
