package sequencer

import (
	"fmt"
	"log"
	"math"
	"slices"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Event is one entry of the sequenced timeline.
type Event struct {
	// Index is the insertion order, used to order simultaneous events.
	Index int

	// TimeMs is the absolute position at playback speed 1.
	TimeMs float64

	// Tick is the absolute position in ticks.
	Tick int

	// Metronome marks synthetic beat clicks. They carry no Message.
	Metronome bool

	// Message is the musical message. Meta messages are kept as well.
	Message midi.Message
}

// timeline is the flattened, time ordered event list of one loaded score.
type timeline struct {
	events []Event
	tempo  *tempoMap

	// firstProgram maps a channel to the index of its first program change.
	firstProgram map[uint8]int

	endTimeMs float64
	endTick   int
}

// buildTimeline converts one merged track to a timeline.
func buildTimeline(track smf.Track, division int) (*timeline, error) {
	if division <= 0 {
		return nil, fmt.Errorf("%w: division %d", InvalidScoreError, division)
	}
	if len(track) == 0 {
		return nil, fmt.Errorf("%w: no events", InvalidScoreError)
	}

	tl := &timeline{
		events:       make([]Event, 0, len(track)),
		tempo:        newTempoMap(division),
		firstProgram: map[uint8]int{},
	}

	bpm := DefaultBPM
	var absTick int
	var absTime float64

	var metronomeLength int
	var metronomeTick int

	for _, ev := range track {
		absTick += int(ev.Delta)
		absTime += float64(ev.Delta) * tl.tempo.msPerTick(bpm)

		tl.events = append(tl.events, Event{
			Index:   len(tl.events),
			TimeMs:  absTime,
			Tick:    absTick,
			Message: slices.Clone(midi.Message(ev.Message)),
		})

		var newBPM float64
		var num, denom, clocks, demisemiquavers uint8
		switch {
		case ev.Message.GetMetaTempo(&newBPM):
			if !(newBPM > 0) || math.IsInf(newBPM, 0) {
				log.Printf("Ignoring tempo change to %v bpm at tick %d.", newBPM, absTick)
				break
			}
			bpm = newBPM
			tl.tempo.add(TempoChange{
				BPM:    bpm,
				Tick:   absTick,
				TimeMs: absTime,
			})
		case ev.Message.GetMetaTimeSig(&num, &denom, &clocks, &demisemiquavers):
			if denom == 0 {
				log.Printf("Ignoring time signature %d/%d at tick %d.", num, denom, absTick)
				break
			}
			metronomeLength = int(float64(division) * (4.0 / float64(denom)))
		}

		if metronomeLength > 0 {
			for metronomeTick < absTick {
				tl.events = append(tl.events, Event{
					Index:     len(tl.events),
					TimeMs:    tl.tempo.tickToTime(metronomeTick, 1),
					Tick:      metronomeTick,
					Metronome: true,
				})
				metronomeTick += metronomeLength
			}
		}
	}

	slices.SortStableFunc(tl.events, func(a, b Event) int {
		if a.TimeMs < b.TimeMs {
			return -1
		}
		if a.TimeMs > b.TimeMs {
			return +1
		}
		return a.Index - b.Index
	})

	for i, ev := range tl.events {
		var ch, program uint8
		if ev.Metronome || !ev.Message.GetProgramChange(&ch, &program) {
			continue
		}
		if _, found := tl.firstProgram[ch]; !found {
			tl.firstProgram[ch] = i
		}
	}

	tl.endTimeMs = absTime
	tl.endTick = absTick
	return tl, nil
}
