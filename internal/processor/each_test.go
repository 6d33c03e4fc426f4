package processor

import (
	"errors"
	"slices"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func twoTracks() *smf.SMF {
	var a, b smf.Track
	a.Add(0, midi.NoteOn(0, 60, 100))
	a.Add(480, midi.NoteOn(0, 62, 100))
	a.Add(0, midi.NoteOff(0, 60))
	a.Close(480)
	b.Add(240, midi.ProgramChange(1, 5))
	b.Add(240, midi.NoteOff(1, 64))
	b.Close(0)
	return &smf.SMF{TimeFormat: smf.MetricTicks(480), Tracks: []smf.Track{a, b}}
}

type seen struct {
	tick  int64
	track int
	msg   string
}

func TestForEachEventOrder(t *testing.T) {
	var got []seen
	err := ForEachEventWithTime(twoTracks(), func(tick int64, track int, msg smf.Message) error {
		got = append(got, seen{tick, track, msg.String()})
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachEventWithTime: %v", err)
	}
	var ticks []int64
	var tracks []int
	for _, s := range got {
		ticks = append(ticks, s.tick)
		tracks = append(tracks, s.track)
	}
	// At tick 480 the note off of track 1 comes before the note on of track 0.
	if !slices.Equal(ticks, []int64{0, 240, 480, 480, 480}) {
		t.Fatalf("ticks: got %v", ticks)
	}
	if !slices.Equal(tracks, []int{0, 1, 1, 0, 0}) {
		t.Fatalf("tracks: got %v (%v)", tracks, got)
	}
}

func TestForEachEventStop(t *testing.T) {
	n := 0
	err := ForEachEventWithTime(twoTracks(), func(tick int64, track int, msg smf.Message) error {
		n++
		if n == 2 {
			return StopIteration
		}
		return nil
	})
	if err != nil {
		t.Fatalf("StopIteration leaked: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d calls, want 2", n)
	}

	failure := errors.New("failure")
	err = ForEachEventWithTime(twoTracks(), func(tick int64, track int, msg smf.Message) error {
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("got %v, want %v", err, failure)
	}
}

func TestLastTick(t *testing.T) {
	if got := LastTick(twoTracks()); got != 960 {
		t.Fatalf("got %d, want 960", got)
	}
}

func TestCombineTracks(t *testing.T) {
	mid := twoTracks()
	combined, err := CombineTracks(mid)
	if err != nil {
		t.Fatalf("CombineTracks: %v", err)
	}
	var tick int64
	var ticks []int64
	for _, ev := range combined {
		tick += int64(ev.Delta)
		ticks = append(ticks, tick)
	}
	if !slices.Equal(ticks, []int64{0, 240, 480, 480, 480, 960}) {
		t.Fatalf("ticks: got %v", ticks)
	}
	if last := combined[len(combined)-1].Message; !last.Is(smf.MetaEndOfTrackMsg) {
		t.Fatalf("not closed: last message %v", last)
	}
	var ch, key, vel uint8
	if !combined[4].Message.GetNoteStart(&ch, &key, &vel) || key != 62 {
		t.Fatalf("note on not after note offs: %v", combined[4].Message)
	}
}

func TestSortNoteOffFirst(t *testing.T) {
	var tr smf.Track
	tr.Add(10, midi.NoteOn(0, 60, 100))
	tr.Add(0, midi.ControlChange(0, 7, 100))
	tr.Add(0, midi.NoteOff(0, 59))
	tr.Add(5, midi.NoteOn(0, 61, 100))
	SortNoteOffFirst(tr)

	var statuses []byte
	var deltas []uint32
	for _, ev := range tr {
		statuses = append(statuses, ev.Message[0]&0xF0)
		deltas = append(deltas, ev.Delta)
	}
	if !slices.Equal(statuses, []byte{0x80, 0xB0, 0x90, 0x90}) {
		t.Fatalf("order: got % x", statuses)
	}
	if !slices.Equal(deltas, []uint32{10, 0, 0, 5}) {
		t.Fatalf("deltas: got %v", deltas)
	}
}
