package processor

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestForceTempo(t *testing.T) {
	var a, b smf.Track
	a.Add(0, smf.MetaTempo(100))
	a.Add(480, smf.MetaTempo(50))
	a.Add(0, midi.NoteOn(0, 60, 100))
	a.Close(0)
	b.Add(960, smf.MetaTempo(200))
	b.Add(0, midi.NoteOff(0, 60))
	b.Close(0)
	mid := &smf.SMF{TimeFormat: smf.MetricTicks(480), Tracks: []smf.Track{a, b}}

	if err := ForceTempo(mid, 90); err != nil {
		t.Fatalf("ForceTempo: %v", err)
	}
	var tempos []float64
	var tempoTicks []int64
	notes := 0
	err := ForEachEventWithTime(mid, func(tick int64, track int, msg smf.Message) error {
		var bpm float64
		if msg.GetMetaTempo(&bpm) {
			tempos = append(tempos, bpm)
			tempoTicks = append(tempoTicks, tick)
		}
		if msg.Is(midi.NoteOnMsg) || msg.Is(midi.NoteOffMsg) {
			notes++
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ForEachEventWithTime: %v", err)
	}
	if len(tempos) != 1 || tempoTicks[0] != 0 || tempos[0] < 89.99 || tempos[0] > 90.01 {
		t.Fatalf("tempos: got %v at %v, want [90] at [0]", tempos, tempoTicks)
	}
	if notes != 2 {
		t.Fatalf("got %d notes, want 2", notes)
	}
	if got := LastTick(mid); got != 960 {
		t.Fatalf("last tick: got %d, want 960", got)
	}
}

func TestForceTempoRejects(t *testing.T) {
	if err := ForceTempo(&smf.SMF{TimeFormat: smf.MetricTicks(480)}, 120); err == nil {
		t.Fatalf("no error without tracks")
	}
	var tr smf.Track
	tr.Close(0)
	if err := ForceTempo(&smf.SMF{TimeFormat: smf.MetricTicks(480), Tracks: []smf.Track{tr}}, 0); err == nil {
		t.Fatalf("no error for 0 bpm")
	}
}
