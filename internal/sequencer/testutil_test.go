package sequencer

import (
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// at is a message at an absolute tick.
type at struct {
	tick uint32
	msg  []byte
}

// score builds a single track score; evs must be sorted by tick.
func score(division uint16, endTick uint32, evs ...at) *smf.SMF {
	var tr smf.Track
	var last uint32
	for _, e := range evs {
		tr.Add(e.tick-last, e.msg)
		last = e.tick
	}
	tr.Close(endTick - last)
	return &smf.SMF{
		TimeFormat: smf.MetricTicks(division),
		Tracks:     []smf.Track{tr},
	}
}

type dispatched struct {
	buffer int
	ev     Event
}

// recordingSynth records every call made by the sequencer.
type recordingSynth struct {
	sampleRate, microBufferSize, microBufferCount int

	calls      []string
	processed  []midi.Message
	dispatched []dispatched
}

func newRecordingSynth() *recordingSynth {
	// 100 ms per buffer pass.
	return &recordingSynth{sampleRate: 1000, microBufferSize: 10, microBufferCount: 10}
}

func (r *recordingSynth) SampleRate() int       { return r.sampleRate }
func (r *recordingSynth) MicroBufferSize() int  { return r.microBufferSize }
func (r *recordingSynth) MicroBufferCount() int { return r.microBufferCount }

func (r *recordingSynth) ProcessMessage(msg midi.Message) {
	r.calls = append(r.calls, "process")
	r.processed = append(r.processed, msg)
}

func (r *recordingSynth) Dispatch(bufferIndex int, ev Event) {
	r.calls = append(r.calls, "dispatch")
	r.dispatched = append(r.dispatched, dispatched{bufferIndex, ev})
}

func (r *recordingSynth) AllNotesOff(immediate bool) {
	r.calls = append(r.calls, "allNotesOff")
}

func (r *recordingSynth) ResetPrograms() {
	r.calls = append(r.calls, "resetPrograms")
}

func (r *recordingSynth) ResetControls() {
	r.calls = append(r.calls, "resetControls")
}

func (r *recordingSynth) reset() {
	r.calls = nil
	r.processed = nil
	r.dispatched = nil
}

func (r *recordingSynth) count(call string) int {
	n := 0
	for _, c := range r.calls {
		if c == call {
			n++
		}
	}
	return n
}
