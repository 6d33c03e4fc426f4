package synth

import (
	"log"

	"gitlab.com/gomidi/midi/v2"

	"github.com/haibingtown/alphaSynth/internal/processor"
	"github.com/haibingtown/alphaSynth/internal/sequencer"
)

// Sender is the part of a MIDI output port used here; drivers.Out implements it.
type Sender interface {
	Send(data []byte) error
}

// PortSynth forwards events to an external MIDI device. It produces silence,
// so the sink it renders into is only used for pacing.
type PortSynth struct {
	out     Sender
	options Options
	queue   [][]sequencer.Event
	tracker *processor.NoteTracker

	// sendErrors counts failed sends, logged once per Synthesize call.
	sendErrors int
}

// NewPortSynth returns a synthesizer sending to out.
func NewPortSynth(out Sender, options Options) *PortSynth {
	return &PortSynth{
		out:     out,
		options: options,
		queue:   make([][]sequencer.Event, options.MicroBufferCount),
		tracker: processor.NewNoteTracker(true),
	}
}

func (p *PortSynth) SampleRate() int       { return p.options.SampleRate }
func (p *PortSynth) MicroBufferSize() int  { return p.options.MicroBufferSize }
func (p *PortSynth) MicroBufferCount() int { return p.options.MicroBufferCount }

func (p *PortSynth) send(msg midi.Message) {
	if err := p.out.Send(msg); err != nil {
		p.sendErrors++
		return
	}
	p.tracker.Handle(msg)
}

// ProcessMessage forwards state changes only; a device cannot render silently,
// so notes are dropped.
func (p *PortSynth) ProcessMessage(msg midi.Message) {
	if !msg.IsOneOf(midi.ProgramChangeMsg, midi.ControlChangeMsg, midi.PitchBendMsg, midi.AfterTouchMsg) {
		return
	}
	p.send(msg)
}

func (p *PortSynth) Dispatch(bufferIndex int, ev sequencer.Event) {
	if bufferIndex < 0 || bufferIndex >= len(p.queue) {
		bufferIndex = len(p.queue) - 1
	}
	p.queue[bufferIndex] = append(p.queue[bufferIndex], ev)
}

// AllNotesOff ends every note this synthesizer started.
func (p *PortSynth) AllNotesOff(immediate bool) {
	for i := range p.queue {
		p.queue[i] = p.queue[i][:0]
	}
	if p.tracker.Playing() {
		for _, msg := range processor.PanicMessages(p.tracker) {
			if err := p.out.Send(msg); err != nil {
				p.sendErrors++
			}
		}
	}
	if immediate {
		for ch := uint8(0); ch < numChannels; ch++ {
			// All sound off.
			p.send(midi.ControlChange(ch, 120, 0))
		}
	}
	p.tracker.Reset()
}

func (p *PortSynth) ResetPrograms() {
	for ch := uint8(0); ch < numChannels; ch++ {
		p.send(midi.ControlChange(ch, 0x00, 0))
		p.send(midi.ProgramChange(ch, 0))
	}
}

func (p *PortSynth) ResetControls() {
	for ch := uint8(0); ch < numChannels; ch++ {
		p.send(midi.ControlChange(ch, 0x79, 0))
	}
}

// Synthesize sends the queued events and leaves left and right silent.
func (p *PortSynth) Synthesize(left, right []float32) {
	for i := range p.queue {
		for _, ev := range p.queue[i] {
			switch {
			case ev.Metronome:
				if p.options.MetronomeVolume > 0 {
					velocity := uint8(max(p.options.MetronomeVolume*127, 1))
					p.send(midi.NoteOn(MetronomeChannel, MetronomeKey, velocity))
					p.send(midi.NoteOff(MetronomeChannel, MetronomeKey))
				}
			case len(ev.Message) > 0 && ev.Message[0] >= 0x80 && ev.Message[0] < 0xF0:
				p.send(ev.Message)
			}
		}
		p.queue[i] = p.queue[i][:0]
	}
	clear(left)
	clear(right)
	if p.sendErrors > 0 {
		log.Printf("Failed to send %d MIDI messages.", p.sendErrors)
		p.sendErrors = 0
	}
}
