// Package synth contains the synthesizers the sequencer can drive.
package synth

import (
	"fmt"
	"io"

	"github.com/sinshu/go-meltysynth/meltysynth"
	"gitlab.com/gomidi/midi/v2"

	"github.com/haibingtown/alphaSynth/internal/sequencer"
)

const (
	// MetronomeChannel is the GM percussion channel.
	MetronomeChannel = 9
	// MetronomeKey is the GM2 metronome click.
	MetronomeKey = 33

	numChannels = 16
)

// Renderer is a sequencer.Synthesizer that also produces audio, one buffer
// pass of MicroBufferCount*MicroBufferSize samples at a time.
type Renderer interface {
	sequencer.Synthesizer

	// Synthesize plays the events dispatched since the last call and fills
	// left and right, which must hold one buffer pass.
	Synthesize(left, right []float32)
}

// voiceEngine is the part of meltysynth.Synthesizer used here.
type voiceEngine interface {
	ProcessMidiMessage(channel int32, command int32, data1 int32, data2 int32)
	NoteOffAll(immediate bool)
	Render(left []float32, right []float32)
}

// Options configure the buffer geometry and the metronome.
type Options struct {
	SampleRate       int
	MicroBufferSize  int
	MicroBufferCount int

	// MetronomeVolume is the click velocity as a fraction; 0 disables the metronome.
	MetronomeVolume float64

	// MasterVolume scales the output; 0 keeps the SoundFont default.
	MasterVolume float64
}

// Synth renders with a SoundFont.
type Synth struct {
	engine  voiceEngine
	options Options

	// queue holds the dispatched events per micro buffer.
	queue [][]sequencer.Event

	// clickLeft is the number of samples the current click still sounds.
	clickLeft int
}

// New loads a SoundFont and returns a synthesizer rendering it.
func New(soundFont io.Reader, options Options) (*Synth, error) {
	sf, err := meltysynth.NewSoundFont(soundFont)
	if err != nil {
		return nil, fmt.Errorf("could not load soundfont: %w", err)
	}
	settings := meltysynth.NewSynthesizerSettings(int32(options.SampleRate))
	engine, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("could not create synthesizer: %w", err)
	}
	if options.MasterVolume > 0 {
		engine.MasterVolume = float32(options.MasterVolume)
	}
	return newSynth(engine, options), nil
}

func newSynth(engine voiceEngine, options Options) *Synth {
	return &Synth{
		engine:  engine,
		options: options,
		queue:   make([][]sequencer.Event, options.MicroBufferCount),
	}
}

func (s *Synth) SampleRate() int       { return s.options.SampleRate }
func (s *Synth) MicroBufferSize() int  { return s.options.MicroBufferSize }
func (s *Synth) MicroBufferCount() int { return s.options.MicroBufferCount }

// BufferSize returns the number of samples per channel of one buffer pass.
func (s *Synth) BufferSize() int {
	return s.options.MicroBufferSize * s.options.MicroBufferCount
}

// ProcessMessage applies a state change immediately. Notes would start
// voices, so they are dropped along with non-channel messages.
func (s *Synth) ProcessMessage(msg midi.Message) {
	if !msg.IsOneOf(midi.ProgramChangeMsg, midi.ControlChangeMsg, midi.PitchBendMsg, midi.AfterTouchMsg, midi.PolyAfterTouchMsg) {
		return
	}
	s.apply(msg)
}

// apply sends a channel message to the engine. Other messages are ignored.
func (s *Synth) apply(msg midi.Message) {
	if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 {
		return
	}
	var data1, data2 int32
	if len(msg) > 1 {
		data1 = int32(msg[1])
	}
	if len(msg) > 2 {
		data2 = int32(msg[2])
	}
	s.engine.ProcessMidiMessage(int32(msg[0]&0x0F), int32(msg[0]&0xF0), data1, data2)
}

// Dispatch queues an event for the given micro buffer of the next Synthesize call.
func (s *Synth) Dispatch(bufferIndex int, ev sequencer.Event) {
	if bufferIndex < 0 || bufferIndex >= len(s.queue) {
		bufferIndex = len(s.queue) - 1
	}
	s.queue[bufferIndex] = append(s.queue[bufferIndex], ev)
}

func (s *Synth) AllNotesOff(immediate bool) {
	for i := range s.queue {
		s.queue[i] = s.queue[i][:0]
	}
	s.engine.NoteOffAll(immediate)
	s.clickLeft = 0
}

// ResetPrograms selects bank 0, program 0 on every channel.
func (s *Synth) ResetPrograms() {
	for ch := int32(0); ch < numChannels; ch++ {
		s.engine.ProcessMidiMessage(ch, 0xB0, 0x00, 0)
		s.engine.ProcessMidiMessage(ch, 0xC0, 0, 0)
	}
}

// ResetControls sends reset all controllers to every channel.
func (s *Synth) ResetControls() {
	for ch := int32(0); ch < numChannels; ch++ {
		s.engine.ProcessMidiMessage(ch, 0xB0, 0x79, 0)
	}
}

func (s *Synth) click() {
	if s.options.MetronomeVolume <= 0 {
		return
	}
	velocity := int32(s.options.MetronomeVolume * 127)
	if velocity < 1 {
		velocity = 1
	}
	s.engine.ProcessMidiMessage(MetronomeChannel, 0x90, MetronomeKey, velocity)
	s.clickLeft = s.options.SampleRate / 20
}

// ageClick releases the click once it has sounded long enough.
func (s *Synth) ageClick(samples int) {
	if s.clickLeft <= 0 {
		return
	}
	s.clickLeft -= samples
	if s.clickLeft <= 0 {
		s.engine.ProcessMidiMessage(MetronomeChannel, 0x80, MetronomeKey, 0)
	}
}

// Synthesize renders one buffer pass, playing each micro buffer's events first.
func (s *Synth) Synthesize(left, right []float32) {
	size := s.options.MicroBufferSize
	for i := range s.queue {
		for _, ev := range s.queue[i] {
			if ev.Metronome {
				s.click()
				continue
			}
			s.apply(ev.Message)
		}
		s.queue[i] = s.queue[i][:0]
		begin, end := i*size, (i+1)*size
		if end > len(left) || end > len(right) {
			break
		}
		s.engine.Render(left[begin:end], right[begin:end])
		s.ageClick(size)
	}
}
