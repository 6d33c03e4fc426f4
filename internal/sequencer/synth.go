package sequencer

import (
	"errors"

	"gitlab.com/gomidi/midi/v2"
)

// InvalidScoreError is returned when a score cannot be sequenced.
var InvalidScoreError = errors.New("invalid score")

// InvalidSpeedError is returned for non-positive playback speeds.
var InvalidSpeedError = errors.New("playback speed must be positive")

// Synthesizer is what the sequencer feeds events into.
type Synthesizer interface {
	// SampleRate is the output sample rate in Hz.
	SampleRate() int

	// MicroBufferSize is the number of samples per micro buffer.
	MicroBufferSize() int

	// MicroBufferCount is the number of micro buffers per buffer pass.
	MicroBufferCount() int

	// ProcessMessage applies a message right away without producing audio for it.
	// Used while seeking.
	ProcessMessage(msg midi.Message)

	// Dispatch schedules an event to be played in the given micro buffer.
	Dispatch(bufferIndex int, ev Event)

	AllNotesOff(immediate bool)
	ResetPrograms()
	ResetControls()
}
