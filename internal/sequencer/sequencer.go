package sequencer

import (
	"fmt"
	"log"
	"math"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/haibingtown/alphaSynth/internal/processor"
)

// seekEpsilon is the distance in ms below which a seek does not move the cursor.
const seekEpsilon = 1e-6

// PlaybackRange limits playback and seeking to [StartTick, EndTick].
type PlaybackRange struct {
	StartTick int
	EndTick   int
}

// Sequencer dispatches timeline events to a Synthesizer as rendering advances.
//
// It is not safe for concurrent use. All calls must be serialized by the caller,
// typically by the goroutine that renders audio.
type Sequencer struct {
	synth Synthesizer
	tl    *timeline

	// currentTime is the position up to which events have been handed to the
	// synthesizer, at speed 1. It is ahead of what is audible.
	currentTime float64
	eventIndex  int

	looping bool
	speed   float64

	playbackRange  *PlaybackRange
	rangeStartTime float64
	rangeEndTime   float64

	finished []*func()
}

// New returns a sequencer feeding the given synthesizer.
func New(synth Synthesizer) *Sequencer {
	return &Sequencer{
		synth: synth,
		speed: 1,
	}
}

// LoadMidi replaces the current score and rewinds to the start, or to the
// start of the playback range if one is set.
func (s *Sequencer) LoadMidi(mid *smf.SMF) error {
	if mid == nil || len(mid.Tracks) == 0 {
		return fmt.Errorf("%w: no tracks", InvalidScoreError)
	}
	ticks, ok := mid.TimeFormat.(smf.MetricTicks)
	if !ok {
		return fmt.Errorf("%w: unsupported time format %v", InvalidScoreError, mid.TimeFormat)
	}

	track := mid.Tracks[0]
	if len(mid.Tracks) > 1 || trackEndTick(track) == 0 {
		var err error
		track, err = processor.CombineTracks(mid)
		if err != nil {
			return fmt.Errorf("could not combine tracks: %w", err)
		}
	}

	tl, err := buildTimeline(track, int(ticks))
	if err != nil {
		return err
	}

	s.tl = tl
	s.currentTime = 0
	s.eventIndex = 0
	if s.playbackRange != nil {
		s.SetPlaybackRange(s.playbackRange)
		// Clamps into the range.
		s.Seek(0)
	}
	log.Printf("Loaded score: %d events, %d tempo changes, %d ticks, %.0f ms.", len(tl.events), len(tl.tempo.changes)-1, tl.endTick, tl.endTimeMs)
	return nil
}

func trackEndTick(track smf.Track) int64 {
	var tick int64
	for _, ev := range track {
		tick += int64(ev.Delta)
	}
	return tick
}

// Loaded returns whether a score is loaded.
func (s *Sequencer) Loaded() bool {
	return s.tl != nil
}

// Division returns the ticks per quarter note of the loaded score.
func (s *Sequencer) Division() int {
	if s.tl == nil {
		return 0
	}
	return s.tl.tempo.division
}

// TempoChanges returns the tempo map, starting with the default tempo.
func (s *Sequencer) TempoChanges() []TempoChange {
	if s.tl == nil {
		return nil
	}
	return append([]TempoChange(nil), s.tl.tempo.changes...)
}

// Events returns the timeline. The slice must not be modified.
func (s *Sequencer) Events() []Event {
	if s.tl == nil {
		return nil
	}
	return s.tl.events
}

// EndTick returns the duration of the score in ticks.
func (s *Sequencer) EndTick() int {
	if s.tl == nil {
		return 0
	}
	return s.tl.endTick
}

// EndTime returns the duration of the score in ms at the current speed.
func (s *Sequencer) EndTime() float64 {
	if s.tl == nil {
		return 0
	}
	return s.tl.endTimeMs / s.speed
}

// Position returns the synthesis position in ms at the current speed.
func (s *Sequencer) Position() float64 {
	return s.currentTime / s.speed
}

func (s *Sequencer) PlaybackSpeed() float64 {
	return s.speed
}

// SetPlaybackSpeed changes the playback speed factor; 1 is normal speed.
func (s *Sequencer) SetPlaybackSpeed(speed float64) error {
	if !(speed > 0) || math.IsInf(speed, 0) {
		return fmt.Errorf("%w: got %v", InvalidSpeedError, speed)
	}
	s.speed = speed
	return nil
}

func (s *Sequencer) IsLooping() bool {
	return s.looping
}

func (s *Sequencer) SetLooping(looping bool) {
	s.looping = looping
}

// PlaybackRange returns the active range, or nil.
func (s *Sequencer) PlaybackRange() *PlaybackRange {
	if s.playbackRange == nil {
		return nil
	}
	r := *s.playbackRange
	return &r
}

// SetPlaybackRange sets or, given nil, clears the playback range.
func (s *Sequencer) SetPlaybackRange(r *PlaybackRange) {
	if r == nil {
		s.playbackRange = nil
		return
	}
	pr := *r
	if pr.EndTick < pr.StartTick {
		pr.StartTick, pr.EndTick = pr.EndTick, pr.StartTick
	}
	s.playbackRange = &pr
	if s.tl != nil {
		s.rangeStartTime = s.tl.tempo.tickToTime(pr.StartTick, 1)
		s.rangeEndTime = s.tl.tempo.tickToTime(pr.EndTick, 1)
	}
}

// TickToTime converts a tick position to ms at the current speed.
func (s *Sequencer) TickToTime(tick int) float64 {
	if s.tl == nil {
		return 0
	}
	return s.tl.tempo.tickToTime(tick, s.speed)
}

// TimeToTick converts a ms position at the current speed to ticks.
func (s *Sequencer) TimeToTick(timeMs float64) int {
	if s.tl == nil {
		return 0
	}
	return s.tl.tempo.timeToTick(timeMs, s.speed)
}

// OnFinished registers a callback run whenever the end of the score or range
// is reached. The returned function unregisters it.
func (s *Sequencer) OnFinished(f func()) (cancel func()) {
	p := &f
	s.finished = append(s.finished, p)
	return func() {
		for i, q := range s.finished {
			if q == p {
				s.finished = append(s.finished[:i], s.finished[i+1:]...)
				return
			}
		}
	}
}

// Seek moves the cursor to the given position in ms at the current speed.
func (s *Sequencer) Seek(timeMs float64) {
	if s.tl == nil {
		return
	}
	if timeMs < 0 {
		timeMs = 0
	}

	// Map to speed 1.
	timeMs *= s.speed

	if s.playbackRange != nil {
		if timeMs < s.rangeStartTime {
			timeMs = s.rangeStartTime
		} else if timeMs > s.rangeEndTime {
			timeMs = s.rangeEndTime
		}
	}

	switch {
	case math.Abs(timeMs-s.currentTime) < seekEpsilon:
		return
	case timeMs > s.currentTime:
		s.silentProcess(timeMs - s.currentTime)
	default:
		// Note and controller state cannot be undone, so restart and replay.
		s.rewind()
		s.silentProcess(timeMs)
	}
}

// rewind silences the synthesizer and moves the cursor to 0.
func (s *Sequencer) rewind() {
	s.currentTime = 0
	s.eventIndex = 0
	s.synth.AllNotesOff(true)
	s.synth.ResetPrograms()
	s.synth.ResetControls()
}

// silentProcess advances by ms, applying all non-metronome events without audio.
func (s *Sequencer) silentProcess(ms float64) {
	if ms <= 0 {
		return
	}
	s.currentTime += ms
	events := s.tl.events
	for s.eventIndex < len(events) && events[s.eventIndex].TimeMs < s.currentTime {
		ev := events[s.eventIndex]
		if !ev.Metronome {
			s.synth.ProcessMessage(ev.Message)
		}
		s.eventIndex++
	}
}

// FillMicroBuffers advances by one buffer pass and dispatches all events due.
func (s *Sequencer) FillMicroBuffers() {
	if s.tl == nil {
		return
	}
	msPerBuffer := float64(s.synth.MicroBufferSize()) / float64(s.synth.SampleRate()) * 1000 * s.speed
	events := s.tl.events
	for i := 0; i < s.synth.MicroBufferCount(); i++ {
		s.currentTime += msPerBuffer
		for s.eventIndex < len(events) && events[s.eventIndex].TimeMs < s.currentTime {
			s.synth.Dispatch(i, events[s.eventIndex])
			s.eventIndex++
		}
	}
}

// CheckForStop rewinds when the end of the score or range has been reached,
// then notifies the finished callbacks. It returns whether that happened.
func (s *Sequencer) CheckForStop() bool {
	if s.tl == nil {
		return false
	}
	switch {
	case s.playbackRange == nil && s.currentTime >= s.tl.endTimeMs:
		s.rewind()
	case s.playbackRange != nil && s.currentTime >= s.rangeEndTime:
		s.rewind()
		// Replay up to the range start so the state is right when looping.
		s.silentProcess(s.rangeStartTime)
	default:
		return false
	}
	for _, f := range append([]*func(){}, s.finished...) {
		(*f)()
	}
	return true
}

// SetChannelProgram changes the first program change of the given channel.
// Channels without a program change are left alone.
func (s *Sequencer) SetChannelProgram(channel, program uint8) {
	if s.tl == nil {
		return
	}
	i, found := s.tl.firstProgram[channel]
	if !found {
		return
	}
	s.tl.events[i].Message[1] = program & 0x7F
}
