package player

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"reflect"

	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/haibingtown/alphaSynth/internal/output"
	"github.com/haibingtown/alphaSynth/internal/sequencer"
	"github.com/haibingtown/alphaSynth/internal/synth"
)

// ChannelProgram replaces the first program change of a channel.
type ChannelProgram struct {
	Channel uint8
	Program uint8
}

type Command struct {
	// Load replaces the score. Playback stops.
	Load *smf.SMF

	// Play starts or resumes playback.
	Play bool

	// Pause pauses playback.
	Pause bool

	// Seek moves to the given position in ms at the current speed.
	Seek *float64

	// PlaybackSpeed sets the speed to a new factor.
	PlaybackSpeed float64

	// Looping enables or disables looping.
	Looping *bool

	// Range limits playback to a tick range.
	Range *sequencer.PlaybackRange

	// ClearRange removes the playback range.
	ClearRange bool

	// ChannelProgram changes the instrument of a channel.
	ChannelProgram *ChannelProgram

	// Quit quits the main loop.
	Quit bool
}

// IsZero returns if the command is an empty message. If so, this likely indicates a closed channel.
func (c Command) IsZero() bool {
	return reflect.DeepEqual(c, Command{})
}

type NotificationKind int

const (
	// PositionChanged is sent after every buffer pass and seek.
	PositionChanged NotificationKind = iota
	// Finished is sent whenever the end of the score or range is reached.
	Finished
	// ReadyChanged is sent when a score got loaded or failed to.
	ReadyChanged
	// Error reports a failed command. The backend keeps running.
	Error
)

func (k NotificationKind) String() string {
	switch k {
	case PositionChanged:
		return "positionChanged"
	case Finished:
		return "finished"
	case ReadyChanged:
		return "readyChanged"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("NotificationKind(%d)", int(k))
	}
}

type Notification struct {
	Kind NotificationKind

	// Position is the synthesis position in ms at the current speed.
	Position float64

	// Tick is Position converted to ticks.
	Tick int

	// EndTime is the length of the score in ms at the current speed.
	EndTime float64

	// Ready tells whether a score is loaded.
	Ready bool

	// Err is set for Error notifications.
	Err error
}

type Backend struct {
	// Commands can be used to send commands to the backend.
	Commands chan Command

	// Notifications receives position updates non-blockingly, and everything
	// else blockingly.
	Notifications chan Notification

	seq   *sequencer.Sequencer
	synth synth.Renderer
	sink  output.Sink

	// left and right hold one buffer pass.
	left, right []float32

	playing bool

	cancelFinished func()
}

type Options struct {
	// Synth renders the audio.
	Synth synth.Renderer

	// Sink receives the audio.
	Sink output.Sink

	// Looping restarts playback at the end.
	Looping bool

	// PlaybackSpeed is the initial speed factor; 0 means normal speed.
	PlaybackSpeed float64
}

func NewBackend(options *Options) (*Backend, error) {
	seq := sequencer.New(options.Synth)
	if options.PlaybackSpeed != 0 {
		if err := seq.SetPlaybackSpeed(options.PlaybackSpeed); err != nil {
			return nil, err
		}
	}
	seq.SetLooping(options.Looping)
	n := options.Synth.MicroBufferSize() * options.Synth.MicroBufferCount()
	b := &Backend{
		Commands:      make(chan Command, 10),
		Notifications: make(chan Notification, 100),
		seq:           seq,
		synth:         options.Synth,
		sink:          options.Sink,
		left:          make([]float32, n),
		right:         make([]float32, n),
	}
	b.cancelFinished = seq.OnFinished(b.sequencerFinished)
	return b, nil
}

// Apply runs a command right away instead of queueing it. It is meant for
// setting up playback before Loop starts and must not be called while Loop runs.
func (b *Backend) Apply(cmd Command) error {
	return b.handleCommand(cmd)
}

func (b *Backend) notify(n Notification) {
	b.Notifications <- n
}

func (b *Backend) sendPosition() {
	select {
	case b.Notifications <- Notification{
		Kind:     PositionChanged,
		Position: b.seq.Position(),
		Tick:     b.seq.TimeToTick(b.seq.Position()),
		EndTime:  b.seq.EndTime(),
		Ready:    b.seq.Loaded(),
	}:
	default:
		// Nobody listens; the next one will do.
	}
}

func (b *Backend) sendError(err error) {
	log.Printf("Command failed: %v.", err)
	b.notify(Notification{Kind: Error, Err: err, Ready: b.seq.Loaded()})
}

func (b *Backend) sequencerFinished() {
	b.notify(Notification{
		Kind:     Finished,
		Position: b.seq.Position(),
		EndTime:  b.seq.EndTime(),
		Ready:    true,
	})
}

var SigIntError = errors.New("SIGINT caught")
var QuitError = errors.New("intentionally quitting")
var NotLoadedError = errors.New("no score loaded")

var sigInt = make(chan os.Signal, 1)

func init() {
	signal.Notify(sigInt, os.Interrupt)
}

func (b *Backend) stop() {
	if !b.playing {
		return
	}
	b.playing = false
	if err := b.sink.Pause(); err != nil {
		log.Printf("Could not pause output: %v.", err)
	}
	b.synth.AllNotesOff(true)
}

func (b *Backend) handleCommand(cmd Command) error {
	switch {
	case cmd.Quit, cmd.IsZero():
		return QuitError
	case cmd.Load != nil:
		b.stop()
		err := b.seq.LoadMidi(cmd.Load)
		if err != nil {
			b.notify(Notification{Kind: ReadyChanged, Ready: b.seq.Loaded()})
			return fmt.Errorf("could not load score: %w", err)
		}
		b.sink.Seek(b.seq.Position())
		b.notify(Notification{Kind: ReadyChanged, Ready: true, EndTime: b.seq.EndTime()})
		return nil
	case cmd.Play:
		if !b.seq.Loaded() {
			return NotLoadedError
		}
		if b.playing {
			return nil
		}
		b.playing = true
		return b.sink.Play()
	case cmd.Pause:
		b.stop()
		return nil
	case cmd.Seek != nil:
		if !b.seq.Loaded() {
			return NotLoadedError
		}
		b.seq.Seek(*cmd.Seek)
		b.sink.Seek(b.seq.Position())
		b.sendPosition()
		return nil
	case cmd.PlaybackSpeed != 0:
		if err := b.seq.SetPlaybackSpeed(cmd.PlaybackSpeed); err != nil {
			return err
		}
		b.sink.SetPlaybackSpeed(cmd.PlaybackSpeed)
		b.sendPosition()
		return nil
	case cmd.Looping != nil:
		b.seq.SetLooping(*cmd.Looping)
		return nil
	case cmd.Range != nil:
		b.seq.SetPlaybackRange(cmd.Range)
		// Move into the range if outside.
		pos := b.seq.Position()
		b.seq.Seek(pos)
		if b.seq.Position() != pos {
			b.sink.Seek(b.seq.Position())
		}
		b.sendPosition()
		return nil
	case cmd.ClearRange:
		b.seq.SetPlaybackRange(nil)
		return nil
	case cmd.ChannelProgram != nil:
		b.seq.SetChannelProgram(cmd.ChannelProgram.Channel, cmd.ChannelProgram.Program)
		return nil
	default:
		return fmt.Errorf("unrecognized command: %+v", cmd)
	}
}

// render produces one buffer pass and hands it to the sink.
func (b *Backend) render() error {
	b.seq.FillMicroBuffers()
	b.synth.Synthesize(b.left, b.right)
	if err := b.sink.AddSamples(b.left, b.right); err != nil {
		return fmt.Errorf("could not output samples: %w", err)
	}
	if b.seq.CheckForStop() && !b.seq.IsLooping() {
		b.playing = false
		b.sink.SequencerFinished()
	}
	b.sendPosition()
	return nil
}

// Loop runs the backend until Quit or SIGINT.
func (b *Backend) Loop() error {
	for {
		select {
		case <-sigInt:
			b.stop()
			return SigIntError
		case cmd := <-b.Commands:
			err := b.handleCommand(cmd)
			if errors.Is(err, QuitError) {
				b.stop()
				return err
			} else if err != nil {
				b.sendError(err)
			}
		case <-b.sink.SampleRequests():
			if !b.playing {
				continue
			}
			if err := b.render(); err != nil {
				b.stop()
				b.sendError(err)
			}
		}
	}
}

func (b *Backend) Close() error {
	b.cancelFinished()
	close(b.Notifications)
	return b.sink.Close()
}
