package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

var (
	audioContextOnce sync.Once
	audioContext     *audio.Context
	audioSampleRate  int
)

// sharedAudioContext returns the process wide audio context; ebiten allows only one.
func sharedAudioContext(sampleRate int) (*audio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = audio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// EbitenSink plays samples on the default audio device.
type EbitenSink struct {
	requester

	sampleRate int
	speed      float64
	// watermark is the number of buffered frames below which more are requested.
	watermark int

	mu       sync.Mutex
	frames   []float32 // Interleaved stereo.
	finished bool
	player   *audio.Player
}

// NewEbitenSink returns a sink keeping at least watermark frames buffered.
func NewEbitenSink(sampleRate, watermark int) *EbitenSink {
	return &EbitenSink{
		requester:  newRequester(),
		sampleRate: sampleRate,
		speed:      1,
		watermark:  watermark,
	}
}

// Read implements io.Reader for ebiten's float32 player. It never blocks;
// missing samples are played as silence.
func (s *EbitenSink) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := len(p) / 8
	have := min(want, len(s.frames)/2)
	for i := 0; i < have*2; i++ {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s.frames[i]))
	}
	s.frames = s.frames[have*2:]
	if s.finished && len(s.frames) == 0 {
		if have == 0 {
			return 0, io.EOF
		}
		return have * 8, nil
	}
	clear(p[have*8 : want*8])
	if len(s.frames)/2 < s.watermark {
		s.request()
	}
	return want * 8, nil
}

func (s *EbitenSink) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = false
	if s.player == nil {
		ctx, err := sharedAudioContext(s.sampleRate)
		if err != nil {
			return err
		}
		pl, err := ctx.NewPlayerF32(s)
		if err != nil {
			return fmt.Errorf("could not create audio player: %w", err)
		}
		s.player = pl
	}
	s.player.Play()
	s.request()
	return nil
}

func (s *EbitenSink) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player != nil {
		s.player.Pause()
	}
	s.drain()
	return nil
}

func (s *EbitenSink) AddSamples(left, right []float32) error {
	if len(left) != len(right) {
		return fmt.Errorf("channel length mismatch: %d != %d", len(left), len(right))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range left {
		s.frames = append(s.frames, left[i], right[i])
	}
	if len(s.frames)/2 < s.watermark {
		s.request()
	}
	return nil
}

func (s *EbitenSink) Seek(positionMs float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = s.frames[:0]
}

// SetPlaybackSpeed drops the buffered samples so the new speed is heard
// within one buffer pass.
func (s *EbitenSink) SetPlaybackSpeed(speed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if speed == s.speed {
		return
	}
	s.speed = speed
	s.frames = s.frames[:0]
	s.request()
}

// Buffered returns how long the samples not yet handed to the device will play.
func (s *EbitenSink) Buffered() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Duration(len(s.frames)/2) * time.Second / time.Duration(s.sampleRate)
}

func (s *EbitenSink) SequencerFinished() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
}

func (s *EbitenSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil
	}
	err := s.player.Close()
	s.player = nil
	return err
}
