package output

import (
	"fmt"
	"sync"
	"time"
)

// ClockSink discards samples but asks for them at the pace they would be
// played. Used when the audio goes somewhere else, e.g. a MIDI device.
type ClockSink struct {
	requester

	sampleRate int
	now        func() time.Time

	mu       sync.Mutex
	playing  bool
	deadline time.Time
	timer    *time.Timer
}

// NewClockSink returns a sink paced at sampleRate.
func NewClockSink(sampleRate int) *ClockSink {
	return &ClockSink{
		requester:  newRequester(),
		sampleRate: sampleRate,
		now:        time.Now,
	}
}

func (c *ClockSink) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = true
	c.deadline = c.now()
	c.request()
	return nil
}

func (c *ClockSink) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
	c.stopTimer()
	c.drain()
	return nil
}

func (c *ClockSink) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// AddSamples advances the clock and requests the next pass once the wall
// clock has caught up with the previous one.
func (c *ClockSink) AddSamples(left, right []float32) error {
	if len(left) != len(right) {
		return fmt.Errorf("channel length mismatch: %d != %d", len(left), len(right))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return nil
	}
	now := c.now()
	// Never build up more than one pass of lag.
	if c.deadline.Before(now) {
		c.deadline = now
	}
	c.deadline = c.deadline.Add(time.Duration(len(left)) * time.Second / time.Duration(c.sampleRate))
	c.stopTimer()
	c.timer = time.AfterFunc(c.deadline.Sub(now), c.request)
	return nil
}

func (c *ClockSink) Seek(positionMs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadline = c.now()
}

// SetPlaybackSpeed does nothing; pacing is by output samples, whatever the speed.
func (c *ClockSink) SetPlaybackSpeed(speed float64) {}

func (c *ClockSink) SequencerFinished() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
	c.stopTimer()
}

func (c *ClockSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playing = false
	c.stopTimer()
	return nil
}
