package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// WAVSink collects every sample and writes a float32 WAV file on Close.
// It requests samples as fast as they can be rendered.
type WAVSink struct {
	requester

	w          io.Writer
	sampleRate int
	playing    bool
	frames     []float32 // Interleaved stereo.
	closed     bool
}

// NewWAVSink returns a sink writing to w.
func NewWAVSink(w io.Writer, sampleRate int) *WAVSink {
	return &WAVSink{
		requester:  newRequester(),
		w:          w,
		sampleRate: sampleRate,
	}
}

func (s *WAVSink) Play() error {
	s.playing = true
	s.request()
	return nil
}

func (s *WAVSink) Pause() error {
	s.playing = false
	s.drain()
	return nil
}

func (s *WAVSink) AddSamples(left, right []float32) error {
	if len(left) != len(right) {
		return fmt.Errorf("channel length mismatch: %d != %d", len(left), len(right))
	}
	for i := range left {
		s.frames = append(s.frames, left[i], right[i])
	}
	if s.playing {
		s.request()
	}
	return nil
}

// Seek does nothing; rendered audio is already part of the file.
func (s *WAVSink) Seek(positionMs float64) {}

// SetPlaybackSpeed does nothing; the file has no notion of speed.
func (s *WAVSink) SetPlaybackSpeed(speed float64) {}

func (s *WAVSink) SequencerFinished() {
	s.playing = false
	s.drain()
}

// Frames returns the number of stereo frames collected so far.
func (s *WAVSink) Frames() int {
	return len(s.frames) / 2
}

func (s *WAVSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_, err := s.w.Write(EncodeWAVFloat32LE(s.frames, s.sampleRate, 2))
	if err != nil {
		return fmt.Errorf("could not write WAV data: %w", err)
	}
	return nil
}

// EncodeWAVFloat32LE returns a complete WAV file of interleaved float32 samples.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	out := make([]byte, 44+dataSize)
	copy(out[0:], "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(36+dataSize))
	copy(out[8:], "WAVE")
	copy(out[12:], "fmt ")
	binary.LittleEndian.PutUint32(out[16:], 16)
	// Format 3 is IEEE float.
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(sampleRate*channels*4))
	binary.LittleEndian.PutUint16(out[32:], uint16(channels*4))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], "data")
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, v := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(v))
	}
	return out
}
