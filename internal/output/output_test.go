package output

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"
	"time"
)

func requested(s Sink) bool {
	select {
	case <-s.SampleRequests():
		return true
	default:
		return false
	}
}

func TestWAVSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewWAVSink(&buf, 1000)
	if requested(s) {
		t.Fatalf("request before Play")
	}
	if err := s.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !requested(s) {
		t.Fatalf("no request after Play")
	}
	if err := s.AddSamples([]float32{0.5, -0.5}, []float32{0.25, -0.25}); err != nil {
		t.Fatalf("AddSamples: %v", err)
	}
	if !requested(s) {
		t.Fatalf("no request after AddSamples")
	}
	if err := s.AddSamples([]float32{1}, []float32{}); err == nil {
		t.Fatalf("mismatched channels accepted")
	}
	s.SequencerFinished()
	if requested(s) {
		t.Fatalf("request after SequencerFinished")
	}
	if s.Frames() != 2 {
		t.Fatalf("frames: got %d, want 2", s.Frames())
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data := buf.Bytes()
	if len(data) != 44+4*4 {
		t.Fatalf("got %d bytes, want %d", len(data), 44+16)
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Fatalf("bad header % x", data[:44])
	}
	if format := binary.LittleEndian.Uint16(data[20:]); format != 3 {
		t.Fatalf("format: got %d, want 3", format)
	}
	if rate := binary.LittleEndian.Uint32(data[24:]); rate != 1000 {
		t.Fatalf("sample rate: got %d, want 1000", rate)
	}
	var samples []float32
	for i := 44; i < len(data); i += 4 {
		samples = append(samples, math.Float32frombits(binary.LittleEndian.Uint32(data[i:])))
	}
	want := []float32{0.5, 0.25, -0.5, -0.25}
	for i := range want {
		if samples[i] != want[i] {
			t.Fatalf("samples: got %v, want %v", samples, want)
		}
	}

	// Closing twice writes once.
	if err := s.Close(); err != nil || buf.Len() != len(data) {
		t.Fatalf("second Close: %v, %d bytes", err, buf.Len())
	}
}

func TestClockSinkPacing(t *testing.T) {
	s := NewClockSink(1000)
	defer s.Close()
	if err := s.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !requested(s) {
		t.Fatalf("no request after Play")
	}
	begin := time.Now()
	if err := s.AddSamples(make([]float32, 50), make([]float32, 50)); err != nil {
		t.Fatalf("AddSamples: %v", err)
	}
	if requested(s) {
		t.Fatalf("request before the samples played")
	}
	select {
	case <-s.SampleRequests():
	case <-time.After(5 * time.Second):
		t.Fatalf("no request after the samples played")
	}
	if elapsed := time.Since(begin); elapsed < 40*time.Millisecond {
		t.Fatalf("requested after %v, want about 50ms", elapsed)
	}
}

func TestClockSinkPause(t *testing.T) {
	s := NewClockSink(1000)
	defer s.Close()
	s.Play()
	<-s.SampleRequests()
	s.AddSamples(make([]float32, 10), make([]float32, 10))
	s.Pause()
	time.Sleep(30 * time.Millisecond)
	if requested(s) {
		t.Fatalf("request while paused")
	}
	if err := s.AddSamples(make([]float32, 10), make([]float32, 10)); err != nil {
		t.Fatalf("AddSamples while paused: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if requested(s) {
		t.Fatalf("request while paused")
	}
}

func TestEbitenSinkRead(t *testing.T) {
	s := NewEbitenSink(1000, 4)
	if err := s.AddSamples([]float32{0.5, 0.25}, []float32{-0.5, -0.25}); err != nil {
		t.Fatalf("AddSamples: %v", err)
	}
	if !requested(s) {
		t.Fatalf("no request below the watermark")
	}

	// Ask for three frames; the missing one is silence.
	p := make([]byte, 3*8)
	for i := range p {
		p[i] = 0xAA
	}
	n, err := s.Read(p)
	if err != nil || n != len(p) {
		t.Fatalf("Read: got %d, %v", n, err)
	}
	var got []float32
	for i := 0; i < n; i += 4 {
		got = append(got, math.Float32frombits(binary.LittleEndian.Uint32(p[i:])))
	}
	want := []float32{0.5, -0.5, 0.25, -0.25, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if s.Buffered() != 0 {
		t.Fatalf("buffered: got %v, want 0", s.Buffered())
	}

	s.AddSamples([]float32{1}, []float32{1})
	s.SequencerFinished()
	n, err = s.Read(p)
	if err != nil || n != 8 {
		t.Fatalf("Read after finish: got %d, %v, want 8 bytes", n, err)
	}
	if _, err := s.Read(p); err != io.EOF {
		t.Fatalf("Read when drained: got %v, want EOF", err)
	}
}

func TestEbitenSinkSeek(t *testing.T) {
	s := NewEbitenSink(1000, 1)
	s.AddSamples(make([]float32, 100), make([]float32, 100))
	if got := s.Buffered(); got != 100*time.Millisecond {
		t.Fatalf("buffered: got %v, want 100ms", got)
	}
	s.Seek(500)
	if got := s.Buffered(); got != 0 {
		t.Fatalf("buffered after Seek: got %v", got)
	}
}

func TestEbitenSinkSetPlaybackSpeed(t *testing.T) {
	s := NewEbitenSink(1000, 1)
	s.AddSamples(make([]float32, 100), make([]float32, 100))
	s.drain()
	s.SetPlaybackSpeed(1)
	if got := s.Buffered(); got != 100*time.Millisecond {
		t.Fatalf("unchanged speed dropped samples: buffered %v", got)
	}
	s.SetPlaybackSpeed(2)
	if got := s.Buffered(); got != 0 {
		t.Fatalf("buffered after speed change: got %v", got)
	}
	select {
	case <-s.SampleRequests():
	default:
		t.Fatalf("no sample request after speed change")
	}
}
