package file

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"filippo.io/age"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestReadConfig(t *testing.T) {
	fsys := fstest.MapFS{
		"config.yml": {Data: []byte(`
sample_rate: 48000
looping: true
soundfont: piano.sf2
range:
  start_tick: 480
  end_tick: 960
channel_programs:
  0: 19
  9: 0
`)},
	}
	config, err := ReadConfig(fsys, "config.yml")
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	def := DefaultConfig()
	if config.SampleRate != 48000 || !config.Looping || config.SoundFont != "piano.sf2" {
		t.Fatalf("values not read: %+v", config)
	}
	if config.MicroBufferSize != def.MicroBufferSize || config.MicroBufferCount != def.MicroBufferCount || config.PlaybackSpeed != def.PlaybackSpeed {
		t.Fatalf("defaults not applied: %+v", config)
	}
	if config.Range == nil || config.Range.StartTick != 480 || config.Range.EndTick != 960 {
		t.Fatalf("range: got %+v", config.Range)
	}
	if len(config.ChannelPrograms) != 2 || config.ChannelPrograms[0] != 19 {
		t.Fatalf("channel programs: got %v", config.ChannelPrograms)
	}
}

func TestReadConfigErrors(t *testing.T) {
	fsys := fstest.MapFS{
		"bad.yml":     {Data: []byte("sample_rate: [")},
		"invalid.yml": {Data: []byte("metronome_volume: 2\n")},
		"program.yml": {Data: []byte("channel_programs:\n  16: 1\n")},
	}
	if _, err := ReadConfig(fsys, "missing.yml"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing: got %v, want ErrNotExist", err)
	}
	for _, name := range []string{"bad.yml", "invalid.yml", "program.yml"} {
		if _, err := ReadConfig(fsys, name); err == nil {
			t.Fatalf("%v: no error", name)
		}
	}
}

func TestWriteConfigRoundTrip(t *testing.T) {
	name := filepath.Join(t.TempDir(), "config.yml")
	want := DefaultConfig()
	want.ForceBPM = 90
	want.OutputPort = "UM-ONE"
	if err := WriteConfig(name, want); err != nil {
		t.Fatalf("WriteConfig: %v", err)
	}
	got, err := ReadConfig(os.DirFS(filepath.Dir(name)), filepath.Base(name))
	if err != nil {
		t.Fatalf("ReadConfig: %v", err)
	}
	if got.ForceBPM != 90 || got.OutputPort != "UM-ONE" || got.SampleRate != want.SampleRate {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func testMIDI(t *testing.T) []byte {
	t.Helper()
	var tr smf.Track
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(480, midi.NoteOff(0, 60))
	tr.Close(0)
	s := smf.New()
	s.TimeFormat = smf.MetricTicks(480)
	if err := s.Add(tr); err != nil {
		t.Fatalf("Add: %v", err)
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	return buf.Bytes()
}

func TestReadScore(t *testing.T) {
	data := testMIDI(t)
	sum := fmt.Sprintf("%x", sha256.Sum256(data))
	fsys := fstest.MapFS{"song.mid": {Data: data}}

	mid, err := ReadScore(fsys, "song.mid", sum, "")
	if err != nil {
		t.Fatalf("ReadScore: %v", err)
	}
	if len(mid.Tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(mid.Tracks))
	}

	_, err = ReadScore(fsys, "song.mid", "00", "")
	var checksumErr *ChecksumError
	if !errors.As(err, &checksumErr) || checksumErr.Got != sum {
		t.Fatalf("bad checksum: got %v", err)
	}
}

func TestReadScoreEncrypted(t *testing.T) {
	r, err := age.NewScryptRecipient("hunter2")
	if err != nil {
		t.Fatalf("NewScryptRecipient: %v", err)
	}
	r.SetWorkFactor(10)
	var ciphertext bytes.Buffer
	w, err := age.Encrypt(&ciphertext, r)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := w.Write(testMIDI(t)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	fsys := fstest.MapFS{"song.mid.age": {Data: ciphertext.Bytes()}}

	mid, err := ReadScore(fsys, "song.mid.age", "", "hunter2")
	if err != nil {
		t.Fatalf("ReadScore: %v", err)
	}
	if len(mid.Tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(mid.Tracks))
	}
	if _, err := ReadScore(fsys, "song.mid.age", "", "wrong"); err == nil {
		t.Fatalf("wrong passphrase accepted")
	}
	if _, err := ReadScore(fsys, "song.mid.age", "", ""); err == nil {
		t.Fatalf("missing passphrase accepted")
	}
}
