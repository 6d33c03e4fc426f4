package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/haibingtown/alphaSynth/internal/file"
	"github.com/haibingtown/alphaSynth/internal/output"
	"github.com/haibingtown/alphaSynth/internal/player"
	"github.com/haibingtown/alphaSynth/internal/processor"
	"github.com/haibingtown/alphaSynth/internal/sequencer"
	"github.com/haibingtown/alphaSynth/internal/synth"
)

var (
	c         = flag.String("c", "config.yml", "config file name (YAML)")
	i         = flag.String("i", "", "input file name (MIDI, optionally .age encrypted)")
	o         = flag.String("o", "out.wav", "output file name (WAV)")
	sf        = flag.String("sf", "", "SoundFont file name; overrides the config")
	seek      = flag.Float64("seek", 0, "start position in ms")
	speed     = flag.Float64("speed", 0, "playback speed factor; overrides the config")
	metronome = flag.Float64("metronome", -1, "metronome volume from 0 to 1; overrides the config")
)

// render plays the score into a WAV file as fast as possible.
func render() (err error) {
	config, err := file.ReadConfig(os.DirFS(filepath.Dir(*c)), filepath.Base(*c))
	if errors.Is(err, os.ErrNotExist) {
		config = file.DefaultConfig()
	} else if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if *sf != "" {
		config.SoundFont = *sf
	}
	if *speed != 0 {
		config.PlaybackSpeed = *speed
	}
	if *metronome >= 0 {
		config.MetronomeVolume = *metronome
	}

	mid, err := file.ReadScore(os.DirFS(filepath.Dir(*i)), filepath.Base(*i), config.ScoreSHA256, config.Passphrase)
	if err != nil {
		return err
	}
	if config.ForceBPM > 0 {
		if err := processor.ForceTempo(mid, config.ForceBPM); err != nil {
			return err
		}
	}

	sfFile, err := os.Open(config.SoundFont)
	if err != nil {
		return fmt.Errorf("could not open SoundFont: %w", err)
	}
	defer sfFile.Close()
	s, err := synth.New(sfFile, synth.Options{
		SampleRate:       config.SampleRate,
		MicroBufferSize:  config.MicroBufferSize,
		MicroBufferCount: config.MicroBufferCount,
		MetronomeVolume:  config.MetronomeVolume,
		MasterVolume:     config.MasterVolume,
	})
	if err != nil {
		return err
	}

	out, err := os.Create(*o)
	if err != nil {
		return fmt.Errorf("could not create %v: %w", *o, err)
	}
	defer func() {
		closeErr := out.Close()
		if closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	sink := output.NewWAVSink(out, config.SampleRate)

	backend, err := player.NewBackend(&player.Options{
		Synth:         s,
		Sink:          sink,
		PlaybackSpeed: config.PlaybackSpeed,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeErr := backend.Close()
		if closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	setup := []player.Command{{Load: mid}}
	if config.Range != nil {
		setup = append(setup, player.Command{Range: &sequencer.PlaybackRange{
			StartTick: config.Range.StartTick,
			EndTick:   config.Range.EndTick,
		}})
	}
	for ch, prog := range config.ChannelPrograms {
		setup = append(setup, player.Command{ChannelProgram: &player.ChannelProgram{Channel: uint8(ch), Program: uint8(prog)}})
	}
	if *seek > 0 {
		setup = append(setup, player.Command{Seek: seek})
	}
	setup = append(setup, player.Command{Play: true})
	// Loop is not running yet, so apply directly instead of filling Commands.
	for _, cmd := range setup {
		if err := backend.Apply(cmd); err != nil {
			return err
		}
	}

	errC := make(chan error, 1)
	go func() {
		for n := range backend.Notifications {
			switch n.Kind {
			case player.Finished:
				backend.Commands <- player.Command{Quit: true}
			case player.Error:
				select {
				case errC <- n.Err:
				default:
				}
				backend.Commands <- player.Command{Quit: true}
			}
		}
	}()

	err = backend.Loop()
	if !errors.Is(err, player.QuitError) {
		return err
	}
	select {
	case err := <-errC:
		return err
	default:
	}
	log.Printf("Rendered %d frames to %v.", sink.Frames(), *o)
	return nil
}

func main() {
	flag.Parse()
	err := render()
	if errors.Is(err, player.SigIntError) {
		os.Exit(127)
	}
	if err != nil {
		log.Printf("Failed to render: %v", err)
		os.Exit(1)
	}
}
