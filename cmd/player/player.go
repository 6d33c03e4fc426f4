package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"gitlab.com/gomidi/midi/v2/smf"
	"golang.org/x/term"

	"github.com/haibingtown/alphaSynth/internal/file"
	"github.com/haibingtown/alphaSynth/internal/output"
	"github.com/haibingtown/alphaSynth/internal/player"
	"github.com/haibingtown/alphaSynth/internal/processor"
	"github.com/haibingtown/alphaSynth/internal/sequencer"
	"github.com/haibingtown/alphaSynth/internal/synth"
	"github.com/haibingtown/alphaSynth/internal/version"
)

var (
	c           = flag.String("c", "config.yml", "config file name (YAML)")
	i           = flag.String("i", "", "input file name (MIDI, optionally .age encrypted)")
	sf          = flag.String("sf", "", "SoundFont file name; overrides the config")
	port        = flag.String("port", "", "regular expression to match the preferred output port; plays to MIDI instead of the SoundFont")
	seek        = flag.Float64("seek", 0, "start position in ms")
	speed       = flag.Float64("speed", 0, "playback speed factor; overrides the config")
	loop        = flag.Bool("loop", false, "loop playback")
	metronome   = flag.Float64("metronome", -1, "metronome volume from 0 to 1; overrides the config")
	showVersion = flag.Bool("version", false, "print the version and exit")
)

var (
	positionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	timeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// splitPath returns a file system rooted at the directory of name.
func splitPath(name string) (fs.FS, string) {
	return os.DirFS(filepath.Dir(name)), filepath.Base(name)
}

func loadConfig() (*file.Config, error) {
	fsys, name := splitPath(*c)
	config, err := file.ReadConfig(fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("No config file %v, using defaults.", *c)
		return file.DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return config, nil
}

func loadScore(config *file.Config) (*smf.SMF, error) {
	fsys, name := splitPath(*i)
	mid, err := file.ReadScore(fsys, name, config.ScoreSHA256, config.Passphrase)
	if err != nil {
		return nil, err
	}
	if config.ForceBPM > 0 {
		err = processor.ForceTempo(mid, config.ForceBPM)
		if err != nil {
			return nil, fmt.Errorf("failed to force tempo: %w", err)
		}
	}
	return mid, nil
}

// openOutput returns the renderer and sink to play with. The returned port is nil
// when playing with a SoundFont.
func openOutput(config *file.Config, options synth.Options) (synth.Renderer, output.Sink, drivers.Out, error) {
	if *port != "" || config.OutputPort != "" {
		outPort, err := player.FindBestPort(*port, config.OutputPort)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("could not find MIDI port: %w", err)
		}
		err = outPort.Open()
		if err != nil {
			return nil, nil, nil, fmt.Errorf("could not open MIDI port %v: %w", outPort, err)
		}
		return synth.NewPortSynth(outPort, options), output.NewClockSink(options.SampleRate), outPort, nil
	}

	if config.SoundFont == "" {
		return nil, nil, nil, fmt.Errorf("neither a SoundFont nor a MIDI port given")
	}
	f, err := os.Open(config.SoundFont)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not open SoundFont: %w", err)
	}
	defer f.Close()
	s, err := synth.New(f, options)
	if err != nil {
		return nil, nil, nil, err
	}
	// Keep two buffer passes queued.
	return s, output.NewEbitenSink(options.SampleRate, 2*s.BufferSize()), nil, nil
}

func formatMs(ms float64) string {
	d := time.Duration(ms * float64(time.Millisecond)).Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func Main() error {
	if *showVersion {
		fmt.Println(version.Version())
		return nil
	}
	if *i == "" {
		return fmt.Errorf("no input file given (-i)")
	}

	config, err := loadConfig()
	if err != nil {
		return err
	}
	if *sf != "" {
		config.SoundFont = *sf
	}
	if *speed != 0 {
		config.PlaybackSpeed = *speed
	}
	if *loop {
		config.Looping = true
	}
	if *metronome >= 0 {
		config.MetronomeVolume = *metronome
	}

	mid, err := loadScore(config)
	if err != nil {
		return err
	}
	bars := processor.FindBars(mid)

	renderer, sink, outPort, err := openOutput(config, synth.Options{
		SampleRate:       config.SampleRate,
		MicroBufferSize:  config.MicroBufferSize,
		MicroBufferCount: config.MicroBufferCount,
		MetronomeVolume:  config.MetronomeVolume,
		MasterVolume:     config.MasterVolume,
	})
	if err != nil {
		return err
	}
	if outPort != nil {
		defer outPort.Close()
	}

	backend, err := player.NewBackend(&player.Options{
		Synth:         renderer,
		Sink:          sink,
		Looping:       config.Looping,
		PlaybackSpeed: config.PlaybackSpeed,
	})
	if err != nil {
		return err
	}
	defer backend.Close()

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

	showProgress := term.IsTerminal(int(os.Stdout.Fd()))
	go func() {
		for n := range backend.Notifications {
			switch n.Kind {
			case player.PositionChanged:
				if !showProgress {
					continue
				}
				bar, beat := bars.FromTick(int64(n.Tick))
				fmt.Printf("\r%v %v ",
					positionStyle.Render(fmt.Sprintf("%4d.%-5.2f", bar+1, beat+1)),
					timeStyle.Render(formatMs(n.Position)+" / "+formatMs(n.EndTime)))
			case player.Finished:
				if config.Looping {
					continue
				}
				if ebitenSink, ok := sink.(*output.EbitenSink); ok {
					time.Sleep(ebitenSink.Buffered())
				}
				backend.Commands <- player.Command{Quit: true}
			case player.Error:
				log.Printf("Playback error: %v.", n.Err)
				if !n.Ready {
					backend.Commands <- player.Command{Quit: true}
				}
			}
		}
	}()

	err = backend.Loop()
	if showProgress {
		fmt.Println()
	}
	if errors.Is(err, player.QuitError) {
		return nil
	}
	return err
}

func main() {
	flag.Parse()
	err := Main()
	if errors.Is(err, player.SigIntError) {
		os.Exit(127)
	}
	if err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
