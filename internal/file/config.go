package file

import (
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/haibingtown/alphaSynth/internal/processor"
)

// Range is a playback range in ticks.
type Range struct {
	StartTick int `yaml:"start_tick"`
	EndTick   int `yaml:"end_tick"`
}

// Config is the player configuration. Zero fields take their default.
type Config struct {
	// Output geometry.
	SampleRate       int `yaml:"sample_rate,omitempty"`
	MicroBufferSize  int `yaml:"micro_buffer_size,omitempty"`
	MicroBufferCount int `yaml:"micro_buffer_count,omitempty"`

	PlaybackSpeed float64 `yaml:"playback_speed,omitempty"`
	Looping       bool    `yaml:"looping,omitempty"`

	// MetronomeVolume is 0 to 1; 0 disables the metronome.
	MetronomeVolume float64 `yaml:"metronome_volume,omitempty"`
	MasterVolume    float64 `yaml:"master_volume,omitempty"`

	// SoundFont is the SF2 file to render with when not playing to a MIDI port.
	SoundFont string `yaml:"soundfont,omitempty"`

	// OutputPort is the exact name of the preferred MIDI output port.
	OutputPort string `yaml:"output_port,omitempty"`

	// ForceBPM replaces all tempo changes of the score.
	ForceBPM float64 `yaml:"force_bpm,omitempty"`

	Range *Range `yaml:"range,omitempty"`

	// ChannelPrograms overrides the first program change per channel.
	ChannelPrograms map[int]int `yaml:"channel_programs,omitempty"`

	// ScoreSHA256 is the expected checksum of the score file as stored.
	ScoreSHA256 string `yaml:"score_sha256,omitempty"`

	// Passphrase decrypts .age score files.
	Passphrase string `yaml:"passphrase,omitempty"`
}

// DefaultConfig returns the values used for fields a config file leaves out.
func DefaultConfig() *Config {
	return &Config{
		SampleRate:       44100,
		MicroBufferSize:  64,
		MicroBufferCount: 32,
		PlaybackSpeed:    1,
		MetronomeVolume:  0,
		MasterVolume:     0.5,
	}
}

// ReadConfig reads a config file and applies it on top of the defaults.
func ReadConfig(fsys fs.FS, configFile string) (*Config, error) {
	f, err := fsys.Open(configFile)
	if err != nil {
		return nil, fmt.Errorf("could not open %v: %w", configFile, err)
	}
	defer f.Close()
	var config Config
	err = yaml.NewDecoder(f).Decode(&config)
	if err != nil {
		return nil, fmt.Errorf("could not decode %v: %w", configFile, err)
	}
	err = config.validate()
	if err != nil {
		return nil, fmt.Errorf("invalid config %v: %w", configFile, err)
	}
	return processor.Merge(DefaultConfig(), &config), nil
}

func (c *Config) validate() error {
	if c.SampleRate < 0 || c.MicroBufferSize < 0 || c.MicroBufferCount < 0 {
		return fmt.Errorf("buffer geometry must not be negative")
	}
	if c.PlaybackSpeed < 0 {
		return fmt.Errorf("playback_speed must not be negative, got %v", c.PlaybackSpeed)
	}
	if c.MetronomeVolume < 0 || c.MetronomeVolume > 1 {
		return fmt.Errorf("metronome_volume must be between 0 and 1, got %v", c.MetronomeVolume)
	}
	if c.ForceBPM < 0 {
		return fmt.Errorf("force_bpm must not be negative, got %v", c.ForceBPM)
	}
	for ch, prog := range c.ChannelPrograms {
		if ch < 0 || ch > 15 || prog < 0 || prog > 127 {
			return fmt.Errorf("channel_programs entry %d: %d out of range", ch, prog)
		}
	}
	return nil
}

// WriteConfig writes config as YAML.
func WriteConfig(configFile string, config *Config) (err error) {
	f, err := os.Create(configFile)
	if err != nil {
		return fmt.Errorf("could not recreate %v: %w", configFile, err)
	}
	defer func() {
		closeErr := f.Close()
		if closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2) // Match yq.
	return enc.Encode(config)
}
