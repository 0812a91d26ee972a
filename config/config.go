// Package config loads voxcap settings: built-in defaults, then an
// optional YAML file, then a .env file and VOXCAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Audio   AudioConfig   `yaml:"audio"`
	Export  ExportConfig  `yaml:"export"`
	Library LibraryConfig `yaml:"library"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	UI      UIConfig      `yaml:"ui"`
}

type AudioConfig struct {
	SampleRate    int     `yaml:"sample_rate"`
	Channels      int     `yaml:"channels"`
	Container     string  `yaml:"container"`        // flac or wav
	Device        string  `yaml:"device"`           // name substring; empty for the system default
	FFTSize       int     `yaml:"fft_size"`
	FrameRate     int     `yaml:"frame_rate"`       // waveform frames per second
	NoSignalWarnS float64 `yaml:"no_signal_warn_s"` // seconds of silence before the TUI warns
	AutoPauseS    float64 `yaml:"auto_pause_s"`     // pause after this much silence; 0 disables
}

type ExportConfig struct {
	Dir      string `yaml:"dir"`
	BaseName string `yaml:"base_name"`
	Format   string `yaml:"format"` // mp3 or wav
}

type LibraryConfig struct {
	Dir string `yaml:"dir"`
}

type LoggingConfig struct {
	Dir string `yaml:"dir"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // empty disables the dump
}

type UIConfig struct {
	Cues     bool `yaml:"cues"`      // start/stop tones
	CopyPath bool `yaml:"copy_path"` // copy the saved file path to the clipboard
}

var supportedRates = []int{8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100, 48000}

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	dataDir := "voxcap"
	if d, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(d, ".local", "share", "voxcap")
	}
	exportDir := "."
	if wd, err := os.Getwd(); err == nil {
		exportDir = wd
	}
	return &Config{
		Audio: AudioConfig{
			SampleRate:    44100,
			Channels:      1,
			Container:     "flac",
			FFTSize:       256,
			FrameRate:     60,
			NoSignalWarnS: 3,
		},
		Export: ExportConfig{
			Dir:      exportDir,
			BaseName: "recording",
			Format:   "mp3",
		},
		Library: LibraryConfig{Dir: filepath.Join(dataDir, "library")},
		UI:      UIConfig{Cues: true},
	}
}

// DefaultPath is where Load looks when no file is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "voxcap", "config.yaml")
}

// Load builds the configuration. path may be empty, in which case
// DefaultPath is read if it exists. A .env file in the working directory
// is loaded into the environment without overriding variables already set.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		case explicit || !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"VOXCAP_CONTAINER":        &c.Audio.Container,
		"VOXCAP_DEVICE":           &c.Audio.Device,
		"VOXCAP_EXPORT_DIR":       &c.Export.Dir,
		"VOXCAP_EXPORT_NAME":      &c.Export.BaseName,
		"VOXCAP_EXPORT_FORMAT":    &c.Export.Format,
		"VOXCAP_LIBRARY_DIR":      &c.Library.Dir,
		"VOXCAP_METRICS_TEXTFILE": &c.Metrics.Textfile,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"VOXCAP_SAMPLE_RATE": &c.Audio.SampleRate,
		"VOXCAP_CHANNELS":    &c.Audio.Channels,
		"VOXCAP_FFT_SIZE":    &c.Audio.FFTSize,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v, ok := os.LookupEnv("VOXCAP_CUES"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("VOXCAP_CUES: %w", err)
		}
		c.UI.Cues = b
	}
	return nil
}

func (c *Config) Validate() error {
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if err := c.Export.Validate(); err != nil {
		return fmt.Errorf("export config: %w", err)
	}
	if err := c.Library.Validate(); err != nil {
		return fmt.Errorf("library config: %w", err)
	}
	return nil
}

func (a *AudioConfig) Validate() error {
	ok := false
	for _, r := range supportedRates {
		if a.SampleRate == r {
			ok = true
		}
	}
	if !ok {
		return fmt.Errorf("sample_rate %d is not one of %v", a.SampleRate, supportedRates)
	}
	if a.Channels < 1 || a.Channels > 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", a.Channels)
	}
	switch a.Container {
	case "flac", "wav":
	default:
		return fmt.Errorf("container must be flac or wav, got %q", a.Container)
	}
	if a.FFTSize < 32 || a.FFTSize > 32768 || a.FFTSize&(a.FFTSize-1) != 0 {
		return fmt.Errorf("fft_size must be a power of two in [32, 32768], got %d", a.FFTSize)
	}
	if a.FrameRate < 1 || a.FrameRate > 240 {
		return fmt.Errorf("frame_rate must be between 1 and 240, got %d", a.FrameRate)
	}
	if a.NoSignalWarnS < 0 {
		return fmt.Errorf("no_signal_warn_s cannot be negative")
	}
	if a.AutoPauseS < 0 {
		return fmt.Errorf("auto_pause_s cannot be negative")
	}
	if a.AutoPauseS > 0 && a.AutoPauseS < a.NoSignalWarnS {
		return fmt.Errorf("auto_pause_s must not be shorter than no_signal_warn_s")
	}
	return nil
}

func (e *ExportConfig) Validate() error {
	switch e.Format {
	case "mp3", "wav":
	default:
		return fmt.Errorf("format must be mp3 or wav, got %q", e.Format)
	}
	if e.Dir == "" {
		return fmt.Errorf("dir cannot be empty")
	}
	return nil
}

func (l *LibraryConfig) Validate() error {
	if l.Dir == "" {
		return fmt.Errorf("dir cannot be empty")
	}
	return nil
}
