// Package config handles sinetone configuration from YAML files and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/sinetone/sinetone/pkg/audio/output"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Stream struct {
		BufferSize int `yaml:"buffer_size"`
		SampleRate int `yaml:"sample_rate"`
		Channels   int `yaml:"channels"`
	} `yaml:"stream"`

	Tone struct {
		Frequency float64 `yaml:"frequency"`
	} `yaml:"tone"`

	Output struct {
		Backend       string        `yaml:"backend"`
		WebSocketAddr string        `yaml:"websocket_addr"`
		Codec         string        `yaml:"codec"`
		MDNS          bool          `yaml:"mdns"`
		WAVPath       string        `yaml:"wav_path"`
		Duration      time.Duration `yaml:"duration"`
		PCM16         bool          `yaml:"pcm16"`
	} `yaml:"output"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`

	Log struct {
		File  string `yaml:"file"`
		Level string `yaml:"level"`
	} `yaml:"log"`

	UI struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"ui"`
}

// Default returns the configuration of the classic demo: 4096 frames at
// 44100 Hz, stereo, 440 Hz on the default sound card.
func Default() *Config {
	var c Config
	c.Stream.BufferSize = 4096
	c.Stream.SampleRate = 44100
	c.Stream.Channels = 2
	c.Tone.Frequency = 440
	c.Output.Backend = "oto"
	c.Output.WebSocketAddr = output.DefaultWebSocketAddr
	c.Output.Codec = output.CodecPCM
	c.Output.MDNS = true
	c.Output.Duration = 10 * time.Second
	c.Log.File = "sinetone.log"
	c.Log.Level = "info"
	c.UI.Enabled = true
	return &c
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// RegisterFlags binds command-line flags to the configuration fields.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Stream.BufferSize, "buffer-size", c.Stream.BufferSize, "Frames per provider call")
	fs.IntVar(&c.Stream.SampleRate, "sample-rate", c.Stream.SampleRate, "Sample rate in Hz")
	fs.IntVar(&c.Stream.Channels, "channels", c.Stream.Channels, "Number of output channels")
	fs.Float64Var(&c.Tone.Frequency, "frequency", c.Tone.Frequency, "Tone frequency in Hz")
	fs.StringVar(&c.Output.Backend, "backend", c.Output.Backend, fmt.Sprintf("Output backend %v", output.Names()))
	fs.StringVar(&c.Output.WebSocketAddr, "ws-addr", c.Output.WebSocketAddr, "Listen address for the websocket backend")
	fs.StringVar(&c.Output.Codec, "codec", c.Output.Codec, fmt.Sprintf("Websocket payload codec %v", output.Codecs()))
	fs.Var(invertedBool{&c.Output.MDNS}, "no-mdns", "Do not advertise the websocket stream via mDNS")
	fs.StringVar(&c.Output.WAVPath, "out", c.Output.WAVPath, "Destination file for the wav backend")
	fs.DurationVar(&c.Output.Duration, "duration", c.Output.Duration, "Length of audio rendered by the wav backend")
	fs.BoolVar(&c.Output.PCM16, "pcm16", c.Output.PCM16, "Write 16-bit PCM instead of float32 (wav backend)")
	fs.StringVar(&c.Metrics.Addr, "metrics-addr", c.Metrics.Addr, "Serve /metrics and /status on this address (disabled when empty)")
	fs.StringVar(&c.Log.File, "log-file", c.Log.File, "Log file path")
	fs.StringVar(&c.Log.Level, "log-level", c.Log.Level, "Log level (debug, info, warn, error)")
	fs.Var(invertedBool{&c.UI.Enabled}, "no-tui", "Disable TUI, use streaming logs instead")
}

// Validate checks settings the stream itself does not. Buffer size and
// sample rate are validated when the stream is created.
func (c *Config) Validate() error {
	if !slices.Contains(output.Names(), c.Output.Backend) {
		return fmt.Errorf("unknown backend %q (available: %v)", c.Output.Backend, output.Names())
	}
	if !slices.Contains(output.Codecs(), c.Output.Codec) {
		return fmt.Errorf("unknown codec %q (available: %v)", c.Output.Codec, output.Codecs())
	}
	if c.Tone.Frequency <= 0 {
		return fmt.Errorf("frequency must be positive, got %v", c.Tone.Frequency)
	}
	if c.Output.Backend == "wav" {
		if c.Output.WAVPath == "" {
			return errors.New("wav backend requires an output path")
		}
		if c.Output.Duration <= 0 {
			return fmt.Errorf("wav backend requires a positive duration, got %v", c.Output.Duration)
		}
	}
	return nil
}

// Resolve parses args into a configuration. When -config names a file, the
// file is loaded first and flags given explicitly on the command line are
// applied on top of it.
func Resolve(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := Default()
	configPath := fs.String("config", "", "YAML configuration file")
	cfg.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		fileCfg, err := Load(*configPath)
		if err != nil {
			return nil, err
		}

		replay := flag.NewFlagSet("replay", flag.ContinueOnError)
		fileCfg.RegisterFlags(replay)

		var replayErr error
		fs.Visit(func(f *flag.Flag) {
			if f.Name == "config" || replayErr != nil {
				return
			}
			replayErr = replay.Set(f.Name, f.Value.String())
		})
		if replayErr != nil {
			return nil, fmt.Errorf("apply flags over %s: %w", *configPath, replayErr)
		}
		cfg = fileCfg
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// invertedBool is a boolean flag that stores its negation
type invertedBool struct {
	target *bool
}

func (b invertedBool) String() string {
	if b.target == nil {
		return "false"
	}
	return strconv.FormatBool(!*b.target)
}

func (b invertedBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b.target = !v
	return nil
}

func (b invertedBool) IsBoolFlag() bool { return true }
