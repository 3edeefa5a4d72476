// Package config loads the device configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AndreRenaud/eink_frame/change"
	"github.com/AndreRenaud/eink_frame/epd"
	"github.com/AndreRenaud/eink_frame/fetch"
	"github.com/AndreRenaud/eink_frame/marker"
	"github.com/AndreRenaud/eink_frame/power"
	"github.com/AndreRenaud/eink_frame/render"
)

// Config represents the complete device configuration
type Config struct {
	Network NetworkConfig `yaml:"network"`
	Source  SourceConfig  `yaml:"source"`
	Change  ChangeConfig  `yaml:"change"`
	Display DisplayConfig `yaml:"display"`
	Marker  MarkerConfig  `yaml:"marker"`
	Sleep   SleepConfig   `yaml:"sleep"`
	Report  ReportConfig  `yaml:"report"`
	Log     LogConfig     `yaml:"log"`
}

// NetworkConfig controls the connectivity wait after wake
type NetworkConfig struct {
	ProbeHost  string        `yaml:"probe_host"` // empty skips the wait
	Attempts   int           `yaml:"attempts"`
	Interval   time.Duration `yaml:"interval"`
	Privileged bool          `yaml:"privileged"` // raw ICMP instead of UDP ping sockets
}

// SourceConfig locates the artifact
type SourceConfig struct {
	Mode       string        `yaml:"mode"`        // listing, static
	ListingURL string        `yaml:"listing_url"` // e.g. https://api.github.com/repos/<user>/<repo>/contents/image
	RawBase    string        `yaml:"raw_base"`    // e.g. https://raw.githubusercontent.com/<user>/<repo>/<branch>/image
	URL        string        `yaml:"url"`         // static mode
	Extensions []string      `yaml:"extensions"`
	MaxSize    int64         `yaml:"max_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

type ChangeConfig struct {
	Strategy string `yaml:"strategy"` // name, content
}

// DisplayConfig describes the panel and how artifacts are drawn on it
type DisplayConfig struct {
	Type     string        `yaml:"type"` // 154_v2, 154_m09, preview
	Bus      string        `yaml:"bus"`  // ftdi, spidev
	SPI      string        `yaml:"spi"`  // spidev port name, empty for the first one
	DC       string        `yaml:"dc"`
	CS       string        `yaml:"cs"`
	RST      string        `yaml:"rst"`
	Busy     string        `yaml:"busy"`
	Width    int           `yaml:"width"`  // drawing area, 0 for panel size
	Height   int           `yaml:"height"` // drawing area, 0 for panel size
	Rotation int           `yaml:"rotation"`
	Scale    string        `yaml:"scale"` // fit, fill
	Hold     time.Duration `yaml:"hold"`  // pause after a new image before sleeping
	Preview  string        `yaml:"preview"`
}

type MarkerConfig struct {
	Backend string `yaml:"backend"` // file, sqlite, memory
	Path    string `yaml:"path"`
}

type SleepConfig struct {
	Mode     string        `yaml:"mode"` // timer, rtcwake, oneshot
	Duration time.Duration `yaml:"duration"`
}

// ReportConfig publishes cycle summaries; disabled without a broker
type ReportConfig struct {
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Topic    string        `yaml:"topic"`
	QoS      byte          `yaml:"qos"`
	Timeout  time.Duration `yaml:"timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the configuration used for any field the file leaves out.
func Default() Config {
	return Config{
		Network: NetworkConfig{
			Attempts: 30,
			Interval: 500 * time.Millisecond,
		},
		Source: SourceConfig{
			Mode:       "listing",
			Extensions: []string{".jpg", ".jpeg"},
			MaxSize:    fetch.MaxSize,
			Timeout:    time.Minute,
		},
		Change: ChangeConfig{Strategy: string(change.ByName)},
		Display: DisplayConfig{
			Type:    "154_v2",
			Bus:     "spidev",
			DC:      "GPIO25",
			CS:      "GPIO8",
			RST:     "GPIO17",
			Busy:    "GPIO24",
			Scale:   string(render.Fit),
			Hold:    2 * time.Second,
			Preview: "frame.png",
		},
		Marker: MarkerConfig{
			Backend: "file",
			Path:    marker.DefaultPath,
		},
		Sleep: SleepConfig{
			Mode:     "timer",
			Duration: 30 * time.Minute,
		},
		Report: ReportConfig{
			ClientID: "eink-frame",
			Topic:    "eink/frame/status",
			Timeout:  5 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	strategy, err := change.ParseStrategy(c.Change.Strategy)
	if err != nil {
		return err
	}

	switch c.Source.Mode {
	case "listing":
		if c.Source.ListingURL == "" {
			return fmt.Errorf("source.listing_url is required in listing mode")
		}
	case "static":
		if c.Source.URL == "" {
			return fmt.Errorf("source.url is required in static mode")
		}
		// By name, the URL itself becomes the marker.
		if strategy == change.ByName && !marker.Fits(c.Source.URL) {
			return fmt.Errorf("source.url is longer than %d characters, use change.strategy: content in static mode", marker.Capacity)
		}
	default:
		return fmt.Errorf("source.mode must be listing or static, got %q", c.Source.Mode)
	}
	if c.Source.MaxSize <= 0 || c.Source.MaxSize > fetch.MaxSize {
		return fmt.Errorf("source.max_size must be in (0, %d], got %d", fetch.MaxSize, c.Source.MaxSize)
	}
	if c.Source.Timeout < 0 {
		return fmt.Errorf("source.timeout must not be negative")
	}

	if c.Network.ProbeHost != "" && c.Network.Attempts < 1 {
		return fmt.Errorf("network.attempts must be at least 1")
	}

	if c.Display.Type != "preview" && !epd.IsSupported(c.Display.Type) {
		return fmt.Errorf("display.type must be preview or one of %v, got %q", epd.SupportedTypes(), c.Display.Type)
	}
	if c.Display.Type != "preview" && c.Display.Bus != "ftdi" && c.Display.Bus != "spidev" {
		return fmt.Errorf("display.bus must be ftdi or spidev, got %q", c.Display.Bus)
	}
	if c.Display.Rotation%90 != 0 {
		return fmt.Errorf("display.rotation must be a multiple of 90, got %d", c.Display.Rotation)
	}
	if c.Display.Width < 0 || c.Display.Height < 0 {
		return fmt.Errorf("display.width and display.height must not be negative")
	}
	switch render.Scale(c.Display.Scale) {
	case render.Fit, render.Fill:
	default:
		return fmt.Errorf("display.scale must be fit or fill, got %q", c.Display.Scale)
	}

	switch c.Marker.Backend {
	case "file", "sqlite":
		if c.Marker.Path == "" {
			return fmt.Errorf("marker.path is required for the %s backend", c.Marker.Backend)
		}
	case "memory":
	default:
		return fmt.Errorf("marker.backend must be file, sqlite or memory, got %q", c.Marker.Backend)
	}

	if _, err := power.New(c.Sleep.Mode); err != nil {
		return err
	}
	if c.Sleep.Duration <= 0 {
		return fmt.Errorf("sleep.duration must be positive")
	}

	if c.Report.Broker != "" && c.Report.Topic == "" {
		return fmt.Errorf("report.topic is required when a broker is set")
	}
	if c.Report.Broker != "" && c.Report.Timeout <= 0 {
		return fmt.Errorf("report.timeout must be positive when a broker is set")
	}
	if c.Report.QoS > 2 {
		return fmt.Errorf("report.qos must be 0, 1 or 2")
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return lvl, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}
