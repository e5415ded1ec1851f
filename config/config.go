package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v2"
)

// Frame configures the frames produced by the Pacer.
type Frame struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	IntervalMs int64   `yaml:"interval_ms"`
	TextHeight float64 `yaml:"text_height"`
	Label      string  `yaml:"label"`
	Background string  `yaml:"background"`
	Foreground string  `yaml:"foreground"`
}

// Interval returns the pacing interval as a Duration.
func (f Frame) Interval() time.Duration {
	return time.Duration(f.IntervalMs) * time.Millisecond
}

// BufferSize is the number of bytes in one RGB frame.
func (f Frame) BufferSize() int {
	return f.Width * f.Height * 3
}

// Server configures the frame server listener.
type Server struct {
	Addr string `yaml:"addr"`
	// FrameWaitTimeout bounds how long /frames waits for the Pacer. Zero waits forever.
	FrameWaitTimeout time.Duration `yaml:"frame_wait_timeout"`
}

// Metrics configures the Prometheus listener.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Path    string `yaml:"path"`
}

// Mqtt configures the optional delivery telemetry publisher.
type Mqtt struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	ClientID string `yaml:"client_id"`
	Topics   struct {
		Telemetry string `yaml:"telemetry"`
	} `yaml:"topics"`
}

// Enabled reports whether a broker has been configured.
func (m Mqtt) Enabled() bool {
	return m.URL != ""
}

// Config is the whole process configuration. It is fixed at startup.
type Config struct {
	Frame   Frame         `yaml:"frame"`
	Server  Server        `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics Metrics       `yaml:"metrics"`
	Mqtt    Mqtt          `yaml:"mqtt"`
}

// Default returns the configuration used when no file is given: 1080p at 30fps.
func Default() Config {
	c := Config{
		Frame: Frame{
			Width:      1920,
			Height:     1080,
			IntervalMs: 1000 / 30,
			TextHeight: 64,
			Label:      "go",
			Background: "#ffffff",
			Foreground: "#000000",
		},
		Server: Server{
			Addr: "127.0.0.1:3000",
		},
		Logging: DefaultLoggingConfig(),
		Metrics: Metrics{
			Enabled: false,
			Addr:    "127.0.0.1:9090",
			Path:    "/metrics",
		},
	}
	c.Mqtt.ClientID = "frametx"
	c.Mqtt.Topics.Telemetry = "frametx/deliveries"
	return c
}

// Load reads a YAML file on top of Default.
func Load(path string) (Config, error) {
	c := Default()

	f, err := os.Open(path)
	if err != nil {
		return c, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&c); err != nil {
		return c, fmt.Errorf("decode config %s: %w", path, err)
	}

	return c, c.Validate()
}

// Validate checks the configuration for values the Pacer and Server cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Frame.Width <= 0 || c.Frame.Height <= 0 {
		errs = append(errs, fmt.Errorf("frame size must be positive, got %dx%d", c.Frame.Width, c.Frame.Height))
	}
	if c.Frame.IntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("frame interval must be positive, got %dms", c.Frame.IntervalMs))
	}
	if c.Frame.TextHeight <= 0 {
		errs = append(errs, fmt.Errorf("text height must be positive, got %v", c.Frame.TextHeight))
	}
	if _, err := colorful.Hex(c.Frame.Background); err != nil {
		errs = append(errs, fmt.Errorf("invalid background colour %q", c.Frame.Background))
	}
	if _, err := colorful.Hex(c.Frame.Foreground); err != nil {
		errs = append(errs, fmt.Errorf("invalid foreground colour %q", c.Frame.Foreground))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is required"))
	}
	if c.Server.FrameWaitTimeout < 0 {
		errs = append(errs, fmt.Errorf("frame wait timeout must not be negative, got %v", c.Server.FrameWaitTimeout))
	}
	if c.Metrics.Enabled && (c.Metrics.Addr == "" || c.Metrics.Path == "") {
		errs = append(errs, errors.New("metrics address and path are required when metrics are enabled"))
	}
	if c.Mqtt.Enabled() && c.Mqtt.Topics.Telemetry == "" {
		errs = append(errs, errors.New("mqtt telemetry topic is required when a broker is configured"))
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
