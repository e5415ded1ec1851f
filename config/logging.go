package config

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LoggingConfig configures the process-wide logrus logger.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
	// Output is stdout, stderr or file.
	Output string `yaml:"output"`
	// File is the log file path when Output is file.
	File string `yaml:"file"`
}

// DefaultLoggingConfig logs info and above as text on stdout.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "stdout",
	}
}

// Validate checks the logging configuration.
func (c LoggingConfig) Validate() error {
	if _, err := logrus.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", c.Level)
	}
	if c.Format != "text" && c.Format != "json" {
		return fmt.Errorf("invalid log format: %s, must be 'text' or 'json'", c.Format)
	}
	switch c.Output {
	case "stdout", "stderr":
	case "file":
		if c.File == "" {
			return fmt.Errorf("log file path is required when output is 'file'")
		}
	default:
		return fmt.Errorf("invalid log output: %s, must be 'stdout', 'stderr', or 'file'", c.Output)
	}
	return nil
}

// SetupLogger applies the configuration to the standard logrus logger.
func SetupLogger(c LoggingConfig) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	level, _ := logrus.ParseLevel(c.Level)
	logrus.SetLevel(level)

	var output io.Writer
	switch c.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	case "file":
		f, err := os.OpenFile(c.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", c.File, err)
		}
		output = f
	}
	logrus.SetOutput(output)

	if c.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
		})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FullTimestamp:   true,
		})
	}

	return nil
}

// Logger returns a logger tagged with a component name.
func Logger(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}
