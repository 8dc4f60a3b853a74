// Package config loads the engraver configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration, decoded from YAML.
type Config struct {
	Feed     FeedConfig     `yaml:"feed"`
	DB       DBConfig       `yaml:"db"`
	Paths    PathsConfig    `yaml:"paths"`
	Renderer RendererConfig `yaml:"renderer"`
	Log      LogConfig      `yaml:"log"`
}

// FeedConfig locates the order feed.
type FeedConfig struct {
	// Location is an http(s) URL or a local file path.
	Location string `yaml:"location"`
	// Format optionally overrides content-kind inference:
	// "delimited", "structured" or "markup".
	Format string `yaml:"format"`
}

// DBConfig locates the order database.
type DBConfig struct {
	Path string `yaml:"path"`
}

// PathsConfig locates templates, decorative assets and the working area.
type PathsConfig struct {
	Templates string `yaml:"templates"`
	Assets    string `yaml:"assets"`
	Workdir   string `yaml:"workdir"`
}

// RendererConfig describes the external rendering program.
type RendererConfig struct {
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	Timeout     Duration `yaml:"timeout"`
	SettleDelay Duration `yaml:"settle_delay"`
}

// Duration decodes Go duration strings ("2m", "200ms") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"` // "debug", "info", "warn", "error"
}

// Default returns the configuration used when a field is absent from the
// file.
func Default() Config {
	return Config{
		DB: DBConfig{Path: "engraver.db"},
		Paths: PathsConfig{
			Templates: "templates",
			Assets:    "assets",
			Workdir:   "work",
		},
		Renderer: RendererConfig{
			Timeout:     Duration(2 * time.Minute),
			SettleDelay: Duration(200 * time.Millisecond),
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads and validates the configuration file at path.
// Absent fields keep their defaults; unknown keys are rejected so a typo
// fails loudly instead of silently keeping a default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Feed.Location == "" {
		return fmt.Errorf("feed.location is required")
	}
	switch c.Feed.Format {
	case "", "delimited", "structured", "markup":
	default:
		return fmt.Errorf("feed.format %q: must be delimited, structured or markup", c.Feed.Format)
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db.path is required")
	}
	if c.Renderer.Timeout < 0 {
		return fmt.Errorf("renderer.timeout must not be negative")
	}
	if c.Renderer.SettleDelay < 0 {
		return fmt.Errorf("renderer.settle_delay must not be negative")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: must be debug, info, warn or error", c.Log.Level)
	}
	return nil
}
