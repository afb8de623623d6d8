// Package config loads waypoint settings from a YAML, JSON or TOML file and
// applies WAYPOINT_* environment overrides on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/aretw0/waypoint/internal/cleanup"
	"github.com/aretw0/waypoint/internal/element"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config is the full set of settings.
type Config struct {
	// Tour is a definition file (.yaml, .yml, .json) or a directory of step documents.
	// Empty selects the built-in tour.
	Tour    string        `yaml:"tour" toml:"tour"`
	Engine  EngineConfig  `yaml:"engine" toml:"engine"`
	Store   StoreConfig   `yaml:"store" toml:"store"`
	HTTP    HTTPConfig    `yaml:"http" toml:"http"`
	Browser BrowserConfig `yaml:"browser" toml:"browser"`
	Log     LogConfig     `yaml:"log" toml:"log"`
}

// EngineConfig tunes timing and side-effect handling.
type EngineConfig struct {
	ElementTimeout     Duration                   `yaml:"element_timeout" toml:"element_timeout"`
	VisibilityInterval Duration                   `yaml:"visibility_interval" toml:"visibility_interval"`
	ValidationTimeout  Duration                   `yaml:"validation_timeout" toml:"validation_timeout"`
	CompletionDelay    Duration                   `yaml:"completion_delay" toml:"completion_delay"`
	CleanupDelays      []Duration                 `yaml:"cleanup_delays" toml:"cleanup_delays"`
	Protected          []cleanup.ProtectedElement `yaml:"protected" toml:"protected"`
	ExpansionControl   string                     `yaml:"expansion_control" toml:"expansion_control"`
	ExpandedIndicator  string                     `yaml:"expanded_indicator" toml:"expanded_indicator"`
	StrictValidation   bool                       `yaml:"strict_validation" toml:"strict_validation"`
}

// StoreConfig selects where progress and completion flags live.
type StoreConfig struct {
	Backend       string   `yaml:"backend" toml:"backend"`
	Path          string   `yaml:"path" toml:"path"`
	RedisAddr     string   `yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password" toml:"redis_password"`
	RedisDB       int      `yaml:"redis_db" toml:"redis_db"`
	TTL           Duration `yaml:"ttl" toml:"ttl"`
	SQLiteDSN     string   `yaml:"sqlite_dsn" toml:"sqlite_dsn"`
	// PseudonymKey, when set, replaces session and user IDs with keyed
	// hashes before they reach the backend.
	PseudonymKey  string   `yaml:"pseudonym_key" toml:"pseudonym_key"`
}

// HTTPConfig holds listen addresses. An empty metrics address serves
// /metrics on the API listener.
type HTTPConfig struct {
	Addr        string `yaml:"addr" toml:"addr"`
	MetricsAddr string `yaml:"metrics_addr" toml:"metrics_addr"`
}

// BrowserConfig is used by commands that drive a live page.
type BrowserConfig struct {
	URL        string `yaml:"url" toml:"url"`
	ControlURL string `yaml:"control_url" toml:"control_url"`
	Headless   bool   `yaml:"headless" toml:"headless"`
	Bin        string `yaml:"bin" toml:"bin"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	delays := make([]Duration, len(cleanup.DefaultDelays))
	for i, d := range cleanup.DefaultDelays {
		delays[i] = Duration(d)
	}
	return Config{
		Engine: EngineConfig{
			ElementTimeout:     Duration(element.DefaultTimeout),
			VisibilityInterval: Duration(element.DefaultVisibilityInterval),
			ValidationTimeout:  Duration(2 * time.Second),
			CompletionDelay:    Duration(500 * time.Millisecond),
			CleanupDelays:      delays,
			Protected:          cleanup.DefaultProtected(),
			ExpansionControl:   `button[class*="realmExpandButton"]`,
			ExpandedIndicator:  `svg[data-icon="chevron-up"]`,
		},
		Store: StoreConfig{
			Backend:   StoreMemory,
			RedisAddr: "localhost:6379",
			SQLiteDSN: "waypoint.db",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		Browser: BrowserConfig{
			Headless: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := decode(data, filepath.Ext(path), &cfg); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func decode(data []byte, ext string, cfg *Config) error {
	switch strings.ToLower(ext) {
	case ".toml":
		md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
		if err != nil {
			return fmt.Errorf("failed to parse toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("unknown config keys: %v", undecoded)
		}
	default:
		// JSON is valid YAML.
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to parse yaml: %w", err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from WAYPOINT_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = Duration(d)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("WAYPOINT_TOUR", &c.Tour)
	dur("WAYPOINT_ELEMENT_TIMEOUT", &c.Engine.ElementTimeout)
	dur("WAYPOINT_COMPLETION_DELAY", &c.Engine.CompletionDelay)
	boolean("WAYPOINT_STRICT_VALIDATION", &c.Engine.StrictValidation)
	str("WAYPOINT_STORE", &c.Store.Backend)
	str("WAYPOINT_STORE_PATH", &c.Store.Path)
	str("WAYPOINT_REDIS_ADDR", &c.Store.RedisAddr)
	str("WAYPOINT_REDIS_PASSWORD", &c.Store.RedisPassword)
	str("WAYPOINT_SQLITE_DSN", &c.Store.SQLiteDSN)
	str("WAYPOINT_PSEUDONYM_KEY", &c.Store.PseudonymKey)
	str("WAYPOINT_HTTP_ADDR", &c.HTTP.Addr)
	str("WAYPOINT_METRICS_ADDR", &c.HTTP.MetricsAddr)
	str("WAYPOINT_BROWSER_URL", &c.Browser.URL)
	str("WAYPOINT_BROWSER_CONTROL_URL", &c.Browser.ControlURL)
	boolean("WAYPOINT_BROWSER_HEADLESS", &c.Browser.Headless)
	str("WAYPOINT_LOG_LEVEL", &c.Log.Level)
	str("WAYPOINT_LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Engine.ElementTimeout <= 0 {
		errs = append(errs, errors.New("engine.element_timeout must be positive"))
	}
	if c.Engine.CompletionDelay < 0 {
		errs = append(errs, errors.New("engine.completion_delay must not be negative"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Delays converts the configured cleanup delays.
func (e EngineConfig) Delays() []time.Duration {
	out := make([]time.Duration, len(e.CleanupDelays))
	for i, d := range e.CleanupDelays {
		out[i] = time.Duration(d)
	}
	return out
}
