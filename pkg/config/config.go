package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// DefaultEndpoint is the data source the dashboard was built against
const DefaultEndpoint = "https://blackcoffer-kunc.onrender.com/api/data"

// EnvPrefix is stripped from environment variables, e.g. DASHBOARD_PORT=9090
const EnvPrefix = "DASHBOARD_"

// Config holds all configuration for the application
type Config struct {
	Endpoint    string         `koanf:"endpoint"`
	Port        int            `koanf:"port"`
	OpenBrowser bool           `koanf:"open"`
	Verbosity   string         `koanf:"verbosity"`
	Log         LogConfig      `koanf:"log"`
	Fetch       FetchConfig    `koanf:"fetch"`
	FiltersFile string         `koanf:"filters_file"`
	Snapshot    SnapshotConfig `koanf:"snapshot"`
}

// LogConfig selects the log handler
type LogConfig struct {
	Format string `koanf:"format"` // compact or json
}

// FetchConfig controls how overlapping fetches are reconciled
type FetchConfig struct {
	// DiscardStale drops responses that resolve after a newer request was issued.
	// Off by default: the most recently resolved response is displayed.
	DiscardStale bool `koanf:"discard_stale"`
}

// SnapshotConfig controls the one-shot snapshot command
type SnapshotConfig struct {
	Out    string `koanf:"out"`
	Format string `koanf:"format"` // svg or png
}

// Options tells Load where to look. Zero values mean the defaults.
type Options struct {
	File    string // TOML config file, default dashboard.toml
	EnvFile string // dotenv file, default .env
}

// Load loads configuration from defaults, .env, config file, environment variables, and flags.
// Priority: Flags > Env > Config File > .env > Defaults
func Load(f *pflag.FlagSet, opts Options) (*Config, error) {
	if opts.File == "" {
		opts.File = "dashboard.toml"
	}
	if opts.EnvFile == "" {
		opts.EnvFile = ".env"
	}

	k := koanf.New(".")

	// 1. Defaults
	defaults := map[string]interface{}{
		"endpoint":     DefaultEndpoint,
		"port":         8080,
		"open":         false,
		"verbosity":    "info",
		"filters_file": "",
		"log": map[string]interface{}{
			"format": "compact",
		},
		"fetch": map[string]interface{}{
			"discard_stale": false,
		},
		"snapshot": map[string]interface{}{
			"out":    "charts",
			"format": "svg",
		},
	}
	if err := k.Load(makeMapProvider(defaults), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. .env only seeds the process environment; real env vars win over it
	if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", opts.EnvFile, err)
	}

	// 3. Config file (optional)
	if err := k.Load(file.Provider(opts.File), toml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", opts.File, err)
	}

	// 4. Environment variables. Double underscore separates sections:
	// DASHBOARD_FETCH__DISCARD_STALE=true -> fetch.discard_stale
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 5. Flags
	if f != nil {
		if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks values that would otherwise fail late
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Snapshot.Format {
	case "svg", "png":
	default:
		return fmt.Errorf("invalid snapshot format %q (want svg or png)", c.Snapshot.Format)
	}
	return nil
}

// Helper to use map as a provider
type mapProvider struct {
	m map[string]interface{}
}

func makeMapProvider(m map[string]interface{}) *mapProvider {
	return &mapProvider{m: m}
}

func (p *mapProvider) Read() (map[string]interface{}, error) {
	return p.m, nil
}

func (p *mapProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("not implemented")
}
