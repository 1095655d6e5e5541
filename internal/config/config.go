package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Article sources.
const (
	SourceStatic = "static"
	SourceFeeds  = "feeds"
)

type Config struct {
	Catalog Catalog `yaml:"catalog"`
	Store   Store   `yaml:"store"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type Catalog struct {
	Source       string `yaml:"source"`
	FetchContent bool   `yaml:"fetch_content"`
	Feeds        []Feed `yaml:"feeds"`
}

type Feed struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

type Store struct {
	LoadDelay   time.Duration `yaml:"load_delay"`
	SearchDelay time.Duration `yaml:"search_delay"`
	// Seed fixes the personalization and refresh order; 0 seeds from the clock.
	Seed uint64 `yaml:"seed"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for newsdesk.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsdesk")
}

// DataDir returns the XDG data directory for newsdesk.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsdesk")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsdesk/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsdesk init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Catalog: Catalog{Source: SourceStatic},
		Store: Store{
			LoadDelay:   time.Second,
			SearchDelay: 500 * time.Millisecond,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem in the config at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Catalog.Source {
	case SourceStatic:
	case SourceFeeds:
		if len(c.Catalog.Feeds) == 0 {
			errs = append(errs, errors.New("catalog.source is feeds but catalog.feeds is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("catalog.source: unknown source %q", c.Catalog.Source))
	}
	for i, f := range c.Catalog.Feeds {
		if strings.TrimSpace(f.URL) == "" {
			errs = append(errs, fmt.Errorf("catalog.feeds[%d]: url is required", i))
		}
		if strings.TrimSpace(f.Category) == "" {
			errs = append(errs, fmt.Errorf("catalog.feeds[%d]: category is required", i))
		}
	}

	if c.Store.LoadDelay < 0 {
		errs = append(errs, errors.New("store.load_delay must not be negative"))
	}
	if c.Store.SearchDelay < 0 {
		errs = append(errs, errors.New("store.search_delay must not be negative"))
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	return errors.Join(errs...)
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
