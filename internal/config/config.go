package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the backboard service.
type Config struct {
	Server  Server  `yaml:"server"`
	Engine  Engine  `yaml:"engine"`
	Share   Share   `yaml:"share"`
	Restore Restore `yaml:"restore"`
	Logging Logging `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Engine holds the endpoint of the backtest computation service.
type Engine struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Share configures link building. BaseURL is the public dashboard URL that
// generated share links point at.
type Share struct {
	BaseURL string `yaml:"base_url"`
}

// Restore configures the bootstrap path. StartupURL, when set, is restored on
// server start as if a user had opened that link.
type Restore struct {
	DelayMS    int    `yaml:"delay_ms"`
	StartupURL string `yaml:"startup_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:  Server{Host: "0.0.0.0", Port: 8080},
		Engine:  Engine{BaseURL: "http://localhost:8000", TimeoutSeconds: 120},
		Share:   Share{BaseURL: "http://localhost:8080/"},
		Restore: Restore{DelayMS: 100},
		Logging: Logging{Level: "info", Format: "json"},
	}
}

// Load reads the YAML configuration file at the given path, parses it on top
// of the defaults, and then applies environment variable overrides. An empty
// path skips the file and uses defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}

	if v := os.Getenv("ENGINE_BASE_URL"); v != "" {
		cfg.Engine.BaseURL = v
	}
	if v := os.Getenv("ENGINE_TIMEOUT_SECONDS"); v != "" {
		if s, err := strconv.Atoi(v); err == nil {
			cfg.Engine.TimeoutSeconds = s
		}
	}

	if v := os.Getenv("SHARE_BASE_URL"); v != "" {
		cfg.Share.BaseURL = v
	}

	if v := os.Getenv("RESTORE_STARTUP_URL"); v != "" {
		cfg.Restore.StartupURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
