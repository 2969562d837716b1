package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is everything the statusd process needs to boot.
type Config struct {
	Server   ServerConfig  `yaml:"server"`
	Database DBConfig      `yaml:"database"`
	Monitor  MonitorConfig `yaml:"monitor"`
	Logging  LogConfig     `yaml:"logging"`
	Services []ServiceSpec `yaml:"services"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Address        string   `yaml:"address"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// DBConfig controls SQLite persistence. An empty path selects the in-memory
// store (useful for local runs without durability).
type DBConfig struct {
	Path string `yaml:"path"`
}

// MonitorConfig tunes the engine. Intervals are plain seconds/days so the
// file stays copy-paste friendly.
type MonitorConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds"` // cycle period
	TimeoutSeconds  int `yaml:"timeoutSeconds"`  // per-probe timeout
	RetentionDays   int `yaml:"retentionDays"`   // outcome retention window
}

func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

func (m MonitorConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

func (m MonitorConfig) Retention() time.Duration {
	return time.Duration(m.RetentionDays) * 24 * time.Hour
}

// LogConfig controls structured logging.
type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// ServiceSpec is one configured endpoint. The list seeds the services table
// at startup; it is not consulted by the engine at runtime.
type ServiceSpec struct {
	Name           string `yaml:"name"`
	URL            string `yaml:"url"`
	CheckType      string `yaml:"check_type"`
	ExpectedStatus string `yaml:"expected_status"`
	Domains        string `yaml:"domains"`
}

// Load reads the YAML file at path (or $STATUSD_CONFIG when path is empty),
// layered over defaults, then applies environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("STATUSD_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address: "127.0.0.1:8080",
		},
		Database: DBConfig{
			Path: "status.db",
		},
		Monitor: MonitorConfig{
			IntervalSeconds: 60,
			TimeoutSeconds:  10,
			RetentionDays:   30,
		},
		Logging: LogConfig{
			Dir:   "logs",
			Level: "info",
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STATUSD_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("STATUSD_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("STATUSD_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v := os.Getenv("STATUSD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if n, ok := envInt("STATUSD_CHECK_INTERVAL"); ok {
		cfg.Monitor.IntervalSeconds = n
	}
	if n, ok := envInt("STATUSD_TIMEOUT"); ok {
		cfg.Monitor.TimeoutSeconds = n
	}
	if n, ok := envInt("STATUSD_RETENTION_DAYS"); ok {
		cfg.Monitor.RetentionDays = n
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func (c *Config) validate() error {
	if c.Monitor.IntervalSeconds <= 0 {
		return fmt.Errorf("monitor.intervalSeconds must be positive")
	}
	if c.Monitor.TimeoutSeconds <= 0 {
		return fmt.Errorf("monitor.timeoutSeconds must be positive")
	}
	if c.Monitor.RetentionDays <= 0 {
		return fmt.Errorf("monitor.retentionDays must be positive")
	}

	names := make(map[string]struct{}, len(c.Services))
	urls := make(map[string]struct{}, len(c.Services))
	for _, s := range c.Services {
		if s.Name == "" || s.URL == "" {
			return fmt.Errorf("every service needs a name and a url")
		}
		if _, dup := names[s.Name]; dup {
			return fmt.Errorf("duplicate service name %q", s.Name)
		}
		if _, dup := urls[s.URL]; dup {
			return fmt.Errorf("duplicate service url %q", s.URL)
		}
		names[s.Name] = struct{}{}
		urls[s.URL] = struct{}{}
	}
	return nil
}
