package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all heroshell and dumpd configuration.
type Config struct {
	// Interactive shell
	Shell ShellConfig `yaml:"shell"`

	// Client side of the dump protocol
	Transport TransportConfig `yaml:"transport"`

	// dumpd
	Server  ServerConfig  `yaml:"server"`
	Archive ArchiveConfig `yaml:"archive"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ShellConfig configures the REPL driver.
type ShellConfig struct {
	Prompt            string `yaml:"prompt"`
	ScriptCommand     string `yaml:"script_command"`
	MaxRecursionDepth int    `yaml:"max_recursion_depth"` // ceiling for the operator-supplied bound
	Color             bool   `yaml:"color"`               // styled errors when stderr is a terminal
}

// TransportConfig configures the UDP client.
type TransportConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	BufferSize int    `yaml:"buffer_size"`
	Timeout    string `yaml:"timeout"`
}

// ServerConfig configures dumpd.
type ServerConfig struct {
	Port       int  `yaml:"port"`
	BufferSize int  `yaml:"buffer_size"`
	Workers    int  `yaml:"workers"`
	WatchDump  bool `yaml:"watch_dump"` // drop the cache when the dump file changes on disk
}

// ArchiveConfig configures the snapshot archive.
type ArchiveConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"` // sqlite (pure Go) or sqlite3 (cgo)
	Path    string `yaml:"path"`
}

// MaxRecursionCeiling is the largest accepted shell.max_recursion_depth.
const MaxRecursionCeiling = 500

// ValidArchiveDrivers lists the supported database/sql driver names.
var ValidArchiveDrivers = []string{"sqlite", "sqlite3"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Shell: ShellConfig{
			Prompt:            "-> ",
			ScriptCommand:     "execute_script",
			MaxRecursionDepth: MaxRecursionCeiling,
			Color:             true,
		},

		Transport: TransportConfig{
			Host:       "localhost",
			Port:       1448,
			BufferSize: 8096,
			Timeout:    "3s",
		},

		Server: ServerConfig{
			Port:       1448,
			BufferSize: 8096,
			Workers:    8,
			WatchDump:  true,
		},

		Archive: ArchiveConfig{
			Enabled: false,
			Driver:  "sqlite",
			Path:    "data/archive.db",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Dir:    ".heroshell/logs",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies HEROSHELL_* environment variables.
func (c *Config) applyEnvOverrides() {
	if host := os.Getenv("HEROSHELL_SERVER"); host != "" {
		c.Transport.Host = host
	}
	if prompt := os.Getenv("HEROSHELL_PROMPT"); prompt != "" {
		c.Shell.Prompt = prompt
	}
	if port := os.Getenv("HEROSHELL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Transport.Port = p
			c.Server.Port = p
		}
	}
	if path := os.Getenv("HEROSHELL_ARCHIVE"); path != "" {
		c.Archive.Enabled = true
		c.Archive.Path = path
	}
	if debug := os.Getenv("HEROSHELL_DEBUG"); debug != "" {
		if on, err := strconv.ParseBool(debug); err == nil {
			c.Logging.DebugMode = on
		}
	}
}

// GetTransportTimeout returns the client response timeout.
func (c *Config) GetTransportTimeout() time.Duration {
	d, err := time.ParseDuration(c.Transport.Timeout)
	if err != nil || d <= 0 {
		return 3 * time.Second
	}
	return d
}

// ServerAddr returns the dump server address as host:port.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Transport.Host, c.Transport.Port)
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	if c.Shell.MaxRecursionDepth < 1 || c.Shell.MaxRecursionDepth > MaxRecursionCeiling {
		return fmt.Errorf("shell.max_recursion_depth must be in [1,%d], got %d", MaxRecursionCeiling, c.Shell.MaxRecursionDepth)
	}
	if c.Shell.ScriptCommand == "" {
		return fmt.Errorf("shell.script_command must not be empty")
	}
	if err := validatePort("transport.port", c.Transport.Port); err != nil {
		return err
	}
	if err := validatePort("server.port", c.Server.Port); err != nil {
		return err
	}
	if c.Transport.BufferSize <= 0 || c.Server.BufferSize <= 0 {
		return fmt.Errorf("buffer sizes must be positive")
	}
	if c.Server.Workers <= 0 {
		return fmt.Errorf("server.workers must be positive, got %d", c.Server.Workers)
	}

	if c.Archive.Enabled {
		validDriver := false
		for _, d := range ValidArchiveDrivers {
			if c.Archive.Driver == d {
				validDriver = true
				break
			}
		}
		if !validDriver {
			return fmt.Errorf("invalid archive driver: %s (valid: %v)", c.Archive.Driver, ValidArchiveDrivers)
		}
		if c.Archive.Path == "" {
			return fmt.Errorf("archive.path must be set when the archive is enabled")
		}
	}

	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%s must be in [1,65535], got %d", name, port)
	}
	return nil
}
