package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

// Config holds everything the binary needs to find its catalog database,
// its search index and the HTTP listener.
type Config struct {
	DatabasePath string       `toml:"database_path"`
	IndexPath    string       `toml:"index_path"`
	Engine       EngineConfig `toml:"engine"`
	Server       ServerConfig `toml:"server"`
	Search       SearchConfig `toml:"search"`
}

// EngineConfig controls the optional bleve full-text engine.
type EngineConfig struct {
	Enabled bool `toml:"enabled"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port string `toml:"port"`
}

// SearchConfig bounds pagination for the search endpoints.
type SearchConfig struct {
	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
}

// GetDefaultConfig returns a config pointing at the XDG data directory with
// the engine enabled.
func GetDefaultConfig() (*Config, error) {
	dataDir, err := GetDefaultDataDir()
	if err != nil {
		return nil, fmt.Errorf("getting default data directory: %w", err)
	}
	return &Config{
		DatabasePath: filepath.Join(dataDir, "catalog.db"),
		IndexPath:    filepath.Join(dataDir, "index.bleve"),
		Engine:       EngineConfig{Enabled: true},
		Server:       ServerConfig{Host: "localhost", Port: "8080"},
		Search:       SearchConfig{DefaultPageSize: 12, MaxPageSize: 100},
	}, nil
}

// LoadConfig reads the TOML config at configPath, falling back to defaults
// for a missing file or missing fields.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	defaults, err := GetDefaultConfig()
	if err != nil {
		return nil, err
	}
	if config.DatabasePath == "" {
		config.DatabasePath = defaults.DatabasePath
	}
	if config.IndexPath == "" {
		config.IndexPath = defaults.IndexPath
	}
	if config.Server.Host == "" {
		config.Server.Host = defaults.Server.Host
	}
	if config.Server.Port == "" {
		config.Server.Port = defaults.Server.Port
	}
	if config.Search.DefaultPageSize <= 0 {
		config.Search.DefaultPageSize = defaults.Search.DefaultPageSize
	}
	if config.Search.MaxPageSize <= 0 {
		config.Search.MaxPageSize = defaults.Search.MaxPageSize
	}

	return &config, nil
}

// SaveConfig writes the config as TOML.
func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the annotated sample config with paths adjusted
// to this machine.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	dbPath := c.DatabasePath
	indexPath := c.IndexPath
	if dbPath == "" || indexPath == "" {
		defaults, err := GetDefaultConfig()
		if err != nil {
			return "", err
		}
		if dbPath == "" {
			dbPath = defaults.DatabasePath
		}
		if indexPath == "" {
			indexPath = defaults.IndexPath
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/reliquary/catalog.db", dbPath, 1)
	template = strings.Replace(template, "/home/user/.local/share/reliquary/index.bleve", indexPath, 1)
	return template, nil
}

// GetDefaultDataDir returns the default directory for the catalog database
// and the search index.
func GetDefaultDataDir() (string, error) {
	// Use XDG_DATA_HOME if set, otherwise use ~/.local/share
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	appDir := filepath.Join(dataDir, "reliquary")

	if err := os.MkdirAll(appDir, 0755); err != nil {
		return "", fmt.Errorf("creating data directory %s: %w", appDir, err)
	}

	return appDir, nil
}

// GetConfigDir returns the configuration directory for reliquary.
func GetConfigDir() (string, error) {
	// Use XDG_CONFIG_HOME if set, otherwise use ~/.config
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	appConfigDir := filepath.Join(configDir, "reliquary")

	if err := os.MkdirAll(appConfigDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", appConfigDir, err)
	}

	return appConfigDir, nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
