// Package config manages YAML-based configuration and command line overrides.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for cfbtool
type Config struct {
	// Listing defaults
	Long  bool `yaml:"long"`
	All   bool `yaml:"all"`
	Color bool `yaml:"color"`
	Debug bool `yaml:"debug"`

	// Extraction
	DumpDir    string `yaml:"dump_dir"`
	DumpSuffix string `yaml:"dump_suffix"`
	Progress   bool   `yaml:"progress"`

	// Interactive explorer
	Quit      string `yaml:"quit"`
	AllowBack bool   `yaml:"allow_back"`

	// Browse server
	Port int `yaml:"port"`

	// Internal: path to config file for saving
	configPath string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Color:      true,
		DumpDir:    "root",
		DumpSuffix: ".dump",
		Quit:       "q",
		Port:       8080,
	}
}

// GetConfigDir returns the config directory path
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/cfbtool"
	}
	return filepath.Join(home, ".config", "cfbtool")
}

// GetConfigPath returns the full path to the config file
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// Load returns the defaults overlaid with the config file. An explicit
// configFile must exist and parse; otherwise ~/.config/cfbtool/config.yaml
// and then ./cfbtool.yaml are tried and silently skipped when absent.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	var cfgPath string
	if configFile != "" {
		cfgPath = configFile
	} else {
		globalConfig := GetConfigPath()
		if _, err := os.Stat(globalConfig); err == nil {
			cfgPath = globalConfig
		} else if _, err := os.Stat("cfbtool.yaml"); err == nil {
			cfgPath = "cfbtool.yaml"
		}
	}

	if cfgPath != "" {
		if err := cfg.loadFromFile(cfgPath); err != nil && configFile != "" {
			// Only return error if user explicitly specified config file
			return nil, err
		}
		cfg.configPath = cfgPath
	} else {
		cfg.configPath = GetConfigPath()
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults restores defaults for keys a config file left empty.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.DumpDir == "" {
		c.DumpDir = d.DumpDir
	}
	if c.Quit == "" {
		c.Quit = d.Quit
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// Save saves the current configuration to the config file
func (c *Config) Save() error {
	configDir := filepath.Dir(c.configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(c.configPath, data, 0644)
}

// GetConfigFilePath returns the path to the config file
func (c *Config) GetConfigFilePath() string {
	return c.configPath
}

// DumpRoot returns the destination directory for a recursive dump
// relative to cwd.
func (c *Config) DumpRoot(cwd string) string {
	if filepath.IsAbs(c.DumpDir) {
		return c.DumpDir
	}
	return filepath.Join(cwd, c.DumpDir)
}
