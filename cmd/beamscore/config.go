package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the beamscore configuration file
// (~/.config/beamscore/config.yaml). Flags given on the command line win.
type Config struct {
	Pipeline string `yaml:"pipeline"`

	// Output
	Format    string `yaml:"format"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
	StoreCapacity *int   `yaml:"store_capacity"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "beamscore", "config.yaml")
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

func applyPipelineConfig(c *cli.Command, cfg Config) {
	if cfg.Pipeline != "" && !c.IsSet("pipeline") {
		pipelinePath = cfg.Pipeline
	}
}

// applyScoreConfig applies config file defaults to score command variables.
func applyScoreConfig(c *cli.Command, cfg Config, format *string) {
	applyPipelineConfig(c, cfg)
	if cfg.Format != "" && !c.IsSet("format") {
		*format = cfg.Format
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string, capacity *int64) {
	applyPipelineConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
	if cfg.StoreCapacity != nil && !c.IsSet("store-capacity") {
		*capacity = int64(*cfg.StoreCapacity)
	}
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	return loadConfigFile(configPath())
}

func loadConfigFile(path string) Config {
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
