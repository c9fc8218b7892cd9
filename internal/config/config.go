// Package config handles sinktrace configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level sinktrace configuration.
type Config struct {
	Listen  string        `yaml:"listen"`
	Browser BrowserConfig `yaml:"browser"`
	Trace   TraceConfig   `yaml:"trace"`
	Store   StoreConfig   `yaml:"store"`
	Bridge  BridgeConfig  `yaml:"bridge"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via the launcher.
	Remote string `yaml:"remote"`
	// Headful disables headless mode for visual follow-up inspection.
	Headful bool `yaml:"headful"`
	// ResourceBlocking lists resource types to block (images, fonts, media).
	ResourceBlocking []string `yaml:"resource_blocking"`
}

// TraceConfig controls session processing and frame extraction.
type TraceConfig struct {
	// PauseTimeout bounds waiting for the debugger pause per session.
	PauseTimeout time.Duration `yaml:"pause_timeout"`
	// DefaultMaxSinks caps matched records when the caller passes none.
	DefaultMaxSinks int `yaml:"default_max_sinks"`
	// Concurrency > 1 processes sessions concurrently in isolated contexts.
	Concurrency int `yaml:"concurrency"`
	// CloseContexts closes each browsing context after its session instead
	// of leaving it open for manual inspection.
	CloseContexts bool `yaml:"close_contexts"`

	MaxFrames    int `yaml:"max_frames"`
	MaxScopes    int `yaml:"max_scopes"`
	MaxProps     int `yaml:"max_props"`
	SourceWindow int `yaml:"source_window"`
}

// StoreConfig selects the sink store backend. Empty path = in-memory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// BridgeConfig selects the reproduction bridge.
type BridgeConfig struct {
	Type string `yaml:"type"` // navigate | webhook
	URL  string `yaml:"url"`  // webhook endpoint of the reproduction agent
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8632"
	}
	if c.Trace.PauseTimeout <= 0 {
		c.Trace.PauseTimeout = 20 * time.Second
	}
	if c.Trace.DefaultMaxSinks <= 0 {
		c.Trace.DefaultMaxSinks = 10
	}
	if c.Trace.Concurrency <= 0 {
		c.Trace.Concurrency = 1
	}
	if c.Trace.MaxFrames <= 0 {
		c.Trace.MaxFrames = 5
	}
	if c.Trace.MaxScopes <= 0 {
		c.Trace.MaxScopes = 3
	}
	if c.Trace.MaxProps <= 0 {
		c.Trace.MaxProps = 15
	}
	if c.Trace.SourceWindow <= 0 {
		c.Trace.SourceWindow = 5
	}
	if c.Bridge.Type == "" {
		c.Bridge.Type = "navigate"
	}
}
