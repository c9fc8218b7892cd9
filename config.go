package sinktrace

import "github.com/hazyhaar/sinktrace/internal/config"

// Config aliases the internal configuration so library consumers can build
// and load one without reaching into internal packages.
type (
	Config        = config.Config
	BrowserConfig = config.BrowserConfig
	TraceConfig   = config.TraceConfig
	StoreConfig   = config.StoreConfig
	BridgeConfig  = config.BridgeConfig
)

// LoadConfig reads a YAML configuration file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with all defaults applied.
func DefaultConfig() *Config {
	return config.Default()
}
