package marrow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/marrow/mapper"
	"github.com/hazyhaar/marrow/registry"
)

// Config assembles the pipeline's configuration. All values arrive here
// explicitly; environment parsing lives in cmd, never inside constructors.
type Config struct {
	Registry registry.Config       `yaml:"registry"`
	Provider mapper.ProviderConfig `yaml:"provider"`

	// Headless controls the mapping browser. Escalation always opens a
	// visible browser regardless of this setting.
	Headless bool `yaml:"headless"`

	// SessionDir overrides the session vault location.
	// Empty means <home>/.marrow/sessions.
	SessionDir string `yaml:"session_dir"`

	// ScrollCount is how many lazy-load scrolls run before a snapshot.
	ScrollCount int `yaml:"scroll_count"`

	// DiscoveryTimeout bounds one AI discovery call.
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`

	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig holds the API front-end settings consumed by cmd and api.
type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	RateLimit      int      `yaml:"rate_limit"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func (c *Config) defaults() {
	if c.ScrollCount == 0 {
		c.ScrollCount = 3
	}
	if c.DiscoveryTimeout <= 0 {
		c.DiscoveryTimeout = 2 * time.Minute
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RateLimit == 0 {
		c.HTTP.RateLimit = 60
	}
}

// LoadConfig reads a YAML config file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("marrow: read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("marrow: parse config: %w", err)
	}
	cfg.defaults()
	return cfg, nil
}
