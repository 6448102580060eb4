package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultListenAddress = ":9219"
	DefaultMetricsPath   = "/metrics"
	DefaultStoreType     = "auto"
)

// Config is the top-level agent configuration.
type Config struct {
	Agent       AgentConfig        `yaml:"agent"`
	TrustStores []TrustStoreConfig `yaml:"truststores"`
}

// AgentConfig holds process-level settings.
type AgentConfig struct {
	// ListenAddress is the host:port the metrics endpoint listens on.
	ListenAddress string `yaml:"listen_address"`

	// MetricsPath is the HTTP path the exposition is served on.
	MetricsPath string `yaml:"metrics_path"`

	// Watch logs trust store changes on disk. Gauges are never re-registered;
	// a restart is needed to pick up new or removed aliases.
	Watch bool `yaml:"watch"`
}

// TrustStoreConfig describes one monitored trust store.
type TrustStoreConfig struct {
	// Path is the filesystem path of the container, cleaned on load.
	Path string `yaml:"path"`

	// Type is the container format: auto | jks | pkcs12.
	Type string `yaml:"type"`

	// PasswordEnv is the name of the environment variable holding the
	// store password.
	PasswordEnv string `yaml:"password_env"`

	// Password is a literal store password. Prefer PasswordEnv outside of
	// development setups.
	Password string `yaml:"password"`
}

// Secret returns the store password, resolved from PasswordEnv when that
// variable is set and falling back to the literal Password.
func (t TrustStoreConfig) Secret() string {
	if t.PasswordEnv != "" {
		if v, ok := os.LookupEnv(t.PasswordEnv); ok {
			return v
		}
	}
	return t.Password
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	for i := range cfg.TrustStores {
		if cfg.TrustStores[i].Path != "" {
			cfg.TrustStores[i].Path = filepath.Clean(cfg.TrustStores[i].Path)
		}
		if cfg.TrustStores[i].Type == "" {
			cfg.TrustStores[i].Type = DefaultStoreType
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			ListenAddress: DefaultListenAddress,
			MetricsPath:   DefaultMetricsPath,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Agent.ListenAddress == "" {
		return fmt.Errorf("agent.listen_address is required")
	}
	if !strings.HasPrefix(cfg.Agent.MetricsPath, "/") {
		return fmt.Errorf("agent.metrics_path must start with /")
	}
	if len(cfg.TrustStores) == 0 {
		return fmt.Errorf("at least one truststore is required")
	}
	seen := make(map[string]bool, len(cfg.TrustStores))
	for i, ts := range cfg.TrustStores {
		if ts.Path == "" {
			return fmt.Errorf("truststores[%d]: path is required", i)
		}
		if seen[ts.Path] {
			return fmt.Errorf("truststores[%d]: duplicate path %q", i, ts.Path)
		}
		seen[ts.Path] = true
		switch ts.Type {
		case "auto", "jks", "pkcs12":
		default:
			return fmt.Errorf("truststores[%d] %q: unknown type %q", i, ts.Path, ts.Type)
		}
	}
	return nil
}
