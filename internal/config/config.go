package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all ollamautil configuration.
type Config struct {
	Primary   LocationConfig `mapstructure:"primary" yaml:"primary"`
	Secondary LocationConfig `mapstructure:"secondary" yaml:"secondary"`
	Pointer   PointerConfig  `mapstructure:"pointer" yaml:"pointer"`
	Registry  RegistryConfig `mapstructure:"registry" yaml:"registry"`
	Daemon    DaemonConfig   `mapstructure:"daemon" yaml:"daemon"`
	Log       LogConfig      `mapstructure:"log" yaml:"log"`

	// IgnoreNames holds glob patterns for file names the inventory walk skips.
	IgnoreNames []string `mapstructure:"ignore_names" yaml:"ignore_names"`

	// WeightMediaMarkers are media-type substrings that mark model weight layers.
	WeightMediaMarkers []string `mapstructure:"weight_media_markers" yaml:"weight_media_markers"`
}

// LocationConfig names the root directory of one cache location.
type LocationConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
}

// PointerConfig holds the cache pointer symlink settings.
type PointerConfig struct {
	Link string `mapstructure:"link" yaml:"link"`
}

// RegistryConfig holds the remote model registry settings.
type RegistryConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
}

// DaemonConfig holds the local Ollama daemon API settings.
type DaemonConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Format string `mapstructure:"format" yaml:"format"` // "json" or "text"
	Level  string `mapstructure:"level" yaml:"level"`   // "debug", "info", "warn", "error"
}

// Load reads configuration from defaults, then config.yaml, then
// OLLAMAUTIL_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	home, _ := os.UserHomeDir()

	// The cache roots describe the user's drives and have no usable
	// default; commands that need them check Validate.
	v.SetDefault("primary.root", "")
	v.SetDefault("secondary.root", "")
	v.SetDefault("pointer.link", filepath.Join(home, ".ollama", "models"))
	v.SetDefault("registry.host", "registry.ollama.ai")
	v.SetDefault("daemon.url", "http://127.0.0.1:11434")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "warn")
	v.SetDefault("ignore_names", []string{".DS_Store"})
	v.SetDefault("weight_media_markers", []string{"ollama.image.model"})

	// Read from config file if exists
	if dir, err := Dir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
			// Config file not found, using defaults
		}
	}

	// Environment variables override
	v.SetEnvPrefix("OLLAMAUTIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Primary.Root = ExpandHome(cfg.Primary.Root)
	cfg.Secondary.Root = ExpandHome(cfg.Secondary.Root)
	cfg.Pointer.Link = ExpandHome(cfg.Pointer.Link)

	return &cfg, nil
}

// Validate checks that the settings cache operations depend on are present.
func (c *Config) Validate() error {
	if c.Primary.Root == "" || c.Secondary.Root == "" {
		path, _ := Path()
		return fmt.Errorf("cache roots not configured: set primary.root and secondary.root in %s, "+
			"or export OLLAMAUTIL_PRIMARY_ROOT and OLLAMAUTIL_SECONDARY_ROOT", path)
	}
	if c.Primary.Root == c.Secondary.Root {
		return fmt.Errorf("primary and secondary roots are both %q", c.Primary.Root)
	}
	return nil
}

// Dir returns the config directory (~/.config/ollamautil/ or platform equivalent).
// Can be overridden with OLLAMAUTIL_CONFIG_DIR env var (for testing).
func Dir() (string, error) {
	if dir := os.Getenv("OLLAMAUTIL_CONFIG_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "ollamautil"), nil
}

// Path returns the path to config.yaml.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Save writes the configuration to disk.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[1:])
	}
	return p
}
