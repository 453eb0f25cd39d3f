package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Push     PushConfig     `yaml:"push"`
	LogLevel string         `yaml:"log_level"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// DSN builds the sqlite connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", d.Path)
}

type ScrapeConfig struct {
	UserAgent string        `yaml:"user_agent"`
	Timeout   time.Duration `yaml:"timeout"`
	Delay     time.Duration `yaml:"delay"`
	Parallel  int           `yaml:"parallel"`
}

type PushConfig struct {
	Subscriber      string `yaml:"subscriber"`
	VAPIDPublicKey  string `yaml:"vapid_public_key"`
	VAPIDPrivateKey string `yaml:"vapid_private_key"`
	TTLSeconds      int    `yaml:"ttl_seconds"`
}

// Enabled reports whether push delivery is configured at all. Without keys
// the collector runs store-only.
func (p PushConfig) Enabled() bool {
	return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != ""
}

// Load reads the yaml config at path. A .env file next to the working
// directory is loaded first and ${VAR} references in the yaml are expanded,
// so secrets like the VAPID private key stay out of the config file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	return &cfg, nil
}

// Default returns a config without reading any file, env expansion still
// applied to the push secrets.
func Default() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Push: PushConfig{
			Subscriber:      os.Getenv("PUSH_SUBSCRIBER"),
			VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		},
	}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "koyama-events.db"
	}
	if c.Scrape.Timeout == 0 {
		c.Scrape.Timeout = 15 * time.Second
	}
	if c.Scrape.Delay == 0 {
		c.Scrape.Delay = 500 * time.Millisecond
	}
	if c.Scrape.Parallel == 0 {
		c.Scrape.Parallel = 3
	}
	if c.Push.TTLSeconds == 0 {
		c.Push.TTLSeconds = 3600
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
