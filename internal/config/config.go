// Package config loads the backend configuration document and resolves
// environment-specific service endpoints.
//
// Loading is layered: built-in defaults, then the YAML file, then
// validation. Downstream components consume the typed Config only,
// never the raw document.
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/liurenke/renkebot/internal/apperr"
)

// Config holds all runtime settings for the chat backend.
type Config struct {
	Server   ServerConfig             `yaml:"server"`
	Model    ModelConfig              `yaml:"model"`
	Prompt   PromptConfig             `yaml:"prompt"`
	Services map[string]ServiceConfig `yaml:"services"`

	// DefaultEnvironment is the fallback tag when the detected
	// environment has no host entry for a service.
	DefaultEnvironment string `yaml:"default_environment"`

	MetricsNamespace string `yaml:"metrics_namespace"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	BindAddr        string        `yaml:"bind_addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ModelConfig holds model-provider settings, passed through to the
// provider client unchanged.
type ModelConfig struct {
	Provider    string        `yaml:"provider"` // "openai" or "anthropic"
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"` // supports "env:VAR_NAME" indirection
	BaseURL     string        `yaml:"base_url"`
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// PromptConfig locates the fixed system prompt, read once at startup.
type PromptConfig struct {
	SystemFile string `yaml:"system_file"`
}

// ServiceConfig describes one logical backing service. Host is either a
// single literal or an environment-keyed mapping; exactly one of the
// two forms is expected.
type ServiceConfig struct {
	Backend string            `yaml:"backend"` // "redis", "postgres", "memory"
	Host    string            `yaml:"host"`
	Hosts   map[string]string `yaml:"hosts"`
	Port    int               `yaml:"port"`
	DB      int               `yaml:"db"`
	DSN     string            `yaml:"dsn"`
	TTL     time.Duration     `yaml:"ttl"`
}

// HistoryStoreService is the logical name of the session history store.
const HistoryStoreService = "history-store"

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			BindAddr:        ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Model: ModelConfig{
			Provider:  "openai",
			MaxTokens: 1024,
			Timeout:   60 * time.Second,
		},
		DefaultEnvironment: "local",
		MetricsNamespace:   "renkebot",
		Services: map[string]ServiceConfig{
			HistoryStoreService: {
				Backend: "memory",
				Port:    6379,
				TTL:     time.Hour,
			},
		},
	}
}

// Load reads the YAML config document at path, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Configuration("read config file %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, apperr.Configuration("parse config file %s: %v", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and valid values, reporting the field
// path on failure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.BindAddr) == "" {
		return apperr.Configuration("server.bind_addr must not be empty")
	}
	switch c.Model.Provider {
	case "openai", "anthropic":
	default:
		return apperr.Configuration("model.provider must be \"openai\" or \"anthropic\", got %q", c.Model.Provider)
	}
	if strings.TrimSpace(c.Model.Model) == "" {
		return apperr.Configuration("model.model is required")
	}
	if c.Model.Timeout <= 0 {
		return apperr.Configuration("model.timeout must be positive, got %s", c.Model.Timeout)
	}

	svc, ok := c.Services[HistoryStoreService]
	if !ok {
		return apperr.Configuration("services.%s is required", HistoryStoreService)
	}
	switch svc.Backend {
	case "redis", "postgres", "memory":
	default:
		return apperr.Configuration("services.%s.backend must be \"redis\", \"postgres\" or \"memory\", got %q",
			HistoryStoreService, svc.Backend)
	}
	if svc.TTL <= 0 {
		return apperr.Configuration("services.%s.ttl must be positive, got %s", HistoryStoreService, svc.TTL)
	}
	if svc.Backend == "redis" && svc.Host == "" && len(svc.Hosts) == 0 {
		return apperr.Configuration("services.%s needs host or hosts when backend is redis", HistoryStoreService)
	}
	if svc.Backend == "postgres" && svc.DSN == "" && svc.Host == "" && len(svc.Hosts) == 0 {
		return apperr.Configuration("services.%s needs dsn, host or hosts when backend is postgres", HistoryStoreService)
	}
	return nil
}

// ResolveAPIKey resolves "env:VAR" references to the environment
// variable's value; literal keys pass through unchanged.
func ResolveAPIKey(key string) string {
	if strings.HasPrefix(key, "env:") {
		return os.Getenv(strings.TrimPrefix(key, "env:"))
	}
	return key
}
