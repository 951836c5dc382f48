package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	DefaultModel string          `mapstructure:"default_model"`
	SystemPrompt string          `mapstructure:"system_prompt"`
	Logging      LoggingConfig   `mapstructure:"logging"`
	Storage      StorageConfig   `mapstructure:"storage"`
	Providers    ProvidersConfig `mapstructure:"providers"`
	Tools        ToolsConfig     `mapstructure:"tools"`
	DevAgent     DevAgentConfig  `mapstructure:"dev_agent"`
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Persist bool   `mapstructure:"persist"`
}

// StorageConfig holds conversation persistence configuration.
type StorageConfig struct {
	Directory string `mapstructure:"directory"`
}

// ProvidersConfig holds per-provider connection settings. API keys are
// opaque strings; an empty or whitespace-only key counts as absent.
type ProvidersConfig struct {
	Ollama    OllamaConfig `mapstructure:"ollama"`
	OpenAI    KeyConfig    `mapstructure:"openai"`
	Anthropic KeyConfig    `mapstructure:"anthropic"`
	Google    KeyConfig    `mapstructure:"google"`
}

// OllamaConfig holds Ollama-specific configuration.
type OllamaConfig struct {
	URL string `mapstructure:"url"`
}

// KeyConfig holds a provider API key.
type KeyConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// ToolsConfig selects which tools are offered to the model and configures
// the built-in ones.
type ToolsConfig struct {
	Enabled    []string         `mapstructure:"enabled"`
	WebFetch   WebFetchConfig   `mapstructure:"web_fetch"`
	DocLookup  DocLookupConfig  `mapstructure:"doc_lookup"`
	DocContext DocContextConfig `mapstructure:"doc_context"`
}

// WebFetchConfig bounds the web_fetch tool.
type WebFetchConfig struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxBodySize int64         `mapstructure:"max_body_size"`
}

// DocLookupConfig points the doc_lookup tool at a documentation site.
type DocLookupConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// DocContextConfig configures the doc_context vector collection.
type DocContextConfig struct {
	PersistDirectory string `mapstructure:"persist_directory"`
	Collection       string `mapstructure:"collection"`
	EmbeddingModel   string `mapstructure:"embedding_model"`
}

// DevAgentConfig points the alternate dev-mode pipeline at a remote agent
// server.
type DevAgentConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

var global *Config

// Load reads configuration from the given file path (optional), environment
// variables, and defaults, and installs the result as the global config.
func Load(cfgFile string) (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix("SIDECHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	global = cfg
	return cfg, nil
}

// Get returns the global configuration, loading defaults if Load was never
// called.
func Get() *Config {
	if global == nil {
		cfg, err := Load("")
		if err != nil {
			cfg = &Config{}
		}
		global = cfg
	}
	return global
}

// Set installs a configuration as the global one. Intended for tests.
func Set(cfg *Config) {
	global = cfg
}

// BuildSettingsPath resolves a filename relative to the settings directory.
func BuildSettingsPath(filename string) string {
	return filepath.Join(settingsDir(), filename)
}

func settingsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sidechat"
	}
	return filepath.Join(home, ".sidechat")
}

func setDefaults() {
	viper.SetDefault("default_model", "llama3.2:latest")
	viper.SetDefault("system_prompt", "")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", filepath.Join(settingsDir(), "logs", "sidechat.log"))
	viper.SetDefault("logging.persist", false)

	viper.SetDefault("storage.directory", filepath.Join(settingsDir(), "conversations"))

	viper.SetDefault("providers.ollama.url", "http://localhost:11434")
	viper.SetDefault("providers.openai.api_key", "")
	viper.SetDefault("providers.anthropic.api_key", "")
	viper.SetDefault("providers.google.api_key", "")

	viper.SetDefault("tools.enabled", []string{"web_fetch", "doc_lookup"})
	viper.SetDefault("tools.web_fetch.timeout", 30*time.Second)
	viper.SetDefault("tools.web_fetch.max_body_size", int64(10*1024*1024))
	viper.SetDefault("tools.doc_lookup.base_url", "https://pkg.go.dev")
	viper.SetDefault("tools.doc_context.persist_directory", "")
	viper.SetDefault("tools.doc_context.collection", "docs")
	viper.SetDefault("tools.doc_context.embedding_model", "nomic-embed-text")

	viper.SetDefault("dev_agent.url", "")
	viper.SetDefault("dev_agent.timeout", 120*time.Second)
}
