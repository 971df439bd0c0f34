package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported LLM providers.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// Supported storage drivers.
const (
	StorageSQLite = "sqlite"
	StorageBolt   = "bolt"
	StorageMemory = "memory"
)

// Config holds the application configuration
type Config struct {
	LLM       LLMConfig
	Retry     RetryConfig
	Storage   StorageConfig
	Server    ServerConfig
	Log       LogConfig
	Assistant AssistantConfig
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider     string `mapstructure:"provider"`
	BaseURL      string `mapstructure:"base_url"`
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	SystemPrompt string `mapstructure:"system_prompt"`
}

// RetryConfig holds the transient-failure retry policy.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	Backoff        time.Duration `mapstructure:"backoff"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// StorageConfig selects where conversations are persisted.
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// LogConfig holds logging options.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// AssistantConfig names the assistant in user-facing messages.
type AssistantConfig struct {
	Name string `mapstructure:"name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.system_prompt", "")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.backoff", 3*time.Second)
	v.SetDefault("retry.attempt_timeout", 60*time.Second)

	v.SetDefault("storage.driver", StorageSQLite)
	v.SetDefault("storage.path", "evo.db")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("assistant.name", "Evo")
}

// Load loads the configuration from config.yaml (or the file named by
// CONFIG_PATH), overlaid with EVO_* environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("EVO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Provider-native key variables are accepted as a fallback.
	if err := v.BindEnv("llm.api_key", "EVO_LLM_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderOllama, ProviderAnthropic:
	default:
		return errors.New("unsupported llm.provider: " + c.LLM.Provider)
	}
	switch c.Storage.Driver {
	case StorageSQLite, StorageBolt, StorageMemory:
	default:
		return errors.New("unsupported storage.driver: " + c.Storage.Driver)
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}
	if c.Retry.Backoff < 0 {
		return errors.New("retry.backoff must not be negative")
	}
	return nil
}
