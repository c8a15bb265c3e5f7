package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Provider names accepted for llm.provider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds the application configuration
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Context  ContextConfig  `mapstructure:"context"`
	Google   GoogleConfig   `mapstructure:"google"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
}

// BotConfig holds the bot identity configuration
type BotConfig struct {
	Name string `mapstructure:"name"`
}

// TelegramConfig holds the Telegram transport configuration
type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

// LLMConfig holds the LLM provider configuration
type LLMConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	Grounding bool   `mapstructure:"grounding"`
}

// ContextConfig bounds the prompt assembled from stored history.
type ContextConfig struct {
	Size             int `mapstructure:"size"`
	MaxMessages      int `mapstructure:"max_messages"`
	ThresholdSeconds int `mapstructure:"relative_time_threshold_seconds"`
}

// GoogleConfig holds the Vertex AI endpoint and credential configuration,
// required when llm.provider is gemini.
type GoogleConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	Location        string `mapstructure:"location"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// HTTPConfig tunes the outbound retry policy.
type HTTPConfig struct {
	Retries int `mapstructure:"retries"`
	DelayMS int `mapstructure:"delay_ms"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads the configuration from config.yaml (or the file named by
// CONFIG_PATH) and validates it. A validation failure here is fatal by
// contract: the process must refuse to start on incomplete configuration.
func Load() (*Config, error) {
	v := viper.New()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("TELENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("bot.name", "Telence")
	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.model", "gemini-2.5-pro-exp-03-25")
	v.SetDefault("context.size", 20)
	v.SetDefault("context.max_messages", 100)
	v.SetDefault("context.relative_time_threshold_seconds", 600)
	v.SetDefault("http.retries", 3)
	v.SetDefault("http.delay_ms", 1000)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.LLM.Provider = strings.ToLower(strings.TrimSpace(config.LLM.Provider))

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("config: telegram.token is required")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("config: llm.api_key is required for the openai provider")
		}
	case ProviderGemini:
		if c.Google.ProjectID == "" {
			return fmt.Errorf("config: google.project_id is required for the gemini provider")
		}
		if c.Google.Location == "" {
			return fmt.Errorf("config: google.location is required for the gemini provider")
		}
		if c.Google.CredentialsFile == "" {
			return fmt.Errorf("config: google.credentials_file is required for the gemini provider")
		}
	default:
		return fmt.Errorf("config: unknown llm.provider %q (expected openai or gemini)", c.LLM.Provider)
	}
	if c.Context.Size <= 0 {
		return fmt.Errorf("config: context.size must be positive")
	}
	if c.Context.MaxMessages <= 0 {
		return fmt.Errorf("config: context.max_messages must be positive")
	}
	if c.Context.ThresholdSeconds <= 0 {
		return fmt.Errorf("config: context.relative_time_threshold_seconds must be positive")
	}
	return nil
}
