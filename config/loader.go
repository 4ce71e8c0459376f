package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"

	FormatB64JSON = "b64_json"
	FormatURL     = "url"
)

// Load reads the YAML file at path (or searches ./config and . for
// config.yaml when path is empty), applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	loadEnvFile(path)

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "LLM_API_KEY", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 兼容常见 PaaS 的 PORT 约定
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 2*time.Minute)
	v.SetDefault("server.cors_origins", []string{"https://eyz27.github.io"})

	v.SetDefault("llm.provider", ProviderOpenAI)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.chat_model", "gpt-4o-mini")
	v.SetDefault("llm.image_model", "dall-e-3")
	v.SetDefault("llm.image_size", "1024x1024")
	v.SetDefault("llm.image_format", FormatB64JSON)
	v.SetDefault("llm.call_timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.initial_backoff", 500*time.Millisecond)
	v.SetDefault("llm.max_backoff", 8*time.Second)
	v.SetDefault("llm.rate_per_second", 5.0)
	v.SetDefault("llm.burst", 5)

	v.SetDefault("assets.tags_file", "config/tags.json")

	v.SetDefault("attachments.base_dir", ".")
	v.SetDefault("attachments.inline_remote", false)
	v.SetDefault("attachments.fetch_timeout", 15*time.Second)
	v.SetDefault("attachments.max_bytes", int64(20<<20))
	v.SetDefault("attachments.concurrency", 4)

	v.SetDefault("image.archive_dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// loadEnvFile loads the first .env found next to the working directory or
// the config file. Existing environment variables win.
func loadEnvFile(configPath string) {
	candidates := []string{".env"}
	if configPath != "" {
		dir := filepath.Dir(configPath)
		candidates = append(candidates, filepath.Join(dir, ".env"), filepath.Join(dir, "..", ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		s, ok := v.Get(key).(string)
		if !ok || !strings.Contains(s, "$") {
			continue
		}
		if expanded := os.ExpandEnv(s); expanded != s {
			v.Set(key, expanded)
		}
	}
}

func validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case ProviderOpenAI:
		if cfg.LLM.APIKey == "" {
			return errors.New("llm.api_key is required for provider openai (or set OPENAI_API_KEY)")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("llm.provider %q not supported", cfg.LLM.Provider)
	}
	if cfg.LLM.ChatModel == "" || cfg.LLM.ImageModel == "" {
		return errors.New("llm.chat_model and llm.image_model are required")
	}
	switch cfg.LLM.ImageFormat {
	case FormatB64JSON, FormatURL:
	default:
		return fmt.Errorf("llm.image_format must be %s or %s", FormatB64JSON, FormatURL)
	}
	if cfg.LLM.CallTimeout <= 0 {
		return errors.New("llm.call_timeout must be positive")
	}
	if cfg.LLM.MaxRetries < 0 {
		return errors.New("llm.max_retries must not be negative")
	}
	if cfg.LLM.RatePerSecond < 0 {
		return errors.New("llm.rate_per_second must not be negative")
	}
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if cfg.Server.RequestTimeout <= 0 {
		return errors.New("server.request_timeout must be positive")
	}
	if cfg.Assets.TagsFile == "" {
		return errors.New("assets.tags_file is required")
	}
	if cfg.Attachments.Concurrency < 1 {
		return errors.New("attachments.concurrency must be at least 1")
	}
	if cfg.Attachments.MaxBytes <= 0 {
		return errors.New("attachments.max_bytes must be positive")
	}
	return nil
}
