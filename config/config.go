package config

import "time"

// Config is the full service configuration, loaded from YAML with
// environment overrides.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Assets      AssetsConfig      `mapstructure:"assets"`
	Attachments AttachmentsConfig `mapstructure:"attachments"`
	Image       ImageConfig       `mapstructure:"image"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
}

// LLMConfig 模型调用相关配置。provider 为 mock 时不访问外部服务。
type LLMConfig struct {
	Provider       string        `mapstructure:"provider"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	ChatModel      string        `mapstructure:"chat_model"`
	ImageModel     string        `mapstructure:"image_model"`
	ImageSize      string        `mapstructure:"image_size"`
	ImageFormat    string        `mapstructure:"image_format"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	Burst          int           `mapstructure:"burst"`
}

type AssetsConfig struct {
	TagsFile string `mapstructure:"tags_file"`
}

// AttachmentsConfig controls how image references in requests are loaded.
// Local paths are confined to BaseDir.
type AttachmentsConfig struct {
	BaseDir      string        `mapstructure:"base_dir"`
	InlineRemote bool          `mapstructure:"inline_remote"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxBytes     int64         `mapstructure:"max_bytes"`
	Concurrency  int           `mapstructure:"concurrency"`
}

type ImageConfig struct {
	ArchiveDir string `mapstructure:"archive_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
