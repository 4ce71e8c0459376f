package generator

import "context"

// LLMClient 抽象大模型客户端，便于替换/Mock。
// Complete returns the raw reply text (a JSON document when prompt.Schema is
// set). GenerateImage returns either a URL or base64 payload.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
	GenerateImage(ctx context.Context, prompt ImagePrompt) (ImageResult, error)
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider    string
	Model       string
	ImageModel  string
	ImageSize   string
	ImageFormat string
	APIKey      string
	BaseURL     string
}
