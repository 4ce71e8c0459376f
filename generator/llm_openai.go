package generator

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM implements LLMClient using the official openai-go SDK (chat
// completions with vision parts and json_schema output, plus image
// generation).
type OpenAILLM struct {
	Model       string
	ImageModel  string
	ImageSize   string
	ImageFormat string

	client openai.Client
}

func NewOpenAILLMFromConfig(cfg *LLMSettings, extra ...option.RequestOption) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key or OPENAI_API_KEY")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	// 重试由 RetryingLLM 统一负责，这里关闭 SDK 自带的重试。
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey), option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	o := &OpenAILLM{
		Model:       cfg.Model,
		ImageModel:  cfg.ImageModel,
		ImageSize:   cfg.ImageSize,
		ImageFormat: cfg.ImageFormat,
		client:      openai.NewClient(opts...),
	}
	if o.ImageModel == "" {
		o.ImageModel = string(openai.ImageModelDallE3)
	}
	if o.ImageSize == "" {
		o.ImageSize = string(openai.ImageGenerateParamsSize1024x1024)
	}
	if o.ImageFormat == "" {
		o.ImageFormat = string(openai.ImageGenerateParamsResponseFormatB64JSON)
	}
	return o, nil
}

func (o *OpenAILLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if prompt.System != "" {
		msgs = append(msgs, openai.SystemMessage(prompt.System))
	}
	switch {
	case len(prompt.Images) > 0:
		parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(prompt.User)}
		for _, img := range prompt.Images {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: img}))
		}
		msgs = append(msgs, openai.UserMessage(parts))
	case prompt.User != "" || len(msgs) == 0:
		msgs = append(msgs, openai.UserMessage(prompt.User))
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Model),
		Messages: msgs,
	}
	if prompt.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        prompt.Schema.Name,
					Description: openai.String(prompt.Schema.Description),
					Schema:      prompt.Schema.JSONSchema(),
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", malformedError("openai: empty choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAILLM) GenerateImage(ctx context.Context, prompt ImagePrompt) (ImageResult, error) {
	size := prompt.Size
	if size == "" {
		size = o.ImageSize
	}
	format := prompt.Format
	if format == "" {
		format = o.ImageFormat
	}

	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt.Prompt,
		Model:          openai.ImageModel(o.ImageModel),
		Size:           openai.ImageGenerateParamsSize(size),
		ResponseFormat: openai.ImageGenerateParamsResponseFormat(format),
		N:              openai.Int(1),
	})
	if err != nil {
		return ImageResult{}, classifyOpenAIError(err)
	}
	if len(resp.Data) == 0 {
		return ImageResult{}, malformedError("openai: empty image data", nil)
	}

	img := resp.Data[0]
	if format == string(openai.ImageGenerateParamsResponseFormatURL) {
		if img.URL == "" {
			return ImageResult{}, malformedError("openai: image url missing", nil)
		}
		return ImageResult{Format: ImageFormatURL, ImageData: img.URL}, nil
	}
	if img.B64JSON == "" {
		return ImageResult{}, malformedError("openai: b64_json missing", nil)
	}
	return ImageResult{Format: ImageFormatBase64, ImageData: img.B64JSON}, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return upstreamError(err, retryableStatus(apiErr.StatusCode))
	}
	if errors.Is(err, context.Canceled) {
		return upstreamError(err, false)
	}
	// 超时与网络错误视为可重试
	return upstreamError(err, true)
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusConflict, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	}
	return false
}
