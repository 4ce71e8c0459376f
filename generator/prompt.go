package generator

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

// Prompt 一次模型调用的完整输入。
type Prompt struct {
	// Stage names the pipeline step for logs and metrics; not sent upstream.
	Stage  string
	System string
	User   string
	// Images are data URIs or remote URLs sent as vision content parts.
	Images []string
	// Schema switches the call to structured mode when set.
	Schema *Schema
}

// ImagePrompt is the input of an image generation call. Empty Size/Format
// fall back to the client defaults.
type ImagePrompt struct {
	Stage  string
	Prompt string
	Size   string
	Format string
}

// Template names understood by PromptBuilder.
const (
	TmplCategorize         = "categorize"
	TmplSchedule           = "schedule"
	TmplReferenceAnalysis  = "reference_analysis"
	TmplReferenceDirective = "reference_directive"
	TmplCuratedAssets      = "curated_assets"
	TmplDraftExplain       = "draft_explain"
	TmplDraftAnalysis      = "draft_analysis"
	TmplDraftDirective     = "draft_directive"
)

// Fields are the named values substituted into a template. Missing keys
// render as empty strings.
type Fields map[string]string

//go:embed prompts/*.tmpl
var promptFS embed.FS

// PromptBuilder renders the embedded prompt templates. Rendering is pure:
// the same name and fields always produce the same text.
type PromptBuilder struct {
	root *template.Template
}

func NewPromptBuilder() (*PromptBuilder, error) {
	root, err := template.New("prompts").Option("missingkey=zero").ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	return &PromptBuilder{root: root}, nil
}

func (b *PromptBuilder) Build(name string, fields Fields) (string, error) {
	tmpl := b.root.Lookup(name + ".tmpl")
	if tmpl == nil {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	if fields == nil {
		fields = Fields{}
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, fields); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}
