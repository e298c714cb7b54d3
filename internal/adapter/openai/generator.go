package openai

import (
	"context"
	"errors"
	"strings"

	"git-gauge/internal/common"
	"git-gauge/internal/port"

	oai "github.com/sashabaranov/go-openai"
)

// 默认走 Groq 的 OpenAI 兼容接口
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
)

const systemPrompt = "You are an expert technical recruiter and senior software engineer. " +
	"Respond ONLY with valid JSON. No markdown, no code fences."

// Generator 实现了 port.ReportGenerator 接口，兼容任何 OpenAI 风格的 chat completions 服务
type Generator struct {
	client *oai.Client
	model  string
}

// NewGenerator 创建客户端，baseURL 为空时使用 Groq
func NewGenerator(baseURL, apiKey, model string) (*Generator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, common.NewError(common.ErrCodeModelUnavailable, "OpenAI-compatible API key is empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := oai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	return &Generator{
		client: oai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (g *Generator) Provider() string { return "openai" }

func (g *Generator) Model() string { return g.model }

// Generate 发起一次 chat completion，返回第一条回复的原文
func (g *Generator) Generate(ctx context.Context, prompt string, opts port.GenerationOptions) (string, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	resp, err := g.client.CreateChatCompletion(ctx, oai.ChatCompletionRequest{
		Model: g.model,
		Messages: []oai.ChatCompletionMessage{
			{Role: oai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: oai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxOutputTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", common.WrapError(common.ErrCodeUpstreamTimeout, "chat completion timed out", err)
		}
		return "", common.WrapError(common.ErrCodeModelUnavailable, "chat completion failed", err)
	}

	if len(resp.Choices) == 0 {
		return "", common.NewError(common.ErrCodeModelUnparseable, "chat completion returned no choices")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", common.NewError(common.ErrCodeModelUnparseable, "chat completion returned empty content")
	}
	return content, nil
}
