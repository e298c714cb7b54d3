package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"git-gauge/internal/common"
	"git-gauge/internal/port"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel 默认模型
const DefaultModel = "gemini-2.5-flash-lite"

const systemInstruction = "You are an expert technical recruiter and senior software engineer. " +
	"You analyze GitHub profiles and respond ONLY with valid JSON."

// Generator 实现了 port.ReportGenerator 接口
type Generator struct {
	client    *genai.Client
	modelName string
}

// NewGenerator 初始化 Gemini 客户端
func NewGenerator(ctx context.Context, apiKey, model string) (*Generator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, common.NewError(common.ErrCodeModelUnavailable, "Gemini API key is empty")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, common.WrapError(common.ErrCodeModelUnavailable, "Gemini client init failed", err)
	}

	return &Generator{
		client:    client,
		modelName: model,
	}, nil
}

func (g *Generator) Provider() string { return "gemini" }

func (g *Generator) Model() string { return g.modelName }

// Close 释放底层连接
func (g *Generator) Close() error {
	return g.client.Close()
}

// Generate 调用模型，返回原始文本 (不做 JSON 解析)
func (g *Generator) Generate(ctx context.Context, prompt string, opts port.GenerationOptions) (string, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	model := g.client.GenerativeModel(g.modelName)
	// 强制要求返回 JSON，降低解析错误的概率
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemInstruction)}}
	model.SetTemperature(opts.Temperature)
	if opts.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxOutputTokens))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", common.WrapError(common.ErrCodeUpstreamTimeout, "Gemini call timed out", err)
		}
		return "", common.WrapError(common.ErrCodeModelUnavailable, "Gemini call failed", err)
	}

	return responseText(resp)
}

// responseText 拼接第一个候选里的所有文本片段
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", common.NewError(common.ErrCodeModelUnparseable, "Gemini returned no candidates")
	}

	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", common.NewError(common.ErrCodeModelUnparseable,
			fmt.Sprintf("Gemini returned empty content (finish reason: %s)", cand.FinishReason))
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", common.NewError(common.ErrCodeModelUnparseable, "Gemini returned no text parts")
	}
	return sb.String(), nil
}
