package generator

import (
	"context"
	"fmt"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"google.golang.org/genai"
)

// GenAIModel は *genai.Client を PartsGenerator として使うためのアダプターです。
// GenerateWithParts 1回につきリクエストは1回で、リトライしません。
type GenAIModel struct {
	client *genai.Client
}

// NewGenAIModel は API キーで genai クライアントを作ります。
func NewGenAIModel(ctx context.Context, apiKey string) (*GenAIModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genaiクライアントの作成に失敗しました: %w", err)
	}
	return &GenAIModel{client: client}, nil
}

// GenerateWithParts はパーツを1つのユーザーコンテンツとして送信します。
func (m *GenAIModel) GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	if opts.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(opts.SystemPrompt, genai.RoleUser)
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := m.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, err
	}
	return &gemini.Response{RawResponse: resp}, nil
}
