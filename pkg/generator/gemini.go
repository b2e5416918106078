package generator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/tryon-kit/pkg/decoder"
	"github.com/shouni/tryon-kit/pkg/domain"
	"github.com/shouni/tryon-kit/pkg/imgutil"
	"google.golang.org/genai"
)

// GeminiEditor は Gemini の画像生成モデルで試着画像を作る ImageEditor です。
type GeminiEditor struct {
	aiClient PartsGenerator
	opener   HandleOpener
	model    string
	compress bool
}

// NewGeminiEditor は依存関係を注入して GeminiEditor を初期化します。
func NewGeminiEditor(aiClient PartsGenerator, opener HandleOpener, model string, compress bool) (*GeminiEditor, error) {
	if aiClient == nil {
		return nil, fmt.Errorf("aiClient (PartsGenerator) is required")
	}
	if opener == nil {
		return nil, fmt.Errorf("opener (HandleOpener) is required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiEditor{
		aiClient: aiClient,
		opener:   opener,
		model:    model,
		compress: compress,
	}, nil
}

// Edit はプロンプト、人物画像、衣服画像の順でパーツを組み立てて1回だけ生成を依頼します。
// 返ってきた最初の画像は base64 化して OpenAI と同じ形のレスポンスに揃えます。
func (g *GeminiEditor) Edit(ctx context.Context, req domain.GenerationRequest) (*domain.EditResponse, error) {
	parts := []*genai.Part{{Text: req.Prompt}}
	for _, handle := range req.Handles() {
		img, err := readHandle(ctx, g.opener, handle)
		if err != nil {
			return nil, err
		}
		data, mimeType := img.Data, img.MimeType
		if g.compress {
			data, mimeType = imgutil.ShrinkForUpload(data, mimeType, ImageCompressionQuality)
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}})
	}

	slog.InfoContext(ctx, "Gemini試着生成をリクエストします", "model", g.model, "total_parts", len(parts))

	resp, err := g.aiClient.GenerateWithParts(ctx, g.model, parts, gemini.GenerateOptions{})
	if err != nil {
		return nil, err
	}

	data, err := firstInlineImage(resp)
	if err != nil {
		return nil, err
	}
	return &domain.EditResponse{Data: []domain.EditImage{{B64JSON: decoder.Encode(data)}}}, nil
}

// firstInlineImage は最初の候補から画像パーツを取り出します。
func firstInlineImage(resp *gemini.Response) ([]byte, error) {
	if resp == nil || resp.RawResponse == nil || len(resp.RawResponse.Candidates) == 0 {
		return nil, &APIError{Provider: ProviderGemini, Code: "empty_response", Message: "Geminiからの有効な応答がありませんでした"}
	}

	candidate := resp.RawResponse.Candidates[0]
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}

	// 安全フィルター等によるブロック
	switch fr := candidate.FinishReason; fr {
	case "", genai.FinishReasonUnspecified, genai.FinishReasonStop:
		// 正常終了だが画像なし
	default:
		return nil, &APIError{Provider: ProviderGemini, Code: string(fr), Message: fmt.Sprintf("画像生成が異常終了しました (FinishReason: %s)", fr)}
	}
	return nil, &APIError{Provider: ProviderGemini, Code: "no_image", Message: "画像データが見つかりませんでした"}
}
