package generator

import (
	"context"
	"io"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/tryon-kit/pkg/domain"
	"google.golang.org/genai"
)

// ImageEditor は試着オーケストレーションが利用する外部生成サービスの窓口です。
// 1回の呼び出しが外部サービスへの1回のリクエストに対応し、リトライは行いません。
type ImageEditor interface {
	Edit(ctx context.Context, req domain.GenerationRequest) (*domain.EditResponse, error)
}

// HandleOpener はステージング済みハンドルを読み出します。staging.Store が満たします。
type HandleOpener interface {
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
}

// PartsGenerator はテキストと画像パーツから内容を生成する Gemini クライアントの最小面です。
type PartsGenerator interface {
	GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error)
}
