package generator

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/tryon-kit/pkg/domain"
	"google.golang.org/genai"
)

// --- Mocks ---

// mockOpener はハンドル名 → 内容のマップでステージング済みファイルを模倣するのだ。
type mockOpener struct {
	files  map[string][]byte
	opened []string
}

func (m *mockOpener) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	m.opened = append(m.opened, handle)
	data, ok := m.files[handle]
	if !ok {
		return nil, domain.NewError(domain.KindIO, "open", fmt.Errorf("no such handle: %s", handle))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type mockPartsGenerator struct {
	generateFunc func(model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error)
	calls        int
}

func (m *mockPartsGenerator) GenerateWithParts(ctx context.Context, model string, parts []*genai.Part, opts gemini.GenerateOptions) (*gemini.Response, error) {
	m.calls++
	if m.generateFunc != nil {
		return m.generateFunc(model, parts, opts)
	}
	return nil, nil
}

func imageResponse(data []byte) *gemini.Response {
	return &gemini.Response{
		RawResponse: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: "here you go"},
						{InlineData: &genai.Blob{MIMEType: "image/png", Data: data}},
					},
				},
			}},
		},
	}
}
