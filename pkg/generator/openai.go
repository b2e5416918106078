package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/tryon-kit/pkg/domain"
)

// DefaultOpenAITimeout は HTTPClient 未指定時のリクエスト上限です。画像編集は数十秒以上かかります。
const DefaultOpenAITimeout = 5 * time.Minute

// OpenAIConfig は OpenAI 画像編集エンドポイントへの接続設定です。
// HTTPClient の Do はリトライしないため、1回の Edit は常に1回のリクエストです。
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Size       string
	Quality    string
	HTTPClient httpkit.ClientInterface
}

// OpenAIEditor は /images/edits に人物画像と衣服画像をまとめて送る ImageEditor です。
type OpenAIEditor struct {
	cfg    OpenAIConfig
	opener HandleOpener
}

// NewOpenAIEditor は認証済みクライアントを1度だけ組み立てます。プロセス全体で使い回してください。
func NewOpenAIEditor(cfg OpenAIConfig, opener HandleOpener) (*OpenAIEditor, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("APIKey is required")
	}
	if opener == nil {
		return nil, fmt.Errorf("opener (HandleOpener) is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = httpkit.New(DefaultOpenAITimeout)
	}
	if !cfg.HTTPClient.IsSecureServiceURL(cfg.BaseURL) {
		return nil, fmt.Errorf("BaseURL must use https (or http on a local dev host): %q", cfg.BaseURL)
	}
	return &OpenAIEditor{cfg: cfg, opener: opener}, nil
}

type editResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt,omitempty"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Edit はハンドルを人物 → 衣服の順で image[] に詰め、プロンプトは加工せずに送ります。
func (e *OpenAIEditor) Edit(ctx context.Context, req domain.GenerationRequest) (*domain.EditResponse, error) {
	body, contentType, err := e.buildMultipart(ctx, req)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(e.cfg.BaseURL, "/") + "/images/edits"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	slog.InfoContext(ctx, "OpenAI画像編集リクエストを送信します", "model", e.cfg.Model, "images", len(req.Handles()))

	resp, err := e.cfg.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}

	raw, err := httpkit.HandleLimitedResponse(resp, httpkit.MaxResponseBodySize)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, raw)
	}

	var out editResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &APIError{Provider: ProviderOpenAI, Status: resp.StatusCode, Code: "decode_error", Message: "malformed response: " + err.Error()}
	}

	result := &domain.EditResponse{Data: make([]domain.EditImage, 0, len(out.Data))}
	for _, d := range out.Data {
		result.Data = append(result.Data, domain.EditImage{B64JSON: d.B64JSON, RevisedPrompt: d.RevisedPrompt})
	}
	return result, nil
}

func (e *OpenAIEditor) buildMultipart(ctx context.Context, req domain.GenerationRequest) (io.Reader, string, error) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	fields := [][2]string{
		{"model", e.cfg.Model},
		{"prompt", req.Prompt},
		{"size", e.cfg.Size},
		{"quality", e.cfg.Quality},
	}
	for _, f := range fields {
		if f[1] == "" && f[0] != "prompt" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	for _, handle := range req.Handles() {
		img, err := readHandle(ctx, e.opener, handle)
		if err != nil {
			return nil, "", err
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image[]"; filename="%s"`, img.Filename))
		h.Set("Content-Type", img.MimeType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

func parseAPIError(status int, raw []byte) error {
	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Error.Message != "" {
		return &APIError{
			Provider: ProviderOpenAI,
			Status:   status,
			Code:     stringifyCode(er.Error.Code, er.Error.Type),
			Message:  er.Error.Message,
		}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{Provider: ProviderOpenAI, Status: status, Code: "http_error", Message: msg}
}

func stringifyCode(code any, fallback string) string {
	switch c := code.(type) {
	case string:
		if c != "" {
			return c
		}
	case float64:
		return fmt.Sprintf("%d", int(c))
	}
	return fallback
}
