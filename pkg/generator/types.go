package generator

import "fmt"

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-image-1"
	DefaultGeminiModel   = "gemini-2.5-flash-image"

	ImageCompressionQuality = 85
)

// APIError は生成サービスが返したエラー応答です。
type APIError struct {
	Provider string
	Status   int
	Code     string
	Message  string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
