package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config はプロセス起動時に1度だけ読み込む設定です。認証情報もここに集約します。
type Config struct {
	Addr     string `mapstructure:"TRYON_ADDR" validate:"required"`
	Provider string `mapstructure:"TRYON_PROVIDER" validate:"oneof=openai gemini"`

	OpenAIAPIKey       string `mapstructure:"OPENAI_API_KEY" validate:"required_if=Provider openai"`
	OpenAIBaseURL      string `mapstructure:"OPENAI_BASE_URL" validate:"required,url"`
	OpenAIImageModel   string `mapstructure:"OPENAI_IMAGE_MODEL" validate:"required"`
	OpenAIImageSize    string `mapstructure:"OPENAI_IMAGE_SIZE"`
	OpenAIImageQuality string `mapstructure:"OPENAI_IMAGE_QUALITY"`

	// OpenAISkipNetworkValidation はプライベートネットワーク上の互換エンドポイントを使うときだけ有効にします。
	OpenAISkipNetworkValidation bool `mapstructure:"OPENAI_SKIP_NETWORK_VALIDATION"`

	GeminiAPIKey         string `mapstructure:"GEMINI_API_KEY" validate:"required_if=Provider gemini"`
	GeminiImageModel     string `mapstructure:"GEMINI_IMAGE_MODEL" validate:"required"`
	GeminiCompressInputs bool   `mapstructure:"GEMINI_COMPRESS_INPUTS"`

	StagingBackend   string `mapstructure:"STAGING_BACKEND" validate:"oneof=local gcs"`
	StagingDir       string `mapstructure:"STAGING_DIR"`
	StagingGCSBucket string `mapstructure:"STAGING_GCS_BUCKET" validate:"required_if=StagingBackend gcs"`
	StagingGCSPrefix string `mapstructure:"STAGING_GCS_PREFIX"`

	RequestTimeout     time.Duration `mapstructure:"REQUEST_TIMEOUT" validate:"gt=0"`
	MaxUploadBytes     int64         `mapstructure:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	SessionTTL         time.Duration `mapstructure:"SESSION_TTL" validate:"gte=0"`
	RateLimitPerMinute int           `mapstructure:"RATE_LIMIT_PER_MINUTE" validate:"gte=0"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"oneof=text json"`
}

var defaults = map[string]any{
	"TRYON_ADDR":             ":8080",
	"TRYON_PROVIDER":         "openai",
	"OPENAI_API_KEY":         "",
	"OPENAI_BASE_URL":        "https://api.openai.com/v1",
	"OPENAI_IMAGE_MODEL":     "gpt-image-1",
	"OPENAI_IMAGE_SIZE":      "",
	"OPENAI_IMAGE_QUALITY":   "",
	"GEMINI_API_KEY":         "",
	"GEMINI_IMAGE_MODEL":     "gemini-2.5-flash-image",
	"GEMINI_COMPRESS_INPUTS": false,
	"STAGING_BACKEND":        "local",
	"STAGING_DIR":            "",
	"STAGING_GCS_BUCKET":     "",
	"STAGING_GCS_PREFIX":     "tryon-staging",
	"REQUEST_TIMEOUT":        "10m",
	"MAX_UPLOAD_BYTES":       25 << 20,
	"SESSION_TTL":            "1h",
	"RATE_LIMIT_PER_MINUTE":  30,
	"LOG_LEVEL":              "info",
	"LOG_FORMAT":             "text",

	"OPENAI_SKIP_NETWORK_VALIDATION": false,
}

// Load は .env（任意）と環境変数から設定を読み込み、検証します。
// envFiles を省略するとカレントディレクトリの .env を探します。
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}
