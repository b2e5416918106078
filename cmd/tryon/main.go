package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/shouni/tryon-kit/internal/config"
	"github.com/shouni/tryon-kit/internal/logging"
	"github.com/shouni/tryon-kit/internal/server"
	"github.com/shouni/tryon-kit/pkg/generator"
	"github.com/shouni/tryon-kit/pkg/staging"
	"github.com/shouni/tryon-kit/pkg/tryon"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("起動に失敗しました", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	editor, err := newEditor(ctx, cfg, store)
	if err != nil {
		return err
	}

	orch, err := tryon.NewOrchestrator(store, editor)
	if err != nil {
		return err
	}
	srv, err := server.New(tryon.NewRegistry(orch, cfg.RequestTimeout, cfg.SessionTTL), server.Options{
		MaxUploadBytes:     cfg.MaxUploadBytes,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// フォーム経由の生成は同期なので、外部呼び出しの上限より長く待つ
		WriteTimeout: cfg.RequestTimeout + time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTPサーバーを起動します", "addr", cfg.Addr, "provider", cfg.Provider, "staging", cfg.StagingBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("HTTPサーバーを停止しました")
	return nil
}

func newStore(ctx context.Context, cfg *config.Config) (staging.Store, func(), error) {
	if cfg.StagingBackend == "gcs" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("GCSクライアントの作成に失敗しました: %w", err)
		}
		store, err := staging.NewGCSStore(client, cfg.StagingGCSBucket, cfg.StagingGCSPrefix)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = client.Close() }, nil
	}

	store, err := staging.NewFileStore(cfg.StagingDir)
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("ローカルステージングを使用します", "dir", store.Dir())
	return store, func() {}, nil
}

func newEditor(ctx context.Context, cfg *config.Config, opener generator.HandleOpener) (generator.ImageEditor, error) {
	switch cfg.Provider {
	case generator.ProviderGemini:
		model, err := generator.NewGenAIModel(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return nil, err
		}
		return generator.NewGeminiEditor(model, opener, cfg.GeminiImageModel, cfg.GeminiCompressInputs)
	default:
		return generator.NewOpenAIEditor(generator.OpenAIConfig{
			APIKey:     cfg.OpenAIAPIKey,
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.OpenAIImageModel,
			Size:       cfg.OpenAIImageSize,
			Quality:    cfg.OpenAIImageQuality,
			HTTPClient: httpkit.New(cfg.RequestTimeout, httpkit.WithSkipNetworkValidation(cfg.OpenAISkipNetworkValidation)),
		}, opener)
	}
}
