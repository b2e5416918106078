package server

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shouni/tryon-kit/pkg/tryon"
)

//go:embed templates/index.html
var templateFS embed.FS

const sessionCookie = "tryon_session"

// Options はサーバーの振る舞いを調整します。
type Options struct {
	MaxUploadBytes     int64
	RateLimitPerMinute int
	SecureCookie       bool
}

// Server は試着 UI と JSON API を提供します。
type Server struct {
	registry *tryon.Registry
	opts     Options
	page     *template.Template
}

// New は Server を初期化します。
func New(registry *tryon.Registry, opts Options) (*Server, error) {
	page, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 25 << 20
	}
	return &Server{registry: registry, opts: opts, page: page}, nil
}

// Handler はルーティング済みの http.Handler を返します。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, accessLog)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	limit := rateLimit(s.opts.RateLimitPerMinute, time.Minute)

	r.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/", s.handleIndex)
		r.With(limit).Post("/generate", s.handleGenerateForm)

		r.Route("/api/session", func(r chi.Router) {
			r.Get("/", s.handleSnapshot)
			r.Put("/prompt", s.handlePutPrompt)
			r.Put("/images/{slot}", s.handlePutImage)
			r.Get("/images/{slot}", s.handleGetImage)
			r.With(limit).Post("/generate", s.handleStartGenerate)
			r.Get("/result", s.handleResult)
		})
	})

	return r
}
