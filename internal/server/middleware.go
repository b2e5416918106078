package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/shouni/tryon-kit/pkg/tryon"
	"golang.org/x/time/rate"
)

type ctxKey struct{}

// accessLog はリクエストごとにメソッド、パス、ステータス、所要時間を記録します。
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// withSession はクッキーのセッションを解決し、なければ新規発行します。
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
		sess, created := s.registry.GetOrCreate(id)
		if created {
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookie,
				Value:    sess.ID(),
				Path:     "/",
				HttpOnly: true,
				Secure:   s.opts.SecureCookie,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func sessionFrom(ctx context.Context) *tryon.Session {
	sess, _ := ctx.Value(ctxKey{}).(*tryon.Session)
	return sess
}

// ipLimiters はクライアント IP ごとのトークンバケットです。
// idle を超えて使われていないエントリはアクセス時に破棄します。
type ipLimiters struct {
	every rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	entries   map[string]*ipEntry
	lastSweep time.Time
}

type ipEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPLimiters(limit int, per time.Duration) *ipLimiters {
	return &ipLimiters{
		every:   rate.Every(per / time.Duration(limit)),
		burst:   limit,
		idle:    per,
		now:     time.Now,
		entries: make(map[string]*ipEntry),
	}
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweepLocked(now)
		l.lastSweep = now
	}

	e, ok := l.entries[ip]
	if !ok {
		e = &ipEntry{limiter: rate.NewLimiter(l.every, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// sweepLocked は idle 以上使われていないエントリを消します。
// その間にバケットは満杯まで回復しているため、消しても制限は緩みません。
func (l *ipLimiters) sweepLocked(now time.Time) {
	for ip, e := range l.entries {
		if now.Sub(e.lastSeen) >= l.idle {
			delete(l.entries, ip)
		}
	}
}

func (l *ipLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// rateLimit はクライアント IP ごとに生成リクエストを制限します。limit が 0 以下なら無効です。
func rateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiters := newIPLimiters(limit, per)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.allow(clientIP(r)) {
				slog.WarnContext(r.Context(), "生成リクエストを制限しました", "ip", clientIP(r))
				http.Error(w, "too many generation requests, try again later", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
