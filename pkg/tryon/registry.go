package tryon

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry はセッション ID ごとの Session を保持します。
// ttl を超えて参照のないセッションはアクセス時に破棄され、アップロード済み画像も解放されます。
// 参照には閲覧やポーリングも含みます。
type Registry struct {
	orch    *Orchestrator
	timeout time.Duration
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry は Registry を初期化します。ttl が 0 以下なら破棄しません。
func NewRegistry(orch *Orchestrator, timeout, ttl time.Duration) *Registry {
	return &Registry{
		orch:     orch,
		timeout:  timeout,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Get は既存のセッションを返します。
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	s, ok := r.sessions[id]
	if ok {
		s.markSeen(r.now())
	}
	return s, ok
}

// GetOrCreate は id のセッションを返し、なければ新しい ID で作成します。
func (r *Registry) GetOrCreate(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sweepLocked()
	if s, ok := r.sessions[id]; ok && id != "" {
		s.markSeen(r.now())
		return s, false
	}
	s := NewSession(uuid.NewString(), r.orch, r.timeout)
	r.sessions[s.ID()] = s
	return s, true
}

// Len は保持しているセッション数を返します。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) sweepLocked() {
	if r.ttl <= 0 {
		return
	}
	cutoff := r.now().Add(-r.ttl)
	for id, s := range r.sessions {
		lastSeen, busy := s.idleSince()
		if !busy && lastSeen.Before(cutoff) {
			delete(r.sessions, id)
		}
	}
}
