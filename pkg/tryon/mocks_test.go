package tryon

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/shouni/tryon-kit/pkg/domain"
	"github.com/shouni/tryon-kit/pkg/staging"
)

// --- Mocks ---

// fakeEditor は外部生成サービスの代わりなのだ。呼び出し時点のステージング内容を記録するのだ。
type fakeEditor struct {
	store staging.Store

	mu       sync.Mutex
	calls    int
	requests []domain.GenerationRequest
	contents [][]byte

	respond func(req domain.GenerationRequest) (*domain.EditResponse, error)
	block   chan struct{}
}

func (f *fakeEditor) Edit(ctx context.Context, req domain.GenerationRequest) (*domain.EditResponse, error) {
	f.mu.Lock()
	f.calls++
	f.requests = append(f.requests, req)
	for _, h := range req.Handles() {
		if f.store == nil {
			continue
		}
		rc, err := f.store.Open(ctx, h)
		if err != nil {
			f.mu.Unlock()
			return nil, err
		}
		b, _ := io.ReadAll(rc)
		rc.Close()
		f.contents = append(f.contents, b)
	}
	f.mu.Unlock()

	if f.block != nil {
		<-f.block
	}
	if f.respond != nil {
		return f.respond(req)
	}
	return &domain.EditResponse{Data: []domain.EditImage{{B64JSON: "aGVsbG8="}}}, nil
}

func (f *fakeEditor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// failingStore は Stage が常に失敗するストアなのだ。
type failingStore struct {
	staging.Store
	failOn  string
	removed []string
	mu      sync.Mutex
}

func (s *failingStore) Stage(ctx context.Context, data []byte, ext string) (string, error) {
	if ext == s.failOn {
		return "", domain.NewError(domain.KindIO, "stage", errors.New("no space left on device"))
	}
	return s.Store.Stage(ctx, data, ext)
}

func (s *failingStore) Remove(ctx context.Context, handle string) error {
	s.mu.Lock()
	s.removed = append(s.removed, handle)
	s.mu.Unlock()
	return s.Store.Remove(ctx, handle)
}
