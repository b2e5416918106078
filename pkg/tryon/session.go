package tryon

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shouni/tryon-kit/pkg/domain"
)

// ErrBusy は同じセッションで生成が進行中に再度トリガーされたことを表します。
var ErrBusy = errors.New("a generation is already running for this session")

// Slot はアップロード欄です。
type Slot string

const (
	SlotPerson  Slot = "person"
	SlotGarment Slot = "garment"
)

// ParseSlot は文字列を Slot に変換します。
func ParseSlot(s string) (Slot, error) {
	switch Slot(s) {
	case SlotPerson, SlotGarment:
		return Slot(s), nil
	}
	return "", fmt.Errorf("unknown image slot %q", s)
}

// Snapshot はセッション状態の読み取り専用コピーです。
type Snapshot struct {
	ID         string
	State      State
	Message    string
	Failed     bool
	HasPerson  bool
	HasGarment bool
	Prompt     string
	Result     *domain.GenerationResult
}

// Session は1ユーザー分の UI 状態（アップロード、プロンプト、直近の結果）を保持し、
// 生成をセッション内で1本に制限します。
type Session struct {
	id      string
	orch    *Orchestrator
	timeout time.Duration

	mu       sync.Mutex
	person   *domain.UploadedImage
	garment  *domain.UploadedImage
	prompt   string
	state    State
	busy     bool
	message  string
	failed   bool
	result   *domain.GenerationResult
	lastSeen time.Time
}

// NewSession はプロンプトを DefaultPrompt で初期化したセッションを作ります。
// timeout は外部呼び出しを含む1回の生成全体の上限で、0 なら無制限です。
func NewSession(id string, orch *Orchestrator, timeout time.Duration) *Session {
	return &Session{
		id:       id,
		orch:     orch,
		timeout:  timeout,
		prompt:   domain.DefaultPrompt,
		state:    StateIdle,
		lastSeen: time.Now(),
	}
}

// ID はセッション ID を返します。
func (s *Session) ID() string { return s.id }

// SetImage はアップロード欄の画像を置き換えます。nil を渡すと欄を空にします。
func (s *Session) SetImage(slot Slot, img *domain.UploadedImage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch slot {
	case SlotPerson:
		s.person = img
	case SlotGarment:
		s.garment = img
	}
	s.touch()
}

// Image はアップロード欄の画像を返します。
func (s *Session) Image(slot Slot) *domain.UploadedImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot == SlotPerson {
		return s.person
	}
	if slot == SlotGarment {
		return s.garment
	}
	return nil
}

// SetPrompt はプロンプト全文を置き換えます。
func (s *Session) SetPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = prompt
	s.touch()
}

// Snapshot は現在の状態を返します。
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return Snapshot{
		ID:         s.id,
		State:      s.state,
		Message:    s.message,
		Failed:     s.failed,
		HasPerson:  s.person != nil,
		HasGarment: s.garment != nil,
		Prompt:     s.prompt,
		Result:     s.result,
	}
}

// Generate は生成を同期実行します。進行中なら ErrBusy を返します。
func (s *Session) Generate(ctx context.Context) (Outcome, error) {
	in, err := s.begin()
	if err != nil {
		return Outcome{}, err
	}
	return s.run(ctx, in), nil
}

// Start は生成を非同期タスクとして開始します。結果は返り値のチャネルに1度だけ届き、
// 進行状況は Snapshot で観測できます。
func (s *Session) Start(ctx context.Context) (<-chan Outcome, error) {
	in, err := s.begin()
	if err != nil {
		return nil, err
	}
	done := make(chan Outcome, 1)
	go func() {
		done <- s.run(ctx, in)
		close(done)
	}()
	return done, nil
}

// begin は単一実行を確保し、直前の結果を破棄して入力を確定させます。
func (s *Session) begin() (Input, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return Input{}, ErrBusy
	}
	s.busy = true
	s.result = nil
	s.message = ""
	s.failed = false
	s.touch()
	return Input{Person: s.person, Garment: s.garment, Prompt: s.prompt}, nil
}

// run はユーザー操作による中断を受け付けません。上限はセッションの timeout とトランスポートのタイムアウトです。
func (s *Session) run(ctx context.Context, in Input) Outcome {
	runCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, s.timeout)
		defer cancel()
	}

	out := s.orch.Run(runCtx, in, s.setState)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.message = out.Message
	s.touch()
	if out.State == StateDisplaying {
		s.state = StateDisplaying
		s.result = out.Result
		return out
	}
	s.failed = true
	s.state = StateIdle
	return out
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) touch() { s.lastSeen = time.Now() }

// markSeen は参照時刻を進めます。巻き戻しはしません。
func (s *Session) markSeen(t time.Time) {
	s.mu.Lock()
	if t.After(s.lastSeen) {
		s.lastSeen = t
	}
	s.mu.Unlock()
}

func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen, s.busy
}
