package tryon

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/shouni/tryon-kit/pkg/domain"
	"github.com/shouni/tryon-kit/pkg/staging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *staging.FileStore {
	t.Helper()
	s, err := staging.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func scenarioInput() Input {
	return Input{
		Person:  &domain.UploadedImage{Name: "me.png", Ext: domain.ExtPNG, Data: []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		Garment: &domain.UploadedImage{Name: "dress.jpg", Ext: domain.ExtJPG, Data: []byte("0123456789abcdefghij")},
		Prompt:  "test",
	}
}

type stateRecorder struct{ states []State }

func (r *stateRecorder) observe(s State) { r.states = append(r.states, s) }

func TestNewOrchestrator(t *testing.T) {
	_, err := NewOrchestrator(nil, &fakeEditor{})
	assert.Error(t, err)
	_, err = NewOrchestrator(newStore(t), nil)
	assert.Error(t, err)
}

func TestOrchestrator_Run_Success(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	editor := &fakeEditor{store: store}
	orch, err := NewOrchestrator(store, editor)
	require.NoError(t, err)

	rec := &stateRecorder{}
	out := orch.Run(ctx, scenarioInput(), rec.observe)

	require.NoError(t, out.Err)
	assert.Equal(t, StateDisplaying, out.State)
	assert.Equal(t, MsgDone, out.Message)
	require.NotNil(t, out.Result)
	assert.Equal(t, []byte("hello"), out.Result.Data)
	assert.Equal(t, []State{StateValidating, StateStaging, StateRequesting, StateDecoding, StateDisplaying}, rec.states)

	t.Run("外部呼び出しはちょうど1回", func(t *testing.T) {
		assert.Equal(t, 1, editor.callCount())
	})

	t.Run("人物 → 衣服の順で別々のハンドルが渡る", func(t *testing.T) {
		req := editor.requests[0]
		assert.NotEqual(t, req.PersonHandle, req.GarmentHandle)
		assert.Equal(t, "test", req.Prompt)
		require.Len(t, editor.contents, 2)
		assert.Len(t, editor.contents[0], 10)
		assert.Len(t, editor.contents[1], 20)
	})

	t.Run("呼び出し後にステージングファイルは削除される", func(t *testing.T) {
		for _, h := range editor.requests[0].Handles() {
			_, err := os.Stat(h)
			assert.True(t, os.IsNotExist(err), h)
		}
	})
}

func TestOrchestrator_Run_PromptIsVerbatim(t *testing.T) {
	store := newStore(t)
	editor := &fakeEditor{store: store}
	orch, _ := NewOrchestrator(store, editor)

	in := scenarioInput()
	in.Prompt = "  " + domain.DefaultPrompt + "\n<script>&amp;"
	out := orch.Run(context.Background(), in, nil)

	require.Equal(t, StateDisplaying, out.State)
	assert.Equal(t, in.Prompt, editor.requests[0].Prompt)
}

func TestOrchestrator_Run_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Input)
		msg    string
	}{
		{"人物画像なし", func(in *Input) { in.Person = nil }, MsgUploadBoth},
		{"衣服画像なし", func(in *Input) { in.Garment = nil }, MsgUploadBoth},
		{"両方なし", func(in *Input) { in.Person, in.Garment = nil, nil }, MsgUploadBoth},
		{"許可外の拡張子", func(in *Input) { in.Garment.Ext = "gif" }, "Unsupported image type: dress.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &failingStore{Store: newStore(t)}
			editor := &fakeEditor{}
			orch, _ := NewOrchestrator(store, editor)

			in := scenarioInput()
			tt.mutate(&in)
			rec := &stateRecorder{}
			out := orch.Run(context.Background(), in, rec.observe)

			assert.Equal(t, StateFailed, out.State)
			assert.Equal(t, tt.msg, out.Message)
			assert.True(t, errors.Is(out.Err, domain.ErrValidation))
			assert.Equal(t, []State{StateValidating, StateFailed}, rec.states, "ステージング前に打ち切る")
			assert.Equal(t, 0, editor.callCount())
			assert.Empty(t, store.removed)
		})
	}
}

func TestOrchestrator_Run_StagingFailure(t *testing.T) {
	store := &failingStore{Store: newStore(t), failOn: "jpg"}
	editor := &fakeEditor{}
	orch, _ := NewOrchestrator(store, editor)

	rec := &stateRecorder{}
	out := orch.Run(context.Background(), scenarioInput(), rec.observe)

	assert.Equal(t, StateFailed, out.State)
	assert.True(t, errors.Is(out.Err, domain.ErrIO))
	assert.Contains(t, out.Message, "no space left on device")
	assert.Equal(t, 0, editor.callCount())
	assert.Equal(t, []State{StateValidating, StateStaging, StateFailed}, rec.states)

	// 人物画像側は書き込めていれば削除されるのだ
	for _, h := range store.removed {
		_, err := os.Stat(h)
		assert.True(t, os.IsNotExist(err))
	}
}

func TestOrchestrator_Run_ServiceFailure(t *testing.T) {
	store := &failingStore{Store: newStore(t)}
	editor := &fakeEditor{respond: func(domain.GenerationRequest) (*domain.EditResponse, error) {
		return nil, errors.New("Post \"https://api.openai.com/v1/images/edits\": context deadline exceeded (Client.Timeout exceeded while awaiting headers)")
	}}
	orch, _ := NewOrchestrator(store, editor)

	rec := &stateRecorder{}
	out := orch.Run(context.Background(), scenarioInput(), rec.observe)

	assert.Equal(t, StateFailed, out.State)
	assert.True(t, errors.Is(out.Err, domain.ErrService))
	assert.Equal(t, "Generation failed: Post \"https://api.openai.com/v1/images/edits\": context deadline exceeded (Client.Timeout exceeded while awaiting headers)", out.Message)
	assert.Equal(t, []State{StateValidating, StateStaging, StateRequesting, StateFailed}, rec.states)
	assert.Len(t, store.removed, 2, "失敗時もステージングファイルは削除される")
}

func TestOrchestrator_Run_MalformedResponse(t *testing.T) {
	for name, resp := range map[string]*domain.EditResponse{
		"nil":       nil,
		"dataなし":    {},
		"b64_json空": {Data: []domain.EditImage{{}}},
	} {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			editor := &fakeEditor{respond: func(domain.GenerationRequest) (*domain.EditResponse, error) { return resp, nil }}
			orch, _ := NewOrchestrator(store, editor)

			out := orch.Run(context.Background(), scenarioInput(), nil)
			assert.Equal(t, StateFailed, out.State)
			assert.True(t, errors.Is(out.Err, domain.ErrService))
			assert.Contains(t, out.Message, "no image data")
		})
	}
}

func TestOrchestrator_Run_DecodeFailure(t *testing.T) {
	store := newStore(t)
	editor := &fakeEditor{respond: func(domain.GenerationRequest) (*domain.EditResponse, error) {
		return &domain.EditResponse{Data: []domain.EditImage{{B64JSON: "%%% not base64 %%%"}}}, nil
	}}
	orch, _ := NewOrchestrator(store, editor)

	rec := &stateRecorder{}
	out := orch.Run(context.Background(), scenarioInput(), rec.observe)

	assert.Equal(t, StateFailed, out.State)
	assert.Nil(t, out.Result)
	assert.True(t, errors.Is(out.Err, domain.ErrDecode))
	assert.Equal(t, []State{StateValidating, StateStaging, StateRequesting, StateDecoding, StateFailed}, rec.states)
}

func TestOrchestrator_Run_UsesFirstResultEntry(t *testing.T) {
	store := newStore(t)
	editor := &fakeEditor{respond: func(domain.GenerationRequest) (*domain.EditResponse, error) {
		return &domain.EditResponse{Data: []domain.EditImage{{B64JSON: "Zmlyc3Q="}, {B64JSON: "c2Vjb25k"}}}, nil
	}}
	orch, _ := NewOrchestrator(store, editor)

	out := orch.Run(context.Background(), scenarioInput(), nil)
	require.Equal(t, StateDisplaying, out.State)
	assert.Equal(t, "first", string(out.Result.Data))
}

func TestOrchestrator_Run_EditorIOErrorKeepsKind(t *testing.T) {
	store := newStore(t)
	editor := &fakeEditor{respond: func(domain.GenerationRequest) (*domain.EditResponse, error) {
		return nil, domain.NewError(domain.KindIO, "read staged file", errors.New("permission denied"))
	}}
	orch, _ := NewOrchestrator(store, editor)

	out := orch.Run(context.Background(), scenarioInput(), nil)
	assert.True(t, errors.Is(out.Err, domain.ErrIO))
	assert.False(t, errors.Is(out.Err, domain.ErrService))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "displaying", StateDisplaying.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateRequesting.Busy())
	assert.False(t, StateFailed.Busy())
}
