package tryon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shouni/tryon-kit/pkg/decoder"
	"github.com/shouni/tryon-kit/pkg/domain"
	"github.com/shouni/tryon-kit/pkg/generator"
	"github.com/shouni/tryon-kit/pkg/imgutil"
	"github.com/shouni/tryon-kit/pkg/staging"
	"golang.org/x/sync/errgroup"
)

// ユーザーに表示するメッセージです。
const (
	MsgUploadBoth = "Upload both person and garment images."
	MsgDone       = "Done!"
)

var errNoImageData = errors.New("response contained no image data")

// Input は生成ボタン押下時点の UI 状態です。
type Input struct {
	Person  *domain.UploadedImage
	Garment *domain.UploadedImage
	Prompt  string
}

// Outcome は1回の生成操作の結果です。State は StateDisplaying か StateFailed のどちらかです。
type Outcome struct {
	State   State
	Result  *domain.GenerationResult
	Message string
	Err     error
}

// Orchestrator は 検証 → ステージング → 外部呼び出し → デコード を順に行います。
// 外部呼び出しは1回の操作につき最大1回で、リトライはしません。
type Orchestrator struct {
	store  staging.Store
	editor generator.ImageEditor
}

// NewOrchestrator は依存関係を注入して Orchestrator を初期化します。
func NewOrchestrator(store staging.Store, editor generator.ImageEditor) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("store (staging.Store) is required")
	}
	if editor == nil {
		return nil, fmt.Errorf("editor (generator.ImageEditor) is required")
	}
	return &Orchestrator{store: store, editor: editor}, nil
}

// Run は1回分の生成を実行します。エラーは全て Outcome に変換され、panic しません。
func (o *Orchestrator) Run(ctx context.Context, in Input, observe Observer) Outcome {
	enter := func(s State) {
		if observe != nil {
			observe(s)
		}
	}

	enter(StateValidating)
	if in.Person == nil || in.Garment == nil {
		return o.fail(ctx, enter, domain.NewError(domain.KindValidation, "validate", errors.New("missing image")), MsgUploadBoth)
	}
	for _, img := range []*domain.UploadedImage{in.Person, in.Garment} {
		if _, err := domain.ParseExtension(string(img.Ext)); err != nil {
			return o.fail(ctx, enter, domain.NewError(domain.KindValidation, "validate", err), "Unsupported image type: "+img.Name)
		}
	}

	enter(StateStaging)
	handles, err := o.stageBoth(ctx, in.Person, in.Garment)
	defer o.cleanup(ctx, handles)
	if err != nil {
		return o.fail(ctx, enter, err, "Could not stage uploaded images: "+err.Error())
	}

	req := domain.GenerationRequest{
		PersonHandle:  handles[0],
		GarmentHandle: handles[1],
		Prompt:        in.Prompt,
	}

	enter(StateRequesting)
	resp, err := o.editor.Edit(ctx, req)
	if err != nil {
		if domain.KindOf(err) != domain.KindIO {
			err = domain.NewError(domain.KindService, "", err)
		}
		return o.fail(ctx, enter, err, "Generation failed: "+err.Error())
	}
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		err := domain.NewError(domain.KindService, "", errNoImageData)
		return o.fail(ctx, enter, err, "Generation failed: "+err.Error())
	}

	enter(StateDecoding)
	data, err := decoder.Decode(resp.Data[0].B64JSON)
	if err != nil {
		return o.fail(ctx, enter, err, "Generation failed: "+err.Error())
	}

	enter(StateDisplaying)
	slog.InfoContext(ctx, "試着画像の生成が完了しました", "bytes", len(data))
	return Outcome{
		State:   StateDisplaying,
		Result:  &domain.GenerationResult{Data: data, MimeType: imgutil.DetectMIME(data)},
		Message: MsgDone,
	}
}

// stageBoth は人物画像と衣服画像を並行してステージングします。
// 失敗時も、書き込めた分のハンドルは返り値に入り、呼び出し側で削除されます。
func (o *Orchestrator) stageBoth(ctx context.Context, person, garment *domain.UploadedImage) ([2]string, error) {
	var handles [2]string
	g, gctx := errgroup.WithContext(ctx)
	for i, img := range []*domain.UploadedImage{person, garment} {
		g.Go(func() error {
			h, err := o.store.Stage(gctx, img.Data, string(img.Ext))
			if err != nil {
				return err
			}
			handles[i] = h
			return nil
		})
	}
	err := g.Wait()
	if err != nil && domain.KindOf(err) == 0 {
		err = domain.NewError(domain.KindIO, "stage", err)
	}
	return handles, err
}

// cleanup はステージング済みファイルを削除します。呼び出し元のキャンセルに関わらず実行します。
func (o *Orchestrator) cleanup(ctx context.Context, handles [2]string) {
	rmCtx := context.WithoutCancel(ctx)
	for _, h := range handles {
		if h == "" {
			continue
		}
		if err := o.store.Remove(rmCtx, h); err != nil {
			slog.WarnContext(ctx, "ステージングファイルの削除に失敗しました", "handle", h, "error", err)
		}
	}
}

func (o *Orchestrator) fail(ctx context.Context, enter func(State), err error, msg string) Outcome {
	enter(StateFailed)
	slog.WarnContext(ctx, "試着画像の生成に失敗しました", "kind", domain.KindOf(err).String(), "error", err)
	return Outcome{State: StateFailed, Message: msg, Err: err}
}
