package staging

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shouni/tryon-kit/pkg/domain"
)

// Store はアップロードされたバイト列を、ファイル入力を要求する下流クライアントが
// 読めるハンドルとして具現化します。
type Store interface {
	// Stage は data を一意な場所に書き込み、そのハンドルを返します。
	Stage(ctx context.Context, data []byte, ext string) (string, error)
	// Open はハンドルの内容を読み出します。
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	// Remove はハンドルを削除します。存在しない場合はエラーにしません。
	Remove(ctx context.Context, handle string) error
}

// objectName は衝突しないステージング名を作ります。
func objectName(ext string) (string, error) {
	e, err := domain.ParseExtension(ext)
	if err != nil {
		return "", domain.NewError(domain.KindValidation, "stage", err)
	}
	return fmt.Sprintf("tryon-%s.%s", uuid.NewString(), e), nil
}

func ioFailure(op string, err error) error {
	return domain.NewError(domain.KindIO, op, err)
}
