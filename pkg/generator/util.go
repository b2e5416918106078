package generator

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/shouni/tryon-kit/pkg/domain"
)

// stagedImage はハンドルから読み出した送信用の画像です。
type stagedImage struct {
	Filename string
	MimeType string
	Data     []byte
}

// readHandle はハンドルの内容と、ハンドル名の拡張子から決まる MIME を読み出します。
func readHandle(ctx context.Context, opener HandleOpener, handle string) (*stagedImage, error) {
	name := path.Base(filepath.ToSlash(handle))
	ext, err := domain.ParseExtension(path.Ext(name))
	if err != nil {
		return nil, domain.NewError(domain.KindIO, "read staged file", err)
	}

	rc, err := opener.Open(ctx, handle)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.NewError(domain.KindIO, "read staged file", fmt.Errorf("%s: %w", name, err))
	}
	return &stagedImage{Filename: name, MimeType: ext.MimeType(), Data: data}, nil
}
