package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/shouni/tryon-kit/pkg/domain"
)

// errTooLarge は1ファイルがアップロード上限を超えたことを表します。
var errTooLarge = errors.New("uploaded image is too large")

// readUpload はマルチパートのファイル欄を UploadedImage に変換します。欄が空なら nil を返します。
// 拡張子だけを確認し、中身が画像かどうかは検証しません。
func readUpload(r *http.Request, field string, max int64) (*domain.UploadedImage, error) {
	f, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if header.Size > max {
		return nil, errTooLarge
	}
	ext, err := domain.ParseExtension(filepath.Ext(header.Filename))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", header.Filename, err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &domain.UploadedImage{Name: filepath.Base(header.Filename), Ext: ext, Data: data}, nil
}

// multipartLimit は2枚分のファイルとフォーム値を許容するボディ上限です。
func multipartLimit(maxFile int64, files int) int64 {
	return maxFile*int64(files) + 1<<20
}

func statusForUploadErr(err error) int {
	var mbe *http.MaxBytesError
	if errors.Is(err, errTooLarge) || errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
