package imgutil

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
)

// DetectMIME はバイト列の先頭から MIME タイプを推定します。
func DetectMIME(data []byte) string {
	return http.DetectContentType(data)
}

// IsImage は推定 MIME タイプが image/* かどうかを返します。
func IsImage(data []byte) bool {
	return strings.HasPrefix(DetectMIME(data), "image/")
}

// CompressToJPEG は PNG / GIF / JPEG 画像を指定品質の JPEG に再エンコードします。
func CompressToJPEG(data []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ShrinkForUpload は JPEG 再エンコードで小さくなる場合だけ圧縮結果を返します。
// デコードできない入力や大きくなる場合は元のデータと MIME をそのまま返します。
func ShrinkForUpload(data []byte, mimeType string, quality int) ([]byte, string) {
	compressed, err := CompressToJPEG(data, quality)
	if err != nil || len(compressed) >= len(data) {
		return data, mimeType
	}
	return compressed, "image/jpeg"
}
