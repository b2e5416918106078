package decoder

import (
	"encoding/base64"

	"github.com/shouni/tryon-kit/pkg/domain"
)

// Decode は生成サービスが返す base64 テキストを生のバイト列に戻します。
// 画像形式の検証は行いません。不正な入力では DecodeFailure を返し、部分的なバイト列は返しません。
func Decode(b64 string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, domain.NewError(domain.KindDecode, "decode", err)
	}
	return b, nil
}

// Encode は Decode の逆変換です。
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}
