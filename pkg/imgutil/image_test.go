package imgutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// テスト用のグラデーション画像を作成するヘルパー
func createImageData(t *testing.T, format string, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := 0; x < size; x++ {
		for y := 0; y < size; y++ {
			img.Set(x, y, color.RGBA{uint8(x * 7), uint8(y * 13), uint8((x ^ y) * 3), 255})
		}
	}

	buf := new(bytes.Buffer)
	var err error
	switch format {
	case "png":
		err = png.Encode(buf, img)
	case "jpeg":
		err = jpeg.Encode(buf, img, nil)
	default:
		t.Fatalf("unsupported format: %s", format)
	}
	require.NoError(t, err)
	return buf.Bytes()
}

func TestDetectMIME(t *testing.T) {
	assert.Equal(t, "image/png", DetectMIME(createImageData(t, "png", 4)))
	assert.Equal(t, "image/jpeg", DetectMIME(createImageData(t, "jpeg", 4)))
	assert.True(t, IsImage(createImageData(t, "png", 4)))
	assert.False(t, IsImage([]byte("hello")))
}

func TestCompressToJPEG(t *testing.T) {
	t.Run("PNG画像をJPEGに変換できる", func(t *testing.T) {
		got, err := CompressToJPEG(createImageData(t, "png", 16), 75)
		require.NoError(t, err)

		_, format, err := image.Decode(bytes.NewReader(got))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
	})

	t.Run("不正なデータはエラー", func(t *testing.T) {
		_, err := CompressToJPEG([]byte("this is not an image"), 75)
		assert.Error(t, err)
	})

	t.Run("低品質ほど小さくなる", func(t *testing.T) {
		input := createImageData(t, "png", 64)
		high, err := CompressToJPEG(input, 100)
		require.NoError(t, err)
		low, err := CompressToJPEG(input, 10)
		require.NoError(t, err)
		assert.Less(t, len(low), len(high))
	})
}

func TestShrinkForUpload(t *testing.T) {
	t.Run("デコードできない入力はそのまま", func(t *testing.T) {
		in := []byte("garbage")
		out, mime := ShrinkForUpload(in, "image/png", 75)
		assert.Equal(t, in, out)
		assert.Equal(t, "image/png", mime)
	})

	t.Run("小さくなる場合はJPEGを返す", func(t *testing.T) {
		in := createImageData(t, "png", 128)
		out, mime := ShrinkForUpload(in, "image/png", 50)
		if len(out) < len(in) {
			assert.Equal(t, "image/jpeg", mime)
		} else {
			assert.Equal(t, "image/png", mime)
		}
	})
}
