package domain

import (
	"fmt"
	"strings"
)

// Extension はアップロードを受け付ける画像拡張子です。
type Extension string

const (
	ExtPNG  Extension = "png"
	ExtJPG  Extension = "jpg"
	ExtJPEG Extension = "jpeg"
)

// ParseExtension は ".PNG" や "jpg" のような表記を正規化し、許可リストに含まれるか検証します。
func ParseExtension(raw string) (Extension, error) {
	ext := Extension(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(raw), ".")))
	switch ext {
	case ExtPNG, ExtJPG, ExtJPEG:
		return ext, nil
	}
	return "", fmt.Errorf("unsupported image extension %q (allowed: png, jpg, jpeg)", raw)
}

// MimeType は拡張子に対応する MIME タイプを返します。
func (e Extension) MimeType() string {
	if e == ExtPNG {
		return "image/png"
	}
	return "image/jpeg"
}

// UploadedImage は UI 層から借り受ける、名前付きのアップロード済みバイト列です。
// コアは読み取りのみ行い、所有権は持ちません。
type UploadedImage struct {
	Name string
	Ext  Extension
	Data []byte
}

// GenerationRequest は1回の生成ボタン押下ごとに組み立てられる不変の要求です。
type GenerationRequest struct {
	PersonHandle  string
	GarmentHandle string
	Prompt        string
}

// Handles は外部サービスへ渡す順序（人物 → 衣服）でハンドルを返します。
func (r GenerationRequest) Handles() []string {
	return []string{r.PersonHandle, r.GarmentHandle}
}

// EditImage は生成サービスが返す結果エントリ1件です。
type EditImage struct {
	B64JSON       string
	RevisedPrompt string
}

// EditResponse は生成サービスのレスポンスです。
type EditResponse struct {
	Data []EditImage
}

// GenerationResult はデコード済みの生成画像です。キャッシュはされません。
type GenerationResult struct {
	Data     []byte
	MimeType string
}
