package domain

import (
	"errors"
	"fmt"
)

// Kind は試着パイプラインのエラー分類です。
type Kind int

const (
	KindValidation Kind = iota + 1
	KindIO
	KindDecode
	KindService
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindIO:
		return "io"
	case KindDecode:
		return "decode"
	case KindService:
		return "service"
	default:
		return "unknown"
	}
}

// 分類ごとの番兵です。errors.Is(err, ErrDecode) のように比較します。
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrIO         = &Error{Kind: KindIO}
	ErrDecode     = &Error{Kind: KindDecode}
	ErrService    = &Error{Kind: KindService}
)

// Error は分類付きのエラーです。
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError は分類付きエラーを生成します。
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	default:
		return e.Kind.String() + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is は Kind が一致すれば同一とみなします。
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf は err に含まれる最初の分類を返します。分類がなければ 0 です。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
