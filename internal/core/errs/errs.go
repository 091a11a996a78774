package errs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindValidation
	KindConflict
	KindCascade // 用户已更新，但商品级联未完成
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation_failed"
	case KindConflict:
		return "conflict"
	case KindCascade:
		return "upstream_cascade_failure"
	default:
		return "internal"
	}
}

// Error 统一业务错误；Fields 只在 KindValidation 时有值（字段 -> 原因）
type Error struct {
	Kind   Kind
	Msg    string
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Msg, e.Err)
		}
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func New(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(msg string) *Error     { return New(KindNotFound, msg, nil) }
func Unauthorized(msg string) *Error { return New(KindUnauthorized, msg, nil) }
func Forbidden(msg string) *Error    { return New(KindForbidden, msg, nil) }
func Conflict(msg string) *Error     { return New(KindConflict, msg, nil) }

func Internal(msg string, err error) *Error { return New(KindInternal, msg, err) }

func Cascade(msg string, err error) *Error { return New(KindCascade, msg, err) }

// Validation 字段级校验失败
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Msg: "validation failed", Fields: fields}
}

// Invalid 单字段快捷写法
func Invalid(field, reason string) *Error {
	return Validation(map[string]string{field: reason})
}

// KindOf 非 *Error 一律视为 Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
