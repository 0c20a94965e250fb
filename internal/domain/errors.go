package domain

import "errors"

// 错误种类（error kind）。
//
// 约定：
// - 客户端/各阶段返回 *Error，携带 kind + 可读消息 + 底层原因
// - 编排器只根据 kind 做“条目级失败”降级，不会因单条失败中止批处理
const (
	ErrKindInvalidArgument   = "invalid_argument"
	ErrKindMissingCredential = "missing_credential"
	ErrKindInvalidConfig     = "invalid_config"
	ErrKindFrameExtraction   = "frame_extraction_failed"
	ErrKindAuthFailed        = "auth_failed"
	ErrKindOcrFailed         = "ocr_failed"
	ErrKindServiceError      = "service_error"
	ErrKindMalformedResponse = "malformed_response"
	ErrKindEmptyInput        = "empty_input"
	ErrKindIOFailed          = "io_failed"
)

// Error 是带 kind 的结构化错误。
type Error struct {
	Kind string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + "：" + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind
	}
}

func (e *Error) Unwrap() error { return e.Err }

// E 构造一个 *Error（err 可以为 nil）。
func E(kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// ErrKind 从 error 中提取 kind；若不是 *Error 则返回空串。
func ErrKind(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
