package errno

import (
	"errors"
	"fmt"
	"net/http"
)

// BizError 业务错误，携带错误码与底层原因
type BizError struct {
	Errno *Errno
	Cause error
}

// NewBizError 使用错误码包装底层错误
func NewBizError(code *Errno, cause error) *BizError {
	if code == nil {
		code = ErrUnknown
	}
	return &BizError{Errno: code, Cause: cause}
}

// Newf 使用格式化的原因创建业务错误
func Newf(code *Errno, format string, args ...interface{}) *BizError {
	return NewBizError(code, fmt.Errorf(format, args...))
}

func (e *BizError) Error() string {
	if e.Cause == nil {
		return e.Errno.Message
	}
	return e.Errno.Message + ": " + e.Cause.Error()
}

// Unwrap 支持 errors.Is 匹配底层原因
func (e *BizError) Unwrap() error {
	return e.Cause
}

// Is 支持 errors.Is(err, errno.ErrX) 匹配错误码
func (e *BizError) Is(target error) bool {
	if t, ok := target.(*Errno); ok {
		return t == e.Errno
	}
	return false
}

// Decode 从任意错误中解析错误码与对外消息
func Decode(err error) (*Errno, string) {
	if err == nil {
		return OK, OK.Message
	}
	var biz *BizError
	if errors.As(err, &biz) {
		return biz.Errno, biz.Error()
	}
	var code *Errno
	if errors.As(err, &code) {
		return code, code.Message
	}
	return ErrInternalServer, err.Error()
}

// HTTPStatus 错误码对应的HTTP状态码
func HTTPStatus(code *Errno) int {
	switch code.Tag {
	case TagValidation:
		return http.StatusBadRequest
	case TagUnresolvableSource:
		return http.StatusUnprocessableEntity
	case TagQuotaExceeded:
		return http.StatusTooManyRequests
	case TagNotFound:
		return http.StatusNotFound
	}
	switch {
	case code == OK:
		return http.StatusOK
	case code == ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
