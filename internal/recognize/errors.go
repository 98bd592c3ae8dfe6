package recognize

import (
	"context"
	"errors"
	"fmt"
)

// ServiceError 是识别服务的失败。Error() 原样返回 Message，不附加前缀，
// 让操作人员看到服务端给出的原始说明。
type ServiceError struct {
	Recognizer string
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	if e == nil {
		return "service error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("识别服务 %s 失败", e.Recognizer)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// AsServiceError 把任意错误归一为 *ServiceError；已经是 *ServiceError 的原样返回。
func AsServiceError(recognizer string, err error) *ServiceError {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		if se.Recognizer == "" {
			se.Recognizer = recognizer
		}
		return se
	}
	return &ServiceError{Recognizer: recognizer, Message: err.Error(), Err: err}
}

// IsCanceled 表示错误来自调用方取消或超时，而不是服务本身。
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
