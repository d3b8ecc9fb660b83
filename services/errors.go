package services

import (
	"errors"
	"fmt"
)

// 域错误哨兵值，传输层据此映射错误码
var (
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("用户不存在")
	// ErrRecordingNotFound 录像会话不存在
	ErrRecordingNotFound = errors.New("录像会话不存在")
	// ErrTalkSessionNotFound 对讲会话不存在
	ErrTalkSessionNotFound = errors.New("对讲会话不存在")
	// ErrEmptyUserKey 用户键为空
	ErrEmptyUserKey = errors.New("用户键为空")
)

// TalkSessionActiveError 对讲会话冲突: 该 PSO 已有进行中的会话
type TalkSessionActiveError struct {
	PsoEmail        string
	SupervisorEmail string // 当前占用会话的主管，尽力解析，可能为空
}

func (e *TalkSessionActiveError) Error() string {
	if e.SupervisorEmail != "" {
		return fmt.Sprintf("PSO %s 已有进行中的对讲会话 (主管: %s)", e.PsoEmail, e.SupervisorEmail)
	}
	return fmt.Sprintf("PSO %s 已有进行中的对讲会话", e.PsoEmail)
}

// ValidationError 请求校验错误
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("校验失败 [%s]: %s", e.Field, e.Message)
	}
	return "校验失败: " + e.Message
}

// ExternalServiceError 外部服务 (egress/blob/广播) 调用失败
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("外部服务 %s 调用失败: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// SupervisorError 主管变更失败
type SupervisorError struct {
	Message string
	Err     error
}

func (e *SupervisorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("主管变更失败: %s: %v", e.Message, e.Err)
	}
	return "主管变更失败: " + e.Message
}

func (e *SupervisorError) Unwrap() error {
	return e.Err
}
