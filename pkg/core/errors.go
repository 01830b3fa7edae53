// Package core 错误分类
package core

import (
	"context"
	"errors"
	"fmt"
)

// ErrCanceled 表示异步操作在其采集周期结束后才完成
// 属于预期情况，调用方应静默丢弃，不记录警告
var ErrCanceled = errors.New("操作已随采集周期取消")

// FetchError 批量获取失败：非2xx状态码、传输层错误或响应校验失败
type FetchError struct {
	Op     string // 请求的操作，如 "recent"、"today"、"range"
	Status int    // HTTP状态码，传输层失败时为0
	Err    error  // 底层原因，校验失败时为 *ValidationError
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("获取 %s 失败: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("获取 %s 失败: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ValidationError 线上数据未通过格式校验
type ValidationError struct {
	Field  string // 出错的字段名，整体结构错误时为空
	Reason string
	Err    error // JSON 解码错误等底层原因，可为空
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return "数据校验失败: " + msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StreamError 实时连接建立后断开，或建立连接失败
type StreamError struct {
	Status int // 建立连接时的HTTP状态码，读取阶段失败时为0
	Err    error
}

func (e *StreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("实时连接失败: HTTP %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("实时连接中断: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// FailureKind 面向视图模型的失败类型
type FailureKind int

const (
	FailureNone       FailureKind = iota // 无失败
	FailureNetwork                       // 网络或HTTP错误
	FailureValidation                    // 数据校验错误
	FailureStream                        // 实时连接错误
)

// String 返回失败类型名称
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNetwork:
		return "network"
	case FailureValidation:
		return "validation"
	case FailureStream:
		return "stream"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// IsCanceled 判断错误是否由取消引起
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled)
}

// ClassifyFailure 将错误归类为视图模型可展示的失败类型
// 校验错误优先于外层的获取错误
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return FailureValidation
	}

	var streamErr *StreamError
	if errors.As(err, &streamErr) {
		return FailureStream
	}

	return FailureNetwork
}
