package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTokenDecode 表示远端认为 auth token 无效/过期（无法解码）。
// 这是唯一可以“强制重新登录 + 重试一次”恢复的错误。
var ErrTokenDecode = errors.New("auth token 无效或无法解码")

// ErrUnsupported 表示当前 backend 不提供该查询（例如 protocol backend 没有 developer 查询）。
var ErrUnsupported = errors.New("当前 backend 不支持该操作")

// ErrEmptyQuery 表示查询参数（prefix/developer/package）为空。
var ErrEmptyQuery = errors.New("查询参数不能为空")

// AuthError 表示登录重试次数耗尽。
// 对触发它的调用是致命的；此时 session 保持未登录状态。
type AuthError struct {
	Attempts int
	Err      error // 最后一次登录错误
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("登录失败（尝试 %d 次）", e.Attempts)
	}
	return fmt.Sprintf("登录失败（尝试 %d 次）：%v", e.Attempts, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuth 判断 err 是否为登录重试耗尽。
func IsAuth(err error) bool {
	var e *AuthError
	return errors.As(err, &e)
}

// MalformedError 表示期望的页面结构/记录字段缺失或非法，无法保证输出形态。
type MalformedError struct {
	Source string // 例如 "details"、"listing"、"record"
	What   string // 缺失/非法的元素或字段
	Err    error
}

func (e *MalformedError) Error() string {
	var b strings.Builder
	b.WriteString("文档结构不符合预期")
	if e.Source != "" {
		b.WriteString("（" + e.Source + "）")
	}
	if e.What != "" {
		b.WriteString("：" + e.What)
	}
	if e.Err != nil {
		b.WriteString("：" + e.Err.Error())
	}
	return b.String()
}

func (e *MalformedError) Unwrap() error { return e.Err }

// IsMalformed 判断 err 是否为文档结构错误。
func IsMalformed(err error) bool {
	var e *MalformedError
	return errors.As(err, &e)
}

// NetworkError 表示抓取/RPC 的传输层失败（含非 2xx）。
// 采集层不做重试，直接向上传播。
type NetworkError struct {
	Op  string // "fetch"、"login"、"search"、"details"
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("网络错误 op=%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("网络错误 op=%s url=%s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetwork 判断 err 是否为网络错误。
func IsNetwork(err error) bool {
	var e *NetworkError
	return errors.As(err, &e)
}
