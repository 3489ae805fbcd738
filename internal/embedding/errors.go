package embedding

import "fmt"

// Error 嵌入错误类型
type Error struct {
	Code    int    // 错误码
	Message string // 错误消息
}

// Error 实现error接口
func (e Error) Error() string {
	return fmt.Sprintf("embedding error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidRequest = 1001 // 无效的请求
	ErrCodeNetworkError   = 1002 // 网络连接错误
	ErrCodeRateLimited    = 1003 // 请求频率超限
	ErrCodeServerError    = 1004 // 服务器错误
	ErrCodeTimeout        = 1005 // 请求超时
	ErrCodeEmptyInput     = 1006 // 输入为空
	ErrCodeModelNotFound  = 1007 // 模型不存在
)

// NewError 创建新的嵌入错误
func NewError(code int, message string) Error {
	return Error{Code: code, Message: message}
}

// 常用错误
var (
	// ErrEmptyText 输入文本为空
	ErrEmptyText = NewError(ErrCodeEmptyInput, "input text cannot be empty")
	// ErrRateLimited 请求频率超限
	ErrRateLimited = NewError(ErrCodeRateLimited, "too many requests, rate limit exceeded")
)
