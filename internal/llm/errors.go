package llm

import "fmt"

// LLMError 大模型调用错误类型
type LLMError struct {
	Code    int    // 错误码
	Message string // 错误消息
}

// Error 实现error接口
func (e LLMError) Error() string {
	return fmt.Sprintf("llm error (code=%d): %s", e.Code, e.Message)
}

// 错误码常量
const (
	ErrCodeInvalidRequest = 2001 // 无效的请求
	ErrCodeNetworkError   = 2002 // 网络连接错误
	ErrCodeServerError    = 2003 // 服务器错误
	ErrCodeTimeout        = 2004 // 请求超时
	ErrCodeEmptyPrompt    = 2005 // 提示词为空
	ErrCodeModelNotFound  = 2006 // 模型不存在
	ErrCodeEmptyResponse  = 2007 // 模型返回为空
)

// 错误消息常量
const (
	ErrMsgEmptyPrompt   = "prompt cannot be empty"
	ErrMsgNetworkError  = "network connection error"
	ErrMsgServerError   = "server error occurred"
	ErrMsgEmptyResponse = "model returned empty response"
)

// NewLLMError 创建新的大模型错误
func NewLLMError(code int, message string) LLMError {
	return LLMError{
		Code:    code,
		Message: message,
	}
}

// WrapError 包装普通错误为LLM错误
func WrapError(err error, code int) LLMError {
	if err == nil {
		return LLMError{Code: code, Message: "unknown error"}
	}

	if llmErr, ok := err.(LLMError); ok {
		return llmErr
	}

	return LLMError{
		Code:    code,
		Message: err.Error(),
	}
}
