package llm

import "time"

// MessageRole 消息角色类型
type MessageRole string

const (
	// RoleSystem 系统角色
	RoleSystem MessageRole = "system"
	// RoleUser 用户角色
	RoleUser MessageRole = "user"
	// RoleAssistant 助手角色
	RoleAssistant MessageRole = "assistant"
)

// Message 对话消息结构
type Message struct {
	Role    MessageRole `json:"role"`    // 角色
	Content string      `json:"content"` // 内容
}

// OllamaChatRequest Ollama聊天API请求结构
type OllamaChatRequest struct {
	Model    string         `json:"model"`             // 模型名称
	Messages []Message      `json:"messages"`          // 消息列表
	Stream   bool           `json:"stream"`            // 是否流式输出
	Options  *OllamaOptions `json:"options,omitempty"` // 生成参数
}

// OllamaOptions Ollama生成参数
type OllamaOptions struct {
	Temperature   *float32 `json:"temperature,omitempty"`    // 采样温度
	NumPredict    *int     `json:"num_predict,omitempty"`    // 最大生成Token数
	TopP          *float32 `json:"top_p,omitempty"`          // 核采样概率阈值
	TopK          *int     `json:"top_k,omitempty"`          // 生成候选集大小
	RepeatPenalty *float32 `json:"repeat_penalty,omitempty"` // 重复惩罚系数
	Stop          []string `json:"stop,omitempty"`           // 停止序列
}

// OllamaChatResponse Ollama聊天API响应结构
type OllamaChatResponse struct {
	Model           string  `json:"model"`             // 模型名称
	Message         Message `json:"message"`           // 生成的消息
	Done            bool    `json:"done"`              // 是否完成
	DoneReason      string  `json:"done_reason"`       // 结束原因
	PromptEvalCount int     `json:"prompt_eval_count"` // 输入token数
	EvalCount       int     `json:"eval_count"`        // 输出token数
}

// OllamaTagsResponse Ollama模型列表响应结构
type OllamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Response 统一的响应结构
type Response struct {
	Text       string    // 生成的文本
	TokenCount int       // 使用的token数
	ModelName  string    // 使用的模型名称
	FinishTime time.Time // 完成时间
}

// RAGResponse RAG响应结构
type RAGResponse struct {
	Answer  string            // 回答内容
	Sources []SourceReference // 引用来源
}

// SourceReference 引用来源
type SourceReference struct {
	ID         string // 片段ID
	FileName   string // 文件名
	Content    string // 引用内容
	ChunkIndex int    // 片段序号
	ChunkType  string // 片段内容类型
}

// 推荐的泰语模型名称
const (
	// ModelGemma2Small 小模型，内存占用低，适合入门
	ModelGemma2Small = "gemma2:2b"
	// ModelLlama31 均衡模型
	ModelLlama31 = "llama3.1:8b"
	// ModelTyphoon2 针对泰语微调的模型
	ModelTyphoon2 = "llama3.2-typhoon2-1b-instruct:latest"
)
