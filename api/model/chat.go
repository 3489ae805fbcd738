package model

import (
	"time"
)

// CreateChatRequest 创建聊天会话请求
type CreateChatRequest struct {
	Title string `json:"title,omitempty"` // 会话标题，可选，不提供时使用默认标题
}

// CreateChatResponse 创建聊天会话响应
type CreateChatResponse struct {
	ChatID    string    `json:"chat_id"`    // 会话ID
	Title     string    `json:"title"`      // 会话标题
	CreatedAt time.Time `json:"created_at"` // 创建时间
}

// GetChatHistoryRequest 获取聊天历史请求
type GetChatHistoryRequest struct {
	SessionID         string `uri:"session_id" binding:"required"` // 会话ID
	PaginationRequest        // 嵌入分页请求
}

// ChatListRequest 聊天会话列表请求
type ChatListRequest struct {
	PaginationRequest        // 嵌入分页请求
	Tags              string `form:"tags" json:"tags,omitempty"` // 标签过滤
}

// RenameChatRequest 重命名聊天会话请求
type RenameChatRequest struct {
	Title string `json:"title" binding:"required"` // 新标题
}

// ChatSessionInfo 聊天会话信息
type ChatSessionInfo struct {
	SessionID string    `json:"session_id"` // 会话ID
	Title     string    `json:"title"`      // 会话标题
	CreatedAt time.Time `json:"created_at"` // 创建时间
	UpdatedAt time.Time `json:"updated_at"` // 最近活动时间
}

// ChatListResponse 聊天会话列表响应
type ChatListResponse struct {
	Total    int64             `json:"total"`     // 总数量
	Page     int               `json:"page"`      // 当前页码
	PageSize int               `json:"page_size"` // 每页大小
	Sessions []ChatSessionInfo `json:"sessions"`  // 会话列表
}

// ChatMessageResponse 聊天消息响应对象
type ChatMessageResponse struct {
	ID        uint           `json:"id"`                // 消息ID
	SessionID string         `json:"session_id"`        // 会话ID
	Role      string         `json:"role"`              // 消息角色
	Content   string         `json:"content"`           // 消息内容
	CreatedAt time.Time      `json:"created_at"`        // 创建时间
	Sources   []QASourceInfo `json:"sources,omitempty"` // 引用来源（如果有）
}

// ChatHistoryResponse 聊天历史响应
type ChatHistoryResponse struct {
	SessionID string                `json:"session_id"` // 会话ID
	Title     string                `json:"title"`      // 会话标题
	Total     int64                 `json:"total"`      // 消息总数
	Messages  []ChatMessageResponse `json:"messages"`   // 消息列表
}

// DeleteChatResponse 删除会话响应
type DeleteChatResponse struct {
	Success   bool   `json:"success"`    // 是否成功
	SessionID string `json:"session_id"` // 会话ID
}
