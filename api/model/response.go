package model

import (
	"github.com/fyerfyer/thai-curriculum-rag/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// DocumentUploadResponse 文档上传响应
type DocumentUploadResponse struct {
	FileID   string `json:"file_id"`  // 文件ID
	FileName string `json:"filename"` // 文件名
	Status   string `json:"status"`   // 文档状态
}

// DocumentStatusResponse 文档状态查询响应
type DocumentStatusResponse struct {
	FileID       string         `json:"file_id"`                 // 文档ID
	Status       string         `json:"status"`                  // 处理状态
	Stage        string         `json:"stage,omitempty"`         // 当前处理阶段
	Progress     int            `json:"progress"`                // 处理进度（0-100）
	FileName     string         `json:"filename"`                // 文件名
	Error        string         `json:"error,omitempty"`         // 错误信息（如果有）
	Segments     int            `json:"segments,omitempty"`      // 片段数量（处理完成后）
	Tables       int            `json:"tables,omitempty"`        // 学习计划表块数量
	ContentTypes map[string]int `json:"content_types,omitempty"` // 按内容类型的片段统计
	CreatedAt    string         `json:"created_at"`              // 创建时间
	UpdatedAt    string         `json:"updated_at"`              // 更新时间
}

// DocumentInfo 文档列表项
type DocumentInfo struct {
	FileID     string `json:"file_id"`        // 文件ID
	FileName   string `json:"filename"`       // 文件名
	Status     string `json:"status"`         // 状态
	Progress   int    `json:"progress"`       // 处理进度
	Tags       string `json:"tags,omitempty"` // 标签
	UploadTime string `json:"upload_time"`    // 上传时间
	Segments   int    `json:"segments"`       // 片段数量
}

// DocumentListResponse 文档列表响应
type DocumentListResponse struct {
	Total     int64          `json:"total"`     // 总数量
	Page      int            `json:"page"`      // 当前页码
	PageSize  int            `json:"page_size"` // 每页大小
	Documents []DocumentInfo `json:"documents"` // 文档列表
}

// DocumentDeleteResponse 文档删除响应
type DocumentDeleteResponse struct {
	Success bool   `json:"success"` // 是否成功
	FileID  string `json:"file_id"` // 文件ID
}

// QASourceInfo 问答来源信息
type QASourceInfo struct {
	Text      string  `json:"text"`                 // 相关文本片段
	FileID    string  `json:"file_id"`              // 文件ID
	FileName  string  `json:"filename"`             // 文件名
	Position  int     `json:"position"`             // 片段位置
	ChunkType string  `json:"chunk_type,omitempty"` // 片段内容类型
	Score     float32 `json:"score,omitempty"`      // 相似度分数
}

// QAResponse 问答响应
type QAResponse struct {
	Question  string         `json:"question"`             // 用户问题
	Answer    string         `json:"answer"`               // 生成的回答
	SessionID string         `json:"session_id,omitempty"` // 会话ID（带会话时）
	Sources   []QASourceInfo `json:"sources"`              // 来源信息
}

// ConvertToSourceInfo 把消息引用来源转换为响应格式
func ConvertToSourceInfo(sources []models.Source) []QASourceInfo {
	if len(sources) == 0 {
		return []QASourceInfo{}
	}

	infos := make([]QASourceInfo, len(sources))
	for i, src := range sources {
		infos[i] = QASourceInfo{
			Text:      src.Text,
			FileID:    src.FileID,
			FileName:  src.FileName,
			Position:  src.ChunkIndex,
			ChunkType: src.ChunkType,
			Score:     src.Score,
		}
	}
	return infos
}
