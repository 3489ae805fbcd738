package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskDocumentProcess 文档处理任务，覆盖解析、分类、分块、向量化的完整流程
	TaskDocumentProcess TaskType = "document_process"
	// TaskDocumentReindex 文档重建索引任务，基于已有片段重新向量化
	TaskDocumentReindex TaskType = "document_reindex"
	// TaskVectorCleanup 向量清理任务，删除文档对应的向量数据
	TaskVectorCleanup TaskType = "vector_cleanup"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	DocumentID  string          `json:"document_id"`  // 关联的文档ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Progress    int             `json:"progress"`     // 处理进度（0-100）
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据，不同任务类型对应不同结构
	Result      json.RawMessage `json:"result"`       // 任务结果数据
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// DocumentProcessPayload 文档处理任务载荷
type DocumentProcessPayload struct {
	DocumentID string            `json:"document_id"` // 文档ID
	FileID     string            `json:"file_id"`     // 存储文件ID
	FileName   string            `json:"file_name"`   // 文件名
	FileType   string            `json:"file_type"`   // 文件类型
	Metadata   map[string]string `json:"metadata"`    // 元数据
}

// DocumentProcessResult 文档处理任务结果
type DocumentProcessResult struct {
	DocumentID   string         `json:"document_id"`   // 文档ID
	Pages        int            `json:"pages"`         // 文档页数（如果适用）
	Chars        int            `json:"chars"`         // 清洗后的字符数
	Tables       int            `json:"tables"`        // 识别出的表格数
	SegmentCount int            `json:"segment_count"` // 片段数量
	VectorCount  int            `json:"vector_count"`  // 向量数量
	Dimension    int            `json:"dimension"`     // 向量维度
	ContentTypes map[string]int `json:"content_types"` // 各内容类型对应的片段数量
	Error        string         `json:"error"`         // 错误信息（如果有）
}

// DocumentReindexPayload 文档重建索引任务载荷
type DocumentReindexPayload struct {
	DocumentID string `json:"document_id"` // 文档ID
	Model      string `json:"model"`       // 嵌入模型名称
}

// VectorCleanupPayload 向量清理任务载荷
type VectorCleanupPayload struct {
	DocumentID string `json:"document_id"` // 文档ID
}

// MarshalPayload 将任务载荷序列化为JSON
func MarshalPayload(payload interface{}) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(payload)
}

// UnmarshalPayload 将JSON反序列化为任务载荷
func UnmarshalPayload(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}
