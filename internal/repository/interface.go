package repository

import "github.com/fyerfyer/thai-curriculum-rag/internal/models"

// DocumentRepository 文档仓储接口
// 负责文档元数据和片段记录的存储和检索
type DocumentRepository interface {
	// Create 创建文档记录
	Create(doc *models.Document) error

	// Update 更新文档记录
	Update(doc *models.Document) error

	// GetByID 根据ID获取文档
	GetByID(id string) (*models.Document, error)

	// List 列出文档列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error)

	// Delete 删除文档
	Delete(id string) error

	// UpdateStatus 更新文档状态
	UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error

	// UpdateProgress 更新文档处理进度
	UpdateProgress(id string, progress int) error

	// SaveSegment 保存文档片段
	SaveSegment(segment *models.DocumentSegment) error

	// SaveSegments 批量保存文档片段
	SaveSegments(segments []*models.DocumentSegment) error

	// GetSegments 获取文档的所有片段
	GetSegments(docID string) ([]*models.DocumentSegment, error)

	// CountSegments 统计文档的片段数量
	CountSegments(docID string) (int, error)

	// CountSegmentsByType 按内容类型统计文档的片段数量
	CountSegmentsByType(docID string) (map[string]int, error)

	// DeleteSegments 删除文档的所有片段
	DeleteSegments(docID string) error
}
