package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/thai-curriculum-rag/internal/database"
	"github.com/fyerfyer/thai-curriculum-rag/internal/models"
	"gorm.io/gorm"
)

// docRepository 文档仓储实现
type docRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建文档仓储实例
func NewDocumentRepository() DocumentRepository {
	return &docRepository{
		db: database.MustDB(),
	}
}

// NewDocumentRepositoryWithDB 使用指定的数据库连接创建文档仓储实例
func NewDocumentRepositoryWithDB(db *gorm.DB) DocumentRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &docRepository{
		db: db,
	}
}

// Create 创建文档记录
func (r *docRepository) Create(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}
	return r.db.Create(doc).Error
}

// Update 更新文档记录
func (r *docRepository) Update(doc *models.Document) error {
	if doc.ID == "" {
		return errors.New("document ID cannot be empty")
	}
	return r.db.Save(doc).Error
}

// GetByID 根据ID获取文档
func (r *docRepository) GetByID(id string) (*models.Document, error) {
	var doc models.Document
	err := r.db.Where("id = ?", id).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// List 列出文档列表，支持分页和筛选
func (r *docRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	var docs []*models.Document
	var total int64

	query := r.db.Model(&models.Document{})

	if filters != nil {
		if status, ok := filters["status"]; ok {
			statusStr := fmt.Sprintf("%v", status)
			if statusStr != "" {
				query = query.Where("status = ?", statusStr)
			}
		}
		if tags, ok := filters["tags"].(string); ok && tags != "" {
			query = query.Where("tags LIKE ?", "%"+tags+"%")
		}
		if fileType, ok := filters["file_type"].(string); ok && fileType != "" {
			query = query.Where("file_type = ?", fileType)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}

	err := query.Order("uploaded_at DESC").Find(&docs).Error
	if err != nil {
		return nil, 0, err
	}
	return docs, total, nil
}

// Delete 删除文档及其所有片段
func (r *docRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", id).Delete(&models.DocumentSegment{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Document{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrDocumentNotFound
		}
		return nil
	})
}

// UpdateStatus 更新文档状态
func (r *docRepository) UpdateStatus(id string, status models.DocumentStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"error":      errorMsg,
		"updated_at": time.Now(),
	}

	if status == models.DocStatusCompleted {
		now := time.Now()
		updates["processed_at"] = &now
		updates["progress"] = 100
		updates["current_stage"] = models.StageCompleted
	}

	result := r.db.Model(&models.Document{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrDocumentNotFound
	}
	return nil
}

// UpdateProgress 更新文档处理进度
func (r *docRepository) UpdateProgress(id string, progress int) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	result := r.db.Model(&models.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"progress":   progress,
		"updated_at": time.Now(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrDocumentNotFound
	}
	return nil
}

// SaveSegment 保存文档片段
func (r *docRepository) SaveSegment(segment *models.DocumentSegment) error {
	if segment.DocumentID == "" {
		return errors.New("segment document ID cannot be empty")
	}
	if segment.SegmentID == "" {
		return errors.New("segment ID cannot be empty")
	}
	return r.db.Create(segment).Error
}

// SaveSegments 批量保存文档片段
func (r *docRepository) SaveSegments(segments []*models.DocumentSegment) error {
	if len(segments) == 0 {
		return nil
	}

	for _, segment := range segments {
		if segment.DocumentID == "" {
			return errors.New("segment document ID cannot be empty")
		}
		if segment.SegmentID == "" {
			return errors.New("segment ID cannot be empty")
		}
	}

	return r.db.CreateInBatches(segments, 100).Error
}

// GetSegments 获取文档的所有片段，按位置排序
func (r *docRepository) GetSegments(docID string) ([]*models.DocumentSegment, error) {
	var segments []*models.DocumentSegment
	err := r.db.Where("document_id = ?", docID).Order("position ASC").Find(&segments).Error
	if err != nil {
		return nil, err
	}
	return segments, nil
}

// CountSegments 统计文档的片段数量
func (r *docRepository) CountSegments(docID string) (int, error) {
	var count int64
	err := r.db.Model(&models.DocumentSegment{}).Where("document_id = ?", docID).Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// CountSegmentsByType 按内容类型统计文档的片段数量
func (r *docRepository) CountSegmentsByType(docID string) (map[string]int, error) {
	type typeCount struct {
		ContentType string
		Count       int
	}

	var rows []typeCount
	err := r.db.Model(&models.DocumentSegment{}).
		Select("content_type, count(*) as count").
		Where("document_id = ?", docID).
		Group("content_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.ContentType] = row.Count
	}
	return counts, nil
}

// DeleteSegments 删除文档的所有片段
func (r *docRepository) DeleteSegments(docID string) error {
	return r.db.Where("document_id = ?", docID).Delete(&models.DocumentSegment{}).Error
}
