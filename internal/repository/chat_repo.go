package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fyerfyer/thai-curriculum-rag/internal/database"
	"github.com/fyerfyer/thai-curriculum-rag/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatRepository 聊天仓储接口
// 负责聊天会话和消息的存储和检索
type ChatRepository interface {
	// CreateSession 创建聊天会话
	CreateSession(session *models.ChatSession) error

	// GetSession 获取聊天会话
	GetSession(id string) (*models.ChatSession, error)

	// ListSessions 列出聊天会话，支持分页和筛选
	ListSessions(offset, limit int, filters map[string]interface{}) ([]*models.ChatSession, int64, error)

	// UpdateSession 更新聊天会话
	UpdateSession(session *models.ChatSession) error

	// DeleteSession 删除聊天会话及其消息
	DeleteSession(id string) error

	// CreateMessage 创建聊天消息
	CreateMessage(message *models.ChatMessage) error

	// GetMessages 获取会话消息列表
	GetMessages(sessionID string, offset, limit int) ([]*models.ChatMessage, int64, error)

	// GetRecentMessages 获取会话最近的消息，按时间正序返回
	GetRecentMessages(sessionID string, limit int) ([]*models.ChatMessage, error)

	// CountMessages 统计会话消息数量
	CountMessages(sessionID string) (int64, error)

	// TrimMessages 裁剪会话消息，只保留最近的keep条
	TrimMessages(sessionID string, keep int) error

	// WithContext 创建带有上下文的仓储
	WithContext(ctx context.Context) ChatRepository
}

// chatRepo 聊天仓储实现
type chatRepo struct {
	db *gorm.DB
}

// NewChatRepository 创建聊天仓储实例
func NewChatRepository() ChatRepository {
	return &chatRepo{
		db: database.MustDB(),
	}
}

// NewChatRepositoryWithDB 使用指定的数据库连接创建聊天仓储实例
func NewChatRepositoryWithDB(db *gorm.DB) ChatRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &chatRepo{
		db: db,
	}
}

// WithContext 创建带有上下文的仓储
func (r *chatRepo) WithContext(ctx context.Context) ChatRepository {
	return &chatRepo{
		db: r.db.WithContext(ctx),
	}
}

// CreateSession 创建聊天会话
func (r *chatRepo) CreateSession(session *models.ChatSession) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}

	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	return r.db.Create(session).Error
}

// GetSession 获取聊天会话
func (r *chatRepo) GetSession(id string) (*models.ChatSession, error) {
	var session models.ChatSession
	err := r.db.Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// ListSessions 列出聊天会话，支持分页和筛选
func (r *chatRepo) ListSessions(offset, limit int, filters map[string]interface{}) ([]*models.ChatSession, int64, error) {
	var sessions []*models.ChatSession
	var total int64

	query := r.db.Model(&models.ChatSession{})

	if filters != nil {
		if userID, ok := filters["user_id"].(string); ok && userID != "" {
			query = query.Where("user_id = ?", userID)
		}
		if tags, ok := filters["tags"].(string); ok && tags != "" {
			query = query.Where("tags LIKE ?", "%"+tags+"%")
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}

	err := query.Order("updated_at DESC").Find(&sessions).Error
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// UpdateSession 更新聊天会话
func (r *chatRepo) UpdateSession(session *models.ChatSession) error {
	if session.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	return r.db.Save(session).Error
}

// DeleteSession 删除聊天会话及其消息
func (r *chatRepo) DeleteSession(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", id).Delete(&models.ChatMessage{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.ChatSession{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return models.ErrSessionNotFound
		}
		return nil
	})
}

// CreateMessage 创建聊天消息，同时刷新会话的更新时间
func (r *chatRepo) CreateMessage(message *models.ChatMessage) error {
	if message.SessionID == "" {
		return errors.New("message session ID cannot be empty")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		return tx.Model(&models.ChatSession{}).
			Where("id = ?", message.SessionID).
			Update("updated_at", time.Now()).Error
	})
}

// GetMessages 获取会话消息列表，按时间正序
func (r *chatRepo) GetMessages(sessionID string, offset, limit int) ([]*models.ChatMessage, int64, error) {
	var messages []*models.ChatMessage
	var total int64

	query := r.db.Model(&models.ChatMessage{}).Where("session_id = ?", sessionID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}

	err := query.Order("created_at ASC, id ASC").Find(&messages).Error
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// GetRecentMessages 获取会话最近的limit条消息，按时间正序返回
func (r *chatRepo) GetRecentMessages(sessionID string, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = models.MaxChatHistoryLength
	}

	var messages []*models.ChatMessage
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// 倒序查出来的结果翻转成正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountMessages 统计会话消息数量
func (r *chatRepo) CountMessages(sessionID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.ChatMessage{}).Where("session_id = ?", sessionID).Count(&count).Error
	return count, err
}

// TrimMessages 裁剪会话消息，只保留最近的keep条
func (r *chatRepo) TrimMessages(sessionID string, keep int) error {
	if keep <= 0 {
		keep = models.MaxChatHistoryLength
	}

	count, err := r.CountMessages(sessionID)
	if err != nil {
		return err
	}
	if count <= int64(keep) {
		return nil
	}

	// 找出要保留的最老一条消息的ID，删除比它更老的
	var cutoff models.ChatMessage
	err = r.db.Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Offset(keep - 1).
		First(&cutoff).Error
	if err != nil {
		return err
	}

	return r.db.Where("session_id = ? AND id < ?", sessionID, cutoff.ID).
		Delete(&models.ChatMessage{}).Error
}
