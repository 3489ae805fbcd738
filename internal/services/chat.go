package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/fyerfyer/thai-curriculum-rag/internal/llm"
	"github.com/fyerfyer/thai-curriculum-rag/internal/models"
	"github.com/fyerfyer/thai-curriculum-rag/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// defaultChatTitle 新会话的默认标题
const defaultChatTitle = "การสนทนาใหม่"

// titleMaxRunes 从首条消息生成标题时的截断长度
const titleMaxRunes = 30

// ChatService 聊天会话服务
// 管理会话生命周期和消息历史
type ChatService struct {
	repo   repository.ChatRepository
	logger *logrus.Logger
}

// NewChatService 创建聊天服务
func NewChatService(repo repository.ChatRepository, logger *logrus.Logger) *ChatService {
	if logger == nil {
		logger = logrus.New()
	}

	return &ChatService{
		repo:   repo,
		logger: logger,
	}
}

// CreateChat 创建新的聊天会话
func (s *ChatService) CreateChat(ctx context.Context, title string) (*models.ChatSession, error) {
	if title == "" {
		title = defaultChatTitle
	}

	session := &models.ChatSession{
		ID:    uuid.New().String(),
		Title: title,
	}

	if err := s.repo.WithContext(ctx).CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create chat session: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"title":      session.Title,
	}).Info("Chat session created")

	return session, nil
}

// GetChat 获取聊天会话
func (s *ChatService) GetChat(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	if sessionID == "" {
		return nil, errors.New("session id cannot be empty")
	}

	return s.repo.WithContext(ctx).GetSession(sessionID)
}

// ListChats 列出聊天会话
func (s *ChatService) ListChats(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.ChatSession, int64, error) {
	return s.repo.WithContext(ctx).ListSessions(offset, limit, filters)
}

// RenameChat 重命名聊天会话
func (s *ChatService) RenameChat(ctx context.Context, sessionID string, title string) error {
	if title == "" {
		return errors.New("title cannot be empty")
	}

	repo := s.repo.WithContext(ctx)
	session, err := repo.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("failed to get chat session: %w", err)
	}

	session.Title = title
	return repo.UpdateSession(session)
}

// DeleteChat 删除聊天会话及其所有消息
func (s *ChatService) DeleteChat(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session id cannot be empty")
	}

	s.logger.WithField("session_id", sessionID).Info("Deleting chat session")
	return s.repo.WithContext(ctx).DeleteSession(sessionID)
}

// AddMessage 向会话添加一条消息
// 首条用户消息会把默认标题替换成消息摘要，超出历史上限后裁剪最老的消息
func (s *ChatService) AddMessage(ctx context.Context, sessionID string, role models.MessageRole, content string, sources []models.Source) (*models.ChatMessage, error) {
	if sessionID == "" {
		return nil, errors.New("session id cannot be empty")
	}
	if content == "" {
		return nil, errors.New("message content cannot be empty")
	}

	repo := s.repo.WithContext(ctx)

	session, err := repo.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat session: %w", err)
	}

	message := &models.ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}

	if len(sources) > 0 {
		data, err := json.Marshal(sources)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message sources: %w", err)
		}
		message.Sources = data
	}

	if err := repo.CreateMessage(message); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	if role == models.RoleUser && session.Title == defaultChatTitle {
		session.Title = makeTitle(content)
		if err := repo.UpdateSession(session); err != nil {
			s.logger.WithError(err).Warn("Failed to update session title")
		}
	}

	if count, err := repo.CountMessages(sessionID); err == nil && count > models.MaxChatHistoryLength {
		if err := repo.TrimMessages(sessionID, models.MaxChatHistoryLength); err != nil {
			s.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to trim chat history")
		}
	}

	return message, nil
}

// GetChatMessages 获取会话的消息列表
func (s *ChatService) GetChatMessages(ctx context.Context, sessionID string, offset, limit int) ([]*models.ChatMessage, int64, error) {
	if sessionID == "" {
		return nil, 0, errors.New("session id cannot be empty")
	}

	return s.repo.WithContext(ctx).GetMessages(sessionID, offset, limit)
}

// CountChatMessages 统计会话消息数量
func (s *ChatService) CountChatMessages(ctx context.Context, sessionID string) (int64, error) {
	return s.repo.WithContext(ctx).CountMessages(sessionID)
}

// BuildHistory 把会话最近的消息转换成提示词用的对话历史
// 按时间正序返回，系统消息被过滤掉
func (s *ChatService) BuildHistory(ctx context.Context, sessionID string, limit int) ([]llm.Message, error) {
	if sessionID == "" {
		return nil, nil
	}

	messages, err := s.repo.WithContext(ctx).GetRecentMessages(sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}

	history := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case models.RoleUser:
			history = append(history, llm.Message{Role: llm.RoleUser, Content: msg.Content})
		case models.RoleAssistant:
			history = append(history, llm.Message{Role: llm.RoleAssistant, Content: msg.Content})
		}
	}

	return history, nil
}

// MessageSources 解析消息引用的信息源
func MessageSources(msg *models.ChatMessage) ([]models.Source, error) {
	if len(msg.Sources) == 0 {
		return nil, nil
	}

	var sources []models.Source
	if err := json.Unmarshal(msg.Sources, &sources); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message sources: %w", err)
	}
	return sources, nil
}

// makeTitle 从消息内容生成会话标题
func makeTitle(content string) string {
	if utf8.RuneCountInString(content) <= titleMaxRunes {
		return content
	}
	return string([]rune(content)[:titleMaxRunes]) + "..."
}
