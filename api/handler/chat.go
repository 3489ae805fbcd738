package handler

import (
	"net/http"

	"github.com/fyerfyer/thai-curriculum-rag/api/middleware"
	"github.com/fyerfyer/thai-curriculum-rag/api/model"
	"github.com/fyerfyer/thai-curriculum-rag/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ChatHandler 处理聊天会话相关的API请求
type ChatHandler struct {
	chatService *services.ChatService // 聊天服务
	logger      *logrus.Logger        // 日志记录器
}

// NewChatHandler 创建新的聊天处理器
func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      middleware.GetLogger(),
	}
}

// CreateChat 创建新的聊天会话
// POST /api/chats
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req model.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		h.logger.WithError(err).Warn("Invalid create chat request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	session, err := h.chatService.CreateChat(c.Request.Context(), req.Title)
	if err != nil {
		h.logger.WithError(err).Error("Failed to create chat session")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"创建聊天会话失败",
		))
		return
	}

	resp := model.CreateChatResponse{
		ChatID:    session.ID,
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ListChats 获取聊天会话列表
// GET /api/chats
func (h *ChatHandler) ListChats(c *gin.Context) {
	var req model.ChatListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的查询参数"))
		return
	}

	filters := make(map[string]interface{})
	if req.Tags != "" {
		filters["tags"] = req.Tags
	}

	offset := (req.GetPage() - 1) * req.GetPageSize()
	sessions, total, err := h.chatService.ListChats(c.Request.Context(), offset, req.GetPageSize(), filters)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list chat sessions")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取会话列表失败",
		))
		return
	}

	infos := make([]model.ChatSessionInfo, 0, len(sessions))
	for _, session := range sessions {
		infos = append(infos, model.ChatSessionInfo{
			SessionID: session.ID,
			Title:     session.Title,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		})
	}

	resp := model.ChatListResponse{
		Total:    total,
		Page:     req.GetPage(),
		PageSize: req.GetPageSize(),
		Sessions: infos,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetChatHistory 获取聊天历史记录
// GET /api/chats/:session_id
func (h *ChatHandler) GetChatHistory(c *gin.Context) {
	var req model.GetChatHistoryRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的会话ID"))
		return
	}
	if err := c.ShouldBindQuery(&req.PaginationRequest); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的分页参数"))
		return
	}

	session, err := h.chatService.GetChat(c.Request.Context(), req.SessionID)
	if err != nil {
		h.logger.WithError(err).WithField("session_id", req.SessionID).Error("Failed to get chat session")
		c.JSON(http.StatusNotFound, model.NewErrorResponse(
			http.StatusNotFound,
			"聊天会话不存在",
		))
		return
	}

	offset := (req.GetPage() - 1) * req.GetPageSize()
	messages, total, err := h.chatService.GetChatMessages(c.Request.Context(), req.SessionID, offset, req.GetPageSize())
	if err != nil {
		h.logger.WithError(err).WithField("session_id", req.SessionID).Error("Failed to get chat messages")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取聊天消息失败",
		))
		return
	}

	messageInfos := make([]model.ChatMessageResponse, 0, len(messages))
	for _, msg := range messages {
		info := model.ChatMessageResponse{
			ID:        msg.ID,
			SessionID: msg.SessionID,
			Role:      string(msg.Role),
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		}

		if sources, err := services.MessageSources(msg); err == nil && len(sources) > 0 {
			info.Sources = model.ConvertToSourceInfo(sources)
		}

		messageInfos = append(messageInfos, info)
	}

	resp := model.ChatHistoryResponse{
		SessionID: session.ID,
		Title:     session.Title,
		Total:     total,
		Messages:  messageInfos,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// RenameChat 重命名聊天会话
// PUT /api/chats/:session_id
func (h *ChatHandler) RenameChat(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的会话ID"))
		return
	}

	var req model.RenameChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的请求参数"))
		return
	}

	if err := h.chatService.RenameChat(c.Request.Context(), sessionID, req.Title); err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to rename chat session")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"重命名会话失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{
		"session_id": sessionID,
		"title":      req.Title,
	}))
}

// DeleteChat 删除聊天会话
// DELETE /api/chats/:session_id
func (h *ChatHandler) DeleteChat(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的会话ID"))
		return
	}

	if err := h.chatService.DeleteChat(c.Request.Context(), sessionID); err != nil {
		h.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to delete chat session")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"删除会话失败",
		))
		return
	}

	resp := model.DeleteChatResponse{
		Success:   true,
		SessionID: sessionID,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
