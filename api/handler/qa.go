package handler

import (
	"net/http"

	"github.com/fyerfyer/thai-curriculum-rag/api/middleware"
	"github.com/fyerfyer/thai-curriculum-rag/api/model"
	"github.com/fyerfyer/thai-curriculum-rag/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// QAHandler 处理问答相关的API请求
type QAHandler struct {
	qaService *services.QAService // 问答服务
	logger    *logrus.Logger      // 日志记录器
}

// NewQAHandler 创建新的问答处理器
func NewQAHandler(qaService *services.QAService) *QAHandler {
	return &QAHandler{
		qaService: qaService,
		logger:    middleware.GetLogger(),
	}
}

// AnswerQuestion 处理问答请求
// POST /api/qa
func (h *QAHandler) AnswerQuestion(c *gin.Context) {
	var req model.QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid question request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	ctx := c.Request.Context()

	var result *services.QAResult
	var err error

	if req.SessionID != "" {
		// 会话问答，带历史上下文
		h.logger.WithFields(logrus.Fields{
			"question":   req.Question,
			"session_id": req.SessionID,
		}).Info("Question in chat session")

		result, err = h.qaService.AnswerWithHistory(ctx, req.SessionID, req.Question)
	} else {
		// 单次问答
		h.logger.WithField("question", req.Question).Info("Standalone question")

		result, err = h.qaService.Answer(ctx, req.Question)
	}

	if err != nil {
		h.logger.WithError(err).WithField("question", req.Question).Error("Failed to answer question")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"处理问题时出错: "+err.Error(),
		))
		return
	}

	resp := model.QAResponse{
		Question:  req.Question,
		Answer:    result.Answer,
		SessionID: req.SessionID,
		Sources:   model.ConvertToSourceInfo(result.Sources),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
