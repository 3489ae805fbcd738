package handler

import (
	"net/http"
	"time"

	"github.com/fyerfyer/thai-curriculum-rag/api/middleware"
	"github.com/fyerfyer/thai-curriculum-rag/api/model"
	"github.com/fyerfyer/thai-curriculum-rag/internal/document"
	"github.com/fyerfyer/thai-curriculum-rag/internal/models"
	"github.com/fyerfyer/thai-curriculum-rag/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// DocumentHandler 处理文档相关的API请求
type DocumentHandler struct {
	documentService *services.DocumentService // 文档服务
	logger          *logrus.Logger            // 日志记录器
}

// NewDocumentHandler 创建新的文档处理器
func NewDocumentHandler(documentService *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          middleware.GetLogger(),
	}
}

// UploadDocument 处理文档上传请求
// POST /api/documents
func (h *DocumentHandler) UploadDocument(c *gin.Context) {
	var req model.DocumentUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid document upload request")
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"无效的请求参数",
		))
		return
	}

	filename := req.File.Filename
	if document.DetectFileType(filename) == document.TypeUnknown {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(
			http.StatusBadRequest,
			"不支持的文件类型，仅支持 .pdf, .docx, .md, .markdown, .txt",
		))
		return
	}

	file, err := req.File.Open()
	if err != nil {
		h.logger.WithError(err).WithField("filename", filename).Error("Failed to open uploaded file")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"无法打开上传的文件",
		))
		return
	}
	defer file.Close()

	doc, err := h.documentService.UploadDocument(c.Request.Context(), file, filename)
	if err != nil {
		h.logger.WithError(err).WithField("filename", filename).Error("Failed to upload document")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"文档上传失败",
		))
		return
	}

	if req.Tags != "" {
		if err := h.documentService.UpdateDocumentTags(c.Request.Context(), doc.ID, req.Tags); err != nil {
			h.logger.WithError(err).WithField("file_id", doc.ID).Warn("Failed to set document tags")
		}
	}

	h.logger.WithFields(logrus.Fields{
		"file_id":  doc.ID,
		"filename": filename,
		"status":   doc.Status,
	}).Info("Document uploaded")

	resp := model.DocumentUploadResponse{
		FileID:   doc.ID,
		FileName: filename,
		Status:   string(doc.Status),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetDocumentStatus 获取文档处理状态
// GET /api/documents/:id/status
func (h *DocumentHandler) GetDocumentStatus(c *gin.Context) {
	var req model.DocumentStatusRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	docInfo, err := h.documentService.GetDocumentInfo(c.Request.Context(), req.ID)
	if err != nil {
		h.logger.WithError(err).WithField("file_id", req.ID).Error("Failed to get document info")
		c.JSON(http.StatusNotFound, model.NewErrorResponse(http.StatusNotFound, "未找到文档"))
		return
	}

	resp := model.DocumentStatusResponse{
		FileID:    req.ID,
		FileName:  docInfo["filename"].(string),
		CreatedAt: docInfo["created_at"].(string),
		UpdatedAt: docInfo["updated_at"].(string),
	}

	if status, ok := docInfo["status"].(models.DocumentStatus); ok {
		resp.Status = string(status)
	}
	if progress, ok := docInfo["progress"].(int); ok {
		resp.Progress = progress
	}
	if stage, ok := docInfo["stage"].(models.ProcessStage); ok {
		resp.Stage = string(stage)
	}
	if segments, ok := docInfo["segment_count"].(int); ok {
		resp.Segments = segments
	}
	if tables, ok := docInfo["table_count"].(int); ok {
		resp.Tables = tables
	}
	if types, ok := docInfo["content_types"].(map[string]int); ok {
		resp.ContentTypes = types
	}
	if errMsg, ok := docInfo["error"].(string); ok {
		resp.Error = errMsg
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ListDocuments 获取文档列表
// GET /api/documents
func (h *DocumentHandler) ListDocuments(c *gin.Context) {
	var req model.DocumentListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的查询参数"))
		return
	}

	filters := make(map[string]interface{})
	if req.Status != "" {
		filters["status"] = req.Status
	}
	if req.Tags != "" {
		filters["tags"] = req.Tags
	}
	if req.StartTime != nil {
		filters["start_time"] = req.StartTime.Format(time.RFC3339)
	}
	if req.EndTime != nil {
		filters["end_time"] = req.EndTime.Format(time.RFC3339)
	}

	offset := (req.GetPage() - 1) * req.GetPageSize()
	docs, total, err := h.documentService.ListDocuments(c.Request.Context(), offset, req.GetPageSize(), filters)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list documents")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"获取文档列表失败",
		))
		return
	}

	infos := make([]model.DocumentInfo, 0, len(docs))
	for _, doc := range docs {
		infos = append(infos, model.DocumentInfo{
			FileID:     doc.ID,
			FileName:   doc.FileName,
			Status:     string(doc.Status),
			Progress:   doc.Progress,
			Tags:       doc.Tags,
			UploadTime: doc.UploadedAt.Format(time.RFC3339),
			Segments:   doc.SegmentCount,
		})
	}

	resp := model.DocumentListResponse{
		Total:     total,
		Page:      req.GetPage(),
		PageSize:  req.GetPageSize(),
		Documents: infos,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// DeleteDocument 删除文档
// DELETE /api/documents/:id
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	var req model.DocumentDeleteRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	if err := h.documentService.DeleteDocument(c.Request.Context(), req.ID); err != nil {
		h.logger.WithError(err).WithField("file_id", req.ID).Error("Failed to delete document")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"删除文档失败",
		))
		return
	}

	h.logger.WithField("file_id", req.ID).Info("Document deleted")

	resp := model.DocumentDeleteResponse{
		Success: true,
		FileID:  req.ID,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ReindexDocument 重建文档索引
// POST /api/documents/:id/reindex
func (h *DocumentHandler) ReindexDocument(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	var req model.DocumentReindexRequest
	// 请求体可选，没有body时按默认模型处理
	_ = c.ShouldBindJSON(&req)

	if err := h.documentService.ReindexDocument(c.Request.Context(), id, req.Model); err != nil {
		h.logger.WithError(err).WithField("file_id", id).Error("Failed to reindex document")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"重建索引失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{"file_id": id}))
}

// UpdateDocumentTags 更新文档标签
// PUT /api/documents/:id/tags
func (h *DocumentHandler) UpdateDocumentTags(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的文档ID"))
		return
	}

	var req model.DocumentTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.NewErrorResponse(http.StatusBadRequest, "无效的请求参数"))
		return
	}

	if err := h.documentService.UpdateDocumentTags(c.Request.Context(), id, req.Tags); err != nil {
		h.logger.WithError(err).WithField("file_id", id).Error("Failed to update document tags")
		c.JSON(http.StatusInternalServerError, model.NewErrorResponse(
			http.StatusInternalServerError,
			"更新标签失败",
		))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{"file_id": id, "tags": req.Tags}))
}
