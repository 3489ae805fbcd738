package api

import (
	"github.com/fyerfyer/thai-curriculum-rag/api/handler"
	"github.com/fyerfyer/thai-curriculum-rag/api/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	docHandler *handler.DocumentHandler,
	qaHandler *handler.QAHandler,
	chatHandler *handler.ChatHandler,
	taskHandler *handler.TaskHandler,
) *gin.Engine {
	router := gin.New()

	// 应用全局中间件
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(middleware.SetTraceID())

	// 在调试模式下记录请求体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	api := router.Group("/api")
	{
		// 文档管理API
		docGroup := api.Group("/documents")
		{
			// 上传文档 - POST /api/documents
			docGroup.POST("", docHandler.UploadDocument)

			// 获取文档列表 - GET /api/documents
			docGroup.GET("", docHandler.ListDocuments)

			// 获取文档状态 - GET /api/documents/:id/status
			docGroup.GET("/:id/status", docHandler.GetDocumentStatus)

			// 重建文档索引 - POST /api/documents/:id/reindex
			docGroup.POST("/:id/reindex", docHandler.ReindexDocument)

			// 更新文档标签 - PUT /api/documents/:id/tags
			docGroup.PUT("/:id/tags", docHandler.UpdateDocumentTags)

			// 删除文档 - DELETE /api/documents/:id
			docGroup.DELETE("/:id", docHandler.DeleteDocument)

			if taskHandler != nil {
				// 获取文档任务列表 - GET /api/documents/:id/tasks
				docGroup.GET("/:id/tasks", taskHandler.GetDocumentTasks)
			}
		}

		// 问答API
		qaGroup := api.Group("/qa")
		{
			// 回答问题 - POST /api/qa
			qaGroup.POST("", qaHandler.AnswerQuestion)
		}

		// 聊天会话API
		chatGroup := api.Group("/chats")
		{
			// 创建会话 - POST /api/chats
			chatGroup.POST("", chatHandler.CreateChat)

			// 会话列表 - GET /api/chats
			chatGroup.GET("", chatHandler.ListChats)

			// 聊天历史 - GET /api/chats/:session_id
			chatGroup.GET("/:session_id", chatHandler.GetChatHistory)

			// 重命名会话 - PUT /api/chats/:session_id
			chatGroup.PUT("/:session_id", chatHandler.RenameChat)

			// 删除会话 - DELETE /api/chats/:session_id
			chatGroup.DELETE("/:session_id", chatHandler.DeleteChat)
		}

		// 任务状态API
		if taskHandler != nil {
			api.GET("/tasks/:id", taskHandler.GetTaskStatus)
		}

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
// 前端独立部署时启用
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
