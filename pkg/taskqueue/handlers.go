package taskqueue

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ProgressFunc 进度回调函数
// 处理流程在各阶段调用它来报告进度（0-100）
type ProgressFunc func(progress int)

// DocumentProcessor 文档处理器接口
// 由服务层实现，执行完整的文档处理流程
type DocumentProcessor interface {
	// Process 执行文档处理流程，通过report报告进度
	Process(ctx context.Context, payload DocumentProcessPayload, report ProgressFunc) (*DocumentProcessResult, error)

	// Reindex 基于已有片段重新向量化文档
	Reindex(ctx context.Context, payload DocumentReindexPayload, report ProgressFunc) (*DocumentProcessResult, error)

	// Cleanup 删除文档对应的向量数据
	Cleanup(ctx context.Context, payload VectorCleanupPayload) error
}

// PipelineHandler 文档处理流水线的任务处理器
// 把队列任务解包后交给DocumentProcessor执行，并把进度和结果写回队列
type PipelineHandler struct {
	queue     Queue
	processor DocumentProcessor
	logger    *logrus.Logger
}

// NewPipelineHandler 创建流水线任务处理器
func NewPipelineHandler(queue Queue, processor DocumentProcessor, logger *logrus.Logger) *PipelineHandler {
	if logger == nil {
		logger = logrus.New()
	}

	return &PipelineHandler{
		queue:     queue,
		processor: processor,
		logger:    logger,
	}
}

// GetTaskTypes 返回此处理器支持的任务类型
func (h *PipelineHandler) GetTaskTypes() []TaskType {
	return []TaskType{TaskDocumentProcess, TaskDocumentReindex, TaskVectorCleanup}
}

// ProcessTask 处理任务
func (h *PipelineHandler) ProcessTask(ctx context.Context, task *Task) error {
	h.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"task_type":   task.Type,
		"document_id": task.DocumentID,
	}).Info("Processing task")

	switch task.Type {
	case TaskDocumentProcess:
		return h.handleProcess(ctx, task)
	case TaskDocumentReindex:
		return h.handleReindex(ctx, task)
	case TaskVectorCleanup:
		return h.handleCleanup(ctx, task)
	default:
		return fmt.Errorf("unsupported task type: %s", task.Type)
	}
}

// handleProcess 处理文档处理任务
func (h *PipelineHandler) handleProcess(ctx context.Context, task *Task) error {
	var payload DocumentProcessPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.DocumentID == "" {
		return fmt.Errorf("%w: missing document id", ErrInvalidPayload)
	}

	result, err := h.processor.Process(ctx, payload, h.progressReporter(ctx, task.ID))
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"task_id":     task.ID,
			"document_id": payload.DocumentID,
		}).Error("Document processing failed")
		return err
	}

	h.logger.WithFields(logrus.Fields{
		"task_id":       task.ID,
		"document_id":   payload.DocumentID,
		"segment_count": result.SegmentCount,
		"vector_count":  result.VectorCount,
		"content_types": result.ContentTypes,
	}).Info("Document processing completed")

	return h.queue.UpdateTaskStatus(ctx, task.ID, StatusCompleted, result, "")
}

// handleReindex 处理文档重建索引任务
func (h *PipelineHandler) handleReindex(ctx context.Context, task *Task) error {
	var payload DocumentReindexPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.DocumentID == "" {
		return fmt.Errorf("%w: missing document id", ErrInvalidPayload)
	}

	result, err := h.processor.Reindex(ctx, payload, h.progressReporter(ctx, task.ID))
	if err != nil {
		return err
	}

	return h.queue.UpdateTaskStatus(ctx, task.ID, StatusCompleted, result, "")
}

// handleCleanup 处理向量清理任务
func (h *PipelineHandler) handleCleanup(ctx context.Context, task *Task) error {
	var payload VectorCleanupPayload
	if err := UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if payload.DocumentID == "" {
		return fmt.Errorf("%w: missing document id", ErrInvalidPayload)
	}

	if err := h.processor.Cleanup(ctx, payload); err != nil {
		return err
	}

	return h.queue.UpdateTaskStatus(ctx, task.ID, StatusCompleted, nil, "")
}

// progressReporter 创建把进度写回队列的回调
func (h *PipelineHandler) progressReporter(ctx context.Context, taskID string) ProgressFunc {
	return func(progress int) {
		if err := h.queue.UpdateTaskProgress(ctx, taskID, progress); err != nil {
			h.logger.WithError(err).WithField("task_id", taskID).Warn("Failed to update task progress")
		}
	}
}
