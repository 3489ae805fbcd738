package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/thai-curriculum-rag/internal/document"
	"github.com/fyerfyer/thai-curriculum-rag/internal/models"
	"github.com/fyerfyer/thai-curriculum-rag/internal/vectordb"
	"github.com/fyerfyer/thai-curriculum-rag/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// enqueueProcessing 将文档处理任务提交到任务队列
func (s *DocumentService) enqueueProcessing(ctx context.Context, docID string) error {
	doc, err := s.statusManager.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	payload := &taskqueue.DocumentProcessPayload{
		DocumentID: docID,
		FileID:     docID,
		FileName:   doc.FileName,
		FileType:   doc.FileType,
	}

	taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskDocumentProcess, docID, payload)
	if err != nil {
		return fmt.Errorf("failed to enqueue document task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"file_id": docID,
		"task_id": taskID,
	}).Info("Document processing task enqueued")

	return nil
}

// ReindexDocument 提交文档重建索引任务
// 同步模式下直接执行
func (s *DocumentService) ReindexDocument(ctx context.Context, docID string, model string) error {
	if err := s.Init(); err != nil {
		return err
	}

	payload := taskqueue.DocumentReindexPayload{
		DocumentID: docID,
		Model:      model,
	}

	if s.asyncEnabled && s.taskQueue != nil {
		taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskDocumentReindex, docID, &payload)
		if err != nil {
			return fmt.Errorf("failed to enqueue reindex task: %w", err)
		}

		s.logger.WithFields(logrus.Fields{
			"file_id": docID,
			"task_id": taskID,
		}).Info("Document reindex task enqueued")
		return nil
	}

	_, err := s.reindexDocument(ctx, payload, nil)
	return err
}

// reindexDocument 基于数据库中已有的片段重新向量化
// 不重新解析文件，分类结果沿用片段记录里的内容类型
func (s *DocumentService) reindexDocument(ctx context.Context, payload taskqueue.DocumentReindexPayload, report taskqueue.ProgressFunc) (*taskqueue.DocumentProcessResult, error) {
	docID := payload.DocumentID

	doc, err := s.statusManager.GetDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	segments, err := s.repo.GetSegments(docID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document segments: %w", err)
	}
	if len(segments) == 0 {
		return nil, errors.New("document has no segments to reindex")
	}

	if err := s.statusManager.MarkAsProcessing(ctx, docID); err != nil {
		s.logger.WithError(err).Warn("Failed to mark document as processing")
	}
	s.setStage(ctx, docID, models.StageVectorizing)

	// 先清掉旧向量，再整批重建
	if err := s.vectorDB.DeleteByFileID(docID); err != nil {
		s.failDocument(ctx, docID, fmt.Sprintf("failed to delete old vectors: %v", err))
		return nil, fmt.Errorf("failed to delete old vectors: %w", err)
	}

	contentTypes := make(map[string]int)
	vectorCount := 0

	for i := 0; i < len(segments); i += s.batchSize {
		end := i + s.batchSize
		if end > len(segments) {
			end = len(segments)
		}
		batch := segments[i:end]

		texts := make([]string, len(batch))
		for j, seg := range batch {
			texts[j] = seg.Text
		}

		vectors, err := s.batcher.Process(ctx, texts)
		if err != nil {
			s.failDocument(ctx, docID, fmt.Sprintf("failed to generate embeddings: %v", err))
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}

		docs := make([]vectordb.Document, 0, len(batch))
		for j, seg := range batch {
			if vectors[j] == nil {
				continue
			}

			docs = append(docs, vectordb.Document{
				ID:         seg.SegmentID,
				FileID:     docID,
				FileName:   doc.FileName,
				ChunkIndex: seg.Position,
				ChunkType:  seg.ContentType,
				Text:       seg.Text,
				Vector:     vectors[j],
				CreatedAt:  time.Now(),
				Metadata:   extractChunkMetadata(seg.Text),
			})
			contentTypes[seg.ContentType]++
			vectorCount++
		}

		if err := s.vectorDB.AddBatch(docs); err != nil {
			s.failDocument(ctx, docID, fmt.Sprintf("failed to store vectors: %v", err))
			return nil, fmt.Errorf("failed to store vectors: %w", err)
		}

		progress := 10 + int(float64(end)/float64(len(segments))*85)
		s.reportProgress(ctx, docID, progress, report)
	}

	tableCount := contentTypes[string(document.ContentCurriculumTable)]
	if err := s.statusManager.MarkAsCompleted(ctx, docID, len(segments), tableCount); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as completed")
	}

	s.logger.WithFields(logrus.Fields{
		"file_id":      docID,
		"vector_count": vectorCount,
	}).Info("Document reindex completed")

	return &taskqueue.DocumentProcessResult{
		DocumentID:   docID,
		SegmentCount: len(segments),
		VectorCount:  vectorCount,
		Dimension:    s.vectorDB.GetDimension(),
		ContentTypes: contentTypes,
	}, nil
}

// DocumentProcessorAdapter 把文档服务接到任务队列的处理器接口上
// 队列worker通过它驱动完整的处理流程
type DocumentProcessorAdapter struct {
	service *DocumentService
}

// NewDocumentProcessorAdapter 创建处理器适配器
func NewDocumentProcessorAdapter(service *DocumentService) *DocumentProcessorAdapter {
	return &DocumentProcessorAdapter{service: service}
}

// Process 执行文档处理流程
func (a *DocumentProcessorAdapter) Process(ctx context.Context, payload taskqueue.DocumentProcessPayload, report taskqueue.ProgressFunc) (*taskqueue.DocumentProcessResult, error) {
	if err := a.service.Init(); err != nil {
		return nil, err
	}

	return a.service.processDocument(ctx, payload.DocumentID, report)
}

// Reindex 重新向量化文档的已有片段
func (a *DocumentProcessorAdapter) Reindex(ctx context.Context, payload taskqueue.DocumentReindexPayload, report taskqueue.ProgressFunc) (*taskqueue.DocumentProcessResult, error) {
	if err := a.service.Init(); err != nil {
		return nil, err
	}

	return a.service.reindexDocument(ctx, payload, report)
}

// Cleanup 删除文档的向量数据
func (a *DocumentProcessorAdapter) Cleanup(ctx context.Context, payload taskqueue.VectorCleanupPayload) error {
	if err := a.service.Init(); err != nil {
		return err
	}

	a.service.logger.WithField("file_id", payload.DocumentID).Info("Cleaning up document vectors")
	return a.service.vectorDB.DeleteByFileID(payload.DocumentID)
}

// WaitForDocumentProcessing 等待文档处理结束
// 轮询文档状态直到完成、失败或超时
func (s *DocumentService) WaitForDocumentProcessing(ctx context.Context, docID string, timeout time.Duration) (*taskqueue.DocumentProcessResult, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		doc, err := s.statusManager.GetDocument(ctx, docID)
		if err != nil {
			return nil, err
		}

		switch doc.Status {
		case models.DocStatusCompleted:
			contentTypes, _ := s.repo.CountSegmentsByType(docID)
			return &taskqueue.DocumentProcessResult{
				DocumentID:   docID,
				SegmentCount: doc.SegmentCount,
				Tables:       doc.TableCount,
				VectorCount:  doc.SegmentCount,
				Dimension:    s.vectorDB.GetDimension(),
				ContentTypes: contentTypes,
			}, nil
		case models.DocStatusFailed:
			return nil, fmt.Errorf("document processing failed: %s", doc.Error)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for document %s to be processed", docID)
		case <-ticker.C:
		}
	}
}
