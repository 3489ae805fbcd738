package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fyerfyer/thai-curriculum-rag/internal/document"
	"github.com/fyerfyer/thai-curriculum-rag/internal/embedding"
	"github.com/fyerfyer/thai-curriculum-rag/internal/models"
	"github.com/fyerfyer/thai-curriculum-rag/internal/repository"
	"github.com/fyerfyer/thai-curriculum-rag/internal/vectordb"
	"github.com/fyerfyer/thai-curriculum-rag/pkg/storage"
	"github.com/fyerfyer/thai-curriculum-rag/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// runesPerPage 泰语课程手册PDF单页的大致字符数
// pdfcpu提取后页边界信息丢失，用累计偏移估算页码，只影响附录判定
const runesPerPage = 1800

// classifyBlockRunes 分类块的目标大小
// 一个块大致对应一个PDF页面，块太小会丢失表格信号
const classifyBlockRunes = 3000

// DocumentService 文档服务
// 负责协调文档解析、清洗、分类分块、向量化和入库
type DocumentService struct {
	storage       storage.Storage               // 文件存储服务
	splitter      *document.DynamicSplitter     // 动态文本分段器
	embedder      embedding.Client              // 嵌入模型客户端
	batcher       *embedding.BatchProcessor     // 嵌入批处理器
	vectorDB      vectordb.Repository           // 向量数据库
	repo          repository.DocumentRepository // 文档元数据存储
	statusManager *DocumentStatusManager        // 文档状态管理器
	taskQueue     taskqueue.Queue               // 任务队列
	asyncEnabled  bool                          // 是否启用异步处理
	batchSize     int                           // 批处理大小
	timeout       time.Duration                 // 处理超时时间
	logger        *logrus.Logger                // 日志记录器
}

// DocumentOption 文档服务配置选项
type DocumentOption func(*DocumentService)

// NewDocumentService 创建一个新的文档服务
func NewDocumentService(
	store storage.Storage,
	splitter *document.DynamicSplitter,
	embedder embedding.Client,
	vectorDB vectordb.Repository,
	opts ...DocumentOption,
) *DocumentService {
	srv := &DocumentService{
		storage:      store,
		splitter:     splitter,
		embedder:     embedder,
		vectorDB:     vectorDB,
		batchSize:    16,
		timeout:      time.Minute * 5,
		logger:       logrus.New(),
		asyncEnabled: false,
	}

	for _, opt := range opts {
		opt(srv)
	}

	srv.batcher = embedding.NewBatchProcessor(embedder, srv.batchSize, 4)

	return srv
}

// WithBatchSize 设置批处理大小
func WithBatchSize(size int) DocumentOption {
	return func(s *DocumentService) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithTimeout 设置处理超时时间
func WithTimeout(timeout time.Duration) DocumentOption {
	return func(s *DocumentService) {
		s.timeout = timeout
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) DocumentOption {
	return func(s *DocumentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDocumentRepository 设置文档仓储
func WithDocumentRepository(repo repository.DocumentRepository) DocumentOption {
	return func(s *DocumentService) {
		s.repo = repo
	}
}

// WithStatusManager 设置状态管理器
func WithStatusManager(manager *DocumentStatusManager) DocumentOption {
	return func(s *DocumentService) {
		s.statusManager = manager
	}
}

// WithTaskQueue 设置任务队列，设置后上传的文档默认走异步处理
func WithTaskQueue(queue taskqueue.Queue) DocumentOption {
	return func(s *DocumentService) {
		s.taskQueue = queue
		s.asyncEnabled = queue != nil
	}
}

// WithAsyncProcessing 设置是否启用异步处理
func WithAsyncProcessing(enabled bool) DocumentOption {
	return func(s *DocumentService) {
		s.asyncEnabled = enabled
	}
}

// Init 初始化文档服务，确保必要的依赖都已设置
func (s *DocumentService) Init() error {
	if s.repo == nil {
		s.repo = repository.NewDocumentRepository()
	}

	if s.statusManager == nil {
		s.statusManager = NewDocumentStatusManager(s.repo, s.logger)
	}

	return nil
}

// UploadDocument 保存上传的文件并触发处理
// 返回创建的文档记录；异步模式下处理在后台进行
func (s *DocumentService) UploadDocument(ctx context.Context, reader io.Reader, filename string) (*models.Document, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	if filename == "" {
		return nil, errors.New("filename cannot be empty")
	}

	// 先确认文件类型受支持，避免存了无法处理的文件
	if document.DetectFileType(filename) == document.TypeUnknown {
		return nil, document.ErrUnsupportedFileType{Ext: filepath.Ext(filename)}
	}

	fileInfo, err := s.storage.Save(reader, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	// 文档ID沿用存储文件ID，向量和片段都用它关联
	if err := s.statusManager.MarkAsUploaded(ctx, fileInfo.ID, filename, fileInfo.Path, fileInfo.Size); err != nil {
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"file_id":  fileInfo.ID,
		"filename": filename,
		"size":     fileInfo.Size,
	}).Info("Document uploaded")

	if err := s.ProcessDocument(ctx, fileInfo.ID); err != nil {
		return nil, err
	}

	return s.statusManager.GetDocument(ctx, fileInfo.ID)
}

// ProcessDocument 处理文档（解析、清洗、分类分块、向量化、入库）
func (s *DocumentService) ProcessDocument(ctx context.Context, docID string) error {
	if err := s.Init(); err != nil {
		return err
	}

	if docID == "" {
		return errors.New("docID cannot be empty")
	}

	if s.asyncEnabled && s.taskQueue != nil {
		return s.enqueueProcessing(ctx, docID)
	}

	_, err := s.processDocument(ctx, docID, nil)
	return err
}

// processDocument 同步执行文档处理流程
// report用于向任务队列报告进度，可以为nil
func (s *DocumentService) processDocument(ctx context.Context, docID string, report taskqueue.ProgressFunc) (*taskqueue.DocumentProcessResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc, err := s.statusManager.GetDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	if err := s.statusManager.MarkAsProcessing(ctx, docID); err != nil {
		s.logger.WithError(err).Warn("Failed to mark document as processing")
	}

	// 解析阶段
	s.setStage(ctx, docID, models.StageParsing)
	s.reportProgress(ctx, docID, 10, report)

	content, err := s.parseDocument(docID, doc.FileName)
	if err != nil {
		s.failDocument(ctx, docID, fmt.Sprintf("failed to parse document: %v", err))
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	content = document.CleanThaiText(content)
	stats := document.ComputeTextStats(content)

	s.logger.WithFields(logrus.Fields{
		"file_id":    docID,
		"chars":      stats.TotalRunes,
		"thai_chars": stats.ThaiRunes,
		"lines":      stats.Lines,
	}).Info("Document parsed and cleaned")

	// 分类分块阶段
	s.setStage(ctx, docID, models.StageClassifying)
	s.reportProgress(ctx, docID, 30, report)

	segments, tableCount := s.classifyAndSplit(content)
	if len(segments) == 0 {
		s.failDocument(ctx, docID, "no text segments produced")
		return nil, errors.New("no text segments produced")
	}

	// 向量化阶段
	s.setStage(ctx, docID, models.StageVectorizing)
	s.reportProgress(ctx, docID, 50, report)

	if err := s.vectorizeAndStore(ctx, docID, doc.FileName, segments, report); err != nil {
		s.failDocument(ctx, docID, fmt.Sprintf("failed to vectorize segments: %v", err))
		return nil, fmt.Errorf("failed to vectorize segments: %w", err)
	}

	if err := s.statusManager.MarkAsCompleted(ctx, docID, len(segments), tableCount); err != nil {
		s.logger.WithError(err).Error("Failed to mark document as completed")
	}

	contentTypes := make(map[string]int)
	for _, seg := range segments {
		contentTypes[string(seg.Kind)]++
	}

	s.logger.WithFields(logrus.Fields{
		"file_id":       docID,
		"segment_count": len(segments),
		"table_count":   tableCount,
		"content_types": contentTypes,
	}).Info("Document processing completed")

	return &taskqueue.DocumentProcessResult{
		DocumentID:   docID,
		Chars:        stats.TotalRunes,
		Tables:       tableCount,
		SegmentCount: len(segments),
		VectorCount:  len(segments),
		Dimension:    s.vectorDB.GetDimension(),
		ContentTypes: contentTypes,
	}, nil
}

// parseDocument 从存储读取文件并解析为文本
func (s *DocumentService) parseDocument(fileID string, fileName string) (string, error) {
	reader, err := s.storage.Get(fileID)
	if err != nil {
		return "", fmt.Errorf("failed to get file from storage: %w", err)
	}
	defer reader.Close()

	parser, err := document.ParserFactory(fileName)
	if err != nil {
		return "", fmt.Errorf("failed to create parser: %w", err)
	}

	return parser.ParseReader(reader, fileName)
}

// classifyAndSplit 把清洗后的全文切成分类块，逐块分类并按策略分块
// 返回带全局序号的片段和学习计划表块的数量
func (s *DocumentService) classifyAndSplit(content string) ([]document.Content, int) {
	var segments []document.Content
	tableCount := 0
	offset := 0

	for _, block := range splitIntoBlocks(content) {
		pageNum := offset/runesPerPage + 1
		contents, result := s.splitter.SplitBlock(block, pageNum)

		if result.Kind == document.ContentCurriculumTable {
			tableCount++
		}

		for _, c := range contents {
			c.Index = len(segments)
			segments = append(segments, c)
		}

		offset += utf8.RuneCountInString(block)
	}

	return segments, tableCount
}

// splitIntoBlocks 把全文按段落边界聚合成分类块
// 连续段落攒到目标大小就开新块，块边界尽量落在空行上
func splitIntoBlocks(content string) []string {
	paragraphs := strings.Split(content, "\n\n")

	var blocks []string
	var current strings.Builder
	currentRunes := 0

	for _, para := range paragraphs {
		paraRunes := utf8.RuneCountInString(para)

		if currentRunes > 0 && currentRunes+paraRunes > classifyBlockRunes {
			blocks = append(blocks, current.String())
			current.Reset()
			currentRunes = 0
		}

		if currentRunes > 0 {
			current.WriteString("\n\n")
			currentRunes += 2
		}
		current.WriteString(para)
		currentRunes += paraRunes
	}

	if current.Len() > 0 {
		blocks = append(blocks, current.String())
	}

	return blocks
}

// vectorizeAndStore 向量化片段并写入向量数据库和片段表
func (s *DocumentService) vectorizeAndStore(ctx context.Context, docID string, fileName string, segments []document.Content, report taskqueue.ProgressFunc) error {
	totalBatches := (len(segments) + s.batchSize - 1) / s.batchSize
	processedBatches := 0

	for i := 0; i < len(segments); i += s.batchSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

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
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}

		docs := make([]vectordb.Document, 0, len(batch))
		dbSegments := make([]*models.DocumentSegment, 0, len(batch))

		for j, seg := range batch {
			if vectors[j] == nil {
				continue
			}

			segmentID := fmt.Sprintf("%s_%d", docID, seg.Index)

			docs = append(docs, vectordb.Document{
				ID:         segmentID,
				FileID:     docID,
				FileName:   fileName,
				ChunkIndex: seg.Index,
				ChunkType:  string(seg.Kind),
				Text:       seg.Text,
				Vector:     vectors[j],
				CreatedAt:  time.Now(),
				Metadata:   extractChunkMetadata(seg.Text),
			})

			dbSegments = append(dbSegments, &models.DocumentSegment{
				DocumentID:  docID,
				SegmentID:   segmentID,
				Position:    seg.Index,
				Text:        seg.Text,
				ContentType: string(seg.Kind),
				ChunkSize:   utf8.RuneCountInString(seg.Text),
				VectorID:    segmentID,
			})
		}

		if err := s.vectorDB.AddBatch(docs); err != nil {
			return fmt.Errorf("failed to store vectors: %w", err)
		}

		if err := s.repo.SaveSegments(dbSegments); err != nil {
			s.logger.WithError(err).Error("Failed to save segments to database")
			// 向量已入库，片段记录失败不中断处理
		}

		processedBatches++
		// 向量化占50%到95%的进度区间
		progress := 50 + int(float64(processedBatches)/float64(totalBatches)*45)
		s.reportProgress(ctx, docID, progress, report)
	}

	return nil
}

// 片段元数据提取模式
var (
	chunkYearPattern     = regexp.MustCompile(`ปี\s*ที่\s*(\d+)|ชั้นปี\s*(\d+)`)
	chunkSemesterPattern = regexp.MustCompile(`ภาค\s*การศึกษา\s*ที่\s*(\d+)|เทอม\s*(\d+)`)
	chunkCodePattern     = regexp.MustCompile(`\b\d{8}\b`)
)

// extractChunkMetadata 从片段文本中提取检索用的元数据
// 年级和学期取第一次出现的值，课程代码去重后按出现顺序拼成空格分隔串
func extractChunkMetadata(text string) map[string]interface{} {
	meta := make(map[string]interface{})

	if m := chunkYearPattern.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			meta[vectordb.MetaYear] = m[1]
		} else {
			meta[vectordb.MetaYear] = m[2]
		}
	}

	if m := chunkSemesterPattern.FindStringSubmatch(text); m != nil {
		if m[1] != "" {
			meta[vectordb.MetaSemester] = m[1]
		} else {
			meta[vectordb.MetaSemester] = m[2]
		}
	}

	seen := make(map[string]struct{})
	var codes []string
	for _, code := range chunkCodePattern.FindAllString(text, -1) {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	if len(codes) > 0 {
		meta[vectordb.MetaCourseCodes] = strings.Join(codes, " ")
	}

	if len(meta) == 0 {
		return nil
	}
	return meta
}

// DeleteDocument 删除文档及其相关数据
func (s *DocumentService) DeleteDocument(ctx context.Context, docID string) error {
	if err := s.Init(); err != nil {
		return err
	}

	s.logger.WithField("file_id", docID).Info("Deleting document")

	// 1. 从向量数据库中删除
	if err := s.vectorDB.DeleteByFileID(docID); err != nil {
		s.logger.WithError(err).Error("Failed to delete document vectors")
		return fmt.Errorf("failed to delete document vectors: %w", err)
	}

	// 2. 从存储中删除文件
	if err := s.storage.Delete(docID); err != nil {
		// 文件可能已被删除，记录错误但不中断流程
		s.logger.WithError(err).Warn("Failed to delete file from storage")
	}

	// 3. 删除文档和片段记录
	if err := s.statusManager.DeleteDocument(ctx, docID); err != nil {
		s.logger.WithError(err).Error("Failed to delete document record")
		return fmt.Errorf("failed to delete document record: %w", err)
	}

	// 4. 删除队列中的相关任务
	if s.taskQueue != nil {
		tasks, err := s.taskQueue.GetTasksByDocument(ctx, docID)
		if err == nil {
			for _, task := range tasks {
				if err := s.taskQueue.DeleteTask(ctx, task.ID); err != nil {
					s.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to delete document task")
				}
			}
		}
	}

	s.logger.WithField("file_id", docID).Info("Document deleted successfully")
	return nil
}

// GetDocumentInfo 获取文档信息，包括按内容类型的片段统计
func (s *DocumentService) GetDocumentInfo(ctx context.Context, docID string) (map[string]interface{}, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	doc, err := s.statusManager.GetDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	info := map[string]interface{}{
		"file_id":       doc.ID,
		"filename":      doc.FileName,
		"status":        doc.Status,
		"created_at":    doc.UploadedAt.Format(time.RFC3339),
		"updated_at":    doc.UpdatedAt.Format(time.RFC3339),
		"size":          doc.FileSize,
		"progress":      doc.Progress,
		"segment_count": doc.SegmentCount,
		"table_count":   doc.TableCount,
	}

	if doc.CurrentStage != "" {
		info["stage"] = doc.CurrentStage
	}
	if doc.Error != "" {
		info["error"] = doc.Error
	}
	if doc.ProcessedAt != nil {
		info["processed_at"] = doc.ProcessedAt.Format(time.RFC3339)
	}
	if doc.Tags != "" {
		info["tags"] = doc.Tags
	}

	// 已完成的文档带上按内容类型的片段统计
	if doc.Status == models.DocStatusCompleted {
		if counts, err := s.repo.CountSegmentsByType(docID); err == nil && len(counts) > 0 {
			info["content_types"] = counts
		}
	}

	return info, nil
}

// GetDocumentStatus 获取文档处理状态
func (s *DocumentService) GetDocumentStatus(ctx context.Context, docID string) (models.DocumentStatus, error) {
	if err := s.Init(); err != nil {
		return "", err
	}

	return s.statusManager.GetStatus(ctx, docID)
}

// GetDocumentSegments 获取文档的所有片段
func (s *DocumentService) GetDocumentSegments(ctx context.Context, docID string) ([]*models.DocumentSegment, error) {
	if err := s.Init(); err != nil {
		return nil, err
	}

	return s.repo.GetSegments(docID)
}

// CountDocumentSegments 统计文档片段数量
func (s *DocumentService) CountDocumentSegments(ctx context.Context, docID string) (int, error) {
	if err := s.Init(); err != nil {
		return 0, err
	}

	return s.repo.CountSegments(docID)
}

// ListDocuments 获取文档列表
func (s *DocumentService) ListDocuments(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Document, int64, error) {
	if err := s.Init(); err != nil {
		return nil, 0, err
	}

	return s.statusManager.ListDocuments(ctx, offset, limit, filters)
}

// UpdateDocumentTags 更新文档标签
func (s *DocumentService) UpdateDocumentTags(ctx context.Context, docID string, tags string) error {
	if err := s.Init(); err != nil {
		return err
	}

	doc, err := s.statusManager.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	doc.Tags = tags
	return s.repo.Update(doc)
}

// setStage 更新处理阶段，失败只记日志
func (s *DocumentService) setStage(ctx context.Context, docID string, stage models.ProcessStage) {
	if err := s.statusManager.SetStage(ctx, docID, stage); err != nil {
		s.logger.WithError(err).WithField("file_id", docID).Warn("Failed to update document stage")
	}
}

// reportProgress 同时更新文档进度和任务进度
func (s *DocumentService) reportProgress(ctx context.Context, docID string, progress int, report taskqueue.ProgressFunc) {
	if err := s.statusManager.UpdateProgress(ctx, docID, progress); err != nil {
		s.logger.WithError(err).Debug("Failed to update document progress")
	}
	if report != nil {
		report(progress)
	}
}

// failDocument 将文档标记为失败状态
func (s *DocumentService) failDocument(ctx context.Context, docID string, errorMsg string) {
	if s.statusManager == nil {
		s.logger.Error("Cannot mark document as failed: status manager not initialized")
		return
	}

	if err := s.statusManager.MarkAsFailed(ctx, docID, errorMsg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"file_id": docID,
			"error":   err,
		}).Error("Failed to mark document as failed")
	}
}

// GetStatusManager 返回文档状态管理器实例
func (s *DocumentService) GetStatusManager() *DocumentStatusManager {
	return s.statusManager
}

// GetTaskQueue 返回任务队列实例
func (s *DocumentService) GetTaskQueue() taskqueue.Queue {
	return s.taskQueue
}
