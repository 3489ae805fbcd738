package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fyerfyer/thai-curriculum-rag/internal/cache"
	"github.com/fyerfyer/thai-curriculum-rag/internal/embedding"
	"github.com/fyerfyer/thai-curriculum-rag/internal/llm"
	"github.com/fyerfyer/thai-curriculum-rag/internal/models"
	"github.com/fyerfyer/thai-curriculum-rag/internal/vectordb"
	"github.com/sirupsen/logrus"
)

// QAService 问答服务
// 负责问题分析、向量检索和回答生成
type QAService struct {
	embedder    embedding.Client    // 嵌入模型客户端
	vectorDB    vectordb.Repository // 向量数据库
	rag         *llm.RAGService     // 检索增强生成服务
	chatService *ChatService        // 聊天会话服务，可选
	cache       cache.Cache         // 问答缓存，可选
	cacheTTL    time.Duration       // 缓存有效期
	searchLimit int                 // 检索结果数量
	minScore    float32             // 最低相似度分数
	logger      *logrus.Logger      // 日志记录器
}

// QAOption 问答服务配置选项
type QAOption func(*QAService)

// NewQAService 创建问答服务
func NewQAService(
	embedder embedding.Client,
	vectorDB vectordb.Repository,
	rag *llm.RAGService,
	opts ...QAOption,
) *QAService {
	srv := &QAService{
		embedder:    embedder,
		vectorDB:    vectorDB,
		rag:         rag,
		cacheTTL:    time.Hour * 24,
		searchLimit: 5,
		minScore:    0.0,
		logger:      logrus.New(),
	}

	for _, opt := range opts {
		opt(srv)
	}

	return srv
}

// WithQACache 设置问答缓存
func WithQACache(c cache.Cache, ttl time.Duration) QAOption {
	return func(s *QAService) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithSearchLimit 设置检索结果数量
func WithSearchLimit(limit int) QAOption {
	return func(s *QAService) {
		if limit > 0 {
			s.searchLimit = limit
		}
	}
}

// WithMinScore 设置最低相似度分数
func WithMinScore(score float32) QAOption {
	return func(s *QAService) {
		s.minScore = score
	}
}

// WithChatService 设置聊天会话服务
func WithChatService(chat *ChatService) QAOption {
	return func(s *QAService) {
		s.chatService = chat
	}
}

// WithQALogger 设置日志记录器
func WithQALogger(logger *logrus.Logger) QAOption {
	return func(s *QAService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// QAResult 问答结果
type QAResult struct {
	Answer  string          `json:"answer"`  // 回答内容
	Sources []models.Source `json:"sources"` // 引用来源
}

// 问题分析模式
// 课程代码支持连写（12345678）和4+4分写（1234 5678、1234-5678）两种形式
var (
	questionCodePattern      = regexp.MustCompile(`\b(\d{8})\b`)
	questionSplitCodePattern = regexp.MustCompile(`\b(\d{4})[\s-](\d{4})\b`)
	questionYearPattern      = regexp.MustCompile(`ปี\s*ที่\s*(\d+)|ชั้นปี\s*(\d+)`)
	questionSemesterPattern  = regexp.MustCompile(`ภาค\s*การศึกษา\s*ที่\s*(\d+)|เทอม\s*(\d+)`)
)

// questionFilter 从问题中提取的结构化检索条件
type questionFilter struct {
	CourseCode string // 课程代码，8位数字
	Year       string // 年级
	Semester   string // 学期
}

// empty 判断是否没有提取到任何条件
func (f questionFilter) empty() bool {
	return f.CourseCode == "" && f.Year == "" && f.Semester == ""
}

// analyzeQuestion 分析问题，提取课程代码、年级和学期
func analyzeQuestion(question string) questionFilter {
	var filter questionFilter

	if m := questionCodePattern.FindStringSubmatch(question); m != nil {
		filter.CourseCode = m[1]
	} else if m := questionSplitCodePattern.FindStringSubmatch(question); m != nil {
		filter.CourseCode = m[1] + m[2]
	}

	if m := questionYearPattern.FindStringSubmatch(question); m != nil {
		if m[1] != "" {
			filter.Year = m[1]
		} else {
			filter.Year = m[2]
		}
	}

	if m := questionSemesterPattern.FindStringSubmatch(question); m != nil {
		if m[1] != "" {
			filter.Semester = m[1]
		} else {
			filter.Semester = m[2]
		}
	}

	return filter
}

// Answer 回答问题（不带对话历史）
func (s *QAService) Answer(ctx context.Context, question string) (*QAResult, error) {
	return s.answer(ctx, question, nil)
}

// AnswerWithHistory 在会话上下文中回答问题
// 用户消息和带引用的回答都会被保存进会话历史
func (s *QAService) AnswerWithHistory(ctx context.Context, sessionID string, question string) (*QAResult, error) {
	if s.chatService == nil {
		return nil, errors.New("chat service is not configured")
	}

	history, err := s.chatService.BuildHistory(ctx, sessionID, models.MaxChatHistoryLength)
	if err != nil {
		return nil, err
	}

	if _, err := s.chatService.AddMessage(ctx, sessionID, models.RoleUser, question, nil); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	result, err := s.answer(ctx, question, history)
	if err != nil {
		return nil, err
	}

	if _, err := s.chatService.AddMessage(ctx, sessionID, models.RoleAssistant, result.Answer, result.Sources); err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to save assistant message")
	}

	return result, nil
}

// answer 执行完整的问答流程
func (s *QAService) answer(ctx context.Context, question string, history []llm.Message) (*QAResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("question cannot be empty")
	}

	// 带历史的问题依赖上下文，不走缓存
	useCache := s.cache != nil && len(history) == 0
	cacheKey := cache.QuestionKey("", question)

	if useCache {
		if cached, found, err := s.cache.Get(cacheKey); err == nil && found {
			var result QAResult
			if err := json.Unmarshal([]byte(cached), &result); err == nil {
				s.logger.WithField("cache_key", cacheKey).Debug("Answer served from cache")
				return &result, nil
			}
		}
	}

	filter := analyzeQuestion(question)

	results, err := s.retrieve(ctx, question, filter)
	if err != nil {
		return nil, err
	}

	chunks := make([]llm.ContextChunk, len(results))
	sources := make([]models.Source, len(results))
	for i, r := range results {
		chunks[i] = llm.ContextChunk{
			ID:         r.Document.ID,
			FileName:   r.Document.FileName,
			Content:    r.Document.Text,
			ChunkIndex: r.Document.ChunkIndex,
			ChunkType:  r.Document.ChunkType,
		}
		sources[i] = models.Source{
			FileID:     r.Document.FileID,
			FileName:   r.Document.FileName,
			ChunkIndex: r.Document.ChunkIndex,
			ChunkType:  r.Document.ChunkType,
			Text:       r.Document.Text,
			Score:      r.Score,
		}
	}

	resp, err := s.rag.Answer(ctx, question, chunks, history)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	result := &QAResult{Answer: resp.Answer}
	// 检索不到内容时回答是固定话术，不带引用
	if resp.Answer != llm.MsgNoRelevantContext {
		result.Sources = sources
	}

	if useCache {
		if data, err := json.Marshal(result); err == nil {
			if err := s.cache.Set(cacheKey, string(data), s.cacheTTL); err != nil {
				s.logger.WithError(err).Debug("Failed to cache answer")
			}
		}
	}

	return result, nil
}

// retrieve 向量检索相关片段
// 按提取出的年级和学期过滤，课程代码在结果上后过滤；
// 过滤检索无结果时回退到无条件检索
func (s *QAService) retrieve(ctx context.Context, question string, filter questionFilter) ([]vectordb.SearchResult, error) {
	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	searchFilter := vectordb.SearchFilter{
		MinScore:   s.minScore,
		MaxResults: s.searchLimit,
	}

	if filter.Year != "" || filter.Semester != "" {
		searchFilter.Metadata = make(map[string]interface{})
		if filter.Year != "" {
			searchFilter.Metadata[vectordb.MetaYear] = filter.Year
		}
		if filter.Semester != "" {
			searchFilter.Metadata[vectordb.MetaSemester] = filter.Semester
		}
	}

	// 课程代码是后过滤，先多取一些候选
	if filter.CourseCode != "" {
		searchFilter.MaxResults = s.searchLimit * 3
	}

	results, err := s.vectorDB.Search(vector, searchFilter)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	// 过滤条件太严时回退到纯语义检索
	if len(results) == 0 && !filter.empty() {
		s.logger.WithFields(logrus.Fields{
			"course_code": filter.CourseCode,
			"year":        filter.Year,
			"semester":    filter.Semester,
		}).Debug("Filtered search returned nothing, falling back to semantic search")

		results, err = s.vectorDB.Search(vector, vectordb.SearchFilter{
			MinScore:   s.minScore,
			MaxResults: s.searchLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search vectors: %w", err)
		}
	}

	if filter.CourseCode != "" {
		results = filterByCourseCode(results, filter.CourseCode)
	}

	results = dedupResults(results)

	if len(results) > s.searchLimit {
		results = results[:s.searchLimit]
	}

	s.logger.WithFields(logrus.Fields{
		"result_count": len(results),
		"course_code":  filter.CourseCode,
		"year":         filter.Year,
		"semester":     filter.Semester,
	}).Debug("Retrieval completed")

	return results, nil
}

// filterByCourseCode 保留元数据中包含指定课程代码的结果
// 没有任何结果匹配时保留原结果，避免把相关内容全部过滤掉
func filterByCourseCode(results []vectordb.SearchResult, code string) []vectordb.SearchResult {
	var matched []vectordb.SearchResult
	for _, r := range results {
		codes, ok := r.Document.Metadata[vectordb.MetaCourseCodes].(string)
		if !ok {
			continue
		}
		for _, c := range strings.Fields(codes) {
			if c == code {
				matched = append(matched, r)
				break
			}
		}
	}

	if len(matched) == 0 {
		return results
	}
	return matched
}

// dedupResults 去除内容重复的检索结果
// 用开头100个字符做去重签名，保留得分最高的（结果本身按得分降序）
func dedupResults(results []vectordb.SearchResult) []vectordb.SearchResult {
	seen := make(map[string]struct{}, len(results))
	deduped := make([]vectordb.SearchResult, 0, len(results))

	for _, r := range results {
		sig := r.Document.Text
		if runes := []rune(sig); len(runes) > 100 {
			sig = string(runes[:100])
		}

		if _, ok := seen[sig]; ok {
			continue
		}
		seen[sig] = struct{}{}
		deduped = append(deduped, r)
	}

	return deduped
}
