package document

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
)

// DefaultStrategies 各内容类型的默认分块策略
// 学习计划表使用大块+高重叠，尽量让一个学期的课程表落在同一个块里；
// 表格专用分隔符把断点优先放在章节标题和年级/学期边界上，而不是表格行中间
func DefaultStrategies() map[ContentKind]ChunkingStrategy {
	return map[ContentKind]ChunkingStrategy{
		ContentGeneral: {
			ChunkSize:    1000,
			ChunkOverlap: 200,
			Separators:   DefaultSeparators(),
		},
		ContentCurriculumTable: {
			ChunkSize:    3000,
			ChunkOverlap: 500,
			Separators: []string{
				"\n\n3.1.4",           // 章节标题 "3.1.4 แผนการศึกษา"
				"\n\nปีที่ ",          // "ปีที่ 1", "ปีที่ 2"
				"\n\nภาคการศึกษาที่ ", // "ภาคการศึกษาที่ 1"
				"\n\n\n",              // 表格结束的连续空行
				"\n\n",
				"\n",
				"",
			},
		},
		ContentCourseDescription: {
			ChunkSize:    1500,
			ChunkOverlap: 300,
			Separators:   []string{"\n\n", "\n", " ", ""},
		},
		ContentAppendix: {
			ChunkSize:    800,
			ChunkOverlap: 150,
			Separators:   []string{"\n\n", "\n", " ", ""},
		},
	}
}

// 课程描述块的边界：空行后紧跟8位课程代码
var courseBoundaryPattern = regexp.MustCompile(`\n\s*\n\s*\d{8}`)

// DynamicSplitter 动态文本分段器
// 先用分类器判定内容类型，再按类型选择分块策略
type DynamicSplitter struct {
	classifier *Classifier
	splitters  map[ContentKind]*RecursiveSplitter
	logger     *logrus.Logger
}

// DynamicSplitterOption 动态分段器配置选项
type DynamicSplitterOption func(*DynamicSplitter)

// WithSplitterLogger 设置日志记录器
func WithSplitterLogger(logger *logrus.Logger) DynamicSplitterOption {
	return func(s *DynamicSplitter) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStrategies 覆盖默认分块策略表
func WithStrategies(strategies map[ContentKind]ChunkingStrategy) DynamicSplitterOption {
	return func(s *DynamicSplitter) {
		for kind, strategy := range strategies {
			s.splitters[kind] = NewRecursiveSplitter(strategy)
		}
	}
}

// NewDynamicSplitter 创建动态文本分段器
func NewDynamicSplitter(classifier *Classifier, opts ...DynamicSplitterOption) *DynamicSplitter {
	if classifier == nil {
		classifier = NewClassifier(DefaultClassifierConfig())
	}

	splitters := make(map[ContentKind]*RecursiveSplitter)
	for kind, strategy := range DefaultStrategies() {
		splitters[kind] = NewRecursiveSplitter(strategy)
	}

	s := &DynamicSplitter{
		classifier: classifier,
		splitters:  splitters,
		logger:     logrus.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Split 实现Splitter接口，页码未知时使用
func (s *DynamicSplitter) Split(text string) ([]Content, error) {
	contents, _ := s.SplitBlock(text, 0)
	return contents, nil
}

// SplitBlock 对一个文本块分类并分块
// 返回有序的文本块和分类结果；空输入返回空列表
func (s *DynamicSplitter) SplitBlock(text string, pageNum int) ([]Content, Classification) {
	result := s.classifier.Classify(text, pageNum)
	strategy := s.splitters[result.Kind]
	if strategy == nil {
		strategy = s.splitters[ContentGeneral]
	}

	var chunks []string
	if result.Kind == ContentCourseDescription {
		// 先按课程代码边界切成单门课程，再对超长的课程描述递归分块
		for _, section := range splitAtCourseBoundaries(text) {
			chunks = append(chunks, strategy.Split(section)...)
		}
	} else {
		chunks = strategy.Split(text)
	}

	s.logSplit(text, result, chunks)

	contents := make([]Content, 0, len(chunks))
	for i, chunk := range chunks {
		contents = append(contents, Content{
			Text:  chunk,
			Index: i,
			Kind:  result.Kind,
		})
	}
	return contents, result
}

// splitAtCourseBoundaries 在课程代码边界处切分课程描述文本
// Go的regexp不支持lookahead，用匹配位置手动切
func splitAtCourseBoundaries(text string) []string {
	matches := courseBoundaryPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return []string{text}
	}

	var sections []string
	start := 0
	for _, match := range matches {
		if section := strings.TrimSpace(text[start:match[0]]); section != "" {
			sections = append(sections, section)
		}
		start = match[0]
	}
	if section := strings.TrimSpace(text[start:]); section != "" {
		sections = append(sections, section)
	}
	return sections
}

// logSplit 输出分块诊断日志：仅观测，不参与控制流
func (s *DynamicSplitter) logSplit(text string, result Classification, chunks []string) {
	preview := text
	if utf8.RuneCountInString(preview) > 200 {
		preview = string([]rune(preview)[:200])
	}
	preview = strings.ReplaceAll(preview, "\n", " ")

	totalChars := 0
	for _, chunk := range chunks {
		totalChars += utf8.RuneCountInString(chunk)
	}
	avgSize := 0
	if len(chunks) > 0 {
		avgSize = totalChars / len(chunks)
	}

	s.logger.WithFields(logrus.Fields{
		"content_type":   result.Kind,
		"score":          result.Score,
		"course_codes":   result.CourseCodes,
		"signals":        result.Signals,
		"chunks":         len(chunks),
		"avg_chunk_size": avgSize,
		"preview":        preview,
	}).Debug("Split text block")
}
