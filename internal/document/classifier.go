package document

import (
	"regexp"
	"strings"
)

// ContentKind 分类结果，用于选择分块策略
type ContentKind string

const (
	// ContentGeneral 一般内容（文章、说明文字）
	ContentGeneral ContentKind = "general"
	// ContentCurriculumTable 学习计划表（课程代码、学分列表）
	ContentCurriculumTable ContentKind = "curriculum_table"
	// ContentCourseDescription 单门课程的课程描述
	ContentCourseDescription ContentKind = "course_description"
	// ContentAppendix 附录（课程地图、参考资料、教师名单）
	ContentAppendix ContentKind = "appendix"
)

// 泰语学习计划表的启发式匹配模式
// 年级与学期分开检测：提取出的PDF文本经常把"ปีที่ 1 ภาคการศึกษาที่ 2"
// 断成多行或插入多余空白，合并成单一模式会漏判
var (
	// 年级标记："ปีที่ 1" / "ชั้นปี 2"
	yearPattern = regexp.MustCompile(`ปี\s*ที่\s*\d+|ชั้นปี\s*\d+`)
	// 学期标记："ภาคการศึกษาที่ 1" / "ภาค 2" / "เทอม 1"
	semesterPattern = regexp.MustCompile(`ภาค\s*การศึกษา\s*ที่\s*\d+|ภาค\s*\d+|เทอม\s*\d+`)
	// 课程代码：8位数字，如 05506232
	courseCodePattern = regexp.MustCompile(`\b\d{8}\b`)
	// 学分合计："รวม 21 หน่วยกิต"
	creditTotalPattern = regexp.MustCompile(`รวม\s+\d+\s+หน่วยกิต`)

	// 课程描述：以8位课程代码开头
	courseHeadPattern = regexp.MustCompile(`^\s*\d{8}\s+`)
	// 括号中的英文课程名，如 (Software Engineering)
	englishNamePattern = regexp.MustCompile(`\([A-Z][a-zA-Z\s]+\)`)
	// 附录关键词
	appendixPattern = regexp.MustCompile(`ภาคผนวก|(?i:Appendix)|แผนที่หลักสูตร|(?i:Curriculum\s+Map)|เอกสารอ้างอิง|รายชื่ออาจารย์`)
)

// 学分关键词 "หน่วยกิต"（credit）
const creditKeyword = "หน่วยกิต"

// 表格信号名，写入 Classification.Signals 便于观测
const (
	SignalYear        = "year"
	SignalSemester    = "semester"
	SignalCourseCodes = "course_codes"
	SignalCredits     = "credits"
)

// Classification 分类结果
// Score 与 Signals 始终反映表格启发式的命中情况，
// 即使最终类型不是curriculum_table，便于观测和调参
type Classification struct {
	Kind        ContentKind // 内容类型
	Score       int         // 表格信号命中数（0-4）
	CourseCodes int         // 检测到的不同8位课程代码数量
	Signals     []string    // 命中的信号名称
}

// ClassifierConfig 分类器配置
type ClassifierConfig struct {
	// MinCourseCodes 判定为表格内容所需的最少课程代码数
	MinCourseCodes int
	// AppendixPageThreshold 超过该页码的内容倾向判定为附录（0表示不启用）
	AppendixPageThreshold int
}

// DefaultClassifierConfig 返回默认分类器配置
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		MinCourseCodes:        3,
		AppendixPageThreshold: 45,
	}
}

// Classifier 内容分类器
// 纯函数式：相同输入总是产生相同输出，且永不失败
type Classifier struct {
	config ClassifierConfig
}

// NewClassifier 创建内容分类器
func NewClassifier(config ClassifierConfig) *Classifier {
	if config.MinCourseCodes <= 0 {
		config.MinCourseCodes = 3
	}
	return &Classifier{config: config}
}

// Classify 对文本块分类
// pageNum 为原文档页码，未知时传0；无法判定时保守地返回 general
func (c *Classifier) Classify(text string, pageNum int) Classification {
	result := c.scoreTableSignals(text)

	// 表格优先级最高：表格里也可能出现"ภาคผนวก"等附录关键词
	// 判定规则：score >= 3，或 score >= 2 且课程代码数达标
	// （后者兜底年级/学期标记落在前一个文本块的情况）
	hasCodes := result.CourseCodes >= c.config.MinCourseCodes
	if result.Score >= 3 || (result.Score >= 2 && hasCodes) {
		result.Kind = ContentCurriculumTable
		return result
	}

	if c.isCourseDescription(text) {
		result.Kind = ContentCourseDescription
		return result
	}

	if c.isAppendix(text, pageNum, result.CourseCodes) {
		result.Kind = ContentAppendix
		return result
	}

	result.Kind = ContentGeneral
	return result
}

// scoreTableSignals 学习计划表信号打分
// 四个独立信号各计1分：年级标记、学期标记、课程代码>=MinCourseCodes、学分关键词
func (c *Classifier) scoreTableSignals(text string) Classification {
	var signals []string

	if yearPattern.MatchString(text) {
		signals = append(signals, SignalYear)
	}
	if semesterPattern.MatchString(text) {
		signals = append(signals, SignalSemester)
	}

	codes := countDistinctCourseCodes(text)
	if codes >= c.config.MinCourseCodes {
		signals = append(signals, SignalCourseCodes)
	}

	if strings.Contains(text, creditKeyword) || creditTotalPattern.MatchString(text) {
		signals = append(signals, SignalCredits)
	}

	return Classification{
		Score:       len(signals),
		CourseCodes: codes,
		Signals:     signals,
	}
}

// countDistinctCourseCodes 统计不同的8位课程代码数量
// 同一代码在表格和汇总行里会重复出现，按出现次数计会虚高
func countDistinctCourseCodes(text string) int {
	seen := make(map[string]struct{})
	for _, code := range courseCodePattern.FindAllString(text, -1) {
		seen[code] = struct{}{}
	}
	return len(seen)
}

// isCourseDescription 课程描述检测
// 以8位课程代码开头，且包含教学目标/内容关键词或括号中的英文课程名
func (c *Classifier) isCourseDescription(text string) bool {
	if !courseHeadPattern.MatchString(text) {
		return false
	}

	head := text
	if len(head) > 600 {
		head = head[:600]
	}

	hasObjective := strings.Contains(text, "วัตถุประสงค์") ||
		strings.Contains(text, "เนื้อหารายวิชา") ||
		strings.Contains(head, "เนื้อหา")
	hasEnglishName := englishNamePattern.MatchString(head)

	return hasObjective || hasEnglishName
}

// isAppendix 附录检测
// 含有大量课程代码的块更可能是表格，直接否决
func (c *Classifier) isAppendix(text string, pageNum int, codes int) bool {
	if codes >= c.config.MinCourseCodes {
		return false
	}

	if appendixPattern.MatchString(text) {
		return true
	}

	return c.config.AppendixPageThreshold > 0 && pageNum > c.config.AppendixPageThreshold
}
