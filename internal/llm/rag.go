package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"
)

// DefaultRAGTemplate 泰语RAG提示词模板
// 规则部分针对课程表问答：问课程代码或学年学期时必须先命中再回答
// 模板变量：
// {{.Context}} - 检索的上下文
// {{.History}} - 对话历史
// {{.Question}} - 用户问题
const DefaultRAGTemplate = `คุณเป็นผู้ช่วยปัญญาประดิษฐ์ที่เชี่ยวชาญในการตอบคำถามจากเอกสารภาษาไทยอย่างแม่นยำ

ข้อมูลที่เกี่ยวข้องจากเอกสาร:
{{.Context}}

ประวัติการสนทนา:
{{.History}}

คำถาม: {{.Question}}

กฎการตอบ (ต้องปฏิบัติอย่างเคร่งครัด):
1. ตอบเป็นภาษาไทยเท่านั้น
2. ใช้เฉพาะข้อมูลจากเอกสารที่ให้มา - ห้ามแต่งเรื่อง
3. ถ้าถามรหัสวิชา (เช่น 05506231) ต้องค้นหารหัสนั้นให้เจอก่อนตอบ ห้ามตอบมั่ว
4. ถ้าถามปีที่ X ภาคการศึกษาที่ Y ต้องหาส่วนที่ตรงปี/ภาคนั้นเท่านั้น
5. ถ้าถาม "มีอะไรบ้าง" หรือ "ทั้งหมด" ระบุให้ครบทุกรายการที่พบ
6. ถ้าไม่พบข้อมูล ตอบว่า "ไม่พบข้อมูล..." ห้ามตอบเรื่องอื่น
7. ตอบสั้น กระชับ ตรงประเด็น 3-5 ประโยค (ยกเว้นถ้าถามรายการให้ระบุครบ)
8. ห้ามทำซ้ำข้อความ ห้ามต่อท้ายด้วยข้อมูลที่ไม่เกี่ยวข้อง
9. ถ้ามีรายการ แสดงเป็น bullet points
10. หยุดทันทีเมื่อตอบครบประเด็น

คำตอบ:`

// MsgNoRelevantContext 检索不到相关内容时的固定回答
const MsgNoRelevantContext = "ขออภัย ไม่พบข้อมูลที่เกี่ยวข้องในเอกสารที่อัพโหลด"

// promptData 模板渲染数据
type promptData struct {
	Context  string
	History  string
	Question string
}

// RAGConfig 检索增强生成配置
type RAGConfig struct {
	// 提示词模板
	Template string
	// 最大Token数
	MaxTokens int
	// 温度参数
	Temperature float32
	// 超时时间
	Timeout time.Duration
	// 拼入提示词的上下文字符上限（rune数）
	MaxContextRunes int
	// 是否带上引用来源
	IncludeSources bool
}

// DefaultRAGConfig 默认RAG配置
func DefaultRAGConfig() *RAGConfig {
	return &RAGConfig{
		Template:        DefaultRAGTemplate,
		MaxTokens:       512,
		Temperature:     0.1,
		Timeout:         120 * time.Second,
		MaxContextRunes: 1500,
		IncludeSources:  true,
	}
}

// RAGService 实现检索增强生成服务
type RAGService struct {
	Client Client       // 大模型客户端
	config *RAGConfig   // 配置
	tmpl   *template.Template
	mu     sync.RWMutex // 配置互斥锁
}

// NewRAG 创建新的检索增强生成服务
func NewRAG(client Client, opts ...RAGOption) (*RAGService, error) {
	cfg := DefaultRAGConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	tmpl, err := template.New("rag").Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("invalid rag template: %w", err)
	}

	return &RAGService{
		Client: client,
		config: cfg,
		tmpl:   tmpl,
	}, nil
}

// RAGOption RAG配置选项函数类型
type RAGOption func(*RAGConfig)

// WithTemplate 设置提示词模板
func WithTemplate(tpl string) RAGOption {
	return func(c *RAGConfig) {
		c.Template = tpl
	}
}

// WithRAGMaxTokens 设置最大Token数
func WithRAGMaxTokens(tokens int) RAGOption {
	return func(c *RAGConfig) {
		c.MaxTokens = tokens
	}
}

// WithRAGTemperature 设置温度参数
func WithRAGTemperature(temp float32) RAGOption {
	return func(c *RAGConfig) {
		c.Temperature = temp
	}
}

// WithRAGTimeout 设置请求超时时间
func WithRAGTimeout(timeout time.Duration) RAGOption {
	return func(c *RAGConfig) {
		c.Timeout = timeout
	}
}

// WithMaxContextRunes 设置上下文字符上限
func WithMaxContextRunes(n int) RAGOption {
	return func(c *RAGConfig) {
		c.MaxContextRunes = n
	}
}

// WithSources 设置是否包含引用来源
func WithSources(include bool) RAGOption {
	return func(c *RAGConfig) {
		c.IncludeSources = include
	}
}

// ContextChunk 用于生成回答的检索片段
type ContextChunk struct {
	ID         string // 片段ID
	FileName   string // 来源文件名
	Content    string // 片段内容
	ChunkIndex int    // 片段序号
	ChunkType  string // 片段内容类型
}

// Answer 根据检索片段、对话历史和问题生成回答
func (r *RAGService) Answer(ctx context.Context, question string, chunks []ContextChunk, history []Message) (*RAGResponse, error) {
	if question == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "question cannot be empty")
	}

	r.mu.RLock()
	cfg := r.config
	r.mu.RUnlock()

	// 没有任何检索结果时直接返回固定回答，不调用模型
	if len(chunks) == 0 {
		return &RAGResponse{Answer: MsgNoRelevantContext}, nil
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	prompt, err := r.buildPrompt(question, chunks, history)
	if err != nil {
		return nil, err
	}

	response, err := r.Client.Generate(
		ctxWithTimeout,
		prompt,
		WithGenerateMaxTokens(cfg.MaxTokens),
		WithGenerateTemperature(cfg.Temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	ragResponse := &RAGResponse{
		Answer: response.Text,
	}

	if cfg.IncludeSources {
		sources := make([]SourceReference, 0, len(chunks))
		for _, chunk := range chunks {
			sources = append(sources, SourceReference{
				ID:         chunk.ID,
				FileName:   chunk.FileName,
				Content:    truncateRunes(chunk.Content, 300),
				ChunkIndex: chunk.ChunkIndex,
				ChunkType:  chunk.ChunkType,
			})
		}
		ragResponse.Sources = sources
	}

	return ragResponse, nil
}

// buildPrompt 渲染增强提示词
func (r *RAGService) buildPrompt(question string, chunks []ContextChunk, history []Message) (string, error) {
	r.mu.RLock()
	maxRunes := r.config.MaxContextRunes
	r.mu.RUnlock()

	data := promptData{
		Context:  formatContext(chunks, maxRunes),
		History:  formatHistory(history),
		Question: question,
	}

	var sb strings.Builder
	if err := r.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return sb.String(), nil
}

// formatContext 拼接检索片段
// 课程表片段可能很长，按rune预算截断，保证小模型的上下文窗口不溢出
func formatContext(chunks []ContextChunk, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 1500
	}

	var parts []string
	total := 0
	for _, chunk := range chunks {
		remaining := maxRunes - total
		if remaining <= 0 {
			break
		}
		content := truncateRunes(chunk.Content, remaining)
		parts = append(parts, content)
		total += len([]rune(content))
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// formatHistory 将对话历史格式化为提示词片段
func formatHistory(history []Message) string {
	if len(history) == 0 {
		return "(ไม่มี)"
	}

	var sb strings.Builder
	for _, msg := range history {
		switch msg.Role {
		case RoleUser:
			sb.WriteString("ผู้ใช้: ")
		case RoleAssistant:
			sb.WriteString("ผู้ช่วย: ")
		default:
			continue
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}

// truncateRunes 按rune截断字符串
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
