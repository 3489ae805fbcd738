package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ThaiSystemPrompt 泰语问答的系统提示词
// 要求模型只用泰语回答，简短直接，避免重复
const ThaiSystemPrompt = "คุณเป็นผู้ช่วยที่ตอบคำถามเป็นภาษาไทยเท่านั้น ตอบสั้น กระชับ ตรงประเด็น ห้ามซ้ำคำ ห้ามพูดเยิ่นเย้อ"

// 回答质量控制的泰语提示语
const (
	// MsgAnswerTooShort 回答过短时的兜底提示
	MsgAnswerTooShort = "ขออภัย ไม่สามารถสร้างคำตอบที่เหมาะสมได้ กรุณาลองถามใหม่อีกครั้ง"
	// MsgProcessingError 调用失败时的兜底提示
	MsgProcessingError = "ขออภัย เกิดข้อผิดพลาดในการประมวลผล"
)

// 小模型容易跑偏，用停止序列截断新问题和空白段
var defaultStopSequences = []string{
	"</s>",
	"<|end|>",
	"Human:",
	"คำถาม:",
	"\n\nคำถาม",
	"ขออภัย ไม่พบข้อมูล",
	"\n\n\n",
}

const (
	// 回答最少有效长度（rune数）
	minAnswerRunes = 5
	// 回答最大长度（rune数），超长截断
	maxAnswerRunes = 1000
	// 参与去重的最短行长度（rune数）
	dedupeLineRunes = 20
)

// OllamaClient Ollama聊天客户端
type OllamaClient struct {
	baseURL      string
	model        string
	systemPrompt string
	httpClient   *http.Client
	maxRetries   int
	defaults     OllamaOptions
}

// NewOllamaClient 创建Ollama聊天客户端
func NewOllamaClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	maxTokens := cfg.MaxTokens
	if maxTokens > 512 {
		// 限制回答长度，小模型生成过长会退化成重复
		maxTokens = 512
	}

	temperature := cfg.Temperature
	topP := cfg.TopP
	topK := cfg.TopK
	repeatPenalty := cfg.RepeatPenalty

	return &OllamaClient{
		baseURL:      baseURL,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		maxRetries:   cfg.MaxRetries,
		defaults: OllamaOptions{
			Temperature:   &temperature,
			NumPredict:    &maxTokens,
			TopP:          &topP,
			TopK:          &topK,
			RepeatPenalty: &repeatPenalty,
			Stop:          defaultStopSequences,
		},
	}, nil
}

// Name 返回模型名称
func (c *OllamaClient) Name() string {
	return c.model
}

// CheckConnection 检查Ollama服务是否可达、模型是否存在
func (c *OllamaClient) CheckConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return WrapError(err, ErrCodeInvalidRequest)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewLLMError(ErrCodeNetworkError, fmt.Sprintf("ollama unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return NewLLMError(ErrCodeServerError, fmt.Sprintf("ollama returned status %d", resp.StatusCode))
	}

	var tags OllamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return NewLLMError(ErrCodeServerError, fmt.Sprintf("invalid tags response: %v", err))
	}

	for _, m := range tags.Models {
		if m.Name == c.model {
			return nil
		}
	}
	return NewLLMError(ErrCodeModelNotFound, fmt.Sprintf("model %s not found in ollama", c.model))
}

// Generate 根据提示词生成回答
// 自动加上系统提示词，走单轮对话
func (c *OllamaClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	messages := []Message{
		{Role: RoleUser, Content: prompt},
	}
	return c.Chat(ctx, messages, options...)
}

// Chat 进行多轮对话
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, options ...GenerateOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "messages cannot be empty")
	}

	opts := &GenerateOptions{}
	for _, opt := range options {
		opt(opts)
	}

	// 确保系统提示词在最前面
	if c.systemPrompt != "" && messages[0].Role != RoleSystem {
		messages = append([]Message{{Role: RoleSystem, Content: c.systemPrompt}}, messages...)
	}

	reqBody := OllamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   false,
		Options:  c.buildOptions(opts),
	}

	var resp OllamaChatResponse
	if err := c.sendRequest(ctx, &reqBody, &resp); err != nil {
		return nil, err
	}

	text := PostProcessAnswer(resp.Message.Content)
	if text == "" {
		return nil, NewLLMError(ErrCodeEmptyResponse, ErrMsgEmptyResponse)
	}

	return &Response{
		Text:       text,
		TokenCount: resp.PromptEvalCount + resp.EvalCount,
		ModelName:  resp.Model,
		FinishTime: time.Now(),
	}, nil
}

// buildOptions 合并默认参数与单次请求的覆盖参数
func (c *OllamaClient) buildOptions(opts *GenerateOptions) *OllamaOptions {
	merged := c.defaults

	if opts.Temperature != nil {
		merged.Temperature = opts.Temperature
	}
	if opts.MaxTokens != nil {
		merged.NumPredict = opts.MaxTokens
	}
	if opts.TopP != nil {
		merged.TopP = opts.TopP
	}
	if opts.TopK != nil {
		merged.TopK = opts.TopK
	}
	if len(opts.Stop) > 0 {
		merged.Stop = opts.Stop
	}
	return &merged
}

// sendRequest 发送聊天请求并解析响应
func (c *OllamaClient) sendRequest(ctx context.Context, reqBody *OllamaChatRequest, respObj *OllamaChatResponse) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// 指数退避重试
			select {
			case <-ctx.Done():
				return NewLLMError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/api/chat", bytes.NewReader(jsonData))
		if err != nil {
			return NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", readErr))
			continue
		}

		if resp.StatusCode == http.StatusOK {
			if err := json.Unmarshal(body, respObj); err != nil {
				return NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
			}
			return nil
		}

		if resp.StatusCode == http.StatusNotFound {
			return NewLLMError(ErrCodeModelNotFound, string(body))
		}
		if resp.StatusCode >= 500 {
			lastErr = NewLLMError(ErrCodeServerError, fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)))
			continue
		}
		return NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("status %d: %s", resp.StatusCode, string(body)))
	}

	return lastErr
}

// PostProcessAnswer 清理模型输出
// 小模型在泰语上容易整行重复，逐行去重后再做长度控制
func PostProcessAnswer(text string) string {
	lines := strings.Split(text, "\n")
	seen := make(map[string]struct{})
	unique := make([]string, 0, len(lines))

	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		// 只对有实际内容的行去重，短行和空行保留结构
		if len([]rune(stripped)) > dedupeLineRunes {
			if _, ok := seen[stripped]; ok {
				continue
			}
			seen[stripped] = struct{}{}
		}
		unique = append(unique, line)
	}

	result := strings.TrimSpace(strings.Join(unique, "\n"))

	if len([]rune(result)) < minAnswerRunes {
		return MsgAnswerTooShort
	}

	runes := []rune(result)
	if len(runes) > maxAnswerRunes {
		result = string(runes[:maxAnswerRunes-3]) + "..."
	}
	return result
}

// 注册Ollama客户端
func init() {
	RegisterClient("ollama", NewOllamaClient)
}
