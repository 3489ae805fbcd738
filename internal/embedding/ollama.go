package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaClient 本地Ollama嵌入客户端
// 默认后端：泰语文档的嵌入在本机Ollama上完成，不依赖外部API
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	maxRetries int
	dimensions int
	batchSize  int
}

// ollamaEmbedRequest Ollama嵌入API请求结构
type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// ollamaEmbedResponse Ollama嵌入API响应结构
type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaClient 创建Ollama嵌入客户端
func NewOllamaClient(cfg *Config) (Client, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	return &OllamaClient{
		baseURL:    baseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
	}, nil
}

// Name 返回模型名称
func (c *OllamaClient) Name() string {
	return c.model
}

// Embed 生成单条文本的向量表示
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// 指数退避
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		embedding, err := c.embedOnce(ctx, text)
		if err == nil {
			return embedding, nil
		}
		lastErr = err

		// 只重试瞬时错误
		var embErr Error
		if !errors.As(err, &embErr) ||
			(embErr.Code != ErrCodeRateLimited && embErr.Code != ErrCodeServerError && embErr.Code != ErrCodeNetworkError) {
			return nil, err
		}
	}

	return nil, lastErr
}

// embedOnce 发送一次嵌入请求
func (c *OllamaClient) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: c.model, Prompt: text})
	if err != nil {
		return nil, NewError(ErrCodeInvalidRequest, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, NewError(ErrCodeInvalidRequest, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewError(ErrCodeNetworkError, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, statusToError(resp.StatusCode, string(data))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, NewError(ErrCodeServerError, fmt.Sprintf("invalid response: %v", err))
	}

	if len(result.Embedding) == 0 {
		return nil, NewError(ErrCodeServerError, "empty embedding in response")
	}
	return result.Embedding, nil
}

// EmbedBatch 批量生成向量
// Ollama的embeddings接口一次只接受一条文本，逐条请求
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if text == "" {
			continue
		}
		embedding, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d: %w", i, err)
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// statusToError 将HTTP状态码映射为嵌入错误
func statusToError(status int, detail string) Error {
	switch {
	case status == http.StatusNotFound:
		return NewError(ErrCodeModelNotFound, detail)
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return NewError(ErrCodeServerError, detail)
	default:
		return NewError(ErrCodeInvalidRequest, detail)
	}
}
