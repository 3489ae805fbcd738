package embedding

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

const defaultOpenAIEndpoint = "https://api.openai.com/v1"

// OpenAIClient OpenAI兼容嵌入客户端
// 任何实现/v1/embeddings接口的服务都可以通过BaseURL接入
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	maxRetries int
	dimensions int
}

// openaiEmbedRequest OpenAI嵌入API请求结构
type openaiEmbedRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

// openaiEmbedResponse OpenAI嵌入API响应结构
type openaiEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient 创建OpenAI兼容嵌入客户端
func NewOpenAIClient(cfg *Config) (Client, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	if cfg.APIKey == "" {
		return nil, NewError(ErrCodeInvalidRequest, "api key is required for openai provider")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" || baseURL == "http://localhost:11434" {
		baseURL = defaultOpenAIEndpoint
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	return &OpenAIClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		dimensions: cfg.Dimensions,
	}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return c.model
}

// Embed 生成单条文本的向量表示
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, NewError(ErrCodeServerError, "no embedding vectors returned")
	}
	return vectors[0], nil
}

// EmbedBatch 批量生成文本的向量表示
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(openaiEmbedRequest{
		Model:          c.model,
		Input:          texts,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, NewError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	var resp openaiEmbedResponse
	if err := c.sendRequest(ctx, body, &resp); err != nil {
		return nil, err
	}

	// 按原始顺序组织结果
	result := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			continue
		}
		result[item.Index] = item.Embedding
	}
	return result, nil
}

// sendRequest 发送API请求并解析响应，对服务端错误做指数退避重试
func (c *OpenAIClient) sendRequest(ctx context.Context, body []byte, respObj interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// 指数退避重试
			select {
			case <-ctx.Done():
				return NewError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<attempt) * 100 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/embeddings", bytes.NewReader(body))
		if err != nil {
			return NewError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = NewError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = NewError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", readErr))
			continue
		}

		if resp.StatusCode == http.StatusOK {
			if err := json.Unmarshal(data, respObj); err != nil {
				return NewError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
			}
			return nil
		}

		apiErr := parseOpenAIError(resp.StatusCode, data)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = apiErr
			continue
		}
		return apiErr
	}

	return lastErr
}

// parseOpenAIError 解析API错误响应
func parseOpenAIError(status int, body []byte) Error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	message := string(body)
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	return statusToError(status, message)
}
