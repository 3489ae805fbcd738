package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"testing"
	"time"

	"github.com/fyerfyer/thai-curriculum-rag/internal/llm"
	"github.com/fyerfyer/thai-curriculum-rag/internal/models"
	"github.com/fyerfyer/thai-curriculum-rag/internal/vectordb"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setupTestDB 创建测试用的内存数据库
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dbName := fmt.Sprintf("file:svcdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err, "Failed to open in-memory database")

	err = db.AutoMigrate(
		&models.Document{},
		&models.DocumentSegment{},
		&models.ChatSession{},
		&models.ChatMessage{},
	)
	require.NoError(t, err, "Failed to run migrations")

	return db
}

// fakeEmbedder 确定性的假嵌入客户端
// 同一文本始终得到同一向量，不同文本的向量大概率不同
type fakeEmbedder struct {
	dimension int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{dimension: 8}
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("empty text")
	}

	vector := make([]float32, e.dimension)
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()
	for i := range vector {
		vector[i] = float32((seed>>(uint(i)%24))%97) + 1
	}
	return vector, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (e *fakeEmbedder) Name() string { return "fake-embedder" }

// fakeLLM 返回固定回答的假大模型客户端
type fakeLLM struct {
	answer     string
	err        error
	lastPrompt string
	calls      int
}

func (m *fakeLLM) Generate(_ context.Context, prompt string, _ ...llm.GenerateOption) (*llm.Response, error) {
	m.calls++
	m.lastPrompt = prompt
	if m.err != nil {
		return nil, m.err
	}
	return &llm.Response{Text: m.answer, ModelName: "fake", FinishTime: time.Now()}, nil
}

func (m *fakeLLM) Chat(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (*llm.Response, error) {
	return m.Generate(ctx, messages[len(messages)-1].Content, opts...)
}

func (m *fakeLLM) Name() string { return "fake" }

// newTestVectorDB 创建测试用的内存向量库
func newTestVectorDB(t *testing.T, dimension int) vectordb.Repository {
	t.Helper()

	repo, err := vectordb.NewMemoryRepository(vectordb.Config{
		Type:      "memory",
		Dimension: dimension,
		InMemory:  true,
	})
	require.NoError(t, err, "Failed to create memory vector repository")
	t.Cleanup(func() { repo.Close() })

	return repo
}
