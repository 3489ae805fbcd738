package llm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient 记录提示词的假大模型客户端
type mockClient struct {
	lastPrompt string
	answer     string
	err        error
}

func (m *mockClient) Generate(_ context.Context, prompt string, _ ...GenerateOption) (*Response, error) {
	m.lastPrompt = prompt
	if m.err != nil {
		return nil, m.err
	}
	return &Response{Text: m.answer, ModelName: "mock", FinishTime: time.Now()}, nil
}

func (m *mockClient) Chat(ctx context.Context, messages []Message, opts ...GenerateOption) (*Response, error) {
	return m.Generate(ctx, messages[len(messages)-1].Content, opts...)
}

func (m *mockClient) Name() string { return "mock" }

// TestRAGAnswer 测试RAG回答生成
func TestRAGAnswer(t *testing.T) {
	chunks := []ContextChunk{
		{
			ID:         "seg-1",
			FileName:   "curriculum.pdf",
			Content:    "ปีที่ 1 ภาคการศึกษาที่ 1\n05506231 การเขียนโปรแกรม 3 หน่วยกิต",
			ChunkIndex: 0,
			ChunkType:  "curriculum_table",
		},
	}

	t.Run("prompt contains context and question", func(t *testing.T) {
		client := &mockClient{answer: "วิชา 05506231 คือการเขียนโปรแกรม"}
		rag, err := NewRAG(client)
		require.NoError(t, err)

		resp, err := rag.Answer(context.Background(), "05506231 คือวิชาอะไร", chunks, nil)
		require.NoError(t, err)

		assert.Equal(t, "วิชา 05506231 คือการเขียนโปรแกรม", resp.Answer)
		assert.Contains(t, client.lastPrompt, "05506231 การเขียนโปรแกรม")
		assert.Contains(t, client.lastPrompt, "คำถาม: 05506231 คือวิชาอะไร")
		assert.Contains(t, client.lastPrompt, "ตอบเป็นภาษาไทยเท่านั้น")
	})

	t.Run("history rendered into prompt", func(t *testing.T) {
		client := &mockClient{answer: "ตอบแล้ว"}
		rag, err := NewRAG(client)
		require.NoError(t, err)

		history := []Message{
			{Role: RoleUser, Content: "ปีที่ 1 เรียนอะไรบ้าง"},
			{Role: RoleAssistant, Content: "เรียนวิชาพื้นฐาน"},
		}
		_, err = rag.Answer(context.Background(), "แล้วปีที่ 2 ล่ะ", chunks, history)
		require.NoError(t, err)

		assert.Contains(t, client.lastPrompt, "ผู้ใช้: ปีที่ 1 เรียนอะไรบ้าง")
		assert.Contains(t, client.lastPrompt, "ผู้ช่วย: เรียนวิชาพื้นฐาน")
	})

	t.Run("empty history placeholder", func(t *testing.T) {
		client := &mockClient{answer: "ตอบแล้ว"}
		rag, err := NewRAG(client)
		require.NoError(t, err)

		_, err = rag.Answer(context.Background(), "คำถาม", chunks, nil)
		require.NoError(t, err)
		assert.Contains(t, client.lastPrompt, "(ไม่มี)")
	})

	t.Run("no chunks returns fixed answer without llm call", func(t *testing.T) {
		client := &mockClient{answer: "ไม่ควรถูกเรียก"}
		rag, err := NewRAG(client)
		require.NoError(t, err)

		resp, err := rag.Answer(context.Background(), "คำถาม", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, MsgNoRelevantContext, resp.Answer)
		assert.Empty(t, client.lastPrompt)
	})

	t.Run("empty question", func(t *testing.T) {
		rag, err := NewRAG(&mockClient{})
		require.NoError(t, err)

		_, err = rag.Answer(context.Background(), "", chunks, nil)
		require.Error(t, err)
	})

	t.Run("sources included", func(t *testing.T) {
		client := &mockClient{answer: "ตอบแล้ว"}
		rag, err := NewRAG(client)
		require.NoError(t, err)

		resp, err := rag.Answer(context.Background(), "คำถาม", chunks, nil)
		require.NoError(t, err)
		require.Len(t, resp.Sources, 1)
		assert.Equal(t, "curriculum.pdf", resp.Sources[0].FileName)
		assert.Equal(t, "curriculum_table", resp.Sources[0].ChunkType)
	})

	t.Run("sources disabled", func(t *testing.T) {
		client := &mockClient{answer: "ตอบแล้ว"}
		rag, err := NewRAG(client, WithSources(false))
		require.NoError(t, err)

		resp, err := rag.Answer(context.Background(), "คำถาม", chunks, nil)
		require.NoError(t, err)
		assert.Empty(t, resp.Sources)
	})
}

// TestFormatContext 测试上下文拼接与截断
func TestFormatContext(t *testing.T) {
	t.Run("joins with divider", func(t *testing.T) {
		chunks := []ContextChunk{
			{Content: "ส่วนแรก"},
			{Content: "ส่วนที่สอง"},
		}
		result := formatContext(chunks, 1500)
		assert.Equal(t, "ส่วนแรก\n\n---\n\nส่วนที่สอง", result)
	})

	t.Run("respects rune budget", func(t *testing.T) {
		chunks := []ContextChunk{
			{Content: strings.Repeat("ก", 100)},
			{Content: strings.Repeat("ข", 100)},
		}
		result := formatContext(chunks, 120)

		// 第一段完整，第二段只剩20个rune的预算
		assert.Contains(t, result, strings.Repeat("ก", 100))
		assert.Contains(t, result, strings.Repeat("ข", 20))
		assert.NotContains(t, result, strings.Repeat("ข", 21))
	})
}

// TestCustomTemplate 测试自定义模板
func TestCustomTemplate(t *testing.T) {
	client := &mockClient{answer: "ok"}
	rag, err := NewRAG(client, WithTemplate("Q={{.Question}} C={{.Context}}"))
	require.NoError(t, err)

	_, err = rag.Answer(context.Background(), "ทดสอบ", []ContextChunk{{Content: "เนื้อหา"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "Q=ทดสอบ C=เนื้อหา", client.lastPrompt)
}

// TestInvalidTemplate 测试非法模板
func TestInvalidTemplate(t *testing.T) {
	_, err := NewRAG(&mockClient{}, WithTemplate("{{.Broken"))
	require.Error(t, err)
}
