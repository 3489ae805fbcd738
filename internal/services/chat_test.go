package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/fyerfyer/thai-curriculum-rag/internal/llm"
	"github.com/fyerfyer/thai-curriculum-rag/internal/models"
	"github.com/fyerfyer/thai-curriculum-rag/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChatService(t *testing.T) *ChatService {
	t.Helper()

	repo := repository.NewChatRepositoryWithDB(setupTestDB(t))
	return NewChatService(repo, nil)
}

func TestChatSessionLifecycle(t *testing.T) {
	svc := newTestChatService(t)
	ctx := context.Background()

	t.Run("create with default title", func(t *testing.T) {
		session, err := svc.CreateChat(ctx, "")
		require.NoError(t, err)
		assert.NotEmpty(t, session.ID)
		assert.Equal(t, defaultChatTitle, session.Title)
	})

	t.Run("create with custom title", func(t *testing.T) {
		session, err := svc.CreateChat(ctx, "สอบถามหลักสูตรวิศวกรรม")
		require.NoError(t, err)

		got, err := svc.GetChat(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "สอบถามหลักสูตรวิศวกรรม", got.Title)
	})

	t.Run("rename", func(t *testing.T) {
		session, err := svc.CreateChat(ctx, "ชื่อเดิม")
		require.NoError(t, err)

		require.NoError(t, svc.RenameChat(ctx, session.ID, "ชื่อใหม่"))

		got, err := svc.GetChat(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "ชื่อใหม่", got.Title)

		assert.Error(t, svc.RenameChat(ctx, session.ID, ""))
	})

	t.Run("list", func(t *testing.T) {
		sessions, total, err := svc.ListChats(ctx, 0, 10, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, total, int64(3))
		assert.NotEmpty(t, sessions)
	})

	t.Run("delete", func(t *testing.T) {
		session, err := svc.CreateChat(ctx, "จะถูกลบ")
		require.NoError(t, err)

		require.NoError(t, svc.DeleteChat(ctx, session.ID))

		_, err = svc.GetChat(ctx, session.ID)
		assert.Error(t, err)
	})
}

func TestChatAddMessage(t *testing.T) {
	svc := newTestChatService(t)
	ctx := context.Background()

	session, err := svc.CreateChat(ctx, "")
	require.NoError(t, err)

	t.Run("first user message becomes title", func(t *testing.T) {
		_, err := svc.AddMessage(ctx, session.ID, models.RoleUser, "ปีที่ 1 ภาคการศึกษาที่ 1 เรียนอะไรบ้าง", nil)
		require.NoError(t, err)

		got, err := svc.GetChat(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, "ปีที่ 1 ภาคการศึกษาที่ 1 เรียนอะไรบ้าง", got.Title)
	})

	t.Run("long title is truncated", func(t *testing.T) {
		other, err := svc.CreateChat(ctx, "")
		require.NoError(t, err)

		long := strings.Repeat("ก", 50)
		_, err = svc.AddMessage(ctx, other.ID, models.RoleUser, long, nil)
		require.NoError(t, err)

		got, err := svc.GetChat(ctx, other.ID)
		require.NoError(t, err)
		assert.Equal(t, strings.Repeat("ก", titleMaxRunes)+"...", got.Title)
	})

	t.Run("assistant message keeps sources", func(t *testing.T) {
		sources := []models.Source{
			{FileID: "f1", FileName: "curriculum.pdf", ChunkIndex: 3, ChunkType: "curriculum_table", Text: "05506231", Score: 0.88},
		}
		msg, err := svc.AddMessage(ctx, session.ID, models.RoleAssistant, "วิชา 05506231 คือการเขียนโปรแกรม", sources)
		require.NoError(t, err)

		parsed, err := MessageSources(msg)
		require.NoError(t, err)
		require.Len(t, parsed, 1)
		assert.Equal(t, "curriculum.pdf", parsed[0].FileName)
		assert.Equal(t, float32(0.88), parsed[0].Score)
	})

	t.Run("empty content rejected", func(t *testing.T) {
		_, err := svc.AddMessage(ctx, session.ID, models.RoleUser, "", nil)
		assert.Error(t, err)
	})

	t.Run("unknown session rejected", func(t *testing.T) {
		_, err := svc.AddMessage(ctx, "missing", models.RoleUser, "คำถาม", nil)
		assert.Error(t, err)
	})
}

func TestChatHistoryTrimming(t *testing.T) {
	svc := newTestChatService(t)
	ctx := context.Background()

	session, err := svc.CreateChat(ctx, "ประวัติยาว")
	require.NoError(t, err)

	for i := 0; i < models.MaxChatHistoryLength+10; i++ {
		_, err := svc.AddMessage(ctx, session.ID, models.RoleUser, fmt.Sprintf("คำถามที่ %d", i), nil)
		require.NoError(t, err)
	}

	count, err := svc.CountChatMessages(ctx, session.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, count, int64(models.MaxChatHistoryLength))

	// 裁剪保留的是最新的消息
	messages, _, err := svc.GetChatMessages(ctx, session.ID, 0, models.MaxChatHistoryLength)
	require.NoError(t, err)
	last := messages[len(messages)-1]
	assert.Equal(t, fmt.Sprintf("คำถามที่ %d", models.MaxChatHistoryLength+9), last.Content)
}

func TestChatBuildHistory(t *testing.T) {
	svc := newTestChatService(t)
	ctx := context.Background()

	session, err := svc.CreateChat(ctx, "ทดสอบประวัติ")
	require.NoError(t, err)

	_, err = svc.AddMessage(ctx, session.ID, models.RoleUser, "ปีที่ 1 เรียนอะไร", nil)
	require.NoError(t, err)
	_, err = svc.AddMessage(ctx, session.ID, models.RoleAssistant, "เรียนวิชาพื้นฐาน", nil)
	require.NoError(t, err)
	_, err = svc.AddMessage(ctx, session.ID, models.RoleSystem, "internal note", nil)
	require.NoError(t, err)

	history, err := svc.BuildHistory(ctx, session.ID, 10)
	require.NoError(t, err)

	// 系统消息被过滤，剩余消息按时间正序
	require.Len(t, history, 2)
	assert.Equal(t, llm.RoleUser, history[0].Role)
	assert.Equal(t, "ปีที่ 1 เรียนอะไร", history[0].Content)
	assert.Equal(t, llm.RoleAssistant, history[1].Role)

	t.Run("empty session id returns nothing", func(t *testing.T) {
		history, err := svc.BuildHistory(ctx, "", 10)
		require.NoError(t, err)
		assert.Nil(t, history)
	})
}
