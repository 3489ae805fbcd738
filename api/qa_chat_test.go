package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQAEndpoint(t *testing.T) {
	env := setupTestAPI(t)

	w := env.uploadFile(t, "curriculum.txt", sampleCurriculumText)
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("standalone question", func(t *testing.T) {
		w := env.doRequest(t, http.MethodPost, "/api/qa", map[string]string{
			"question": "05506231 คือวิชาอะไร",
		})
		require.Equal(t, http.StatusOK, w.Code)

		data := parseResponse(t, w)
		assert.Equal(t, "05506231 คือวิชาอะไร", data["question"])
		assert.Equal(t, "คำตอบจากเอกสาร", data["answer"])
		assert.NotEmpty(t, data["sources"])
	})

	t.Run("missing question", func(t *testing.T) {
		w := env.doRequest(t, http.MethodPost, "/api/qa", map[string]string{})
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestQAWithSession(t *testing.T) {
	env := setupTestAPI(t)

	w := env.uploadFile(t, "curriculum.txt", sampleCurriculumText)
	require.Equal(t, http.StatusOK, w.Code)

	// 创建会话
	w = env.doRequest(t, http.MethodPost, "/api/chats", map[string]string{})
	require.Equal(t, http.StatusOK, w.Code)
	sessionID := parseResponse(t, w)["chat_id"].(string)

	// 会话内提问
	w = env.doRequest(t, http.MethodPost, "/api/qa", map[string]string{
		"question":   "ปีที่ 1 เรียนอะไรบ้าง",
		"session_id": sessionID,
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := parseResponse(t, w)
	assert.Equal(t, sessionID, data["session_id"])
	assert.Equal(t, "คำตอบจากเอกสาร", data["answer"])

	// 问答进入聊天历史
	w = env.doRequest(t, http.MethodGet, "/api/chats/"+sessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	history := parseResponse(t, w)
	messages := history["messages"].([]interface{})
	require.Len(t, messages, 2)

	first := messages[0].(map[string]interface{})
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "ปีที่ 1 เรียนอะไรบ้าง", first["content"])

	second := messages[1].(map[string]interface{})
	assert.Equal(t, "assistant", second["role"])
	assert.NotEmpty(t, second["sources"])

	// 首条用户消息成为会话标题
	assert.Equal(t, "ปีที่ 1 เรียนอะไรบ้าง", history["title"])
}

func TestChatEndpoints(t *testing.T) {
	env := setupTestAPI(t)

	t.Run("create with title", func(t *testing.T) {
		w := env.doRequest(t, http.MethodPost, "/api/chats", map[string]string{
			"title": "สอบถามหลักสูตร",
		})
		require.Equal(t, http.StatusOK, w.Code)

		data := parseResponse(t, w)
		assert.NotEmpty(t, data["chat_id"])
		assert.Equal(t, "สอบถามหลักสูตร", data["title"])
	})

	t.Run("list sessions", func(t *testing.T) {
		w := env.doRequest(t, http.MethodGet, "/api/chats", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := parseResponse(t, w)
		assert.GreaterOrEqual(t, data["total"].(float64), float64(1))
	})

	t.Run("rename session", func(t *testing.T) {
		w := env.doRequest(t, http.MethodPost, "/api/chats", map[string]string{})
		sessionID := parseResponse(t, w)["chat_id"].(string)

		w = env.doRequest(t, http.MethodPut, "/api/chats/"+sessionID, map[string]string{
			"title": "ชื่อใหม่",
		})
		require.Equal(t, http.StatusOK, w.Code)

		w = env.doRequest(t, http.MethodGet, "/api/chats/"+sessionID, nil)
		data := parseResponse(t, w)
		assert.Equal(t, "ชื่อใหม่", data["title"])
	})

	t.Run("delete session", func(t *testing.T) {
		w := env.doRequest(t, http.MethodPost, "/api/chats", map[string]string{})
		sessionID := parseResponse(t, w)["chat_id"].(string)

		w = env.doRequest(t, http.MethodDelete, "/api/chats/"+sessionID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		w = env.doRequest(t, http.MethodGet, "/api/chats/"+sessionID, nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown session history", func(t *testing.T) {
		w := env.doRequest(t, http.MethodGet, "/api/chats/missing", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}
