package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentUpload(t *testing.T) {
	env := setupTestAPI(t)

	t.Run("upload and process", func(t *testing.T) {
		w := env.uploadFile(t, "curriculum.txt", sampleCurriculumText)
		require.Equal(t, http.StatusOK, w.Code)

		data := parseResponse(t, w)
		assert.NotEmpty(t, data["file_id"])
		assert.Equal(t, "curriculum.txt", data["filename"])
		// 同步模式下上传返回时处理已完成
		assert.Equal(t, "completed", data["status"])
	})

	t.Run("unsupported file type", func(t *testing.T) {
		w := env.uploadFile(t, "report.xlsx", "data")
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		w := env.doRequest(t, http.MethodPost, "/api/documents", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDocumentStatus(t *testing.T) {
	env := setupTestAPI(t)

	w := env.uploadFile(t, "curriculum.txt", sampleCurriculumText)
	require.Equal(t, http.StatusOK, w.Code)
	fileID := parseResponse(t, w)["file_id"].(string)

	t.Run("completed document", func(t *testing.T) {
		w := env.doRequest(t, http.MethodGet, fmt.Sprintf("/api/documents/%s/status", fileID), nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := parseResponse(t, w)
		assert.Equal(t, "completed", data["status"])
		assert.Equal(t, float64(100), data["progress"])
		assert.Greater(t, data["segments"].(float64), float64(0))

		types, ok := data["content_types"].(map[string]interface{})
		require.True(t, ok)
		assert.NotEmpty(t, types)
	})

	t.Run("unknown document", func(t *testing.T) {
		w := env.doRequest(t, http.MethodGet, "/api/documents/missing/status", nil)
		require.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDocumentList(t *testing.T) {
	env := setupTestAPI(t)

	for i := 0; i < 3; i++ {
		w := env.uploadFile(t, fmt.Sprintf("doc%d.txt", i), sampleCurriculumText)
		require.Equal(t, http.StatusOK, w.Code)
	}

	t.Run("list all", func(t *testing.T) {
		w := env.doRequest(t, http.MethodGet, "/api/documents", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := parseResponse(t, w)
		assert.Equal(t, float64(3), data["total"])
		assert.Len(t, data["documents"], 3)
	})

	t.Run("pagination", func(t *testing.T) {
		w := env.doRequest(t, http.MethodGet, "/api/documents?page=1&page_size=2", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := parseResponse(t, w)
		assert.Equal(t, float64(3), data["total"])
		assert.Len(t, data["documents"], 2)
	})

	t.Run("filter by status", func(t *testing.T) {
		w := env.doRequest(t, http.MethodGet, "/api/documents?status=failed", nil)
		require.Equal(t, http.StatusOK, w.Code)

		data := parseResponse(t, w)
		assert.Equal(t, float64(0), data["total"])
	})
}

func TestDocumentTags(t *testing.T) {
	env := setupTestAPI(t)

	w := env.uploadFile(t, "curriculum.txt", sampleCurriculumText)
	fileID := parseResponse(t, w)["file_id"].(string)

	w = env.doRequest(t, http.MethodPut, fmt.Sprintf("/api/documents/%s/tags", fileID), map[string]string{
		"tags": "วิศวกรรม,2567",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.doRequest(t, http.MethodGet, "/api/documents", nil)
	data := parseResponse(t, w)
	docs := data["documents"].([]interface{})
	require.Len(t, docs, 1)
	assert.Equal(t, "วิศวกรรม,2567", docs[0].(map[string]interface{})["tags"])
}

func TestDocumentDelete(t *testing.T) {
	env := setupTestAPI(t)

	w := env.uploadFile(t, "curriculum.txt", sampleCurriculumText)
	fileID := parseResponse(t, w)["file_id"].(string)

	w = env.doRequest(t, http.MethodDelete, "/api/documents/"+fileID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	data := parseResponse(t, w)
	assert.Equal(t, true, data["success"])

	// 删除后查询状态返回404
	w = env.doRequest(t, http.MethodGet, fmt.Sprintf("/api/documents/%s/status", fileID), nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentReindex(t *testing.T) {
	env := setupTestAPI(t)

	w := env.uploadFile(t, "curriculum.txt", sampleCurriculumText)
	fileID := parseResponse(t, w)["file_id"].(string)

	w = env.doRequest(t, http.MethodPost, fmt.Sprintf("/api/documents/%s/reindex", fileID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	// 重建索引后文档仍是完成状态
	w = env.doRequest(t, http.MethodGet, fmt.Sprintf("/api/documents/%s/status", fileID), nil)
	data := parseResponse(t, w)
	assert.Equal(t, "completed", data["status"])
}
