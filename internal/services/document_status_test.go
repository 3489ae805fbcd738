package services

import (
	"context"
	"testing"

	"github.com/fyerfyer/thai-curriculum-rag/internal/models"
	"github.com/fyerfyer/thai-curriculum-rag/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStatusManager(t *testing.T) (*DocumentStatusManager, repository.DocumentRepository) {
	t.Helper()

	repo := repository.NewDocumentRepositoryWithDB(setupTestDB(t))
	return NewDocumentStatusManager(repo, nil), repo
}

func TestDocumentStatusLifecycle(t *testing.T) {
	manager, _ := newTestStatusManager(t)
	ctx := context.Background()

	require.NoError(t, manager.MarkAsUploaded(ctx, "doc-1", "curriculum.pdf", "/data/curriculum.pdf", 1024))

	status, err := manager.GetStatus(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusUploaded, status)

	require.NoError(t, manager.MarkAsProcessing(ctx, "doc-1"))

	t.Run("cannot process twice", func(t *testing.T) {
		err := manager.MarkAsProcessing(ctx, "doc-1")
		assert.ErrorContains(t, err, "already being processed")
	})

	t.Run("stage updates", func(t *testing.T) {
		require.NoError(t, manager.SetStage(ctx, "doc-1", models.StageClassifying))

		doc, err := manager.GetDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, models.StageClassifying, doc.CurrentStage)
	})

	t.Run("progress updates", func(t *testing.T) {
		require.NoError(t, manager.UpdateProgress(ctx, "doc-1", 60))

		doc, err := manager.GetDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, 60, doc.Progress)
	})

	t.Run("completed records segment stats", func(t *testing.T) {
		require.NoError(t, manager.MarkAsCompleted(ctx, "doc-1", 42, 3))

		doc, err := manager.GetDocument(ctx, "doc-1")
		require.NoError(t, err)
		assert.Equal(t, models.DocStatusCompleted, doc.Status)
		assert.Equal(t, 42, doc.SegmentCount)
		assert.Equal(t, 3, doc.TableCount)
		assert.Equal(t, 100, doc.Progress)
		assert.Equal(t, models.StageCompleted, doc.CurrentStage)
	})

	t.Run("progress rejected after completion", func(t *testing.T) {
		err := manager.UpdateProgress(ctx, "doc-1", 10)
		assert.ErrorContains(t, err, "not in processing state")
	})
}

func TestDocumentStatusFailureAndRetry(t *testing.T) {
	manager, _ := newTestStatusManager(t)
	ctx := context.Background()

	require.NoError(t, manager.MarkAsUploaded(ctx, "doc-2", "handbook.pdf", "/data/handbook.pdf", 2048))
	require.NoError(t, manager.MarkAsProcessing(ctx, "doc-2"))
	require.NoError(t, manager.MarkAsFailed(ctx, "doc-2", "unsupported file type"))

	doc, err := manager.GetDocument(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusFailed, doc.Status)
	assert.Equal(t, "unsupported file type", doc.Error)

	// 失败的文档可以重新进入处理
	require.NoError(t, manager.MarkAsProcessing(ctx, "doc-2"))

	doc, err = manager.GetDocument(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, models.DocStatusProcessing, doc.Status)
	assert.Empty(t, doc.Error)
}

func TestDocumentStatusDelete(t *testing.T) {
	manager, _ := newTestStatusManager(t)
	ctx := context.Background()

	require.NoError(t, manager.MarkAsUploaded(ctx, "doc-3", "notes.txt", "/data/notes.txt", 10))
	require.NoError(t, manager.DeleteDocument(ctx, "doc-3"))

	_, err := manager.GetStatus(ctx, "doc-3")
	assert.Error(t, err)
}

func TestGetFileType(t *testing.T) {
	assert.Equal(t, "pdf", getFileType("curriculum.PDF"))
	assert.Equal(t, "docx", getFileType("แผนการเรียน.docx"))
	assert.Equal(t, "", getFileType("no-extension"))
}
