package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/fyerfyer/thai-curriculum-rag/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// 每个测试用唯一的内存数据库，避免相互污染
	dbName := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

func newTestDocument(id string) *models.Document {
	return &models.Document{
		ID:       id,
		FileName: "curriculum.pdf",
		FileType: "pdf",
		FilePath: "/uploads/curriculum.pdf",
		FileSize: 2048,
		Status:   models.DocStatusUploaded,
	}
}

func TestDocumentRepositoryCreate(t *testing.T) {
	repo := NewDocumentRepositoryWithDB(setupTestDB(t))

	doc := newTestDocument("doc-1")
	require.NoError(t, repo.Create(doc))

	got, err := repo.GetByID("doc-1")
	require.NoError(t, err)
	assert.Equal(t, "curriculum.pdf", got.FileName)
	assert.Equal(t, models.DocStatusUploaded, got.Status)
	assert.False(t, got.UploadedAt.IsZero())

	t.Run("empty id rejected", func(t *testing.T) {
		assert.Error(t, repo.Create(&models.Document{}))
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := repo.GetByID("missing")
		assert.ErrorIs(t, err, models.ErrDocumentNotFound)
	})
}

func TestDocumentRepositoryStatus(t *testing.T) {
	repo := NewDocumentRepositoryWithDB(setupTestDB(t))
	require.NoError(t, repo.Create(newTestDocument("doc-1")))

	t.Run("processing", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus("doc-1", models.DocStatusProcessing, ""))

		doc, err := repo.GetByID("doc-1")
		require.NoError(t, err)
		assert.Equal(t, models.DocStatusProcessing, doc.Status)
	})

	t.Run("progress", func(t *testing.T) {
		require.NoError(t, repo.UpdateProgress("doc-1", 60))

		doc, err := repo.GetByID("doc-1")
		require.NoError(t, err)
		assert.Equal(t, 60, doc.Progress)
	})

	t.Run("completed sets processed time", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus("doc-1", models.DocStatusCompleted, ""))

		doc, err := repo.GetByID("doc-1")
		require.NoError(t, err)
		assert.Equal(t, models.DocStatusCompleted, doc.Status)
		assert.NotNil(t, doc.ProcessedAt)
		assert.Equal(t, 100, doc.Progress)
		assert.Equal(t, models.StageCompleted, doc.CurrentStage)
	})

	t.Run("failed keeps error message", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus("doc-1", models.DocStatusFailed, "parse error"))

		doc, err := repo.GetByID("doc-1")
		require.NoError(t, err)
		assert.Equal(t, "parse error", doc.Error)
	})

	t.Run("unknown document", func(t *testing.T) {
		err := repo.UpdateStatus("missing", models.DocStatusProcessing, "")
		assert.ErrorIs(t, err, models.ErrDocumentNotFound)
	})
}

func TestDocumentRepositoryList(t *testing.T) {
	repo := NewDocumentRepositoryWithDB(setupTestDB(t))

	for i := 0; i < 3; i++ {
		doc := newTestDocument(fmt.Sprintf("doc-%d", i))
		if i == 2 {
			doc.Status = models.DocStatusCompleted
			doc.Tags = "curriculum,engineering"
		}
		require.NoError(t, repo.Create(doc))
	}

	t.Run("all documents", func(t *testing.T) {
		docs, total, err := repo.List(0, 10, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, docs, 3)
	})

	t.Run("filter by status", func(t *testing.T) {
		docs, total, err := repo.List(0, 10, map[string]interface{}{
			"status": models.DocStatusCompleted,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, docs, 1)
		assert.Equal(t, "doc-2", docs[0].ID)
	})

	t.Run("filter by tags", func(t *testing.T) {
		_, total, err := repo.List(0, 10, map[string]interface{}{"tags": "engineering"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("pagination", func(t *testing.T) {
		docs, total, err := repo.List(0, 2, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, docs, 2)
	})
}

func TestDocumentRepositorySegments(t *testing.T) {
	repo := NewDocumentRepositoryWithDB(setupTestDB(t))
	require.NoError(t, repo.Create(newTestDocument("doc-1")))

	segments := []*models.DocumentSegment{
		{DocumentID: "doc-1", SegmentID: "seg-0", Position: 0, Text: "บทนำ", ContentType: "general"},
		{DocumentID: "doc-1", SegmentID: "seg-1", Position: 1, Text: "ปีที่ 1 ภาคการศึกษาที่ 1", ContentType: "curriculum_table"},
		{DocumentID: "doc-1", SegmentID: "seg-2", Position: 2, Text: "ปีที่ 1 ภาคการศึกษาที่ 2", ContentType: "curriculum_table"},
	}

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, repo.SaveSegments(segments))

		got, err := repo.GetSegments("doc-1")
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "seg-0", got[0].SegmentID)
		assert.Equal(t, "curriculum_table", got[1].ContentType)
	})

	t.Run("count", func(t *testing.T) {
		count, err := repo.CountSegments("doc-1")
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("count by type", func(t *testing.T) {
		counts, err := repo.CountSegmentsByType("doc-1")
		require.NoError(t, err)
		assert.Equal(t, 1, counts["general"])
		assert.Equal(t, 2, counts["curriculum_table"])
	})

	t.Run("delete segments", func(t *testing.T) {
		require.NoError(t, repo.DeleteSegments("doc-1"))
		count, err := repo.CountSegments("doc-1")
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestDocumentRepositoryDelete(t *testing.T) {
	repo := NewDocumentRepositoryWithDB(setupTestDB(t))

	require.NoError(t, repo.Create(newTestDocument("doc-1")))
	require.NoError(t, repo.SaveSegment(&models.DocumentSegment{
		DocumentID: "doc-1", SegmentID: "seg-0", Position: 0, Text: "เนื้อหา",
	}))

	require.NoError(t, repo.Delete("doc-1"))

	_, err := repo.GetByID("doc-1")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)

	count, err := repo.CountSegments("doc-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	t.Run("deleting missing document", func(t *testing.T) {
		assert.ErrorIs(t, repo.Delete("doc-1"), models.ErrDocumentNotFound)
	})
}
