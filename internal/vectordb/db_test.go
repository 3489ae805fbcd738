package vectordb

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) Repository {
	t.Helper()
	repo, err := NewMemoryRepository(Config{
		Type:         "memory",
		Dimension:    4,
		DistanceType: Cosine,
		InMemory:     true,
	})
	require.NoError(t, err)
	return repo
}

func testDoc(fileID string, index int, chunkType string, vector []float32) Document {
	return Document{
		ID:         uuid.New().String(),
		FileID:     fileID,
		FileName:   fileID + ".pdf",
		ChunkIndex: index,
		ChunkType:  chunkType,
		Text:       "เนื้อหาทดสอบ",
		Vector:     vector,
	}
}

// TestMemoryRepositoryCRUD 测试内存仓库的基本操作
func TestMemoryRepositoryCRUD(t *testing.T) {
	repo := newTestRepo(t)

	doc := testDoc("file-1", 0, "general", []float32{1, 0, 0, 0})

	t.Run("add and get", func(t *testing.T) {
		require.NoError(t, repo.Add(doc))

		got, err := repo.Get(doc.ID)
		require.NoError(t, err)
		assert.Equal(t, doc.Text, got.Text)
		assert.Equal(t, "general", got.ChunkType)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get("missing")
		assert.ErrorIs(t, err, ErrDocumentNotFound)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		bad := testDoc("file-1", 1, "general", []float32{1, 0})
		assert.Error(t, repo.Add(bad))
	})

	t.Run("empty vector", func(t *testing.T) {
		bad := testDoc("file-1", 2, "general", nil)
		assert.ErrorIs(t, repo.Add(bad), ErrEmptyVector)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(doc.ID))
		_, err := repo.Get(doc.ID)
		assert.ErrorIs(t, err, ErrDocumentNotFound)
		assert.ErrorIs(t, repo.Delete(doc.ID), ErrDocumentNotFound)
	})
}

// TestDeleteByFileID 测试按文件删除
func TestDeleteByFileID(t *testing.T) {
	repo := newTestRepo(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Add(testDoc("file-a", i, "general", []float32{1, 0, 0, 0})))
	}
	require.NoError(t, repo.Add(testDoc("file-b", 0, "general", []float32{0, 1, 0, 0})))

	require.NoError(t, repo.DeleteByFileID("file-a"))

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// 删除不存在的文件不报错
	assert.NoError(t, repo.DeleteByFileID("file-c"))
}

// TestMemorySearch 测试相似度搜索
func TestMemorySearch(t *testing.T) {
	repo := newTestRepo(t)

	tableDoc := testDoc("file-1", 0, "curriculum_table", []float32{1, 0, 0, 0})
	tableDoc.Metadata = map[string]interface{}{
		MetaYear:     "1",
		MetaSemester: "1",
	}
	descDoc := testDoc("file-1", 1, "course_description", []float32{0.9, 0.1, 0, 0})
	otherDoc := testDoc("file-2", 0, "general", []float32{0, 0, 1, 0})

	require.NoError(t, repo.AddBatch([]Document{tableDoc, descDoc, otherDoc}))

	query := []float32{1, 0, 0, 0}

	t.Run("ranked by similarity", func(t *testing.T) {
		results, err := repo.Search(query, DefaultSearchFilter())
		require.NoError(t, err)
		require.Len(t, results, 3)

		assert.Equal(t, tableDoc.ID, results[0].Document.ID)
		assert.Equal(t, descDoc.ID, results[1].Document.ID)
		assert.InDelta(t, 1.0, results[0].Score, 0.001)
	})

	t.Run("max results", func(t *testing.T) {
		filter := DefaultSearchFilter()
		filter.MaxResults = 1
		results, err := repo.Search(query, filter)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})

	t.Run("min score cuts distant docs", func(t *testing.T) {
		filter := DefaultSearchFilter()
		filter.MinScore = 0.5
		results, err := repo.Search(query, filter)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("filter by file id", func(t *testing.T) {
		filter := DefaultSearchFilter()
		filter.FileIDs = []string{"file-2"}
		results, err := repo.Search(query, filter)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, otherDoc.ID, results[0].Document.ID)
	})

	t.Run("filter by chunk type", func(t *testing.T) {
		filter := DefaultSearchFilter()
		filter.ChunkTypes = []string{"curriculum_table"}
		results, err := repo.Search(query, filter)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, tableDoc.ID, results[0].Document.ID)
	})

	t.Run("filter by metadata", func(t *testing.T) {
		filter := DefaultSearchFilter()
		filter.Metadata = map[string]interface{}{MetaYear: "1", MetaSemester: "1"}
		results, err := repo.Search(query, filter)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, tableDoc.ID, results[0].Document.ID)
	})

	t.Run("metadata mismatch returns empty", func(t *testing.T) {
		filter := DefaultSearchFilter()
		filter.Metadata = map[string]interface{}{MetaYear: "4"}
		results, err := repo.Search(query, filter)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

// TestMemoryPersistence 测试JSON持久化
func TestMemoryPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store", "vectors.json")

	cfg := Config{
		Type:         "memory",
		Path:         path,
		Dimension:    4,
		DistanceType: Cosine,
	}

	repo, err := NewMemoryRepository(cfg)
	require.NoError(t, err)

	doc := testDoc("file-1", 0, "curriculum_table", []float32{1, 0, 0, 0})
	require.NoError(t, repo.Add(doc))
	require.NoError(t, repo.Close())

	// 重新打开，数据应当恢复
	reloaded, err := NewMemoryRepository(cfg)
	require.NoError(t, err)

	got, err := reloaded.Get(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Text, got.Text)
	assert.Equal(t, "curriculum_table", got.ChunkType)

	count, err := reloaded.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestComputeDistance 测试距离计算
func TestComputeDistance(t *testing.T) {
	t.Run("cosine identical", func(t *testing.T) {
		dist, err := ComputeDistance([]float32{1, 0}, []float32{1, 0}, Cosine)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, dist, 0.001)
	})

	t.Run("cosine orthogonal", func(t *testing.T) {
		dist, err := ComputeDistance([]float32{1, 0}, []float32{0, 1}, Cosine)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, dist, 0.001)
	})

	t.Run("euclidean", func(t *testing.T) {
		dist, err := ComputeDistance([]float32{0, 0}, []float32{3, 4}, Euclidean)
		require.NoError(t, err)
		assert.InDelta(t, 5.0, dist, 0.001)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := ComputeDistance([]float32{1}, []float32{1, 2}, Cosine)
		assert.Error(t, err)
	})
}

// TestRepositoryFactory 测试仓库工厂
func TestRepositoryFactory(t *testing.T) {
	t.Run("memory type", func(t *testing.T) {
		repo, err := NewRepository(Config{Type: "memory", Dimension: 4, InMemory: true})
		require.NoError(t, err)
		assert.IsType(t, &MemoryRepository{}, repo)
	})

	t.Run("unknown type falls back to memory", func(t *testing.T) {
		repo, err := NewRepository(Config{Type: "qdrant", Dimension: 4, InMemory: true})
		require.NoError(t, err)
		assert.IsType(t, &MemoryRepository{}, repo)
	})
}
