package storage

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()

	s, err := NewLocalStorage(LocalConfig{Path: t.TempDir()})
	require.NoError(t, err, "Failed to create local storage")
	return s
}

func TestLocalStorageSaveAndGet(t *testing.T) {
	s := newTestStorage(t)

	content := "หลักสูตรวิศวกรรมศาสตรบัณฑิต สาขาวิชาวิศวกรรมคอมพิวเตอร์"
	info, err := s.Save(strings.NewReader(content), "curriculum.pdf")
	require.NoError(t, err)

	assert.NotEmpty(t, info.ID)
	assert.Equal(t, "curriculum.pdf", info.Name)
	assert.Equal(t, int64(len(content)), info.Size)
	assert.Equal(t, "application/pdf", info.MimeType)
	assert.NotEmpty(t, info.Path)

	reader, err := s.Get(info.ID)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestLocalStorageGetMissing(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.Get("no-such-id")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLocalStorageDelete(t *testing.T) {
	s := newTestStorage(t)

	info, err := s.Save(strings.NewReader("content"), "doc.txt")
	require.NoError(t, err)

	require.NoError(t, s.Delete(info.ID))

	exists, err := s.Exists(info.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Error(t, s.Delete(info.ID))
}

func TestLocalStorageList(t *testing.T) {
	s := newTestStorage(t)

	files, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = s.Save(strings.NewReader("a"), "a.pdf")
	require.NoError(t, err)
	_, err = s.Save(strings.NewReader("b"), "b.docx")
	require.NoError(t, err)

	files, err = s.List()
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestLocalStorageExists(t *testing.T) {
	s := newTestStorage(t)

	info, err := s.Save(strings.NewReader("content"), "doc.md")
	require.NoError(t, err)

	exists, err := s.Exists(info.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.Exists("missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorageIndexRebuild(t *testing.T) {
	dir := t.TempDir()

	s, err := NewLocalStorage(LocalConfig{Path: dir})
	require.NoError(t, err)

	info, err := s.Save(strings.NewReader("persisted"), "doc.txt")
	require.NoError(t, err)

	// 重新打开同一目录，索引应能找回已有文件
	reopened, err := NewLocalStorage(LocalConfig{Path: dir})
	require.NoError(t, err)

	reader, err := reopened.Get(info.ID)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(data))
}

func TestNewStorageFactory(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		s, err := NewStorage(Config{Type: "local", LocalPath: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, s)
	})

	t.Run("default type", func(t *testing.T) {
		s, err := NewStorage(Config{LocalPath: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &LocalStorage{}, s)
	})

	t.Run("unsupported type", func(t *testing.T) {
		_, err := NewStorage(Config{Type: "s3"})
		assert.Error(t, err)
	})
}

func TestGetMimeType(t *testing.T) {
	cases := map[string]string{
		"doc.pdf":     "application/pdf",
		"doc.PDF":     "application/pdf",
		"readme.md":   "text/markdown",
		"notes.txt":   "text/plain",
		"grades.csv":  "text/csv",
		"report.docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"unknown.bin": "application/octet-stream",
	}

	for filename, want := range cases {
		assert.Equal(t, want, getMimeType(filename), filename)
	}
}
