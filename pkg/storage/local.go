package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalStorage 本地文件存储实现
// 启动时扫描存储目录建立ID到路径的索引，避免每次查找都遍历目录树
type LocalStorage struct {
	basePath string
	mu       sync.RWMutex
	index    map[string]string // 文件ID -> 相对路径
}

// LocalConfig 本地存储配置
type LocalConfig struct {
	Path string // 本地存储路径
}

// NewLocalStorage 创建本地存储实例
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	path := cfg.Path
	if path == "" {
		path = "data/uploads"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %v", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}

	s := &LocalStorage{
		basePath: absPath,
		index:    make(map[string]string),
	}

	// 重建已有文件的索引
	if err := s.rebuildIndex(); err != nil {
		return nil, err
	}

	return s, nil
}

// Save 保存文件到本地存储
func (s *LocalStorage) Save(reader io.Reader, filename string) (FileInfo, error) {
	id := uuid.New().String()
	ext := filepath.Ext(filename)

	// 按年月日组织目录结构
	now := time.Now()
	datePath := filepath.Join(
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()),
	)

	dirPath := filepath.Join(s.basePath, datePath)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return FileInfo{}, fmt.Errorf("failed to create directory: %v", err)
	}

	relPath := filepath.Join(datePath, id+ext)
	filePath := filepath.Join(s.basePath, relPath)

	file, err := os.Create(filePath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to create file: %v", err)
	}
	defer file.Close()

	size, err := io.Copy(file, reader)
	if err != nil {
		os.Remove(filePath)
		return FileInfo{}, fmt.Errorf("failed to write file: %v", err)
	}

	s.mu.Lock()
	s.index[id] = relPath
	s.mu.Unlock()

	return FileInfo{
		ID:       id,
		Name:     filename,
		Size:     size,
		MimeType: getMimeType(filename),
		Path:     relPath,
	}, nil
}

// Get 获取文件内容
func (s *LocalStorage) Get(id string) (io.ReadCloser, error) {
	relPath, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.basePath, relPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %v", err)
	}
	return file, nil
}

// Delete 删除文件
func (s *LocalStorage) Delete(id string) error {
	relPath, err := s.lookup(id)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.basePath, relPath)); err != nil {
		return fmt.Errorf("failed to delete file: %v", err)
	}

	s.mu.Lock()
	delete(s.index, id)
	s.mu.Unlock()

	return nil
}

// List 列出所有文件
func (s *LocalStorage) List() ([]FileInfo, error) {
	s.mu.RLock()
	paths := make(map[string]string, len(s.index))
	for id, relPath := range s.index {
		paths[id] = relPath
	}
	s.mu.RUnlock()

	var files []FileInfo
	for id, relPath := range paths {
		info, err := os.Stat(filepath.Join(s.basePath, relPath))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to stat file: %v", err)
		}

		fileName := filepath.Base(relPath)
		files = append(files, FileInfo{
			ID:       id,
			Name:     fileName,
			Size:     info.Size(),
			MimeType: getMimeType(fileName),
			Path:     relPath,
		})
	}

	return files, nil
}

// Exists 检查文件是否存在
func (s *LocalStorage) Exists(id string) (bool, error) {
	_, err := s.lookup(id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// lookup 根据ID查找文件相对路径
func (s *LocalStorage) lookup(id string) (string, error) {
	s.mu.RLock()
	relPath, ok := s.index[id]
	s.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("file with id %s not found", id)
	}
	return relPath, nil
}

// rebuildIndex 扫描存储目录重建索引
func (s *LocalStorage) rebuildIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}

		fileName := filepath.Base(path)
		id := strings.TrimSuffix(fileName, filepath.Ext(fileName))
		s.index[id] = relPath
		return nil
	})
}
