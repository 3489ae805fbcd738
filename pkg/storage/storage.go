package storage

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// FileInfo 文件信息
type FileInfo struct {
	ID       string // 文件唯一标识符
	Name     string // 原始文件名
	Size     int64  // 文件大小（字节）
	MimeType string // MIME类型
	Path     string // 存储路径（相对于存储根）
}

// Storage 文件存储接口
// 负责原始上传文件的保存和读取
type Storage interface {
	// Save 保存文件，返回文件信息
	Save(reader io.Reader, filename string) (FileInfo, error)

	// Get 根据ID获取文件内容，调用方负责关闭
	Get(id string) (io.ReadCloser, error)

	// Delete 根据ID删除文件
	Delete(id string) error

	// List 列出所有文件
	List() ([]FileInfo, error)

	// Exists 检查文件是否存在
	Exists(id string) (bool, error)
}

// Config 存储配置
type Config struct {
	Type string // 存储类型：local或minio

	// 本地存储配置
	LocalPath string

	// MinIO存储配置
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// DefaultConfig 返回默认存储配置
func DefaultConfig() Config {
	return Config{
		Type:      "local",
		LocalPath: "data/uploads",
	}
}

// NewStorage 根据配置创建存储实例
func NewStorage(cfg Config) (Storage, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "local":
		return NewLocalStorage(LocalConfig{Path: cfg.LocalPath})
	case "minio":
		return NewMinioStorage(MinioConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// getMimeType 根据文件扩展名判断MIME类型
func getMimeType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".csv":
		return "text/csv"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	default:
		return "application/octet-stream"
	}
}
