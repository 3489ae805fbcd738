package vectordb

import (
	"errors"
	"time"
)

// 常用错误定义
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrEmptyVector      = errors.New("empty vector")
	ErrInvalidID        = errors.New("invalid document ID")
	ErrInvalidDimension = errors.New("vector dimension mismatch")
)

// Document 文档片段模型
// 包含向量表示及课程文档特有的元数据
type Document struct {
	ID         string                 `json:"id"`          // 唯一标识符
	FileID     string                 `json:"file_id"`     // 所属文件ID
	FileName   string                 `json:"file_name"`   // 文件名
	ChunkIndex int                    `json:"chunk_index"` // 片段在文档中的序号
	ChunkType  string                 `json:"chunk_type"`  // 内容类型（general/curriculum_table/course_description/appendix）
	Text       string                 `json:"text"`        // 原始文本内容
	Vector     []float32              `json:"vector"`      // 向量表示
	CreatedAt  time.Time              `json:"created_at"`  // 创建时间
	Metadata   map[string]interface{} `json:"metadata"`    // 附加元数据（year/semester/course_codes等）
}

// 课程文档常用的元数据键
const (
	// MetaYear 学年标记，如 "1"
	MetaYear = "year"
	// MetaSemester 学期标记，如 "2"
	MetaSemester = "semester"
	// MetaCourseCodes 片段中出现的课程代码，空格分隔
	MetaCourseCodes = "course_codes"
)

// DistanceType 向量距离计算方法
type DistanceType string

const (
	// Cosine 余弦相似度
	Cosine DistanceType = "cosine"
	// DotProduct 点积
	DotProduct DistanceType = "dot"
	// Euclidean 欧几里得距离
	Euclidean DistanceType = "l2"
)

// SearchResult 搜索结果
type SearchResult struct {
	Document Document // 文档对象
	Score    float32  // 相似度得分
	Distance float32  // 计算的距离
}

// SearchFilter 搜索过滤条件
type SearchFilter struct {
	FileIDs    []string               // 按文件ID过滤
	ChunkTypes []string               // 按内容类型过滤
	Metadata   map[string]interface{} // 按元数据过滤
	MinScore   float32                // 最小相似度分数
	MaxResults int                    // 最大返回结果数
}

// DefaultSearchFilter 返回默认的搜索过滤器
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{
		MinScore:   0.0,
		MaxResults: 5,
	}
}

// Repository 向量数据库仓库接口
// 定义向量数据的基本操作
type Repository interface {
	// Add 添加单个文档
	Add(doc Document) error

	// AddBatch 批量添加文档
	AddBatch(docs []Document) error

	// Get 获取单个文档
	Get(id string) (Document, error)

	// Delete 删除单个文档
	Delete(id string) error

	// DeleteByFileID 删除指定文件的所有片段
	DeleteByFileID(fileID string) error

	// Search 相似度搜索
	Search(vector []float32, filter SearchFilter) ([]SearchResult, error)

	// Count 获取文档总数
	Count() (int, error)

	// GetDimension 返回向量维数
	GetDimension() int

	// Close 关闭数据库连接
	Close() error
}

// Config 向量数据库配置
type Config struct {
	Type              string       // 数据库类型，如 "memory", "faiss"
	Path              string       // 数据库文件路径
	Dimension         int          // 向量维度
	DistanceType      DistanceType // 距离计算类型
	CreateIfNotExists bool         // 如果不存在是否创建
	InMemory          bool         // 是否仅在内存中运行
}

// Factory 向量数据库工厂函数类型
type Factory func(config Config) (Repository, error)

// RepositoryRegistry 注册可用的向量数据库实现
var RepositoryRegistry = map[string]Factory{}

// RegisterRepository 注册向量数据库工厂函数
func RegisterRepository(name string, factory Factory) {
	RepositoryRegistry[name] = factory
}

// NewRepository 根据配置创建向量数据库实例
func NewRepository(config Config) (Repository, error) {
	factory, ok := RepositoryRegistry[config.Type]
	if !ok {
		// 默认使用内存实现
		factory = NewMemoryRepository
	}
	return factory(config)
}
