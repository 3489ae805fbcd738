package vectordb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// MemoryRepository 内存向量仓库实现
// 支持JSON文件持久化，重启后可以恢复索引
type MemoryRepository struct {
	mu           sync.RWMutex
	dimension    int
	distType     DistanceType
	documents    map[string]Document
	fileToDocIDs map[string][]string
	path         string // 持久化文件路径，为空则纯内存运行
	dirty        bool
}

// memorySnapshot 持久化文件结构
type memorySnapshot struct {
	Dimension    int                 `json:"dimension"`
	DistanceType DistanceType        `json:"distance_type"`
	Documents    map[string]Document `json:"documents"`
	FileToDocIDs map[string][]string `json:"file_to_doc_ids"`
	SavedAt      time.Time           `json:"saved_at"`
}

// NewMemoryRepository 创建内存向量仓库
// 如果配置了路径且文件存在，启动时加载已有数据
func NewMemoryRepository(config Config) (Repository, error) {
	if config.Dimension <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	distType := config.DistanceType
	if distType != Cosine && distType != DotProduct && distType != Euclidean {
		distType = Cosine
	}

	repo := &MemoryRepository{
		dimension:    config.Dimension,
		distType:     distType,
		documents:    make(map[string]Document),
		fileToDocIDs: make(map[string][]string),
	}

	if config.Path != "" && !config.InMemory {
		repo.path = config.Path
		if fileExists(config.Path) {
			if err := repo.load(); err != nil {
				return nil, fmt.Errorf("failed to load vector store: %w", err)
			}
		}
	}

	return repo, nil
}

// Add 添加单个文档到内存仓库
func (r *MemoryRepository) Add(doc Document) error {
	if err := ValidateVector(doc.Vector, r.dimension); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.store(&doc)
	return nil
}

// AddBatch 批量添加文档到内存仓库
func (r *MemoryRepository) AddBatch(docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	// 先整体校验，避免写入一半失败
	for i := range docs {
		if err := ValidateVector(docs[i].Vector, r.dimension); err != nil {
			return fmt.Errorf("invalid vector for document %s: %v", docs[i].ID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range docs {
		r.store(&docs[i])
	}
	return nil
}

// store 写入单个文档，调用方必须持有写锁
func (r *MemoryRepository) store(doc *Document) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]interface{})
	}
	if r.distType == Cosine {
		doc.Vector = normalizeVector(doc.Vector)
	}

	r.documents[doc.ID] = *doc
	r.fileToDocIDs[doc.FileID] = append(r.fileToDocIDs[doc.FileID], doc.ID)
	r.dirty = true
}

// Get 获取单个文档
func (r *MemoryRepository) Get(id string) (Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, exists := r.documents[id]
	if !exists {
		return Document{}, ErrDocumentNotFound
	}
	return doc, nil
}

// Delete 删除单个文档
func (r *MemoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, exists := r.documents[id]
	if !exists {
		return ErrDocumentNotFound
	}

	delete(r.documents, id)
	r.removeFromFileIndex(doc.FileID, id)
	r.dirty = true
	return nil
}

// DeleteByFileID 删除指定文件的所有片段
func (r *MemoryRepository) DeleteByFileID(fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	docIDs, exists := r.fileToDocIDs[fileID]
	if !exists {
		return nil
	}

	for _, id := range docIDs {
		delete(r.documents, id)
	}
	delete(r.fileToDocIDs, fileID)
	r.dirty = true
	return nil
}

// removeFromFileIndex 从文件索引中移除文档ID，调用方必须持有写锁
func (r *MemoryRepository) removeFromFileIndex(fileID, docID string) {
	ids, ok := r.fileToDocIDs[fileID]
	if !ok {
		return
	}

	updated := make([]string, 0, len(ids)-1)
	for _, id := range ids {
		if id != docID {
			updated = append(updated, id)
		}
	}

	if len(updated) == 0 {
		delete(r.fileToDocIDs, fileID)
	} else {
		r.fileToDocIDs[fileID] = updated
	}
}

// Search 相似度搜索
func (r *MemoryRepository) Search(vector []float32, filter SearchFilter) ([]SearchResult, error) {
	if err := ValidateVector(vector, r.dimension); err != nil {
		return nil, err
	}

	if r.distType == Cosine {
		vector = normalizeVector(vector)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]SearchResult, 0, len(r.documents))
	for _, doc := range r.candidates(filter) {
		dist, err := ComputeDistance(vector, doc.Vector, r.distType)
		if err != nil {
			return nil, fmt.Errorf("error computing distance: %v", err)
		}

		score := DistanceToScore(dist, r.distType)
		if score < filter.MinScore {
			continue
		}

		results = append(results, SearchResult{
			Document: doc,
			Score:    score,
			Distance: dist,
		})
	}

	SortSearchResults(results)
	if filter.MaxResults > 0 && len(results) > filter.MaxResults {
		results = results[:filter.MaxResults]
	}
	return results, nil
}

// candidates 返回通过过滤条件的候选文档，调用方必须持有读锁
func (r *MemoryRepository) candidates(filter SearchFilter) []Document {
	var docs []Document

	// 指定了文件ID时走文件索引，不全量扫描
	if len(filter.FileIDs) > 0 {
		for _, fileID := range filter.FileIDs {
			for _, docID := range r.fileToDocIDs[fileID] {
				doc, exists := r.documents[docID]
				if exists && matchFilter(doc, filter) {
					docs = append(docs, doc)
				}
			}
		}
		return docs
	}

	for _, doc := range r.documents {
		if matchFilter(doc, filter) {
			docs = append(docs, doc)
		}
	}
	return docs
}

// Count 获取文档总数
func (r *MemoryRepository) Count() (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.documents), nil
}

// GetDimension 返回向量维数
func (r *MemoryRepository) GetDimension() int {
	return r.dimension
}

// Close 关闭仓库，有未保存的变更时落盘
func (r *MemoryRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path == "" || !r.dirty {
		return nil
	}
	return r.save()
}

// Save 手动触发持久化
func (r *MemoryRepository) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.path == "" {
		return nil
	}
	return r.save()
}

// save 将当前数据写入JSON文件，调用方必须持有写锁
func (r *MemoryRepository) save() error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %v", err)
	}

	snapshot := memorySnapshot{
		Dimension:    r.dimension,
		DistanceType: r.distType,
		Documents:    r.documents,
		FileToDocIDs: r.fileToDocIDs,
		SavedAt:      time.Now(),
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %v", err)
	}

	if err := os.WriteFile(r.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %v", err)
	}

	r.dirty = false
	return nil
}

// load 从JSON文件恢复数据
func (r *MemoryRepository) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %v", err)
	}

	var snapshot memorySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %v", err)
	}

	if snapshot.Dimension != r.dimension {
		return fmt.Errorf("snapshot dimension %d does not match configured %d",
			snapshot.Dimension, r.dimension)
	}

	if snapshot.Documents != nil {
		r.documents = snapshot.Documents
	}
	if snapshot.FileToDocIDs != nil {
		r.fileToDocIDs = snapshot.FileToDocIDs
	}
	return nil
}

// fileExists 检查文件是否存在
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// 在包初始化时注册内存仓库
func init() {
	RegisterRepository("memory", NewMemoryRepository)
}
