package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
)

// BatchProcessor 批量嵌入处理器
// 文档切分后往往有上百个片段，按批次并行提交给嵌入客户端
type BatchProcessor struct {
	client     Client
	batchSize  int
	maxWorkers int
}

// NewBatchProcessor 创建批处理器
func NewBatchProcessor(client Client, batchSize int, maxWorkers int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 16
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	return &BatchProcessor{
		client:     client,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
	}
}

// Process 并行处理一组文本，返回与输入等长的向量列表
// 空文本对应位置返回nil，不提交给嵌入客户端
func (p *BatchProcessor) Process(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	// 过滤空文本，记录非空文本的原始位置
	filtered := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, text := range texts {
		if text != "" {
			filtered = append(filtered, text)
			positions = append(positions, i)
		}
	}

	results := make([][]float32, len(texts))
	if len(filtered) == 0 {
		return results, nil
	}

	batches := splitIntoBatches(filtered, p.batchSize)
	batchVectors := make([][][]float32, len(batches))

	wp := workerpool.New(p.maxWorkers)
	var mu sync.Mutex
	var processErr error

	for i, batch := range batches {
		i, batch := i, batch
		wp.Submit(func() {
			select {
			case <-ctx.Done():
				mu.Lock()
				if processErr == nil {
					processErr = ctx.Err()
				}
				mu.Unlock()
				return
			default:
			}

			vectors, err := p.client.EmbedBatch(ctx, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if processErr == nil {
					processErr = fmt.Errorf("batch %d embedding failed: %w", i, err)
				}
				return
			}
			batchVectors[i] = vectors
		})
	}
	wp.StopWait()

	if processErr != nil {
		return nil, processErr
	}

	// 按批次顺序回填到原始位置
	cursor := 0
	for _, vectors := range batchVectors {
		for _, vector := range vectors {
			results[positions[cursor]] = vector
			cursor++
		}
	}
	return results, nil
}

// splitIntoBatches 将文本列表切成固定大小的批次
func splitIntoBatches(texts []string, batchSize int) [][]string {
	batches := make([][]string, 0, (len(texts)+batchSize-1)/batchSize)
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}
	return batches
}
