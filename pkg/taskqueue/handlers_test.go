package taskqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProcessor 实现DocumentProcessor接口，用于测试
type fakeProcessor struct {
	processErr   error
	processCalls []DocumentProcessPayload
	reindexCalls []DocumentReindexPayload
	cleanupCalls []VectorCleanupPayload
	progresses   []int
}

func (p *fakeProcessor) Process(ctx context.Context, payload DocumentProcessPayload, report ProgressFunc) (*DocumentProcessResult, error) {
	p.processCalls = append(p.processCalls, payload)
	if p.processErr != nil {
		return nil, p.processErr
	}

	report(30)
	report(70)

	return &DocumentProcessResult{
		DocumentID:   payload.DocumentID,
		SegmentCount: 6,
		VectorCount:  6,
		Dimension:    768,
		ContentTypes: map[string]int{"course_description": 6},
	}, nil
}

func (p *fakeProcessor) Reindex(ctx context.Context, payload DocumentReindexPayload, report ProgressFunc) (*DocumentProcessResult, error) {
	p.reindexCalls = append(p.reindexCalls, payload)
	return &DocumentProcessResult{DocumentID: payload.DocumentID, VectorCount: 6}, nil
}

func (p *fakeProcessor) Cleanup(ctx context.Context, payload VectorCleanupPayload) error {
	p.cleanupCalls = append(p.cleanupCalls, payload)
	return nil
}

func newHandlerTestQueue(t *testing.T) Queue {
	t.Helper()

	mr := miniredis.RunT(t)
	queue, err := NewRedisQueue(&Config{
		RedisAddr:   mr.Addr(),
		RetryLimit:  1,
		Concurrency: 1,
		RetryDelay:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })

	return queue
}

func TestPipelineHandlerProcess(t *testing.T) {
	queue := newHandlerTestQueue(t)
	processor := &fakeProcessor{}
	handler := NewPipelineHandler(queue, processor, nil)

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskDocumentProcess, "doc-1", &DocumentProcessPayload{
		DocumentID: "doc-1",
		FileID:     "file-1",
		FileName:   "curriculum.pdf",
		FileType:   "pdf",
	})
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)

	require.NoError(t, handler.ProcessTask(ctx, task))

	require.Len(t, processor.processCalls, 1)
	assert.Equal(t, "curriculum.pdf", processor.processCalls[0].FileName)

	// 处理完成后任务带着结果进入completed状态
	done, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)

	var result DocumentProcessResult
	require.NoError(t, UnmarshalPayload(done.Result, &result))
	assert.Equal(t, 6, result.SegmentCount)
	assert.Equal(t, 6, result.ContentTypes["course_description"])
}

func TestPipelineHandlerProcessFailure(t *testing.T) {
	queue := newHandlerTestQueue(t)
	processor := &fakeProcessor{processErr: errors.New("parse failed")}
	handler := NewPipelineHandler(queue, processor, nil)

	ctx := context.Background()
	taskID, err := queue.Enqueue(ctx, TaskDocumentProcess, "doc-1", &DocumentProcessPayload{DocumentID: "doc-1"})
	require.NoError(t, err)

	task, err := queue.GetTask(ctx, taskID)
	require.NoError(t, err)

	err = handler.ProcessTask(ctx, task)
	assert.EqualError(t, err, "parse failed")
}

func TestPipelineHandlerInvalidPayload(t *testing.T) {
	queue := newHandlerTestQueue(t)
	handler := NewPipelineHandler(queue, &fakeProcessor{}, nil)

	t.Run("missing document id", func(t *testing.T) {
		err := handler.ProcessTask(context.Background(), &Task{
			ID:      "task-x",
			Type:    TaskDocumentProcess,
			Payload: []byte(`{}`),
		})
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("unsupported task type", func(t *testing.T) {
		err := handler.ProcessTask(context.Background(), &Task{
			ID:   "task-y",
			Type: TaskType("unknown"),
		})
		assert.Error(t, err)
	})
}

func TestPipelineHandlerReindexAndCleanup(t *testing.T) {
	queue := newHandlerTestQueue(t)
	processor := &fakeProcessor{}
	handler := NewPipelineHandler(queue, processor, nil)

	ctx := context.Background()

	t.Run("reindex", func(t *testing.T) {
		taskID, err := queue.Enqueue(ctx, TaskDocumentReindex, "doc-2", &DocumentReindexPayload{
			DocumentID: "doc-2",
			Model:      "nomic-embed-text",
		})
		require.NoError(t, err)

		task, err := queue.GetTask(ctx, taskID)
		require.NoError(t, err)
		require.NoError(t, handler.ProcessTask(ctx, task))

		require.Len(t, processor.reindexCalls, 1)
		assert.Equal(t, "nomic-embed-text", processor.reindexCalls[0].Model)
	})

	t.Run("cleanup", func(t *testing.T) {
		taskID, err := queue.Enqueue(ctx, TaskVectorCleanup, "doc-3", &VectorCleanupPayload{DocumentID: "doc-3"})
		require.NoError(t, err)

		task, err := queue.GetTask(ctx, taskID)
		require.NoError(t, err)
		require.NoError(t, handler.ProcessTask(ctx, task))

		require.Len(t, processor.cleanupCalls, 1)
		assert.Equal(t, "doc-3", processor.cleanupCalls[0].DocumentID)

		done, err := queue.GetTask(ctx, taskID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, done.Status)
	})
}

func TestPipelineHandlerTaskTypes(t *testing.T) {
	handler := NewPipelineHandler(nil, &fakeProcessor{}, nil)
	assert.ElementsMatch(t, []TaskType{TaskDocumentProcess, TaskDocumentReindex, TaskVectorCleanup}, handler.GetTaskTypes())
}
