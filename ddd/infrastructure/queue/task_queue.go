package queue

import (
	"context"
	"errors"
	"sync"

	"media-pipeline-service/ddd/domain/port"
)

var (
	ErrQueueClosed = errors.New("queue is closed")
	ErrQueueFull   = errors.New("queue is full")
)

// JobQueue 派发队列，在 port.DispatchQueue 基础上暴露长度
type JobQueue interface {
	port.DispatchQueue
	// Size 获取队列长度，无法获取时返回 -1
	Size() int
}

// MemoryJobQueue 基于内存的作业队列实现
type MemoryJobQueue struct {
	queue chan string
	done  chan struct{}
	once  sync.Once

	metricsMu sync.RWMutex
	metrics   QueueMetrics
}

// QueueMetrics 队列指标快照
type QueueMetrics struct {
	EnqueueCount uint64
	DequeueCount uint64
	RejectCount  uint64
	MaxSize      int
	CurrentSize  int
}

// NewMemoryJobQueue 创建内存作业队列
func NewMemoryJobQueue(capacity int) *MemoryJobQueue {
	if capacity <= 0 {
		capacity = 1000 // 默认容量
	}
	return &MemoryJobQueue{
		queue:   make(chan string, capacity),
		done:    make(chan struct{}),
		metrics: QueueMetrics{MaxSize: capacity},
	}
}

// Enqueue 入队，队列满时立即返回 ErrQueueFull
func (q *MemoryJobQueue) Enqueue(ctx context.Context, jobUUID string) error {
	if jobUUID == "" {
		return errors.New("job uuid cannot be empty")
	}
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.queue <- jobUUID:
		q.updateMetrics(func(m *QueueMetrics) { m.EnqueueCount++ })
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		q.updateMetrics(func(m *QueueMetrics) { m.RejectCount++ })
		return ErrQueueFull
	}
}

// Dequeue 出队（阻塞）
func (q *MemoryJobQueue) Dequeue(ctx context.Context) (string, error) {
	select {
	case jobUUID := <-q.queue:
		q.updateMetrics(func(m *QueueMetrics) { m.DequeueCount++ })
		return jobUUID, nil
	case <-q.done:
		return "", ErrQueueClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Size 获取队列大小
func (q *MemoryJobQueue) Size() int {
	return len(q.queue)
}

// Close 关闭队列，未出队的作业由恢复循环重新派发
func (q *MemoryJobQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}

// GetMetrics 获取队列指标快照
func (q *MemoryJobQueue) GetMetrics() QueueMetrics {
	q.metricsMu.RLock()
	m := q.metrics
	q.metricsMu.RUnlock()
	m.CurrentSize = q.Size()
	return m
}

func (q *MemoryJobQueue) updateMetrics(fn func(m *QueueMetrics)) {
	q.metricsMu.Lock()
	defer q.metricsMu.Unlock()
	fn(&q.metrics)
}
