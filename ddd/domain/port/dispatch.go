package port

import "context"

// DispatchQueue 作业派发队列，只传递作业UUID，认领在仓储层完成
type DispatchQueue interface {
	// Enqueue 入队，队列满或已关闭时返回错误
	Enqueue(ctx context.Context, jobUUID string) error
	// Dequeue 阻塞出队，直到有作业、ctx 结束或队列关闭
	Dequeue(ctx context.Context) (string, error)
	Close() error
}
