package queue

import (
	"strings"
	"sync"

	"media-pipeline-service/internal/resource"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
)

var (
	queueOnce    sync.Once
	defaultQueue JobQueue
)

// DefaultJobQueue 按 queue.backend 创建派发队列，rabbitmq 不可用时退回内存队列
func DefaultJobQueue() JobQueue {
	queueOnce.Do(func() {
		capacity := 100
		backend := "memory"
		cfg := config.GetGlobalConfig()
		if cfg != nil {
			if cfg.Worker.QueueCapacity > 0 {
				capacity = cfg.Worker.QueueCapacity
			}
			backend = strings.ToLower(cfg.Queue.Backend)
		}
		if backend == "rabbitmq" {
			q, err := NewRabbitMQJobQueue(resource.DefaultRabbitMQResource().Connection(), cfg.RabbitMQ)
			if err == nil {
				defaultQueue = q
				logger.Infof("Job queue ready backend=rabbitmq exchange=%s queue=%s", cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue)
				return
			}
			logger.Errorf("RabbitMQ queue unavailable, falling back to memory error=%v", err)
		}
		defaultQueue = NewMemoryJobQueue(capacity)
		logger.Infof("Job queue ready backend=memory capacity=%d", capacity)
	})
	return defaultQueue
}

// CloseDefaultJobQueue 关闭默认队列
func CloseDefaultJobQueue() {
	if defaultQueue != nil {
		_ = defaultQueue.Close()
	}
}
