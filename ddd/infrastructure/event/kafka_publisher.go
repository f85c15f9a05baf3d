package event

import (
	"context"

	"media-pipeline-service/ddd/domain/port"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/kafka"
)

// producer 抽出 kafka 客户端的发送能力，便于测试
type producer interface {
	ProduceJSON(ctx context.Context, topic, key, eventType string, v interface{}) error
}

// KafkaPublisher 将作业终态事件写入 job_events 主题，以作业UUID为分区键
type KafkaPublisher struct {
	producer producer
	topic    string
}

func NewKafkaPublisher(p producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event port.JobEvent) error {
	return p.producer.ProduceJSON(ctx, p.topic, event.JobUUID, event.Type, event)
}

// DefaultPublisher Kafka 启用时返回 KafkaPublisher，否则丢弃事件
func DefaultPublisher(cfg *config.Config) port.JobEventPublisher {
	client := kafka.DefaultClient()
	if cfg == nil || !client.Enabled() || cfg.Kafka.Topics.JobEvents == "" {
		return port.NopEventPublisher{}
	}
	return NewKafkaPublisher(client, cfg.Kafka.Topics.JobEvents)
}
