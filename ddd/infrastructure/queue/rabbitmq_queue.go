package queue

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
)

// RabbitMQJobQueue 通过 topic 交换机派发作业UUID，多实例共享同一持久队列
type RabbitMQJobQueue struct {
	publishCh  *amqp.Channel
	consumeCh  *amqp.Channel
	exchange   string
	routingKey string
	queue      string
	prefetch   int

	pubMu      sync.Mutex
	consumeMu  sync.Mutex
	deliveries <-chan amqp.Delivery
	closeOnce  sync.Once
	done       chan struct{}
}

// NewRabbitMQJobQueue 声明交换机、队列与绑定
func NewRabbitMQJobQueue(conn *amqp.Connection, cfg config.RabbitMQConfig) (*RabbitMQJobQueue, error) {
	publishCh, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	consumeCh, err := conn.Channel()
	if err != nil {
		_ = publishCh.Close()
		return nil, err
	}

	if err := publishCh.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	if _, err := consumeCh.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", cfg.Queue, err)
	}
	if err := consumeCh.QueueBind(cfg.Queue, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		return nil, fmt.Errorf("bind queue %s: %w", cfg.Queue, err)
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := consumeCh.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}

	return &RabbitMQJobQueue{
		publishCh:  publishCh,
		consumeCh:  consumeCh,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		queue:      cfg.Queue,
		prefetch:   prefetch,
		done:       make(chan struct{}),
	}, nil
}

func (q *RabbitMQJobQueue) Enqueue(ctx context.Context, jobUUID string) error {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	return q.publishCh.PublishWithContext(ctx,
		q.exchange,
		q.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "text/plain",
			DeliveryMode: amqp.Persistent,
			MessageId:    jobUUID,
			Body:         []byte(jobUUID),
		},
	)
}

// Dequeue 收到即确认：认领在数据库层保证幂等，丢失的消息由恢复循环补发
func (q *RabbitMQJobQueue) Dequeue(ctx context.Context) (string, error) {
	deliveries, err := q.consume()
	if err != nil {
		return "", err
	}
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.done:
			return "", ErrQueueClosed
		case msg, ok := <-deliveries:
			if !ok {
				return "", ErrQueueClosed
			}
			jobUUID := string(msg.Body)
			if jobUUID == "" {
				_ = msg.Nack(false, false)
				continue
			}
			if err := msg.Ack(false); err != nil {
				logger.Warnf("RabbitMQ ack failed job_uuid=%s error=%v", jobUUID, err)
			}
			return jobUUID, nil
		}
	}
}

func (q *RabbitMQJobQueue) consume() (<-chan amqp.Delivery, error) {
	q.consumeMu.Lock()
	defer q.consumeMu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.consumeCh.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, err
	}
	q.deliveries = deliveries
	logger.Infof("RabbitMQ consumer started queue=%s prefetch=%d", q.queue, q.prefetch)
	return deliveries, nil
}

func (q *RabbitMQJobQueue) Size() int {
	q.consumeMu.Lock()
	defer q.consumeMu.Unlock()
	state, err := q.consumeCh.QueueDeclarePassive(q.queue, true, false, false, false, nil)
	if err != nil {
		return -1
	}
	return state.Messages
}

func (q *RabbitMQJobQueue) Close() error {
	var err error
	q.closeOnce.Do(func() {
		close(q.done)
		if e := q.consumeCh.Close(); e != nil {
			err = e
		}
		if e := q.publishCh.Close(); e != nil && err == nil {
			err = e
		}
	})
	return err
}
