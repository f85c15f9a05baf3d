package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
)

const (
	// HeaderEventType 事件类型头，下游可不解析消息体直接过滤
	HeaderEventType   = "event_type"
	HeaderContentType = "content_type"
)

// Client 作业提交主题的消费与作业事件主题的生产共用一个客户端
type Client struct {
	brokers     []string
	clientID    string
	groupID     string
	enabled     bool
	startOffset int64
	partitions  int
	replicas    int
	dialer      *kafka.Dialer
	writers     sync.Map // topic -> *kafka.Writer
}

var (
	once      sync.Once
	singleton *Client
)

func DefaultClient() *Client {
	once.Do(func() {
		singleton = &Client{}
	})
	return singleton
}

func (c *Client) MustOpen() {
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before Kafka client")
	}
	c.enabled = cfg.Kafka.Enabled
	if !c.enabled {
		logger.Infof("Kafka disabled, job submissions over kafka and job events are off")
		return
	}
	c.brokers = cfg.Kafka.BootstrapServers
	c.clientID = cfg.Kafka.ClientID
	c.groupID = cfg.Kafka.GroupID
	c.partitions = cfg.Kafka.TopicPartitions
	c.replicas = cfg.Kafka.ReplicationFactor
	c.startOffset = kafka.LastOffset
	if cfg.Kafka.StartFromOldest {
		c.startOffset = kafka.FirstOffset
	}
	c.dialer = &kafka.Dialer{
		Timeout:  10 * time.Second,
		ClientID: c.clientID,
	}
	logger.Infof("Kafka client opened brokers=%v client_id=%s group=%s", c.brokers, c.clientID, c.groupID)
}

// Enabled kafka.enabled 的启动时取值
func (c *Client) Enabled() bool {
	return c.enabled
}

// GroupID 服务所有实例共享的消费组
func (c *Client) GroupID() string {
	return c.groupID
}

func (c *Client) Close() {
	c.writers.Range(func(key, value interface{}) bool {
		if w, ok := value.(*kafka.Writer); ok {
			_ = w.Close()
		}
		c.writers.Delete(key)
		return true
	})
}

// Writer 每个主题一个 writer，按 key 哈希分区保证同一作业的事件有序
func (c *Client) Writer(topic string) *kafka.Writer {
	if v, ok := c.writers.Load(topic); ok {
		return v.(*kafka.Writer)
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(c.brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	actual, loaded := c.writers.LoadOrStore(topic, w)
	if loaded {
		_ = w.Close()
	}
	return actual.(*kafka.Writer)
}

// ProduceJSON 以 JSON 写入一条消息并带上事件类型头
func (c *Client) ProduceJSON(ctx context.Context, topic, key, eventType string, v interface{}) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", eventType, err)
	}
	msg := kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(eventType)},
			{Key: HeaderContentType, Value: []byte("application/json")},
		},
	}
	return c.Writer(topic).WriteMessages(ctx, msg)
}

// Reader 消费组 reader，新消费组的起点由 kafka.start_from_oldest 决定
func (c *Client) Reader(topic, groupID string) *kafka.Reader {
	logger.Infof("Kafka reader created topic=%s group=%s brokers=%v", topic, groupID, c.brokers)
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.brokers,
		GroupID:     groupID,
		Topic:       topic,
		Dialer:      c.dialer,
		StartOffset: c.startOffset,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	})
}

// EnsureTopics 通过 controller 创建缺失的主题，已存在的主题不报错
func (c *Client) EnsureTopics(topics ...string) error {
	if len(c.brokers) == 0 {
		return nil
	}
	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		if t == "" {
			continue
		}
		configs = append(configs, kafka.TopicConfig{
			Topic:             t,
			NumPartitions:     c.partitions,
			ReplicationFactor: c.replicas,
		})
	}
	if len(configs) == 0 {
		return nil
	}
	conn, err := c.dialer.Dial("tcp", c.brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	cc, err := c.dialer.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return err
	}
	defer cc.Close()
	return cc.CreateTopics(configs...)
}
