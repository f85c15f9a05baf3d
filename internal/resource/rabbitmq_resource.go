package resource

import (
	"fmt"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"media-pipeline-service/pkg/assert"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
	"media-pipeline-service/pkg/manager"
)

var (
	rabbitMQResourceOnce      sync.Once
	singletonRabbitMQResource *RabbitMQResource
)

// RabbitMQResource 派发队列使用的 AMQP 连接
type RabbitMQResource struct {
	conn *amqp.Connection
}

// DefaultRabbitMQResource 获取 RabbitMQ 资源单例
func DefaultRabbitMQResource() *RabbitMQResource {
	assert.NotCircular()
	rabbitMQResourceOnce.Do(func() {
		singletonRabbitMQResource = &RabbitMQResource{}
	})
	assert.NotNil(singletonRabbitMQResource)
	return singletonRabbitMQResource
}

// MustOpen queue.backend=rabbitmq 时建立连接
func (r *RabbitMQResource) MustOpen() {
	if r.conn != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before RabbitMQResource")
	}
	if strings.ToLower(cfg.Queue.Backend) != "rabbitmq" {
		return
	}
	if cfg.RabbitMQ.URL == "" {
		panic("rabbitmq url is required when queue.backend=rabbitmq")
	}
	conn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		panic(fmt.Sprintf("failed to connect rabbitmq: %v", err))
	}
	r.conn = conn
	logger.Infof("RabbitMQ resource initialized exchange=%s queue=%s", cfg.RabbitMQ.Exchange, cfg.RabbitMQ.Queue)
}

// Connection 返回连接，未启用时为 nil
func (r *RabbitMQResource) Connection() *amqp.Connection {
	return r.conn
}

func (r *RabbitMQResource) Close() {
	if r.conn != nil && !r.conn.IsClosed() {
		_ = r.conn.Close()
	}
}

// RabbitMQResourcePlugin RabbitMQ 资源插件
type RabbitMQResourcePlugin struct{}

func (p *RabbitMQResourcePlugin) Name() string {
	return "rabbitmq"
}

func (p *RabbitMQResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultRabbitMQResource()
}
