package resource

import (
	"context"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"media-pipeline-service/pkg/assert"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/logger"
	"media-pipeline-service/pkg/manager"
	"media-pipeline-service/pkg/redisclient"
)

var (
	redisResourceOnce sync.Once
	redisSingleton    *RedisResource
)

// RedisResource 配额账本使用的 Redis 连接，quota.store 不是 redis 时不连接
type RedisResource struct {
	client *redisclient.Client
}

// DefaultRedisResource 获取 Redis 资源单例
func DefaultRedisResource() *RedisResource {
	assert.NotCircular()
	redisResourceOnce.Do(func() {
		redisSingleton = &RedisResource{}
	})
	assert.NotNil(redisSingleton)
	return redisSingleton
}

func (r *RedisResource) MustOpen() {
	if r.client != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before RedisResource")
	}
	if !strings.EqualFold(cfg.Quota.Store, "redis") {
		logger.Debugf("Quota store is %s, redis not opened", cfg.Quota.Store)
		return
	}

	client, err := redisclient.New(cfg.Redis)
	if err != nil {
		panic("failed to connect quota redis: " + err.Error())
	}
	r.client = client
	logger.Infof("Quota redis connected addr=%s db=%d retention=%s", cfg.Redis.GetRedisAddr(), cfg.Redis.DB, cfg.Quota.Retention)
}

// Ping 未启用时视为可用
func (r *RedisResource) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Raw().Ping(ctx).Err()
}

func (r *RedisResource) Close() {
	if r.client != nil {
		_ = r.client.Close()
	}
}

// Client go-redis 原生客户端，未启用时为 nil
func (r *RedisResource) Client() *redis.Client {
	if r.client == nil {
		return nil
	}
	return r.client.Raw()
}

// Wrapped 带计数方法的客户端，未启用时为 nil
func (r *RedisResource) Wrapped() *redisclient.Client {
	return r.client
}

type RedisResourcePlugin struct{}

func (p *RedisResourcePlugin) Name() string {
	return "redis"
}

func (p *RedisResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultRedisResource()
}
