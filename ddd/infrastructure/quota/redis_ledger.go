package quota

import (
	"context"
	"fmt"
	"time"

	"media-pipeline-service/ddd/domain/repo"
	"media-pipeline-service/pkg/redisclient"
)

// redisLedger 计数键 quota:<day>:<identity>，字节数键加 :bytes 后缀，过期时间覆盖保留期
type redisLedger struct {
	client    *redisclient.Client
	retention time.Duration
}

// NewRedisLedger 创建 Redis 配额账本
func NewRedisLedger(client *redisclient.Client, retention time.Duration) repo.QuotaLedger {
	if retention <= 0 {
		retention = 48 * time.Hour
	}
	return &redisLedger{client: client, retention: retention}
}

func (l *redisLedger) Peek(ctx context.Context, identityKey, day string) (int64, error) {
	return l.client.GetInt64(ctx, ledgerKey(identityKey, day))
}

func (l *redisLedger) PeekBytes(ctx context.Context, identityKey, day string) (int64, error) {
	return l.client.GetInt64(ctx, bytesKey(identityKey, day))
}

func (l *redisLedger) Increment(ctx context.Context, identityKey, day string, bytes int64) (int64, error) {
	if bytes < 0 {
		bytes = 0
	}
	vals, err := l.client.IncrWithTTL(ctx, l.retention,
		[]string{ledgerKey(identityKey, day), bytesKey(identityKey, day)},
		[]int64{1, bytes})
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

func ledgerKey(identityKey, day string) string {
	return fmt.Sprintf("quota:%s:%s", day, identityKey)
}

func bytesKey(identityKey, day string) string {
	return ledgerKey(identityKey, day) + ":bytes"
}
