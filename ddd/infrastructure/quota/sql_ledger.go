package quota

import (
	"context"

	"media-pipeline-service/ddd/infrastructure/database/dao"
)

// SQLLedger 基于 quota_usages 表的账本
type SQLLedger struct {
	usageDao *dao.QuotaUsageDAO
}

// NewSQLLedger 创建 SQL 配额账本
func NewSQLLedger(usageDao *dao.QuotaUsageDAO) *SQLLedger {
	return &SQLLedger{usageDao: usageDao}
}

func (l *SQLLedger) Peek(ctx context.Context, identityKey, day string) (int64, error) {
	return l.usageDao.Count(ctx, identityKey, day)
}

func (l *SQLLedger) PeekBytes(ctx context.Context, identityKey, day string) (int64, error) {
	row, err := l.usageDao.Find(ctx, identityKey, day)
	if err != nil || row == nil {
		return 0, err
	}
	return row.BytesProcessed, nil
}

func (l *SQLLedger) Increment(ctx context.Context, identityKey, day string, bytes int64) (int64, error) {
	if bytes < 0 {
		bytes = 0
	}
	return l.usageDao.Increment(ctx, identityKey, day, bytes)
}

// Purge 清理 day 之前的记录
func (l *SQLLedger) Purge(ctx context.Context, day string) (int64, error) {
	return l.usageDao.PurgeBefore(ctx, day)
}
