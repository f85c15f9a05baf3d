package repo

import "context"

// QuotaLedger 按身份与日期计数的配额账本
type QuotaLedger interface {
	// Peek 读取当日计数，不存在时为 0
	Peek(ctx context.Context, identityKey, day string) (int64, error)
	// PeekBytes 读取当日产物累计字节数
	PeekBytes(ctx context.Context, identityKey, day string) (int64, error)
	// Increment 原子地计数加一并累加产物字节数，返回新的计数，并发调用结果可累加
	Increment(ctx context.Context, identityKey, day string, bytes int64) (int64, error)
}
