package quota

import (
	"context"
	"sync"

	"media-pipeline-service/ddd/domain/repo"
)

type usage struct {
	ops   int64
	bytes int64
}

type memoryLedger struct {
	mu     sync.Mutex
	counts map[string]usage
}

// NewMemoryLedger 进程内账本，重启即清零
func NewMemoryLedger() repo.QuotaLedger {
	return &memoryLedger{counts: make(map[string]usage)}
}

func (l *memoryLedger) Peek(_ context.Context, identityKey, day string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[ledgerKey(identityKey, day)].ops, nil
}

func (l *memoryLedger) PeekBytes(_ context.Context, identityKey, day string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[ledgerKey(identityKey, day)].bytes, nil
}

func (l *memoryLedger) Increment(_ context.Context, identityKey, day string, bytes int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := ledgerKey(identityKey, day)
	u := l.counts[k]
	u.ops++
	if bytes > 0 {
		u.bytes += bytes
	}
	l.counts[k] = u
	return u.ops, nil
}
