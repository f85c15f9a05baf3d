package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"media-pipeline-service/ddd/domain/repo"
	"media-pipeline-service/ddd/domain/vo"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/errno"
	"media-pipeline-service/pkg/logger"
)

// DayLayout 配额日期键格式
const DayLayout = "2006-01-02"

// QuotaPolicy 各类身份的每日上限，负数表示不限
type QuotaPolicy struct {
	Location           *time.Location
	GuestLimit         int
	AuthenticatedLimit int
	Plans              map[string]int
}

// NewQuotaPolicy 从配置构建配额策略
func NewQuotaPolicy(cfg config.QuotaConfig) (QuotaPolicy, error) {
	tz := cfg.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return QuotaPolicy{}, fmt.Errorf("load quota timezone %q: %w", tz, err)
	}
	plans := make(map[string]int, len(cfg.Plans))
	for name, limit := range cfg.Plans {
		plans[strings.ToLower(name)] = limit
	}
	return QuotaPolicy{
		Location:           loc,
		GuestLimit:         cfg.GuestDailyLimit,
		AuthenticatedLimit: cfg.AuthenticatedDailyLimit,
		Plans:              plans,
	}, nil
}

// LimitFor 某身份的每日上限
func (p QuotaPolicy) LimitFor(id vo.Identity) int {
	if id.IsGuest() {
		return p.GuestLimit
	}
	if limit, ok := p.Plans[strings.ToLower(id.Plan)]; ok && id.Plan != "" {
		return limit
	}
	return p.AuthenticatedLimit
}

// QuotaService 每日配额服务
type QuotaService interface {
	// Check 读取当日用量，已用完时返回 QuotaExceeded
	Check(ctx context.Context, id vo.Identity) (vo.QuotaState, error)
	// State 读取当日用量
	State(ctx context.Context, id vo.Identity) (vo.QuotaState, error)
	// Consume 在作业成功完成后记一次用量并累加产物字节数，日期按完成时间计算
	Consume(ctx context.Context, id vo.Identity, at time.Time, bytes int64) (int64, error)
	// DayKey 参考时区下的日期键
	DayKey(t time.Time) string
	// UpdatePolicy 热更新上限
	UpdatePolicy(p QuotaPolicy)
}

type quotaServiceImpl struct {
	ledger repo.QuotaLedger
	mu     sync.RWMutex
	policy QuotaPolicy
	now    func() time.Time
}

// NewQuotaService 创建配额服务
func NewQuotaService(ledger repo.QuotaLedger, policy QuotaPolicy) QuotaService {
	return newQuotaService(ledger, policy, time.Now)
}

func newQuotaService(ledger repo.QuotaLedger, policy QuotaPolicy, now func() time.Time) *quotaServiceImpl {
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &quotaServiceImpl{ledger: ledger, policy: policy, now: now}
}

func (s *quotaServiceImpl) Check(ctx context.Context, id vo.Identity) (vo.QuotaState, error) {
	state, err := s.State(ctx, id)
	if err != nil {
		return state, err
	}
	if state.Exhausted() {
		return state, errno.Newf(errno.ErrQuotaExceeded,
			"%s daily limit of %d reached, resets at %s", id.Class, state.Limit, state.ResetsAt.Format(time.RFC3339))
	}
	return state, nil
}

func (s *quotaServiceImpl) State(ctx context.Context, id vo.Identity) (vo.QuotaState, error) {
	policy := s.currentPolicy()
	now := s.now().In(policy.Location)
	day := now.Format(DayLayout)
	state := vo.QuotaState{
		Identity: id,
		Day:      day,
		Limit:    policy.LimitFor(id),
		ResetsAt: nextMidnight(now),
	}
	used, err := s.ledger.Peek(ctx, id.QuotaKey(), day)
	if err != nil {
		return state, errno.NewBizError(errno.ErrDatabase, err)
	}
	state.Used = used
	if bytes, err := s.ledger.PeekBytes(ctx, id.QuotaKey(), day); err == nil {
		state.BytesProcessed = bytes
	} else {
		logger.Warnf("peek quota bytes failed identity=%s day=%s error=%v", id.QuotaKey(), day, err)
	}
	return state, nil
}

func (s *quotaServiceImpl) Consume(ctx context.Context, id vo.Identity, at time.Time, bytes int64) (int64, error) {
	return s.ledger.Increment(ctx, id.QuotaKey(), s.DayKey(at), bytes)
}

func (s *quotaServiceImpl) DayKey(t time.Time) string {
	return t.In(s.currentPolicy().Location).Format(DayLayout)
}

func (s *quotaServiceImpl) UpdatePolicy(p QuotaPolicy) {
	if p.Location == nil {
		p.Location = time.UTC
	}
	s.mu.Lock()
	s.policy = p
	s.mu.Unlock()
}

func (s *quotaServiceImpl) currentPolicy() QuotaPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
