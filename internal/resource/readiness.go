package resource

import (
	"context"
	"sort"
	"sync"
)

// Pinger 可探活的资源
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessReport 依赖探活结果
type ReadinessReport struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// DefaultPingers 就绪检查覆盖的资源：作业库、配额 Redis、产物桶
func DefaultPingers() map[string]Pinger {
	return map[string]Pinger{
		"database": DefaultDatabaseResource(),
		"redis":    DefaultRedisResource(),
		"storage":  DefaultMinioResource(),
	}
}

// CheckReadiness 并发探活，任一失败即未就绪
func CheckReadiness(ctx context.Context, pingers map[string]Pinger) ReadinessReport {
	names := make([]string, 0, len(pingers))
	for name := range pingers {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]error, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, p Pinger) {
			defer wg.Done()
			results[i] = p.Ping(ctx)
		}(i, pingers[name])
	}
	wg.Wait()

	report := ReadinessReport{Ready: true, Checks: make(map[string]string, len(names))}
	for i, name := range names {
		if results[i] != nil {
			report.Ready = false
			report.Checks[name] = results[i].Error()
			continue
		}
		report.Checks[name] = "ok"
	}
	return report
}
