package task

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"media-pipeline-service/pkg/logger"
)

// BackgroundTask represents a long-running background process (worker pool, consumer, recovery loop).
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

type manager struct {
	tasks   []BackgroundTask
	started []BackgroundTask
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
}

var defaultManager = &manager{}

// Register adds a background task; tasks registered after StartAll start immediately.
func Register(task BackgroundTask) {
	if task == nil {
		return
	}
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	defaultManager.tasks = append(defaultManager.tasks, task)
	if defaultManager.ctx != nil {
		defaultManager.startLocked(task)
	}
}

// StartAll starts all registered tasks once. A task that fails to start is logged and skipped.
func StartAll(ctx context.Context) error {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	if defaultManager.ctx != nil {
		return nil
	}
	defaultManager.ctx, defaultManager.cancel = context.WithCancel(ctx)
	var errs []error
	for _, t := range defaultManager.tasks {
		if err := defaultManager.startLocked(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *manager) startLocked(t BackgroundTask) error {
	if err := t.Start(m.ctx); err != nil {
		logger.Errorf("Background task start failed name=%s error=%v", t.Name(), err)
		return fmt.Errorf("start %s: %w", t.Name(), err)
	}
	m.started = append(m.started, t)
	logger.Infof("Background task started name=%s", t.Name())
	return nil
}

// StopAll stops running tasks in reverse start order.
func StopAll() {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	if defaultManager.cancel != nil {
		defaultManager.cancel()
	}
	for i := len(defaultManager.started) - 1; i >= 0; i-- {
		t := defaultManager.started[i]
		if err := t.Stop(); err != nil {
			logger.Warnf("Background task stop failed name=%s error=%v", t.Name(), err)
		}
	}
	defaultManager.started = nil
	defaultManager.ctx = nil
	defaultManager.cancel = nil
}
