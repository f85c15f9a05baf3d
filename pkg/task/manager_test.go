package task

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
)

type recordingTask struct {
	name     string
	startErr error
	log      *[]string
	mu       *sync.Mutex
}

func (t *recordingTask) Name() string { return t.name }

func (t *recordingTask) Start(ctx context.Context) error {
	if t.startErr != nil {
		return t.startErr
	}
	t.record("start " + t.name)
	return nil
}

func (t *recordingTask) Stop() error {
	t.record("stop " + t.name)
	return nil
}

func (t *recordingTask) record(s string) {
	t.mu.Lock()
	*t.log = append(*t.log, s)
	t.mu.Unlock()
}

// TestStartStopOrder verifies tasks start in registration order, stop in reverse, and failed starts are skipped.
func TestStartStopOrder(t *testing.T) {
	defaultManager = &manager{}
	var (
		log []string
		mu  sync.Mutex
	)
	Register(&recordingTask{name: "workers", log: &log, mu: &mu})
	Register(&recordingTask{name: "broken", startErr: errors.New("no broker"), log: &log, mu: &mu})
	Register(nil)

	if err := StartAll(context.Background()); err == nil {
		t.Fatalf("StartAll error = nil, want broken start error")
	}
	if err := StartAll(context.Background()); err != nil {
		t.Fatalf("second StartAll error = %v, want nil", err)
	}
	// 启动之后注册的任务立即启动
	Register(&recordingTask{name: "consumer", log: &log, mu: &mu})
	StopAll()

	want := []string{"start workers", "start consumer", "stop consumer", "stop workers"}
	if !reflect.DeepEqual(log, want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
}
