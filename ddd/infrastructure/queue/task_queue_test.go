package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestMemoryJobQueueFIFO verifies order and metrics.
func TestMemoryJobQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryJobQueue(2)
	if err := q.Enqueue(ctx, "a"); err != nil {
		t.Fatalf("Enqueue(a) error = %v", err)
	}
	_ = q.Enqueue(ctx, "b")
	if err := q.Enqueue(ctx, "c"); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue(c) error = %v, want ErrQueueFull", err)
	}
	if err := q.Enqueue(ctx, ""); err == nil {
		t.Fatalf("Enqueue(\"\") succeeded")
	}
	if q.Size() != 2 {
		t.Fatalf("Size = %d, want 2", q.Size())
	}
	for _, want := range []string{"a", "b"} {
		got, err := q.Dequeue(ctx)
		if err != nil || got != want {
			t.Fatalf("Dequeue = %q, %v, want %q", got, err, want)
		}
	}
	m := q.GetMetrics()
	if m.EnqueueCount != 2 || m.DequeueCount != 2 || m.RejectCount != 1 || m.MaxSize != 2 {
		t.Fatalf("metrics = %+v", m)
	}
}

// TestMemoryJobQueueClose verifies blocked consumers are released on close.
func TestMemoryJobQueueClose(t *testing.T) {
	q := NewMemoryJobQueue(1)
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errCh <- err
	}()
	time.Sleep(10 * time.Millisecond)
	_ = q.Close()
	_ = q.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("Dequeue error = %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Dequeue still blocked after Close")
	}
	if err := q.Enqueue(context.Background(), "x"); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Enqueue after Close error = %v", err)
	}
}

// TestMemoryJobQueueContext verifies Dequeue honours cancellation.
func TestMemoryJobQueueContext(t *testing.T) {
	q := NewMemoryJobQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Dequeue error = %v, want deadline exceeded", err)
	}
}

// TestMemoryJobQueueMetricsSnapshot verifies GetMetrics returns a detached copy with the live size.
func TestMemoryJobQueueMetricsSnapshot(t *testing.T) {
	q := NewMemoryJobQueue(3)
	ctx := context.Background()
	if err := q.Enqueue(ctx, "a"); err != nil {
		t.Fatalf("Enqueue error = %v", err)
	}
	before := q.GetMetrics()
	if before.CurrentSize != 1 || before.EnqueueCount != 1 {
		t.Fatalf("metrics = %+v, want size 1 enqueued 1", before)
	}
	if err := q.Enqueue(ctx, "b"); err != nil {
		t.Fatalf("Enqueue error = %v", err)
	}
	if before.CurrentSize != 1 || before.EnqueueCount != 1 {
		t.Fatalf("snapshot changed after enqueue: %+v", before)
	}
	after := q.GetMetrics()
	if after.CurrentSize != 2 || after.EnqueueCount != 2 || after.MaxSize != 3 {
		t.Fatalf("metrics = %+v, want size 2 enqueued 2 max 3", after)
	}
}
