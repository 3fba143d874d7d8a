package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestJobLimiter_TryAcquireRelease(t *testing.T) {
	limiter := NewJobLimiter(1)

	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("initial ActiveCount = %d, want 0", got)
	}

	if err := limiter.TryAcquire(); err != nil {
		t.Fatalf("first TryAcquire failed: %v", err)
	}
	if got := limiter.Status(); got.Active != 1 || got.Available != 0 || got.MaxConcurrent != 1 {
		t.Errorf("Status after acquire = %+v", got)
	}

	// A second start is rejected immediately, not queued.
	start := time.Now()
	if err := limiter.TryAcquire(); err != ErrBusy {
		t.Errorf("second TryAcquire = %v, want ErrBusy", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("TryAcquire blocked for %v", elapsed)
	}

	limiter.Release()

	if got := limiter.ActiveCount(); got != 0 {
		t.Errorf("after Release, ActiveCount = %d, want 0", got)
	}
	if err := limiter.TryAcquire(); err != nil {
		t.Errorf("TryAcquire after Release failed: %v", err)
	}
	limiter.Release()
}

func TestJobLimiter_DefaultsToOneSlot(t *testing.T) {
	limiter := NewJobLimiter(0)
	if got := limiter.Status().MaxConcurrent; got != 1 {
		t.Errorf("MaxConcurrent = %d, want 1", got)
	}
}

func TestJobLimiter_ConcurrentStartsAdmitOne(t *testing.T) {
	limiter := NewJobLimiter(1)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.TryAcquire() == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("admitted = %d, want 1", admitted)
	}
}

func TestJobLimiter_WaitForDrain(t *testing.T) {
	limiter := NewJobLimiter(1)
	if err := limiter.TryAcquire(); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := limiter.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain = %v, want nil", err)
	}
}

func TestJobLimiter_WaitForDrainTimeout(t *testing.T) {
	limiter := NewJobLimiter(1)
	if err := limiter.TryAcquire(); err != nil {
		t.Fatal(err)
	}
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := limiter.WaitForDrain(ctx); err != context.DeadlineExceeded {
		t.Errorf("WaitForDrain = %v, want context.DeadlineExceeded", err)
	}
}
