package core

// limiter.go guards the store against overlapping fetch and import jobs.
//
// Both jobs end by replacing the whole collection, so two of them running
// at once would race for the final write. The limiter is a semaphore with
// a fixed number of slots (one for the service) and a second start is
// rejected immediately with ErrBusy rather than queued.
//
// WaitForDrain lets shutdown block until the running job finishes.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when a fetch or import is started while another one
// is still running.
var ErrBusy = errors.New("busy: another fetch or import is in progress")

// JobLimiter bounds the number of jobs that may run at once.
type JobLimiter struct {
	slots chan struct{}

	mu     sync.RWMutex
	active int
}

// NewJobLimiter creates a limiter with max slots. max <= 0 means one.
func NewJobLimiter(max int) *JobLimiter {
	if max <= 0 {
		max = 1
	}
	return &JobLimiter{slots: make(chan struct{}, max)}
}

// TryAcquire takes a slot without blocking. It returns ErrBusy when none
// is free. Every successful call must be paired with Release.
func (l *JobLimiter) TryAcquire() error {
	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	default:
		return ErrBusy
	}
}

// Release frees a slot taken by TryAcquire.
func (l *JobLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.slots
}

// ActiveCount returns the number of running jobs.
func (l *JobLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no job is running or ctx is done.
func (l *JobLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a snapshot of the limiter for the state endpoint.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state.
func (l *JobLimiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
