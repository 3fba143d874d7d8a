package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/pokelab/internal/logging"
)

// ErrJobNotFound is returned for unknown or expired job IDs.
var ErrJobNotFound = errors.New("job not found")

// progressBuffer is the per-subscriber channel capacity.
const progressBuffer = 10

// activeJob tracks one background fetch or import.
type activeJob struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	progress  JobProgress
	result    *JobResult
	listeners []chan JobProgress
}

func newJob(id string, kind JobKind, fileName string, cancel context.CancelFunc) *activeJob {
	return &activeJob{
		id:     id,
		cancel: cancel,
		done:   make(chan struct{}),
		progress: JobProgress{
			JobID:    id,
			Kind:     kind,
			Phase:    PhaseStarting,
			FileName: fileName,
		},
	}
}

// update applies fn to the progress and broadcasts the new state. Slow
// listeners miss intermediate updates.
func (j *activeJob) update(fn func(*JobProgress)) {
	j.mu.Lock()
	defer j.mu.Unlock()

	fn(&j.progress)
	for _, ch := range j.listeners {
		select {
		case ch <- j.progress:
		default:
		}
	}
}

// finish records the result, delivers the terminal progress to every
// listener and closes them.
func (j *activeJob) finish(result *JobResult, phase JobPhase) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.result = result
	j.progress.Phase = phase
	j.progress.Error = result.Error
	j.progress.Code = result.Code

	for _, ch := range j.listeners {
		sendLatest(ch, j.progress)
		close(ch)
	}
	j.listeners = nil
	close(j.done)
}

// sendLatest delivers p, evicting the oldest buffered update if needed so
// the terminal state is never lost.
func sendLatest(ch chan JobProgress, p JobProgress) {
	select {
	case ch <- p:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- p:
	default:
	}
}

// subscribe returns a channel that receives the current progress
// immediately, then every update, and is closed when the job ends.
func (j *activeJob) subscribe() <-chan JobProgress {
	j.mu.Lock()
	defer j.mu.Unlock()

	ch := make(chan JobProgress, progressBuffer)
	ch <- j.progress
	if j.result != nil {
		close(ch)
		return ch
	}
	j.listeners = append(j.listeners, ch)
	return ch
}

func (j *activeJob) snapshot() (JobProgress, *JobResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress, j.result
}

// jobFunc does the work of a job and reports its outcome.
type jobFunc func(ctx context.Context, job *activeJob) (*JobResult, error)

// startJob takes the limiter slot, registers the job and runs fn in the
// background. The slot is released before listeners see the terminal
// phase so a follow-up job can start as soon as the previous one reports.
func (s *Service) startJob(ctx context.Context, kind JobKind, fileName string, fn jobFunc) (string, error) {
	if err := s.limiter.TryAcquire(); err != nil {
		return "", err
	}

	id := uuid.New().String()
	logger := logging.With(ctx, s.logger).With("job_id", id, "kind", kind)

	// The job outlives the request that started it.
	jobCtx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	job := newJob(id, kind, fileName, cancel)

	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	logger.Info("job started", "file", fileName)

	go func() {
		var (
			result *JobResult
			err    error
		)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in job", "panic", r)
				err = fmt.Errorf("internal error: %v", r)
				result = &JobResult{JobID: id, Kind: kind, FileName: fileName}
				s.store.SetBusy(false)
			}
			cancel()

			phase := PhaseComplete
			switch {
			case errors.Is(err, context.Canceled):
				phase = PhaseCancelled
			case err != nil:
				phase = PhaseFailed
			}
			if err != nil {
				msg := MapError(err)
				result.Error = FormatUserError(err)
				result.Code = msg.Code
			}

			s.metrics.RecordJob(string(kind), string(phase))
			logger.Info("job finished",
				"phase", phase,
				"records", result.Records,
				"duration_ms", result.Duration.Milliseconds(),
			)

			s.limiter.Release()
			job.finish(result, phase)
			s.cleanup(id, s.jobRetention)
		}()

		result, err = fn(jobCtx, job)
		if result == nil {
			result = &JobResult{JobID: id, Kind: kind, FileName: fileName}
		}
	}()

	return id, nil
}

// job looks up a tracked job.
func (s *Service) job(id string) (*activeJob, error) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, nil
}

// SubscribeProgress returns a channel of progress updates for a job. The
// current state is sent immediately; the channel closes when the job ends.
func (s *Service) SubscribeProgress(jobID string) (<-chan JobProgress, error) {
	job, err := s.job(jobID)
	if err != nil {
		return nil, err
	}
	return job.subscribe(), nil
}

// CancelJob cancels a running job. Cancelling a finished job is a no-op.
func (s *Service) CancelJob(jobID string) error {
	job, err := s.job(jobID)
	if err != nil {
		return err
	}
	job.cancel()
	return nil
}

// JobStatus returns the current progress and, once finished, the result.
func (s *Service) JobStatus(jobID string) (JobProgress, *JobResult, error) {
	job, err := s.job(jobID)
	if err != nil {
		return JobProgress{}, nil, err
	}
	p, r := job.snapshot()
	return p, r, nil
}

// WaitJob blocks until the job finishes or ctx is done.
func (s *Service) WaitJob(ctx context.Context, jobID string) (*JobResult, error) {
	job, err := s.job(jobID)
	if err != nil {
		return nil, err
	}
	select {
	case <-job.done:
		_, r := job.snapshot()
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ActiveJobs returns the progress of every job that has not finished.
func (s *Service) ActiveJobs() []JobProgress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []JobProgress
	for _, job := range s.jobs {
		if p, r := job.snapshot(); r == nil {
			active = append(active, p)
		}
	}
	return active
}

// cleanup forgets a finished job after delay.
func (s *Service) cleanup(jobID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.jobs, jobID)
		s.mu.Unlock()
	})
}
