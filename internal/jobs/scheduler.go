// Package jobs runs simulations asynchronously with bounded concurrency.
// Submission is non-blocking: a job gets an ID immediately and moves through
// pending → running → completed/failed/cancelled. Pending jobs cancel
// immediately; running jobs cancel cooperatively between bars.
package jobs

import (
	"context"
	"errors"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/simulation"
)

// State is the lifecycle state of a job.
type State string

// Job states.
const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Scheduler errors.
var (
	ErrJobNotFound  = errors.New("job not found")
	ErrShuttingDown = errors.New("scheduler is shutting down")
)

// Status is a point-in-time snapshot of a job.
type Status struct {
	ID          string            `json:"id"`
	State       State             `json:"state"`
	Progress    float64           `json:"progress"` // 0..1, best effort
	Symbol      string            `json:"symbol"`
	SubmittedAt time.Time         `json:"submitted_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
	Error       string            `json:"error,omitempty"`
	Result      *domain.RunResult `json:"result,omitempty"`
}

// CompletionFunc is invoked after a job reaches a terminal state.
type CompletionFunc func(status Status)

// job is the scheduler-internal record for one submission.
type job struct {
	id       string
	input    *simulation.Input
	cancel   context.CancelFunc
	onDone   CompletionFunc
	status   Status
	statusMu sync.RWMutex
}

func (j *job) snapshot() Status {
	j.statusMu.RLock()
	defer j.statusMu.RUnlock()
	return j.status
}

func (j *job) update(fn func(*Status)) {
	j.statusMu.Lock()
	fn(&j.status)
	j.statusMu.Unlock()
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Runner *simulation.Runner // required
	// MaxConcurrent bounds simultaneously running simulations. Zero or
	// negative means 1.
	MaxConcurrent int
	Metrics       *observability.Metrics
	Logger        *log.Logger
}

// Scheduler executes submitted simulations on a bounded pool.
type Scheduler struct {
	runner  *simulation.Runner
	sem     chan struct{}
	metrics *observability.Metrics
	logger  *log.Logger

	mu       sync.RWMutex
	jobs     map[string]*job
	shutdown bool

	wg sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[jobs] ", log.LstdFlags)
	}
	return &Scheduler{
		runner:  opts.Runner,
		sem:     make(chan struct{}, maxConcurrent),
		metrics: opts.Metrics,
		logger:  logger,
		jobs:    make(map[string]*job),
	}
}

// Submit enqueues a simulation and returns its job ID immediately. The
// optional onDone callback fires once, after the job reaches a terminal
// state.
func (s *Scheduler) Submit(input *simulation.Input, onDone CompletionFunc) (string, error) {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return "", ErrShuttingDown
	}

	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:     uuid.NewString(),
		input:  input,
		cancel: cancel,
		onDone: onDone,
	}
	j.status = Status{
		ID:          j.id,
		State:       StatePending,
		Symbol:      input.Symbol,
		SubmittedAt: time.Now().UTC(),
	}
	s.jobs[j.id] = j
	s.wg.Add(1)
	s.mu.Unlock()

	go s.run(ctx, j)

	if s.metrics != nil {
		s.metrics.JobsSubmitted.Inc()
	}
	s.logger.Printf("job submitted id=%s symbol=%s", j.id, input.Symbol)
	return j.id, nil
}

// run waits for a pool slot, executes the job and records the outcome.
func (s *Scheduler) run(ctx context.Context, j *job) {
	defer s.wg.Done()

	// A cancel that lands while the job is queued wins without ever
	// occupying a slot.
	select {
	case <-ctx.Done():
		s.finish(j, StateCancelled, nil, ctx.Err())
		return
	case s.sem <- struct{}{}:
	}
	defer func() { <-s.sem }()

	if ctx.Err() != nil {
		s.finish(j, StateCancelled, nil, ctx.Err())
		return
	}

	now := time.Now().UTC()
	j.update(func(st *Status) {
		st.State = StateRunning
		st.StartedAt = &now
	})
	if s.metrics != nil {
		s.metrics.JobsRunning.Inc()
		defer s.metrics.JobsRunning.Dec()
	}

	input := *j.input
	callerProgress := input.Progress
	input.Progress = func(done, total int) {
		if total > 0 {
			j.update(func(st *Status) {
				st.Progress = float64(done) / float64(total)
			})
		}
		if callerProgress != nil {
			callerProgress(done, total)
		}
	}

	result, err := s.runner.Run(ctx, &input)
	switch {
	case err == nil:
		s.finish(j, StateCompleted, result, nil)
	case errors.Is(err, context.Canceled):
		s.finish(j, StateCancelled, nil, err)
	default:
		s.finish(j, StateFailed, nil, err)
	}
}

func (s *Scheduler) finish(j *job, state State, result *domain.RunResult, err error) {
	now := time.Now().UTC()
	j.update(func(st *Status) {
		st.State = state
		st.FinishedAt = &now
		st.Result = result
		if state == StateCompleted {
			st.Progress = 1
		}
		if err != nil {
			st.Error = err.Error()
		}
	})

	if s.metrics != nil {
		s.metrics.JobsByOutcome.WithLabelValues(string(state)).Inc()
	}
	s.logger.Printf("job finished id=%s state=%s", j.id, state)

	if j.onDone != nil {
		j.onDone(j.snapshot())
	}
}

// Status returns the current snapshot of a job.
func (s *Scheduler) Status(jobID string) (Status, error) {
	s.mu.RLock()
	j, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return Status{}, ErrJobNotFound
	}
	return j.snapshot(), nil
}

// List returns snapshots of all known jobs, newest submission first.
func (s *Scheduler) List() []Status {
	s.mu.RLock()
	statuses := make([]Status, 0, len(s.jobs))
	for _, j := range s.jobs {
		statuses = append(statuses, j.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(statuses, func(i, k int) bool {
		return statuses[i].SubmittedAt.After(statuses[k].SubmittedAt)
	})
	return statuses
}

// Cancel requests cancellation of a job. Pending jobs are cancelled before
// they start; running jobs stop at the next bar boundary. Cancelling a
// terminal job is a no-op.
func (s *Scheduler) Cancel(jobID string) error {
	s.mu.RLock()
	j, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}
	j.cancel()
	return nil
}

// Shutdown stops accepting submissions and waits for in-flight jobs. The
// context bounds the wait; pending and running jobs are cancelled when it
// expires.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.mu.RLock()
		for _, j := range s.jobs {
			j.cancel()
		}
		s.mu.RUnlock()
		<-done
		return ctx.Err()
	}
}
