// Package pool bounds concurrent execution of analysis jobs. A fixed number
// of workers pull from an unbounded FIFO queue; each job gets a hard
// execution deadline measured from the moment a worker picks it up, not from
// submission. Callers submit a job and block on the returned Handle until
// exactly one outcome is produced.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kmatsuda/textlens/pkg/models"
)

const (
	// DefaultWorkers is the number of concurrent execution slots.
	DefaultWorkers = 5
	// DefaultTimeout is the per-job execution deadline.
	DefaultTimeout = 3 * time.Minute
)

var (
	// ErrTimeout marks a job whose execution exceeded the deadline.
	ErrTimeout = errors.New("job execution deadline exceeded")
	// ErrPoolClosed marks jobs unresolved when the pool shut down.
	ErrPoolClosed = errors.New("worker pool shut down")
)

// Job outcome statuses. Terminal states are final; there are no retries.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusTimedOut  = "timed_out"
)

// Kind selects which analyzer operation a job invokes.
type Kind string

const (
	KindProcess       Kind = "process"
	KindWordFrequency Kind = "word_frequency"
)

// Job is one unit of analysis work. The payload fields are read-only once
// submitted; the pool exclusively owns state from then on.
type Job struct {
	ID          uuid.UUID
	Kind        Kind
	Analysis    models.AnalysisRequest
	Frequency   models.FrequencyRequest
	SubmittedAt time.Time
}

// Outcome is the single terminal result of a job.
type Outcome struct {
	Status string
	Result models.AnalysisResult // set on completed process jobs
	Words  []models.WordCount    // set on completed word-frequency jobs
	Err    error                 // set on failed and timed-out jobs
}

// Handle resolves to a job's outcome. Intermediate queued/running states are
// pool bookkeeping and are not observable through it.
type Handle struct {
	done    chan struct{}
	outcome Outcome
}

// Wait blocks until the job resolves or ctx is cancelled. A ctx error means
// the caller gave up waiting; the job itself still runs to an outcome.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		return h.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

type task struct {
	job    Job
	handle *Handle
}

// resolve publishes the outcome. Each task has exactly one owner at any
// stage (dispatcher while queued, one worker while running), so this runs
// at most once per task.
func (t *task) resolve(o Outcome) {
	t.handle.outcome = o
	close(t.handle.done)
}

// Pool is the admission controller: K workers, an unbounded FIFO queue, and
// a per-job execution deadline.
type Pool struct {
	analyzer models.Analyzer
	workers  int
	timeout  time.Duration

	submit   chan *task
	dispatch chan *task
	stopped  chan struct{}
}

// New creates a Pool. Start must be called before Submit.
func New(analyzer models.Analyzer, workers int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pool{
		analyzer: analyzer,
		workers:  workers,
		timeout:  timeout,
		submit:   make(chan *task),
		dispatch: make(chan *task),
		stopped:  make(chan struct{}),
	}
}

// Start launches the dispatcher and worker goroutines. The pool runs until
// ctx is cancelled; jobs still queued or submitted afterwards resolve as
// failed with ErrPoolClosed.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		go p.worker(ctx)
	}
	go p.dispatcher(ctx)
	slog.Info("worker pool started", "workers", p.workers, "job_timeout", p.timeout.String())
}

// Submit enqueues a job and returns a Handle that resolves to its outcome.
// Admission itself never blocks on slot availability.
func (p *Pool) Submit(job Job) *Handle {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now().UTC()
	}
	t := &task{job: job, handle: &Handle{done: make(chan struct{})}}
	select {
	case p.submit <- t:
	case <-p.stopped:
		t.resolve(Outcome{Status: StatusFailed, Err: ErrPoolClosed})
	}
	return t.handle
}

// dispatcher owns the wait queue. It is the single synchronization domain
// for queue and slot bookkeeping: jobs are appended on submission and handed
// to workers strictly in arrival order as slots free up.
func (p *Pool) dispatcher(ctx context.Context) {
	defer close(p.stopped)

	var queue []*task
	for {
		var ready chan *task
		var next *task
		if len(queue) > 0 {
			ready = p.dispatch
			next = queue[0]
		}
		select {
		case <-ctx.Done():
			for _, t := range queue {
				t.resolve(Outcome{Status: StatusFailed, Err: ErrPoolClosed})
			}
			return
		case t := <-p.submit:
			queue = append(queue, t)
		case ready <- next:
			queue = queue[1:]
		}
	}
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-p.dispatch:
			p.run(ctx, t)
		}
	}
}

// run executes one job under the deadline. The analyzer call happens in a
// child goroutine with a buffered reply channel so an overrunning call can
// finish after abandonment without blocking; its late reply is discarded.
func (p *Pool) run(ctx context.Context, t *task) {
	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type reply struct {
		result models.AnalysisResult
		words  []models.WordCount
		err    error
	}
	replies := make(chan reply, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				replies <- reply{err: fmt.Errorf("analyzer panic: %v", r)}
			}
		}()
		switch t.job.Kind {
		case KindWordFrequency:
			words, err := p.analyzer.WordFrequency(jobCtx, t.job.Frequency)
			replies <- reply{words: words, err: err}
		default:
			result, err := p.analyzer.Process(jobCtx, t.job.Analysis)
			replies <- reply{result: result, err: err}
		}
	}()

	select {
	case r := <-replies:
		if r.err != nil {
			t.resolve(p.failureOutcome(ctx, jobCtx, r.err, t.job.ID))
			return
		}
		t.resolve(Outcome{Status: StatusCompleted, Result: r.result, Words: r.words})
	case <-jobCtx.Done():
		t.resolve(p.failureOutcome(ctx, jobCtx, jobCtx.Err(), t.job.ID))
	}
}

// failureOutcome classifies a terminal error: deadline expiry is a timeout,
// pool shutdown is a closed-pool failure, anything else an engine failure.
func (p *Pool) failureOutcome(ctx, jobCtx context.Context, err error, jobID uuid.UUID) Outcome {
	if ctx.Err() != nil {
		return Outcome{Status: StatusFailed, Err: ErrPoolClosed}
	}
	if errors.Is(err, context.DeadlineExceeded) || jobCtx.Err() != nil {
		slog.Warn("job timed out", "job_id", jobID, "timeout", p.timeout.String())
		return Outcome{Status: StatusTimedOut, Err: ErrTimeout}
	}
	return Outcome{Status: StatusFailed, Err: err}
}
