package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"interview-evaluator/domain"
)

// EvaluationJob asks for the recording of one interview to be evaluated.
// The interview id doubles as the recording reference and the idempotency key.
type EvaluationJob struct {
	InterviewID string    `json:"interview_id"`
	SubjectID   string    `json:"subject_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// Dispatcher schedules an evaluation job without blocking the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, job EvaluationJob) error
}

// JobProcessor runs one evaluation job to its outcome. Evaluation failures are
// recorded on the session; an error means the outcome could not be recorded
// (store unavailable) and the job should be tried again or failed by the caller.
type JobProcessor interface {
	Process(ctx context.Context, job EvaluationJob) error
}

// AsyncDispatcher runs each job in a detached goroutine of the current process.
// Jobs in flight are lost if the process dies; use the RabbitMQ dispatcher for durability.
type AsyncDispatcher struct {
	processor JobProcessor
	timeout   time.Duration
	logger    *zap.Logger

	wg sync.WaitGroup
}

// NewAsyncDispatcher creates an in-process dispatcher. timeout bounds each job.
func NewAsyncDispatcher(processor JobProcessor, timeout time.Duration, logger *zap.Logger) *AsyncDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncDispatcher{processor: processor, timeout: timeout, logger: logger}
}

// Dispatch starts the job and returns immediately. The caller's context is not
// inherited: the job must outlive the request that scheduled it.
func (d *AsyncDispatcher) Dispatch(_ context.Context, job EvaluationJob) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx := context.Background()
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}

		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("evaluation job panicked", zap.String("interview_id", job.InterviewID), zap.Any("panic", r))
				d.fail(job, fmt.Errorf("%w: panic: %v", domain.ErrInternal, r))
			}
		}()

		// There is no queue to hand the job back to, so an unrecoverable job fails the session.
		if err := d.processor.Process(ctx, job); err != nil {
			d.logger.Error("evaluation job failed", zap.String("interview_id", job.InterviewID), zap.Error(err))
			d.fail(job, fmt.Errorf("%w: %v", domain.ErrInternal, err))
		}
	}()

	d.logger.Debug("evaluation job dispatched", zap.String("interview_id", job.InterviewID))
	return nil
}

// Wait blocks until all dispatched jobs finish or ctx is done.
func (d *AsyncDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *AsyncDispatcher) fail(job EvaluationJob, err error) {
	recorder, ok := d.processor.(FailureRecorder)
	if !ok {
		return
	}
	if rerr := recorder.RecordFailure(context.Background(), job, err); rerr != nil {
		d.logger.Error("record evaluation failure", zap.String("interview_id", job.InterviewID), zap.Error(rerr))
	}
}

// FailureRecorder is implemented by processors that can turn a job which never
// reached an outcome (panic, store outage) into a failed session.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, job EvaluationJob, err error) error
}
