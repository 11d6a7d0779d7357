package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"interview-evaluator/domain"
)

// OutcomeRecorder receives evaluation outcomes. Implemented by StateMachine.
type OutcomeRecorder interface {
	Get(ctx context.Context, id string) (*domain.InterviewSession, error)
	RecordOutcome(ctx context.Context, id string, result *domain.EvaluationResult, evalErr error) error
}

// RetryPolicy bounds evaluation retries for transient provider failures.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// EvaluationWorker loads the recording of a completed interview, evaluates it and
// reports the outcome back to the state machine. It never writes sessions itself.
type EvaluationWorker struct {
	outcomes   OutcomeRecorder
	recordings domain.RecordingRepository
	evaluator  domain.Evaluator
	retry      RetryPolicy
	logger     *zap.Logger

	newBackOff func() backoff.BackOff
}

func NewEvaluationWorker(
	outcomes OutcomeRecorder,
	recordings domain.RecordingRepository,
	evaluator domain.Evaluator,
	retry RetryPolicy,
	logger *zap.Logger,
) *EvaluationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	w := &EvaluationWorker{
		outcomes:   outcomes,
		recordings: recordings,
		evaluator:  evaluator,
		retry:      retry,
		logger:     logger,
	}
	w.newBackOff = w.exponentialBackOff
	return w
}

func (w *EvaluationWorker) exponentialBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if w.retry.InitialInterval > 0 {
		b.InitialInterval = w.retry.InitialInterval
	}
	if w.retry.MaxInterval > 0 {
		b.MaxInterval = w.retry.MaxInterval
	}
	b.MaxElapsedTime = 0
	return b
}

// Process evaluates one job. Evaluation errors end up in the session. The
// returned error reports store failures that left the session unresolved.
func (w *EvaluationWorker) Process(ctx context.Context, job EvaluationJob) error {
	log := w.logger.With(zap.String("interview_id", job.InterviewID), zap.String("subject_id", job.SubjectID))

	session, err := w.outcomes.Get(ctx, job.InterviewID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
			log.Warn("dropping evaluation job for unknown interview", zap.Error(err))
			return nil
		}
		return fmt.Errorf("load interview for evaluation: %w", err)
	}
	if session.Status != domain.StatusProcessing {
		log.Info("skipping evaluation, interview not processing", zap.String("status", string(session.Status)))
		return nil
	}

	recording, err := w.recordings.Get(ctx, job.InterviewID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("load recording for evaluation: %w", err)
		}
		return w.outcomes.RecordOutcome(ctx, job.InterviewID, nil,
			fmt.Errorf("%w: no recording uploaded for interview", domain.ErrValidation))
	}

	log.Info("evaluating recording",
		zap.String("media_type", recording.MediaType),
		zap.Int64("size_bytes", recording.SizeBytes),
	)

	req := domain.EvaluationRequest{
		Data:        recording.Data,
		MediaType:   recording.MediaType,
		Questions:   session.Questions,
		InterviewID: job.InterviewID,
		SubjectID:   job.SubjectID,
	}

	started := time.Now()
	result, err := w.evaluate(ctx, req, log)
	if err != nil {
		log.Warn("evaluation failed", zap.Error(err), zap.Duration("elapsed", time.Since(started)))
	} else {
		log.Info("evaluation finished", zap.Int("score", result.Score), zap.Duration("elapsed", time.Since(started)))
	}

	// The job context may be exhausted by now; recording the outcome must not be.
	return w.outcomes.RecordOutcome(context.WithoutCancel(ctx), job.InterviewID, result, err)
}

// RecordFailure marks the job's session failed when the job could not reach an
// outcome on its own.
func (w *EvaluationWorker) RecordFailure(ctx context.Context, job EvaluationJob, err error) error {
	return w.outcomes.RecordOutcome(ctx, job.InterviewID, nil, err)
}

func (w *EvaluationWorker) evaluate(ctx context.Context, req domain.EvaluationRequest, log *zap.Logger) (*domain.EvaluationResult, error) {
	var result *domain.EvaluationResult

	operation := func() error {
		res, err := w.evaluator.Evaluate(ctx, req)
		if err != nil {
			if domain.IsRetryable(err) && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		result = res
		return nil
	}

	notify := func(err error, next time.Duration) {
		log.Warn("evaluation attempt failed, retrying", zap.Error(err), zap.Duration("retry_in", next))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(w.newBackOff(), uint64(w.retry.MaxRetries)), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, domain.ErrProviderUnavailable) {
			return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, ctxErr)
		}
		return nil, err
	}
	return result, nil
}
