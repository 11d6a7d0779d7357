// Package application holds the interview lifecycle: the state machine that owns
// session status, the dispatcher and worker that run evaluations out-of-band, and the
// service facade used by the HTTP layer.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"interview-evaluator/domain"
)

// StateMachine is the only writer of InterviewSession status and terminal payloads.
type StateMachine struct {
	sessions  domain.SessionRepository
	questions []domain.Question
	logger    *zap.Logger
	now       func() time.Time
}

// NewStateMachine creates a state machine that hands out the given question set.
func NewStateMachine(sessions domain.SessionRepository, questions []domain.Question, logger *zap.Logger) *StateMachine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StateMachine{
		sessions:  sessions,
		questions: append([]domain.Question(nil), questions...),
		logger:    logger,
		now:       time.Now,
	}
}

// Start creates a session in the started state.
func (m *StateMachine) Start(ctx context.Context, subjectID string) (*domain.InterviewSession, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject_id is required", domain.ErrValidation)
	}

	now := m.now().UTC()
	session := &domain.InterviewSession{
		ID:          domain.NewSessionID(subjectID, now),
		SubjectID:   subjectID,
		Status:      domain.StatusStarted,
		Questions:   datatypes.JSONSlice[domain.Question](append([]domain.Question(nil), m.questions...)),
		StartedAt:   now,
		Suggestions: datatypes.JSONSlice[string]{},
	}

	if err := m.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create interview: %w", err)
	}

	m.logger.Info("interview started",
		zap.String("interview_id", session.ID),
		zap.String("subject_id", subjectID),
		zap.Int("questions", len(session.Questions)),
	)
	return session, nil
}

// Get returns the full session record.
func (m *StateMachine) Get(ctx context.Context, id string) (*domain.InterviewSession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: interview id is required", domain.ErrValidation)
	}
	return m.sessions.Get(ctx, id)
}

// MarkProcessing performs the complete transition: started -> processing.
// Of several concurrent callers exactly one succeeds; the rest get ErrInvalidState.
func (m *StateMachine) MarkProcessing(ctx context.Context, id string) (*domain.InterviewSession, error) {
	session, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.Status != domain.StatusStarted {
		return nil, fmt.Errorf("%w: interview %s is %s", domain.ErrInvalidState, session.ID, session.Status)
	}
	if len(session.Questions) == 0 {
		return nil, fmt.Errorf("%w: interview %s has no questions", domain.ErrValidation, session.ID)
	}

	completedAt := m.now().UTC()
	session.Status = domain.StatusProcessing
	session.CompletedAt = &completedAt

	updated, err := m.sessions.UpdateIfStatus(ctx, session, domain.StatusStarted)
	if err != nil {
		return nil, fmt.Errorf("complete interview: %w", err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: interview %s was already completed", domain.ErrInvalidState, session.ID)
	}

	m.logger.Info("interview completed, evaluation pending", zap.String("interview_id", session.ID))
	return session, nil
}

// RecordOutcome applies the evaluation outcome to a processing session.
// Calls for sessions not in processing are stale and ignored with a warning.
// Only store failures are returned; the outcome can be recorded again later.
func (m *StateMachine) RecordOutcome(ctx context.Context, id string, result *domain.EvaluationResult, evalErr error) error {
	log := m.logger.With(zap.String("interview_id", id))

	session, err := m.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("ignoring outcome for unknown interview")
			return nil
		}
		return fmt.Errorf("load interview for outcome: %w", err)
	}

	if session.Status != domain.StatusProcessing {
		log.Warn("ignoring outcome for interview not in processing", zap.String("status", string(session.Status)))
		return nil
	}

	switch {
	case evalErr != nil:
		session.ApplyFailure(domain.FailureMessage(evalErr))
	case result == nil:
		session.ApplyFailure(domain.FailureMessage(fmt.Errorf("%w: empty evaluation result", domain.ErrInternal)))
	default:
		session.ApplyResult(result)
	}

	updated, err := m.sessions.UpdateIfStatus(ctx, session, domain.StatusProcessing)
	if err != nil {
		return fmt.Errorf("persist interview outcome: %w", err)
	}
	if !updated {
		log.Warn("ignoring outcome, interview left processing concurrently")
		return nil
	}

	if session.Status == domain.StatusDone {
		log.Info("interview evaluated", zap.Int("score", *session.Score))
		return nil
	}
	log.Warn("interview evaluation failed", zap.String("error_message", session.ErrorMessage), zap.Error(evalErr))
	return nil
}

// GetStatus returns the polling projection of a session.
func (m *StateMachine) GetStatus(ctx context.Context, id string) (domain.StatusView, error) {
	session, err := m.Get(ctx, id)
	if err != nil {
		return domain.StatusView{}, err
	}
	return domain.ProjectStatus(session), nil
}

// Questions returns the question set handed to new sessions.
func (m *StateMachine) Questions() []domain.Question {
	return append([]domain.Question(nil), m.questions...)
}
