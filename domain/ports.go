package domain

import "context"

// SessionRepository persists interview sessions.
type SessionRepository interface {
	Create(ctx context.Context, session *InterviewSession) error
	Get(ctx context.Context, id string) (*InterviewSession, error)
	// UpdateIfStatus writes the whole session only when the stored status still equals
	// expected. It reports false without error when the status has moved on.
	UpdateIfStatus(ctx context.Context, session *InterviewSession, expected Status) (bool, error)
}

// RecordingRepository stores uploaded recordings keyed by interview id.
type RecordingRepository interface {
	Save(ctx context.Context, recording *Recording) error
	Get(ctx context.Context, interviewID string) (*Recording, error)
}

// Evaluator scores a recording.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvaluationRequest) (*EvaluationResult, error)
}
