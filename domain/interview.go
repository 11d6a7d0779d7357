package domain

import (
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// Status is the lifecycle state of an interview session.
type Status string

const (
	StatusStarted    Status = "started"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusStarted:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusDone || next == StatusFailed
	default:
		return false
	}
}

// Question is one prompt of the fixed interview question set.
type Question struct {
	ID       int    `json:"id" yaml:"id"`
	Text     string `json:"text" yaml:"text"`
	Type     string `json:"type" yaml:"type"`
	Duration int    `json:"duration" yaml:"duration"` // seconds
}

// InterviewSession is the persisted lifecycle record of one interview.
type InterviewSession struct {
	ID               string                             `gorm:"primaryKey;size:191" json:"id"`
	SubjectID        string                             `gorm:"size:191;not null;index" json:"subject_id"`
	Status           Status                             `gorm:"type:varchar(16);not null;index" json:"status"`
	Questions        datatypes.JSONSlice[Question]      `gorm:"type:json;not null" json:"questions"`
	StartedAt        time.Time                          `gorm:"not null" json:"started_at"`
	CompletedAt      *time.Time                         `json:"completed_at,omitempty"`
	Transcript       string                             `gorm:"type:longtext" json:"transcript,omitempty"`
	Score            *int                               `json:"score,omitempty"`
	ScoreExplanation string                             `gorm:"type:text" json:"score_explanation,omitempty"`
	Breakdown        datatypes.JSONType[map[string]int] `gorm:"type:json;not null" json:"breakdown"`
	Suggestions      datatypes.JSONSlice[string]        `gorm:"type:json;not null" json:"suggestions"`
	ErrorMessage     string                             `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time                          `json:"created_at"`
	UpdatedAt        time.Time                          `json:"updated_at"`
}

// NewSessionID derives a session id from the subject and the creation time.
func NewSessionID(subjectID string, createdAt time.Time) string {
	return subjectID + "_" + strconv.FormatInt(createdAt.UnixMilli(), 10)
}

// BreakdownScores returns the per-category scores, nil unless the session is done.
func (s *InterviewSession) BreakdownScores() map[string]int {
	return s.Breakdown.Data()
}

// ApplyResult folds a successful evaluation into the session.
func (s *InterviewSession) ApplyResult(result *EvaluationResult) {
	score := result.Score
	s.Status = StatusDone
	s.Transcript = result.Transcript
	s.Score = &score
	s.ScoreExplanation = result.ScoreExplanation
	s.Breakdown = datatypes.NewJSONType(copyBreakdown(result.Breakdown))
	s.Suggestions = datatypes.JSONSlice[string](append([]string{}, result.Suggestions...))
	s.ErrorMessage = ""
}

// ApplyFailure moves the session into the failed state with a diagnostic.
func (s *InterviewSession) ApplyFailure(message string) {
	s.Status = StatusFailed
	s.ErrorMessage = message
	s.Transcript = ""
	s.Score = nil
	s.ScoreExplanation = ""
	s.Breakdown = datatypes.NewJSONType[map[string]int](nil)
	s.Suggestions = datatypes.JSONSlice[string]{}
}

func copyBreakdown(in map[string]int) map[string]int {
	if in == nil {
		return nil
	}
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
