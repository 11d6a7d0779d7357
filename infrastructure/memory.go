package infrastructure

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/datatypes"

	"interview-evaluator/domain"
)

// MemorySessionStore keeps sessions in process memory. Used for local runs and tests.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.InterviewSession
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*domain.InterviewSession)}
}

func (s *MemorySessionStore) Create(_ context.Context, session *domain.InterviewSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, session.ID)
	}
	s.sessions[session.ID] = cloneSession(session)
	return nil
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*domain.InterviewSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return cloneSession(session), nil
}

func (s *MemorySessionStore) UpdateIfStatus(_ context.Context, session *domain.InterviewSession, expected domain.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[session.ID]
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrNotFound, session.ID)
	}
	if current.Status != expected {
		return false, nil
	}
	s.sessions[session.ID] = cloneSession(session)
	return true, nil
}

func cloneSession(in *domain.InterviewSession) *domain.InterviewSession {
	out := *in
	out.Questions = append(datatypes.JSONSlice[domain.Question](nil), in.Questions...)
	out.Suggestions = append(datatypes.JSONSlice[string](nil), in.Suggestions...)
	if in.Score != nil {
		score := *in.Score
		out.Score = &score
	}
	if in.CompletedAt != nil {
		completedAt := *in.CompletedAt
		out.CompletedAt = &completedAt
	}
	if breakdown := in.BreakdownScores(); breakdown != nil {
		copied := make(map[string]int, len(breakdown))
		for k, v := range breakdown {
			copied[k] = v
		}
		out.Breakdown = datatypes.NewJSONType(copied)
	}
	return &out
}

// MemoryRecordingStore keeps recordings in process memory.
type MemoryRecordingStore struct {
	mu         sync.RWMutex
	recordings map[string]*domain.Recording
}

func NewMemoryRecordingStore() *MemoryRecordingStore {
	return &MemoryRecordingStore{recordings: make(map[string]*domain.Recording)}
}

func (s *MemoryRecordingStore) Save(_ context.Context, recording *domain.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *recording
	copied.Data = append([]byte(nil), recording.Data...)
	s.recordings[recording.InterviewID] = &copied
	return nil
}

func (s *MemoryRecordingStore) Get(_ context.Context, interviewID string) (*domain.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recording, ok := s.recordings[interviewID]
	if !ok {
		return nil, fmt.Errorf("%w: no recording for %s", domain.ErrNotFound, interviewID)
	}
	copied := *recording
	copied.Data = append([]byte(nil), recording.Data...)
	return &copied, nil
}
