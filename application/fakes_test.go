package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"interview-evaluator/domain"
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.InterviewSession
	updates  int

	// getErrs are returned by successive Get calls before the map is consulted.
	getErrs []error
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]domain.InterviewSession)}
}

func (f *fakeSessions) Create(_ context.Context, s *domain.InterviewSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.ID]; ok {
		return domain.ErrAlreadyExists
	}
	f.sessions[s.ID] = *s
	return nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (*domain.InterviewSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		return nil, err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (f *fakeSessions) UpdateIfStatus(_ context.Context, s *domain.InterviewSession, expected domain.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.sessions[s.ID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if current.Status != expected {
		return false, nil
	}
	f.sessions[s.ID] = *s
	f.updates++
	return true, nil
}

func (f *fakeSessions) failGets(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErrs = append(f.getErrs, errs...)
}

// put overwrites a session regardless of its state.
func (f *fakeSessions) put(s domain.InterviewSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
}

type fakeRecordings struct {
	mu         sync.Mutex
	recordings map[string]domain.Recording
	saveErr    error
}

func newFakeRecordings() *fakeRecordings {
	return &fakeRecordings{recordings: make(map[string]domain.Recording)}
}

func (f *fakeRecordings) Save(_ context.Context, r *domain.Recording) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordings[r.InterviewID] = *r
	return nil
}

func (f *fakeRecordings) Get(_ context.Context, id string) (*domain.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recordings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

// fakeEvaluator answers from a script of results; the last entry repeats.
type fakeEvaluator struct {
	mu       sync.Mutex
	outcomes []evalOutcome
	calls    atomic.Int32
	requests []domain.EvaluationRequest

	// gate, when set, blocks Evaluate until it is closed or ctx ends.
	gate chan struct{}
}

type evalOutcome struct {
	result *domain.EvaluationResult
	err    error
	panic  bool
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, req domain.EvaluationRequest) (*domain.EvaluationResult, error) {
	n := int(f.calls.Add(1)) - 1

	f.mu.Lock()
	f.requests = append(f.requests, req)
	idx := n
	if idx >= len(f.outcomes) {
		idx = len(f.outcomes) - 1
	}
	outcome := f.outcomes[idx]
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if outcome.panic {
		panic("evaluator exploded")
	}
	return outcome.result, outcome.err
}

func (f *fakeEvaluator) lastRequest() domain.EvaluationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type countingDispatcher struct {
	calls atomic.Int32
	err   error
}

func (d *countingDispatcher) Dispatch(context.Context, EvaluationJob) error {
	d.calls.Add(1)
	return d.err
}

func goodResult() *domain.EvaluationResult {
	return &domain.EvaluationResult{
		Transcript:       "I have five years of backend experience.",
		Score:            78,
		ScoreExplanation: "Clear and relevant answers.",
		Breakdown:        map[string]int{"communication": 80, "relevance": 76},
		Suggestions:      []string{"Give more concrete numbers."},
	}
}

type harness struct {
	sessions   *fakeSessions
	recordings *fakeRecordings
	evaluator  *fakeEvaluator
	machine    *StateMachine
	worker     *EvaluationWorker
	dispatcher *AsyncDispatcher
	service    *InterviewService
	logs       *observer.ObservedLogs
}

func newHarness(t *testing.T, evaluator *fakeEvaluator, retries int, timeout time.Duration) *harness {
	t.Helper()

	core, logs := observer.New(zap.DebugLevel)
	lg := zap.New(core)

	h := &harness{
		sessions:   newFakeSessions(),
		recordings: newFakeRecordings(),
		evaluator:  evaluator,
		logs:       logs,
	}
	h.machine = NewStateMachine(h.sessions, domain.DefaultQuestions(), lg)
	h.worker = NewEvaluationWorker(h.machine, h.recordings, evaluator, RetryPolicy{MaxRetries: retries}, lg)
	h.worker.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	h.dispatcher = NewAsyncDispatcher(h.worker, timeout, lg)
	h.service = NewInterviewService(h.machine, h.dispatcher, h.recordings, evaluator, lg)
	return h
}

// startWithRecording opens an interview and attaches a recording to it.
func (h *harness) startWithRecording(t *testing.T, subject string) string {
	t.Helper()
	session, err := h.service.Start(context.Background(), subject)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	err = h.service.AttachRecording(context.Background(), &domain.Recording{
		InterviewID: session.ID,
		MediaType:   "video/webm",
		FileName:    "answer.webm",
		Data:        []byte("webm-bytes"),
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	return session.ID
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.dispatcher.Wait(ctx); err != nil {
		t.Fatalf("jobs did not finish: %v", err)
	}
}

var errBoom = errors.New("boom")
