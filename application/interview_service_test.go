package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"interview-evaluator/domain"
)

func TestCompleteDispatchFailureMarksFailed(t *testing.T) {
	m, _ := newMachine(t, domain.DefaultQuestions())
	dispatcher := &countingDispatcher{err: fmt.Errorf("broker down")}
	svc := NewInterviewService(m, dispatcher, newFakeRecordings(), &fakeEvaluator{}, zap.NewNop())

	session, err := svc.Start(context.Background(), "user-1")
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), session.ID)
	assert.ErrorIs(t, err, domain.ErrInternal)

	view, err := svc.Status(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, view.Status)
	assert.Contains(t, view.ErrorMessage, "could not queue evaluation")
}

func TestCompleteUnknownInterview(t *testing.T) {
	m, _ := newMachine(t, domain.DefaultQuestions())
	dispatcher := &countingDispatcher{}
	svc := NewInterviewService(m, dispatcher, newFakeRecordings(), &fakeEvaluator{}, zap.NewNop())

	_, err := svc.Complete(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, dispatcher.calls.Load())
}

func TestAttachRecording(t *testing.T) {
	h := newHarness(t, &fakeEvaluator{outcomes: []evalOutcome{{result: goodResult()}}}, 0, time.Minute)

	t.Run("unknown interview", func(t *testing.T) {
		err := h.service.AttachRecording(context.Background(), &domain.Recording{InterviewID: "ghost", Data: []byte("x")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("stores recording with subject and size", func(t *testing.T) {
		session, err := h.service.Start(context.Background(), "user-7")
		require.NoError(t, err)

		err = h.service.AttachRecording(context.Background(), &domain.Recording{
			InterviewID: session.ID,
			MediaType:   "audio/mpeg",
			Data:        []byte("0123456789"),
		})
		require.NoError(t, err)

		stored, err := h.recordings.Get(context.Background(), session.ID)
		require.NoError(t, err)
		assert.Equal(t, "user-7", stored.SubjectID)
		assert.Equal(t, int64(10), stored.SizeBytes)
		assert.Equal(t, "audio/mpeg", stored.MediaType)
	})

	t.Run("rejected once completed", func(t *testing.T) {
		id := h.startWithRecording(t, "user-8")
		_, err := h.service.Complete(context.Background(), id)
		require.NoError(t, err)
		h.wait(t)

		err = h.service.AttachRecording(context.Background(), &domain.Recording{InterviewID: id, Data: []byte("late")})
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestEvaluateUpload(t *testing.T) {
	t.Run("requires data", func(t *testing.T) {
		h := newHarness(t, &fakeEvaluator{outcomes: []evalOutcome{{result: goodResult()}}}, 0, time.Minute)
		_, err := h.service.EvaluateUpload(context.Background(), UploadRequest{SubjectID: "user-1"})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("standalone upload", func(t *testing.T) {
		evaluator := &fakeEvaluator{outcomes: []evalOutcome{{result: goodResult()}}}
		h := newHarness(t, evaluator, 0, time.Minute)

		result, err := h.service.EvaluateUpload(context.Background(), UploadRequest{
			SubjectID: "tenant-1",
			MediaType: "video/mp4",
			Data:      []byte("mp4"),
		})
		require.NoError(t, err)
		assert.Equal(t, 78, result.Score)

		req := evaluator.lastRequest()
		assert.Equal(t, "tenant-1", req.SubjectID)
		assert.Empty(t, req.InterviewID)
		assert.Equal(t, domain.DefaultQuestions(), req.Questions)
	})

	t.Run("attaches to interview without changing state", func(t *testing.T) {
		evaluator := &fakeEvaluator{outcomes: []evalOutcome{{result: goodResult()}}}
		h := newHarness(t, evaluator, 0, time.Minute)
		session, err := h.service.Start(context.Background(), "user-2")
		require.NoError(t, err)

		_, err = h.service.EvaluateUpload(context.Background(), UploadRequest{
			InterviewID: session.ID,
			MediaType:   "video/webm",
			Data:        []byte("webm"),
		})
		require.NoError(t, err)

		assert.Equal(t, "user-2", evaluator.lastRequest().SubjectID)
		_, err = h.recordings.Get(context.Background(), session.ID)
		assert.NoError(t, err)

		view, err := h.service.Status(context.Background(), session.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusStarted, view.Status)
	})

	t.Run("unknown interview", func(t *testing.T) {
		evaluator := &fakeEvaluator{outcomes: []evalOutcome{{result: goodResult()}}}
		h := newHarness(t, evaluator, 0, time.Minute)

		_, err := h.service.EvaluateUpload(context.Background(), UploadRequest{InterviewID: "ghost", Data: []byte("x")})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Zero(t, evaluator.calls.Load())
	})

	t.Run("evaluator error is wrapped", func(t *testing.T) {
		evaluator := &fakeEvaluator{outcomes: []evalOutcome{{err: fmt.Errorf("%w: too big", domain.ErrPayloadTooLarge)}}}
		h := newHarness(t, evaluator, 0, time.Minute)

		_, err := h.service.EvaluateUpload(context.Background(), UploadRequest{Data: []byte("x"), MediaType: "video/webm"})
		assert.ErrorIs(t, err, domain.ErrPayloadTooLarge)
	})
}
