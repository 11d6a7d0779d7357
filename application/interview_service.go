package application

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"interview-evaluator/domain"
)

// InterviewService is the facade the HTTP layer talks to.
type InterviewService struct {
	machine    *StateMachine
	dispatcher Dispatcher
	recordings domain.RecordingRepository
	evaluator  domain.Evaluator
	logger     *zap.Logger
}

func NewInterviewService(
	machine *StateMachine,
	dispatcher Dispatcher,
	recordings domain.RecordingRepository,
	evaluator domain.Evaluator,
	logger *zap.Logger,
) *InterviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterviewService{
		machine:    machine,
		dispatcher: dispatcher,
		recordings: recordings,
		evaluator:  evaluator,
		logger:     logger,
	}
}

// Start opens a new interview for subjectID.
func (s *InterviewService) Start(ctx context.Context, subjectID string) (*domain.InterviewSession, error) {
	return s.machine.Start(ctx, subjectID)
}

// Complete moves the interview to processing and schedules its evaluation.
// It returns as soon as the job is handed to the dispatcher.
func (s *InterviewService) Complete(ctx context.Context, id string) (domain.Status, error) {
	session, err := s.machine.MarkProcessing(ctx, id)
	if err != nil {
		return "", err
	}

	job := EvaluationJob{
		InterviewID: session.ID,
		SubjectID:   session.SubjectID,
		RequestedAt: *session.CompletedAt,
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		s.logger.Error("dispatch evaluation", zap.String("interview_id", session.ID), zap.Error(err))
		if rerr := s.machine.RecordOutcome(context.WithoutCancel(ctx), session.ID, nil,
			fmt.Errorf("%w: could not queue evaluation", domain.ErrInternal)); rerr != nil {
			s.logger.Error("record dispatch failure", zap.String("interview_id", session.ID), zap.Error(rerr))
		}
		return "", fmt.Errorf("%w: could not queue evaluation: %v", domain.ErrInternal, err)
	}

	return domain.StatusProcessing, nil
}

// Status returns the polling projection for an interview.
func (s *InterviewService) Status(ctx context.Context, id string) (domain.StatusView, error) {
	return s.machine.GetStatus(ctx, id)
}

// AttachRecording stores the recording evaluated on completion. Only started
// interviews accept a recording; a later upload replaces an earlier one.
func (s *InterviewService) AttachRecording(ctx context.Context, recording *domain.Recording) error {
	session, err := s.machine.Get(ctx, recording.InterviewID)
	if err != nil {
		return err
	}
	if session.Status != domain.StatusStarted {
		return fmt.Errorf("%w: interview %s is %s", domain.ErrInvalidState, session.ID, session.Status)
	}

	recording.SubjectID = session.SubjectID
	recording.SizeBytes = int64(len(recording.Data))
	if err := s.recordings.Save(ctx, recording); err != nil {
		return fmt.Errorf("save recording: %w", err)
	}

	s.logger.Info("recording attached",
		zap.String("interview_id", session.ID),
		zap.String("media_type", recording.MediaType),
		zap.Int64("size_bytes", recording.SizeBytes),
	)
	return nil
}

// UploadRequest is a recording submitted for immediate evaluation.
type UploadRequest struct {
	SubjectID   string
	InterviewID string
	FileName    string
	MediaType   string
	Data        []byte
}

// EvaluateUpload evaluates a recording synchronously. When an interview id is
// given the recording is also attached to that interview. Session state is not touched.
func (s *InterviewService) EvaluateUpload(ctx context.Context, req UploadRequest) (*domain.EvaluationResult, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("%w: video file is required", domain.ErrValidation)
	}

	subjectID := strings.TrimSpace(req.SubjectID)
	interviewID := strings.TrimSpace(req.InterviewID)
	questions := s.machine.Questions()
	if interviewID != "" {
		recording := &domain.Recording{
			InterviewID: interviewID,
			MediaType:   req.MediaType,
			FileName:    req.FileName,
			Data:        req.Data,
		}
		if err := s.AttachRecording(ctx, recording); err != nil {
			return nil, err
		}
		if subjectID == "" {
			subjectID = recording.SubjectID
		}
		if session, err := s.machine.Get(ctx, interviewID); err == nil {
			questions = session.Questions
		}
	}

	result, err := s.evaluator.Evaluate(ctx, domain.EvaluationRequest{
		Data:        req.Data,
		MediaType:   req.MediaType,
		Questions:   questions,
		InterviewID: interviewID,
		SubjectID:   subjectID,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate upload: %w", err)
	}
	return result, nil
}
