package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"interview-evaluator/application"
	"interview-evaluator/config"
	"interview-evaluator/domain"
	"interview-evaluator/infrastructure"
)

// components holds the wired service graph for one process.
type components struct {
	service *application.InterviewService
	worker  *application.EvaluationWorker
	async   *application.AsyncDispatcher
	rabbit  *infrastructure.RabbitMQ

	closers []func() error
}

func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

// build wires stores, evaluator, state machine, worker and dispatcher.
// Dependencies flow one way: machine -> worker -> dispatcher -> service.
func build(ctx context.Context, cfg *config.Config, lg *zap.Logger) (*components, error) {
	c := &components{}

	questions, err := config.LoadQuestions(cfg.Questions.Path)
	if err != nil {
		return nil, err
	}

	sessions, recordings, err := c.openStores(cfg, lg)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	evaluator, err := newEvaluator(ctx, cfg, lg)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	machine := application.NewStateMachine(sessions, questions, lg)
	c.worker = application.NewEvaluationWorker(machine, recordings, evaluator, application.RetryPolicy{
		MaxRetries:      cfg.Evaluation.MaxRetries,
		InitialInterval: cfg.Evaluation.RetryInterval,
		MaxInterval:     30 * time.Second,
	}, lg)

	var dispatcher application.Dispatcher
	switch cfg.QueueDriver {
	case config.QueueRabbitMQ:
		rabbit, err := infrastructure.NewRabbitMQ(cfg.RabbitMQURL, cfg.RabbitMQQueue, lg)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.rabbit = rabbit.WithJobTimeout(cfg.Evaluation.Timeout)
		c.closers = append(c.closers, rabbit.Close)
		dispatcher = rabbit
	default:
		c.async = application.NewAsyncDispatcher(c.worker, cfg.Evaluation.Timeout, lg)
		dispatcher = c.async
	}

	c.service = application.NewInterviewService(machine, dispatcher, recordings, evaluator, lg)

	lg.Info("service wired",
		zap.String("store", cfg.StoreDriver),
		zap.String("queue", cfg.QueueDriver),
		zap.String("ai_provider", cfg.AIProvider),
		zap.Int("questions", len(questions)),
	)
	return c, nil
}

func (c *components) openStores(cfg *config.Config, lg *zap.Logger) (domain.SessionRepository, domain.RecordingRepository, error) {
	if cfg.StoreDriver == config.StoreMemory {
		lg.Warn("using in-memory store, sessions are lost on restart")
		return infrastructure.NewMemorySessionStore(), infrastructure.NewMemoryRecordingStore(), nil
	}

	db, err := infrastructure.NewMySQLConnection(cfg.DBDSN, lg)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("database handle: %w", err)
	}
	c.closers = append(c.closers, sqlDB.Close)

	return infrastructure.NewSessionStore(db), infrastructure.NewRecordingStore(db), nil
}

func newEvaluator(ctx context.Context, cfg *config.Config, lg *zap.Logger) (domain.Evaluator, error) {
	switch cfg.AIProvider {
	case config.ProviderOpenAI:
		evaluator, err := infrastructure.NewOpenAIEvaluator(infrastructure.OpenAIConfig{
			APIKey:             cfg.OpenAI.APIKey,
			BaseURL:            cfg.OpenAI.BaseURL,
			Model:              cfg.OpenAI.Model,
			TranscriptionModel: cfg.OpenAI.TranscriptionModel,
			MaxBytes:           cfg.MaxRecordingBytes(),
		}, lg)
		if err != nil {
			return nil, err
		}
		return evaluator, nil
	default:
		evaluator, err := infrastructure.NewGeminiEvaluator(ctx, infrastructure.GeminiConfig{
			APIKey:   cfg.Gemini.APIKey,
			Backend:  cfg.Gemini.Backend,
			Project:  cfg.Gemini.Project,
			Location: cfg.Gemini.Location,
			Model:    cfg.Gemini.Model,
			MaxBytes: cfg.MaxRecordingBytes(),
		}, lg)
		if err != nil {
			return nil, err
		}
		return evaluator, nil
	}
}
