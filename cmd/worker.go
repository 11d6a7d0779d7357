package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"interview-evaluator/config"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume evaluation jobs from RabbitMQ",
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, lg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	if cfg.QueueDriver != config.QueueRabbitMQ {
		return errors.New("worker requires QUEUE_DRIVER=rabbitmq")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := build(ctx, cfg, lg)
	if err != nil {
		lg.Error("wiring worker", zap.Error(err))
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			lg.Warn("closing resources", zap.Error(err))
		}
	}()

	lg.Info("worker started", zap.Int("workers", cfg.QueueWorkers))
	if err := c.rabbit.ConsumeJobs(ctx, cfg.QueueWorkers, c.worker); err != nil {
		lg.Error("consumer stopped", zap.Error(err))
		return err
	}
	lg.Info("worker stopped")
	return nil
}
