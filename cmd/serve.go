package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"interview-evaluator/interfaces"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (and the queue consumer when --consume is set)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("consume", true, "consume RabbitMQ jobs in this process when QUEUE_DRIVER=rabbitmq")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, lg, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := build(ctx, cfg, lg)
	if err != nil {
		lg.Error("wiring service", zap.Error(err))
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			lg.Warn("closing resources", zap.Error(err))
		}
	}()

	router := interfaces.NewRouter(lg, cfg.MaxRecordingBytes())
	interfaces.NewHTTPHandler(router, c.service, cfg.MaxRecordingBytes(), lg)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	consume, _ := cmd.Flags().GetBool("consume")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		lg.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	if c.rabbit != nil && consume {
		g.Go(func() error {
			return c.rabbit.ConsumeJobs(gctx, cfg.QueueWorkers, c.worker)
		})
	}

	err = g.Wait()

	if c.async != nil {
		waitCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if werr := c.async.Wait(waitCtx); werr != nil {
			lg.Warn("in-flight evaluations did not finish before shutdown", zap.Error(werr))
		}
	}

	if err != nil {
		lg.Error("server stopped with error", zap.Error(err))
		return err
	}
	lg.Info("server stopped")
	return nil
}
