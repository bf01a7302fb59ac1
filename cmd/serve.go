package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	subtitleCmd "github.com/Taichi-iskw/talk-subtitles/cmd/subtitle"
	"github.com/Taichi-iskw/talk-subtitles/internal/config"
	"github.com/Taichi-iskw/talk-subtitles/internal/logging"
	"github.com/Taichi-iskw/talk-subtitles/internal/progress"
	"github.com/Taichi-iskw/talk-subtitles/internal/server"
	"github.com/Taichi-iskw/talk-subtitles/internal/service/subtitle"
	"github.com/Taichi-iskw/talk-subtitles/internal/worker"
)

const (
	shutdownTimeout = 30 * time.Second
	queueSize       = 256
)

// serveCmd runs the HTTP API and the background workers
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and subtitle workers",
	Long:  `Serve subtitle status, SRT downloads and live progress over HTTP while workers process queued jobs.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := config.NewConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			return err
		}

		// Flags override the config file
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
			cfg.Server.Workers = workers
		}

		hub := progress.NewHub(logger)
		queue := worker.NewWorker(cfg.Server.Workers, queueSize, logger)

		factory := subtitleCmd.NewServiceFactory()
		factory.Notifier = hub
		factory.Dispatcher = queue

		components, cleanup, err := factory.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer cleanup()

		registerHandlers(queue, components.Subtitles)

		go hub.Run(ctx)
		queue.Start(ctx)

		srv := server.New(components.Subtitles, hub, logger)
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start(cfg.Server.Addr)
		}()

		select {
		case err := <-errCh:
			queue.Stop()
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("shutting down", "pending_tasks", queue.Pending())
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		queue.Stop()
		return nil
	},
}

// registerHandlers routes queued tasks to the subtitle service
func registerHandlers(queue *worker.Worker, svc subtitle.Service) {
	queue.RegisterHandler(subtitle.TaskProcess, svc.Process)
	queue.RegisterHandler(subtitle.TaskRetry, func(ctx context.Context, jobID string) error {
		_, err := svc.ProcessRetry(ctx, jobID)
		return err
	})
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
	serveCmd.Flags().Int("workers", 0, "Number of job workers (default from config)")
}
