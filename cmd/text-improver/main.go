// main package for the text-improver service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/book-expert/text-improver/internal/config"
	"github.com/book-expert/text-improver/internal/improver"
	"github.com/book-expert/text-improver/internal/objectstore"
	"github.com/book-expert/text-improver/internal/update"
	"github.com/book-expert/text-improver/internal/worker"
	"github.com/nats-io/nats.go"
)

const envFile = ".env"

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir(), "text-improver-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	log, err := setupLogger(cfg.Paths.BaseLogsDir, "text-improver.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	creds, err := config.LoadCredentials(envFile)
	if err != nil {
		log.Error("Failed to load credentials: %v", err)

		return fmt.Errorf("failed to load credentials: %w", err)
	}

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		log.Error("Failed to connect to NATS at %s: %v", cfg.NATS.URL, err)

		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		log.Error("Failed to open audio bucket: %v", err)

		return fmt.Errorf("failed to open audio bucket: %w", err)
	}

	sess, err := improver.NewSession(cfg, creds, store, log)
	if err != nil {
		return err
	}

	sess.Subscribe(worker.NewStatePublisher(natsConnection, cfg.NATS.StateSubject, log))

	natsWorker, err := worker.NewNatsWorker(natsConnection, worker.Subjects{
		Improve: cfg.NATS.ImproveSubject,
		Speak:   cfg.NATS.SpeakSubject,
		Voices:  cfg.NATS.VoicesSubject,
	}, sess, log)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startUpdateChecker(ctx, cfg, log)

	log.System("Text-Improver successfully initialized. Listening for requests on subject: %s", cfg.NATS.ImproveSubject)

	err = natsWorker.Run(ctx)
	if err != nil {
		log.Error("Worker stopped with error: %v", err)

		return fmt.Errorf("worker failed: %w", err)
	}

	log.System("Text-Improver shut down.")

	return nil
}

func startUpdateChecker(ctx context.Context, cfg *config.Config, log *logger.Logger) {
	if cfg.Update.Owner == "" || cfg.Update.Repo == "" {
		log.Info("Update checks disabled: no release repository configured.")

		return
	}

	checker := update.NewChecker(cfg.Update.APIURL, cfg.Update.Owner, cfg.Update.Repo, cfg.Update.AssetSuffix, nil)

	go checker.Run(ctx, cfg.UpdateInterval(), cfg.Update.CurrentVersion, log, func(result update.Result) {
		log.System("Update %s available: %s", result.LatestVersion, result.DownloadURL)
	})
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
