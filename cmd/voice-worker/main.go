// main package for the voice-worker service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voiceprep/internal/config"
	"github.com/book-expert/voiceprep/internal/core"
	"github.com/book-expert/voiceprep/internal/objectstore"
	"github.com/book-expert/voiceprep/internal/voice"
	"github.com/book-expert/voiceprep/internal/worker"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "voice-worker.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func newSynthesizer(cfg *config.Config, log *logger.Logger) (core.Synthesizer, error) {
	if cfg.Model.ServiceURL != "" {
		return voice.NewHTTPClient(cfg.Model.ServiceURL, cfg.ModelTimeout()), nil
	}

	return voice.NewCommandSynthesizer(voice.CommandOptions{
		BinaryPath:    cfg.Model.BinaryPath,
		ModelPath:     cfg.Model.ModelPath,
		SnacModelPath: cfg.Model.SnacModelPath,
	}, log)
}

func run(ctx context.Context) error {
	// The bootstrap logger lives in the temp dir until the configuration
	// names the real log directory.
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	defer func() { _ = bootstrapLog.Close() }()

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	err = cfg.EnsureDirectories()
	if err != nil {
		bootstrapLog.Error("Failed to create directories: %v", err)

		return err
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return err
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		log.Error("Failed to connect to NATS at %s: %v", cfg.NATS.URL, err)

		return fmt.Errorf("%w: failed to connect to NATS: %w", core.ErrExternalDependency, err)
	}
	defer natsConnection.Close()

	textStore, err := objectstore.New(ctx, natsConnection, cfg.NATS.TextObjectStoreBucket)
	if err != nil {
		return err
	}

	audioStore, err := objectstore.New(ctx, natsConnection, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return err
	}

	synth, err := newSynthesizer(cfg, log)
	if err != nil {
		return err
	}

	log.System("voice-worker initialized, listening on %s", cfg.NATS.SynthesisSubject)

	return worker.NewNatsWorker(natsConnection, worker.Options{
		Subject:      cfg.NATS.SynthesisSubject,
		TextStore:    textStore,
		AudioStore:   audioStore,
		Synth:        synth,
		ReferenceDir: cfg.Paths.ReferenceDir,
		Log:          log,
	}).Run(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx)

	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
