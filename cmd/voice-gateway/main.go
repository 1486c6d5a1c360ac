// main package for the voice-gateway service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voice-gateway/internal/config"
	"github.com/book-expert/voice-gateway/internal/core"
	"github.com/book-expert/voice-gateway/internal/dispatch"
	"github.com/book-expert/voice-gateway/internal/engines/coqui"
	"github.com/book-expert/voice-gateway/internal/engines/edge"
	"github.com/book-expert/voice-gateway/internal/engines/indextts"
	"github.com/book-expert/voice-gateway/internal/objectstore"
	"github.com/book-expert/voice-gateway/internal/registry"
	"github.com/book-expert/voice-gateway/internal/server"
	"github.com/book-expert/voice-gateway/internal/worker"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second

	megabyte = 1024 * 1024
)

// ErrNoEngines indicates that configuration enabled no engine at all.
var ErrNoEngines = errors.New("no engines enabled in configuration")

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "voice-gateway.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, log)
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	adapters, err := buildAdapters(cfg, log)
	if err != nil {
		return err
	}

	reg := registry.New(ctx, adapters, log)
	dispatcher := dispatch.New(reg, time.Duration(cfg.Dispatch.TimeoutSeconds)*time.Second, log)

	if cfg.NATSEnabled() {
		err = startWorker(ctx, cfg, dispatcher, log)
		if err != nil {
			return err
		}
	}

	gateway := server.New(
		reg,
		dispatcher,
		edge.EngineID,
		cfg.Engines.Edge.DefaultVoice,
		int64(cfg.HTTP.MaxUploadMB)*megabyte,
		log,
	)

	addr := net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(cfg.HTTP.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           gateway.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errChan := make(chan error, 1)

	go func() {
		log.System("voice-gateway listening on %s", addr)

		serveErr := httpServer.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	select {
	case serveErr := <-errChan:
		return fmt.Errorf("http server failed: %w", serveErr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	log.System("voice-gateway stopped")

	return nil
}

// buildAdapters creates the enabled engine adapters in the fixed registration
// order: cloud engine first, local cloning engines after.
func buildAdapters(cfg *config.Config, log *logger.Logger) ([]core.EngineAdapter, error) {
	var adapters []core.EngineAdapter

	if cfg.Engines.Edge.Enabled {
		adapters = append(adapters, edge.New(
			cfg.Engines.Edge.ServiceURL,
			time.Duration(cfg.Engines.Edge.TimeoutSeconds)*time.Second,
		))
	}

	if cfg.Engines.IndexTTS.Enabled {
		adapters = append(adapters, indextts.New(indextts.Config{
			Binary:        cfg.Engines.IndexTTS.Binary,
			CheckpointDir: cfg.Engines.IndexTTS.CheckpointDir,
			UseFP16:       cfg.Engines.IndexTTS.UseFP16,
		}, log))
	}

	if cfg.Engines.Coqui.Enabled {
		adapters = append(adapters, coqui.New(
			cfg.Engines.Coqui.ServiceURL,
			cfg.Engines.Coqui.Language,
			time.Duration(cfg.Engines.Coqui.TimeoutSeconds)*time.Second,
		))
	}

	if len(adapters) == 0 {
		return nil, ErrNoEngines
	}

	return adapters, nil
}

// startWorker connects to NATS and runs the synthesis job worker alongside
// the HTTP server.
func startWorker(ctx context.Context, cfg *config.Config, dispatcher core.Dispatcher, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to initialize object store: %w", err)
	}

	jobWorker := worker.NewNatsWorker(natsConnection, cfg.NATS.SynthesisJobSubject, store, dispatcher, log)

	go func() {
		runErr := jobWorker.Run(ctx)
		if runErr != nil {
			log.Error("Synthesis job worker exited: %v", runErr)
		}

		natsConnection.Close()
	}()

	log.System("Synthesis job worker listening on subject: %s", cfg.NATS.SynthesisJobSubject)

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
