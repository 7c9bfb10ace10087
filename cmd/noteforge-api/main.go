package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"noteforge/internal/config"
	"noteforge/internal/docgen"
	"noteforge/internal/httpapi"
	"noteforge/internal/notes"
	"noteforge/internal/observability"
	"noteforge/internal/transcription"
	"noteforge/internal/upstream/elevenlabs"
	"noteforge/internal/upstream/hf"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	metrics := observability.NewMetrics()

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	generationHTTPClient := &http.Client{Timeout: cfg.GenerationTimeout, Transport: transport}
	transcriptionHTTPClient := &http.Client{Timeout: cfg.TranscriptionTimeout, Transport: transport}

	inferenceClient := hf.New(cfg.HFBaseURL, cfg.HFAPIToken, generationHTTPClient,
		hf.WithObserver(metrics.ObserveUpstream("huggingface")),
		hf.WithRetryObserver(metrics.IncUpstreamRetry),
	)
	sttClient := elevenlabs.New(cfg.ElevenLabsBaseURL, cfg.ElevenLabsAPIKey, transcriptionHTTPClient,
		elevenlabs.WithObserver(metrics.ObserveUpstream("elevenlabs")),
	)

	transcriptionService := transcription.New(sttClient, cfg.TranscriptionModel, cfg.TranscriptionTimeout)
	notesService := notes.New(inferenceClient, cfg.RemoteGenerationConfigured(),
		cfg.SummarizationModel, cfg.TextGenModel,
		notes.WithBackfillObserver(metrics.IncBackfill),
	)
	renderer := docgen.New()

	if !cfg.RemoteGenerationConfigured() {
		logger.Warn("no inference token configured, notes will be generated locally")
	}

	handler := httpapi.NewServer(cfg, logger, httpapi.Dependencies{
		Transcription:  transcriptionService,
		Notes:          notesService,
		Renderer:       renderer,
		Metrics:        metrics,
		MetricsHandler: metrics.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel}))
}
