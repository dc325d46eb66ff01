package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/JaymarM28/kari-transcriptor/adapters/codec"
	"github.com/JaymarM28/kari-transcriptor/adapters/storage"
	"github.com/JaymarM28/kari-transcriptor/adapters/stt"
	"github.com/JaymarM28/kari-transcriptor/domain/repositories"
	"github.com/JaymarM28/kari-transcriptor/internal/api"
	"github.com/JaymarM28/kari-transcriptor/internal/config"
	"github.com/JaymarM28/kari-transcriptor/internal/stream"
	"github.com/JaymarM28/kari-transcriptor/internal/telemetry"
	"github.com/JaymarM28/kari-transcriptor/usecase"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(config.WithConfigFile(*configFile))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()
	cfg.LogSummary(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	// Initialize adapters
	uploads, err := storage.NewLocalStorage(cfg.Upload.Dir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize upload storage", zap.Error(err))
	}
	audioCodec := codec.NewCodec(cfg.FFmpeg.Path, logger)

	recognizer, closeRecognizer, err := newRecognizer(ctx, cfg.Recognition, logger)
	if err != nil {
		logger.Fatal("Failed to initialize speech recognition", zap.Error(err))
	}

	// Initialize usecase services
	transcriptionService := usecase.NewTranscriptionService(
		audioCodec, recognizer, uploads, pipelineConfig(cfg), logger)

	hub := stream.NewHub(logger)
	cleanupService := usecase.NewUploadCleanupService(
		uploads, hub.IsActive, cfg.Upload.CleanupInterval, cfg.Upload.MaxAge, logger)
	cleanupService.Start()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	handler := api.NewHandler(uploads, transcriptionService, hub,
		cfg.Upload.MaxBytes, cfg.Upload.AllowedExtensions, logger)
	api.InitRoutes(e, handler, cfg.Server.StaticDir)

	port := strconv.Itoa(cfg.Server.Port)
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", port),
		zap.String("version", version))

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	cleanupService.Stop()
	if err := closeRecognizer(); err != nil {
		logger.Warn("Failed to close speech recognition client", zap.Error(err))
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Warn("Failed to flush telemetry", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newRecognizer builds the configured recognition provider and its close function
func newRecognizer(ctx context.Context, cfg config.RecognitionConfig, logger *zap.Logger) (repositories.SpeechToText, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case "google":
		client, err := stt.NewGoogleSpeechToText(ctx, cfg.GoogleCredentialsFile, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	case "gemini":
		client, err := stt.NewGeminiSpeechToText(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, noop, nil
	case "mock":
		logger.Warn("Using mock speech recognition")
		return stt.NewMockSpeechToText(logger), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown recognition provider %q", cfg.Provider)
	}
}

func pipelineConfig(cfg *config.Config) usecase.PipelineConfig {
	p := usecase.DefaultPipelineConfig()
	p.MinSilence = cfg.Pipeline.MinSilence
	p.SilenceOffsetDB = cfg.Pipeline.SilenceOffsetDB
	p.KeepSilence = cfg.Pipeline.KeepSilence
	p.MinSilenceSegments = cfg.Pipeline.MinSilenceSegments
	p.Window = cfg.Pipeline.Window
	p.SegmentPause = cfg.Pipeline.SegmentPause
	p.RetryBackoff = cfg.Pipeline.RetryBackoff
	p.TempDir = cfg.Pipeline.TempDir
	p.Language = cfg.Recognition.Language
	return p
}
