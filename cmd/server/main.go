package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/satriahrh/drishti/adapters"
	"github.com/satriahrh/drishti/adapters/llm"
	"github.com/satriahrh/drishti/adapters/mongo"
	"github.com/satriahrh/drishti/adapters/stt"
	"github.com/satriahrh/drishti/adapters/tts"
	"github.com/satriahrh/drishti/domain/repositories"
	"github.com/satriahrh/drishti/internal/api"
	"github.com/satriahrh/drishti/internal/auth"
	"github.com/satriahrh/drishti/internal/config"
	"github.com/satriahrh/drishti/internal/live"
	"github.com/satriahrh/drishti/internal/websocket"
	"github.com/satriahrh/drishti/usecase"
)

// backends are the model-facing adapters selected by configuration
type backends struct {
	assistant   repositories.Assistant
	transcriber repositories.SpeechToText
	connector   repositories.LiveConnector
	speaker     repositories.TextToSpeech
	closers     []func()
}

func main() {
	// Load .env if present
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer closeStore()

	b, err := newBackends(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize assistant backend", zap.Error(err))
	}
	defer func() {
		for _, closeFn := range b.closers {
			closeFn()
		}
	}()

	issuer, err := auth.NewIssuer(cfg.JWTSecret)
	if err != nil {
		logger.Fatal("Failed to initialize token issuer", zap.Error(err))
	}

	// Initialize WebSocket hub for Live sessions
	hub := websocket.NewHub(b.connector, live.Config{
		Model:     cfg.Live.Model,
		Voice:     cfg.Live.Voice,
		FrameSize: cfg.Live.FrameSize,
	}, logger)
	go hub.Run(ctx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit("64M"))

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Profiles: usecase.NewProfileService(store, logger),
		Ask:      usecase.NewAskService(b.assistant, b.transcriber, b.speaker, logger),
		Vision:   usecase.NewVisionService(b.assistant, logger),
		Generate: usecase.NewGenerateService(b.assistant, usecase.DefaultVideoPollInterval, logger),
		Issuer:   issuer,
		Hub:      hub,
	}, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Server.Port),
		zap.String("assistant", cfg.Assistant),
		zap.String("storage", cfg.Storage.Backend))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.KeyValueStore, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageFile:
		store, err := adapters.NewFileStore(cfg.Storage.Path, logger)
		return store, func() {}, err
	case config.StorageMongo:
		client, err := mongo.NewClient(ctx, cfg.Storage.Mongo, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Close(closeCtx)
		}
		store, err := mongo.NewKeyValueStore(ctx, client.Database, logger)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		return store, closeFn, nil
	default:
		return adapters.NewMemoryStore(), func() {}, nil
	}
}

func newBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{}

	if cfg.SpeechEnabled() {
		speaker, err := tts.NewElevenLabsTTS(cfg.Speech.TTS, logger)
		if err != nil {
			return nil, err
		}
		b.speaker = speaker
	} else {
		logger.Info("Read-aloud disabled: ELEVEN_LABS_API_KEY not set")
	}

	if cfg.Assistant == config.BackendMock {
		logger.Warn("Using mock assistant backend")
		mock := llm.NewMockAssistant()
		b.assistant = mock
		b.transcriber = mock
		b.connector = llm.NewMockLive()
		return b, nil
	}

	client, err := llm.NewGeminiClient(ctx, cfg.Gemini)
	if err != nil {
		return nil, err
	}
	b.assistant = llm.NewGeminiAssistant(client, cfg.Gemini, logger)
	b.connector = llm.NewGeminiLive(client, logger)

	switch cfg.Speech.Transcriber {
	case config.TranscriberGoogle:
		transcriber, err := stt.NewGoogleSpeechToText(ctx, cfg.Speech.Language, logger)
		if err != nil {
			return nil, err
		}
		b.transcriber = transcriber
		b.closers = append(b.closers, func() { transcriber.Close() })
	default:
		b.transcriber = llm.NewGeminiTranscriber(client, usecase.ModelTranscribe, logger)
	}
	return b, nil
}
