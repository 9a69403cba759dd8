// Package config aggregates the server's environment configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/satriahrh/drishti/adapters/llm"
	"github.com/satriahrh/drishti/adapters/mongo"
	"github.com/satriahrh/drishti/adapters/tts"
	"github.com/satriahrh/drishti/internal/live"
)

const (
	BackendGemini = "gemini"
	BackendMock   = "mock"

	StorageMemory = "memory"
	StorageFile   = "file"
	StorageMongo  = "mongo"

	TranscriberGemini = "gemini"
	TranscriberGoogle = "google"

	DefaultLiveModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultLiveVoice = "Zephyr"
)

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Port string
}

// StorageConfig selects the profile store
type StorageConfig struct {
	Backend string
	Path    string
	Mongo   mongo.Config
}

// SpeechConfig selects the voice question transcriber and read-aloud voice
type SpeechConfig struct {
	Transcriber string
	Language    string
	TTS         tts.ElevenLabsConfig
}

// LiveConfig holds Live session defaults
type LiveConfig struct {
	Model     string
	Voice     string
	FrameSize int
}

// Config is the full server configuration
type Config struct {
	Server    ServerConfig
	Assistant string
	Gemini    llm.GeminiConfig
	Storage   StorageConfig
	JWTSecret string
	Speech    SpeechConfig
	Live      LiveConfig
}

// Load reads the environment, applies defaults and validates the result
func Load(logger *zap.Logger) (*Config, error) {
	cfg := &Config{
		Server:    ServerConfig{Port: os.Getenv("PORT")},
		Assistant: os.Getenv("ASSISTANT_BACKEND"),
		Gemini:    llm.NewGeminiConfigFromEnv(),
		Storage: StorageConfig{
			Backend: os.Getenv("STORAGE_BACKEND"),
			Path:    os.Getenv("STORAGE_PATH"),
			Mongo:   mongo.NewConfigFromEnv(),
		},
		JWTSecret: os.Getenv("JWT_SECRET"),
		Speech: SpeechConfig{
			Transcriber: os.Getenv("TRANSCRIBER"),
			Language:    os.Getenv("SPEECH_LANGUAGE"),
			TTS:         tts.NewElevenLabsConfigFromEnv(),
		},
		Live: LiveConfig{
			Model: os.Getenv("LIVE_MODEL"),
			Voice: os.Getenv("LIVE_VOICE"),
		},
	}

	if raw := os.Getenv("LIVE_FRAME_SIZE"); raw != "" {
		frameSize, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid LIVE_FRAME_SIZE %q: %w", raw, err)
		}
		cfg.Live.FrameSize = frameSize
	}

	cfg.applyDefaults(logger)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults(logger *zap.Logger) {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
		logger.Info("Using default port", zap.String("port", c.Server.Port))
	}
	if c.Assistant == "" {
		c.Assistant = BackendGemini
		if c.Gemini.APIKey == "" {
			c.Assistant = BackendMock
		}
		logger.Info("Using default assistant backend", zap.String("assistant", c.Assistant))
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageMemory
		logger.Info("Using default storage backend", zap.String("storage", c.Storage.Backend))
	}
	if c.Storage.Backend == StorageFile && c.Storage.Path == "" {
		c.Storage.Path = "data"
		logger.Info("Using default storage path", zap.String("path", c.Storage.Path))
	}
	if c.Speech.Transcriber == "" {
		c.Speech.Transcriber = TranscriberGemini
		logger.Info("Using default transcriber", zap.String("transcriber", c.Speech.Transcriber))
	}
	if c.Live.Model == "" {
		c.Live.Model = DefaultLiveModel
		logger.Info("Using default live model", zap.String("model", c.Live.Model))
	}
	if c.Live.Voice == "" {
		c.Live.Voice = DefaultLiveVoice
		logger.Info("Using default live voice", zap.String("voice", c.Live.Voice))
	}
	if c.Live.FrameSize == 0 {
		c.Live.FrameSize = live.DefaultFrameSize
		logger.Info("Using default live frame size", zap.Int("frameSize", c.Live.FrameSize))
	}
}

// Validate checks the combination of settings
func Validate(c *Config) error {
	switch c.Assistant {
	case BackendGemini:
		if err := llm.ValidateGeminiConfig(c.Gemini); err != nil {
			return err
		}
	case BackendMock:
	default:
		return fmt.Errorf("unknown ASSISTANT_BACKEND %q", c.Assistant)
	}

	switch c.Storage.Backend {
	case StorageMemory, StorageFile, StorageMongo:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	switch c.Speech.Transcriber {
	case TranscriberGemini, TranscriberGoogle:
	default:
		return fmt.Errorf("unknown TRANSCRIBER %q", c.Speech.Transcriber)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if c.Live.FrameSize <= 0 || c.Live.FrameSize&(c.Live.FrameSize-1) != 0 {
		return fmt.Errorf("LIVE_FRAME_SIZE must be a positive power of two, got %d", c.Live.FrameSize)
	}
	return nil
}

// SpeechEnabled reports whether read-aloud synthesis is configured
func (c *Config) SpeechEnabled() bool {
	return c.Speech.TTS.APIKey != ""
}
