package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/domain/entities"
	"github.com/satriahrh/drishti/domain/repositories"
)

// DefaultVideoPollInterval is how often a running video generation is polled
const DefaultVideoPollInterval = 10 * time.Second

// MsgNoVideoLink is reported when a finished generation carries no video
const MsgNoVideoLink = "Video generation failed or returned no link."

// VideoRequest asks for a generated video
type VideoRequest struct {
	Prompt      string
	AspectRatio entities.AspectRatio
	Image       *entities.MediaFile
}

// GenerateService creates images and videos
type GenerateService struct {
	assistant    repositories.Assistant
	pollInterval time.Duration
	logger       *zap.Logger
}

// NewGenerateService creates a new generate service
func NewGenerateService(assistant repositories.Assistant, pollInterval time.Duration, logger *zap.Logger) *GenerateService {
	if pollInterval <= 0 {
		pollInterval = DefaultVideoPollInterval
	}
	return &GenerateService{
		assistant:    assistant,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// GenerateImage creates an image from a prompt and returns it as a PNG data URL
func (s *GenerateService) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return s.image(ctx, prompt, nil)
}

// EditImage applies a prompt to an uploaded image and returns a PNG data URL
func (s *GenerateService) EditImage(ctx context.Context, source *entities.MediaFile, prompt string) (string, error) {
	if source == nil {
		return "", fmt.Errorf("an image to edit is required: %w", domain.ErrInvalidInput)
	}
	if err := source.Validate(); err != nil {
		return "", fmt.Errorf("invalid image: %w: %w", domain.ErrInvalidInput, err)
	}
	if !source.IsImage() {
		return "", fmt.Errorf("please select an image file: %w", domain.ErrInvalidInput)
	}
	return s.image(ctx, prompt, source)
}

func (s *GenerateService) image(ctx context.Context, prompt string, source *entities.MediaFile) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty: %w", domain.ErrInvalidInput)
	}

	image, err := s.assistant.GenerateImage(ctx, repositories.ImageRequest{
		Model:  ModelImage,
		Prompt: prompt,
		Source: source,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate image: %w", err)
	}
	if image == nil || len(image.Data) == 0 {
		return "", fmt.Errorf("no image returned: %w", domain.ErrEmptyResult)
	}

	// The backend always answers with PNG bytes
	png := entities.MediaFile{MIMEType: "image/png", Data: image.Data}
	return png.DataURL(), nil
}

// GenerateVideo submits a video generation and polls until it finishes
func (s *GenerateService) GenerateVideo(ctx context.Context, req VideoRequest) (*entities.MediaFile, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt cannot be empty: %w", domain.ErrInvalidInput)
	}
	if req.AspectRatio == "" {
		req.AspectRatio = entities.AspectLandscape
	}
	if !req.AspectRatio.Valid() {
		return nil, fmt.Errorf("unsupported aspect ratio %q: %w", req.AspectRatio, domain.ErrInvalidInput)
	}
	if req.Image != nil {
		if err := req.Image.Validate(); err != nil {
			return nil, fmt.Errorf("invalid seed image: %w: %w", domain.ErrInvalidInput, err)
		}
	}

	op, err := s.assistant.StartVideo(ctx, repositories.VideoRequest{
		Model:       ModelVideo,
		Prompt:      req.Prompt,
		AspectRatio: req.AspectRatio,
		Resolution:  VideoResolution,
		Image:       req.Image,
	})
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	polls := 0
	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		if op, err = s.assistant.PollVideo(ctx, op); err != nil {
			return nil, err
		}
		polls++
	}

	s.logger.Info("Video generation finished",
		zap.String("operation", op.Name),
		zap.Int("polls", polls))

	if op.VideoURI == "" {
		return nil, fmt.Errorf("%s: %w", MsgNoVideoLink, domain.ErrEmptyResult)
	}

	video, err := s.assistant.DownloadVideo(ctx, op)
	if err != nil {
		s.logger.Error("Video download error", zap.String("operation", op.Name), zap.Error(err))
		return nil, err
	}
	return video, nil
}
