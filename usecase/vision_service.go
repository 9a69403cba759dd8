package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/domain/entities"
	"github.com/satriahrh/drishti/domain/repositories"
)

// VisionRequest asks a question about an uploaded file
type VisionRequest struct {
	Mode         entities.RecognitionMode
	File         *entities.MediaFile
	Prompt       string
	Instructions string
}

// VisionService analyzes uploaded media
type VisionService struct {
	assistant repositories.Assistant
	logger    *zap.Logger
}

// NewVisionService creates a new vision service
func NewVisionService(assistant repositories.Assistant, logger *zap.Logger) *VisionService {
	return &VisionService{assistant: assistant, logger: logger}
}

// Analyze returns the analysis text. A backend failure is reported inside
// the returned text; only missing input is returned as an error.
func (s *VisionService) Analyze(ctx context.Context, req VisionRequest) (string, error) {
	if req.Mode != "" && !req.Mode.Valid() {
		return "", fmt.Errorf("unknown recognition mode %q: %w", req.Mode, domain.ErrInvalidInput)
	}
	if req.File == nil || strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("please upload a file and provide a prompt: %w", domain.ErrInvalidInput)
	}
	if err := req.File.Validate(); err != nil {
		return "", fmt.Errorf("invalid file: %w: %w", domain.ErrInvalidInput, err)
	}

	result, err := s.assistant.AnalyzeMedia(ctx, repositories.MediaRequest{
		Model:             ModelVision,
		Prompt:            req.Prompt,
		SystemInstruction: req.Instructions,
		File:              *req.File,
	})
	if err != nil {
		s.logger.Error("Error analyzing media",
			zap.String("mode", string(req.Mode)),
			zap.String("mimeType", req.File.MIMEType),
			zap.Error(err))
		return fmt.Sprintf("An error occurred during analysis: %s. Please try again.", err.Error()), nil
	}
	return result, nil
}
