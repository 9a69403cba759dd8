package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/domain/repositories"
)

const transcribeInstruction = "Transcribe this audio."

// GeminiTranscriber implements SpeechToText by asking a Gemini model to transcribe recorded audio
type GeminiTranscriber struct {
	client *genai.Client
	logger *zap.Logger
	model  string
}

// NewGeminiTranscriber creates a transcriber backed by the given model
func NewGeminiTranscriber(client *genai.Client, model string, logger *zap.Logger) *GeminiTranscriber {
	return &GeminiTranscriber{client: client, logger: logger, model: model}
}

// TranscribeAudio sends the recording inline and returns the model's transcription
func (t *GeminiTranscriber) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	mimeType := config.MIMEType
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(audioData, mimeType),
		genai.NewPartFromText(transcribeInstruction),
	}, genai.RoleUser)}

	response, err := t.client.Models.GenerateContent(ctx, t.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", classify(err))
	}

	text := responseText(response)
	if text == "" {
		return "", fmt.Errorf("no transcription returned: %w", domain.ErrEmptyResult)
	}

	t.logger.Info("Audio transcribed", zap.Int("bytes", len(audioData)), zap.Int("chars", len(text)))
	return text, nil
}
