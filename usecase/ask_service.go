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

// User-visible replies used when the backend cannot answer
const (
	MsgAskFailed        = "Sorry, I encountered an error."
	MsgTranscribeFailed = "Could not transcribe audio."
)

// AskRequest is a single chat question
type AskRequest struct {
	Text string
	// Attachment must be an image when set and takes precedence over every mode
	Attachment   *entities.MediaFile
	UsePro       bool
	UseSearch    bool
	Instructions string
}

// VoiceRequest is a recorded question
type VoiceRequest struct {
	Audio    []byte
	MIMEType string
	AskRequest
}

// VoiceReply carries what was heard alongside the answer
type VoiceReply struct {
	Transcript string              `json:"transcript"`
	Reply      entities.ChatMessage `json:"reply"`
}

// AskService answers chat questions
type AskService struct {
	assistant   repositories.Assistant
	transcriber repositories.SpeechToText
	speaker     repositories.TextToSpeech
	logger      *zap.Logger
}

// NewAskService creates a new ask service. speaker may be nil when read-aloud is not configured.
func NewAskService(assistant repositories.Assistant, transcriber repositories.SpeechToText, speaker repositories.TextToSpeech, logger *zap.Logger) *AskService {
	return &AskService{
		assistant:   assistant,
		transcriber: transcriber,
		speaker:     speaker,
		logger:      logger,
	}
}

// BuildTextRequest picks the model for a question: attachment, then pro thinking, then search, then lite
func BuildTextRequest(req AskRequest) repositories.TextRequest {
	textReq := repositories.TextRequest{
		Prompt:            req.Text,
		SystemInstruction: req.Instructions,
	}
	switch {
	case req.Attachment != nil:
		textReq.Model = ModelFile
		textReq.Attachment = req.Attachment
	case req.UsePro:
		textReq.Model = ModelPro
		textReq.ThinkingBudget = ProThinkingBudget
	case req.UseSearch:
		textReq.Model = ModelSearch
		textReq.Search = true
	default:
		textReq.Model = ModelLite
	}
	return textReq
}

// Ask answers a question. Backend failures become the fallback reply;
// only invalid input is returned as an error.
func (s *AskService) Ask(ctx context.Context, req AskRequest) (entities.ChatMessage, error) {
	if strings.TrimSpace(req.Text) == "" {
		return entities.ChatMessage{}, fmt.Errorf("question cannot be empty: %w", domain.ErrInvalidInput)
	}
	if req.Attachment != nil {
		if err := req.Attachment.Validate(); err != nil {
			return entities.ChatMessage{}, fmt.Errorf("invalid attachment: %w: %w", domain.ErrInvalidInput, err)
		}
		if !req.Attachment.IsImage() {
			return entities.ChatMessage{}, fmt.Errorf("please select an image file: %w", domain.ErrInvalidInput)
		}
	}

	textReq := BuildTextRequest(req)
	response, err := s.assistant.GenerateText(ctx, textReq)
	if err != nil {
		s.logger.Error("Error generating response",
			zap.String("model", textReq.Model),
			zap.Error(err))
		return entities.NewModelMessage(MsgAskFailed, nil), nil
	}

	s.logger.Debug("Answer generated",
		zap.String("model", textReq.Model),
		zap.Int("sources", len(response.Sources)))
	return entities.NewModelMessage(response.Text, response.Sources), nil
}

// AskByVoice transcribes a recording and asks the transcript
func (s *AskService) AskByVoice(ctx context.Context, req VoiceRequest) (VoiceReply, error) {
	if len(req.Audio) == 0 {
		return VoiceReply{}, fmt.Errorf("recording is empty: %w", domain.ErrInvalidInput)
	}
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	transcript, err := s.transcriber.TranscribeAudio(ctx, req.Audio, repositories.AudioConfig{MIMEType: mimeType})
	if err == nil && strings.TrimSpace(transcript) == "" {
		err = domain.ErrEmptyResult
	}
	if err != nil {
		s.logger.Error("Transcription error", zap.Error(err))
		return VoiceReply{Reply: entities.NewModelMessage(MsgTranscribeFailed, nil)}, nil
	}

	ask := req.AskRequest
	ask.Text = transcript
	reply, err := s.Ask(ctx, ask)
	if err != nil {
		return VoiceReply{}, err
	}
	return VoiceReply{Transcript: transcript, Reply: reply}, nil
}

// Speak streams a spoken rendition of text as 16-bit PCM at the returned sample rate
func (s *AskService) Speak(ctx context.Context, text string) (<-chan []byte, int, error) {
	if s.speaker == nil {
		return nil, 0, fmt.Errorf("read-aloud is not configured: %w", domain.ErrMissingCredential)
	}
	chunks, err := s.speaker.ConvertTextToSpeech(ctx, text)
	if err != nil {
		return nil, 0, err
	}
	return chunks, s.speaker.SampleRate(), nil
}

// Greeting returns the salutation shown above the chat for the given local time
func Greeting(now time.Time, profile *entities.UserProfile) string {
	var greeting string
	switch hour := now.Hour(); {
	case hour < 12:
		greeting = "Good Morning"
	case hour < 18:
		greeting = "Good Afternoon"
	default:
		greeting = "Good Evening"
	}
	if profile == nil || profile.DisplayName() == "" {
		return greeting
	}
	return fmt.Sprintf("%s, %s!", greeting, profile.DisplayName())
}
