package stt

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/domain/repositories"
)

const defaultLanguage = "en-US"

// GoogleSpeechToText implements SpeechToText with Google Cloud Speech-to-Text
type GoogleSpeechToText struct {
	client   *speech.Client
	logger   *zap.Logger
	language string
}

// NewGoogleSpeechToText creates a Cloud Speech client using application default credentials
func NewGoogleSpeechToText(ctx context.Context, language string, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	if language == "" {
		language = defaultLanguage
		logger.Info("Using default language", zap.String("language", language))
	}
	return &GoogleSpeechToText{client: client, logger: logger, language: language}, nil
}

// TranscribeAudio converts a complete recording to text (non-streaming)
func (g *GoogleSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data received: %w", domain.ErrInvalidInput)
	}

	encodingName := config.Encoding
	if encodingName == "" {
		encodingName = encodingForMIME(config.MIMEType)
	}
	encoding, err := getAudioEncoding(encodingName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	language := config.Language
	if language == "" {
		language = g.language
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:     encoding,
		LanguageCode: language,
	}
	// Container formats carry their own rate
	if config.SampleRate > 0 {
		recognitionConfig.SampleRateHertz = int32(config.SampleRate)
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: recognitionConfig,
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audioData}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to recognize speech: %w", err)
	}

	transcript := joinTranscripts(resp.GetResults())
	if transcript == "" {
		return "", fmt.Errorf("no speech detected in audio: %w", domain.ErrEmptyResult)
	}

	g.logger.Info("Audio transcribed",
		zap.Int("audioSize", len(audioData)),
		zap.String("encoding", encodingName),
		zap.String("language", language))
	return transcript, nil
}

// Close releases the underlying client
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// joinTranscripts concatenates the best alternative of each result
func joinTranscripts(results []*speechpb.SpeechRecognitionResult) string {
	var parts []string
	for _, result := range results {
		if alts := result.GetAlternatives(); len(alts) > 0 && alts[0].GetTranscript() != "" {
			parts = append(parts, strings.TrimSpace(alts[0].GetTranscript()))
		}
	}
	return strings.Join(parts, " ")
}

// encodingForMIME guesses the encoding name of a recorded clip
func encodingForMIME(mimeType string) string {
	base := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	switch base {
	case "audio/webm":
		return "WEBM_OPUS"
	case "audio/ogg":
		return "OGG_OPUS"
	case "audio/flac", "audio/x-flac":
		return "FLAC"
	case "audio/wav", "audio/x-wav", "audio/pcm", "audio/l16":
		return "LINEAR16"
	default:
		return ""
	}
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %q", encoding)
	}
}
