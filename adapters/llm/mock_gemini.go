package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/domain/entities"
	"github.com/satriahrh/drishti/domain/repositories"
)

// MockAssistant is an offline Assistant for local development
type MockAssistant struct{}

// NewMockAssistant creates a new mock assistant
func NewMockAssistant() *MockAssistant {
	return &MockAssistant{}
}

// GenerateText implements repositories.Assistant
func (m *MockAssistant) GenerateText(ctx context.Context, req repositories.TextRequest) (*repositories.TextResponse, error) {
	response := &repositories.TextResponse{
		Text: fmt.Sprintf("You asked (%s): %s", req.Model, req.Prompt),
	}
	if req.Search {
		response.Sources = []entities.Source{{URI: "https://example.com", Title: "Example"}}
	}
	return response, nil
}

// AnalyzeMedia implements repositories.Assistant
func (m *MockAssistant) AnalyzeMedia(ctx context.Context, req repositories.MediaRequest) (string, error) {
	return fmt.Sprintf("The %s file %q is %d bytes long.", req.File.MIMEType, req.File.Name, len(req.File.Data)), nil
}

// GenerateImage implements repositories.Assistant and returns a 1x1 PNG
func (m *MockAssistant) GenerateImage(ctx context.Context, req repositories.ImageRequest) (*entities.MediaFile, error) {
	return &entities.MediaFile{Name: "image.png", MIMEType: "image/png", Data: onePixelPNG}, nil
}

// StartVideo implements repositories.Assistant
func (m *MockAssistant) StartVideo(ctx context.Context, req repositories.VideoRequest) (*repositories.VideoOperation, error) {
	return &repositories.VideoOperation{Name: fmt.Sprintf("operations/mock-%d", time.Now().UnixNano())}, nil
}

// PollVideo implements repositories.Assistant; operations finish on the first poll
func (m *MockAssistant) PollVideo(ctx context.Context, op *repositories.VideoOperation) (*repositories.VideoOperation, error) {
	return &repositories.VideoOperation{Name: op.Name, Done: true, VideoURI: "mock://" + op.Name}, nil
}

// DownloadVideo implements repositories.Assistant
func (m *MockAssistant) DownloadVideo(ctx context.Context, op *repositories.VideoOperation) (*entities.MediaFile, error) {
	if op.VideoURI == "" {
		return nil, domain.ErrEmptyResult
	}
	return &entities.MediaFile{Name: "video.mp4", MIMEType: "video/mp4", Data: []byte("mock video")}, nil
}

// TranscribeAudio implements repositories.SpeechToText
func (m *MockAssistant) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	return fmt.Sprintf("recording of %d bytes", len(audioData)), nil
}

var onePixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// MockLive is an offline LiveConnector. Every ChunksPerTurn uploaded chunks
// count as one utterance and are answered with silence and a canned transcript.
type MockLive struct {
	// ChunksPerTurn is how many chunks make up one user utterance
	ChunksPerTurn int
}

// NewMockLive creates a new mock live connector
func NewMockLive() *MockLive {
	return &MockLive{ChunksPerTurn: 50}
}

// Connect implements repositories.LiveConnector
func (m *MockLive) Connect(ctx context.Context, config repositories.LiveConfig) (repositories.LiveSession, error) {
	per := m.ChunksPerTurn
	if per <= 0 {
		per = 1
	}
	s := &mockLiveSession{
		perTurn: per,
		events:  make(chan repositories.LiveEvent, liveEventBuffer),
		done:    make(chan struct{}),
	}
	s.events <- repositories.LiveEvent{Type: repositories.LiveEventOpened}
	return s, nil
}

type mockLiveSession struct {
	mu      sync.Mutex
	perTurn int
	chunks  int
	turns   int
	events  chan repositories.LiveEvent
	done    chan struct{}
	once    sync.Once
}

func (s *mockLiveSession) SendAudio(chunk entities.AudioChunk) error {
	select {
	case <-s.done:
		return errors.New("live session closed")
	default:
	}

	s.mu.Lock()
	s.chunks++
	reply := s.chunks%s.perTurn == 0
	turn := s.turns
	if reply {
		s.turns++
	}
	s.mu.Unlock()

	if reply {
		s.emit(repositories.LiveEvent{Type: repositories.LiveEventTranscript, InputText: fmt.Sprintf("utterance %d", turn+1)})
		s.emit(repositories.LiveEvent{Type: repositories.LiveEventAudio, Audio: make([]byte, 4800)})
		s.emit(repositories.LiveEvent{Type: repositories.LiveEventTranscript, OutputText: "I heard you."})
		s.emit(repositories.LiveEvent{Type: repositories.LiveEventTurnComplete})
	}
	return nil
}

func (s *mockLiveSession) emit(ev repositories.LiveEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

func (s *mockLiveSession) Events() <-chan repositories.LiveEvent {
	return s.events
}

func (s *mockLiveSession) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}
