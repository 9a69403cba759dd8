package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/domain/entities"
	"github.com/satriahrh/drishti/domain/repositories"
)

const liveEventBuffer = 64

// GeminiLive connects live audio sessions through the genai Live API
type GeminiLive struct {
	client *genai.Client
	logger *zap.Logger
}

// NewGeminiLive creates a new live connector
func NewGeminiLive(client *genai.Client, logger *zap.Logger) *GeminiLive {
	return &GeminiLive{client: client, logger: logger}
}

// Connect opens a session configured for spoken replies with both transcriptions enabled
func (g *GeminiLive) Connect(ctx context.Context, config repositories.LiveConfig) (repositories.LiveSession, error) {
	connectConfig := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
		SystemInstruction:        systemInstruction(config.SystemInstruction),
	}
	if config.Voice != "" {
		connectConfig.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: config.Voice},
			},
		}
	}

	session, err := g.client.Live.Connect(ctx, config.Model, connectConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open live session: %w: %w", domain.ErrTransport, classify(err))
	}

	s := &geminiLiveSession{
		session: session,
		logger:  g.logger,
		events:  make(chan repositories.LiveEvent, liveEventBuffer),
		done:    make(chan struct{}),
	}
	// The socket is usable once Connect returns
	s.emit(repositories.LiveEvent{Type: repositories.LiveEventOpened})
	go s.receiveLoop()

	g.logger.Info("Live session connected", zap.String("model", config.Model), zap.String("voice", config.Voice))
	return s, nil
}

type geminiLiveSession struct {
	session *genai.Session
	logger  *zap.Logger
	events  chan repositories.LiveEvent
	done    chan struct{}
	once    sync.Once
	sendMu  sync.Mutex
}

// SendAudio streams one PCM chunk as realtime input
func (s *geminiLiveSession) SendAudio(chunk entities.AudioChunk) error {
	select {
	case <-s.done:
		return errors.New("live session closed")
	default:
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	err := s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: chunk.Data, MIMEType: chunk.MIMEType},
	})
	if err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

func (s *geminiLiveSession) Events() <-chan repositories.LiveEvent {
	return s.events
}

// Close closes the socket. It never waits for the receive loop.
func (s *geminiLiveSession) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.session.Close()
	})
	return err
}

func (s *geminiLiveSession) emit(ev repositories.LiveEvent) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *geminiLiveSession) receiveLoop() {
	defer close(s.events)
	for {
		message, err := s.session.Receive()
		if err != nil {
			select {
			case <-s.done:
				// closed locally
				return
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Info("Live session closed by server", zap.Error(err))
				s.emit(repositories.LiveEvent{Type: repositories.LiveEventClosed})
				return
			}
			s.logger.Error("Live session receive failed", zap.Error(err))
			s.emit(repositories.LiveEvent{Type: repositories.LiveEventFailed, Err: fmt.Errorf("%w: %v", domain.ErrTransport, err)})
			return
		}

		for _, ev := range translateServerMessage(message) {
			if !s.emit(ev) {
				return
			}
		}
	}
}

// translateServerMessage converts one server message into events in the
// order audio, transcript, turn-complete
func translateServerMessage(message *genai.LiveServerMessage) []repositories.LiveEvent {
	if message == nil || message.ServerContent == nil {
		return nil
	}
	content := message.ServerContent

	var events []repositories.LiveEvent
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				events = append(events, repositories.LiveEvent{Type: repositories.LiveEventAudio, Audio: part.InlineData.Data})
			}
		}
	}

	var transcript repositories.LiveEvent
	if content.InputTranscription != nil {
		transcript.InputText = content.InputTranscription.Text
	}
	if content.OutputTranscription != nil {
		transcript.OutputText = content.OutputTranscription.Text
	}
	if transcript.InputText != "" || transcript.OutputText != "" {
		transcript.Type = repositories.LiveEventTranscript
		events = append(events, transcript)
	}

	if content.TurnComplete {
		events = append(events, repositories.LiveEvent{Type: repositories.LiveEventTurnComplete})
	}
	return events
}
