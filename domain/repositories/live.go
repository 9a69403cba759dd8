package repositories

import (
	"context"

	"github.com/satriahrh/drishti/domain/entities"
)

// LiveConnector opens bidirectional audio sessions with the backend
type LiveConnector interface {
	Connect(ctx context.Context, config LiveConfig) (LiveSession, error)
}

// LiveConfig configures a live session
type LiveConfig struct {
	Model             string
	Voice             string
	SystemInstruction string
}

// LiveSession is an open live connection. Events are delivered in receipt
// order and the channel is closed after a closed or failed event.
type LiveSession interface {
	SendAudio(chunk entities.AudioChunk) error
	Events() <-chan LiveEvent
	Close() error
}

// LiveEventType identifies the kind of a live event
type LiveEventType string

const (
	LiveEventOpened       LiveEventType = "opened"
	LiveEventAudio        LiveEventType = "audio"
	LiveEventTranscript   LiveEventType = "transcript"
	LiveEventTurnComplete LiveEventType = "turn-complete"
	LiveEventClosed       LiveEventType = "closed"
	LiveEventFailed       LiveEventType = "failed"
)

// LiveEvent is a single typed event from a live session
type LiveEvent struct {
	Type LiveEventType
	// Audio is 16-bit little-endian PCM at 24 kHz
	Audio      []byte
	InputText  string
	OutputText string
	Err        error
}
