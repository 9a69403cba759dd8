package websocket

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/satriahrh/drishti/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Client to server message types
const (
	MessageTypeStart     MessageType = "start"
	MessageTypeStop      MessageType = "stop"
	MessageTypeMicDenied MessageType = "mic_denied"
	MessageTypePing      MessageType = "ping"
)

// Server to client message types
const (
	MessageTypeState      MessageType = "state"
	MessageTypeTranscript MessageType = "transcript"
	MessageTypeAudio      MessageType = "audio"
	MessageTypeError      MessageType = "error"
	MessageTypePong       MessageType = "pong"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
}

// ControlMessage is a text message sent by the client
type ControlMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// StateMessage reports the Live session state
type StateMessage struct {
	BaseMessage
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// TranscriptMessage carries the full reconciled turn list
type TranscriptMessage struct {
	BaseMessage
	Turns []entities.Turn `json:"turns"`
}

// AudioMessage carries one scheduled block of model speech
type AudioMessage struct {
	BaseMessage
	// Start is the playback time in seconds on the output clock
	Start      float64 `json:"start"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
	// Data is base64 16-bit little-endian mono PCM
	Data string `json:"data"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses and validates an incoming control message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	// Add timestamp if missing
	if msg.Timestamp == "" {
		msg.Timestamp = now()
	}

	switch msg.Type {
	case MessageTypeStart, MessageTypeStop, MessageTypeMicDenied, MessageTypePing:
		return &msg, nil
	case "":
		return nil, fmt.Errorf("message type is required")
	default:
		return nil, fmt.Errorf("unsupported message type: %s", msg.Type)
	}
}

// DecodeFloat32Frame reads a binary frame of little-endian float32 samples
func DecodeFloat32Frame(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("frame length %d is not a multiple of 4", len(data))
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples, nil
}

// EncodeFloat32Frame is the inverse of DecodeFloat32Frame
func EncodeFloat32Frame(samples []float32) []byte {
	data := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
	}
	return data
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

func base(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: now()}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{BaseMessage: base(MessageTypeError), Code: code, Message: message}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{BaseMessage: base(MessageTypePong), Data: data}
}

// CreateStateMessage creates a session state message
func CreateStateMessage(state string, err error) *StateMessage {
	msg := &StateMessage{BaseMessage: base(MessageTypeState), State: state}
	if err != nil {
		msg.Error = err.Error()
	}
	return msg
}

// CreateTranscriptMessage creates a transcript message
func CreateTranscriptMessage(turns []entities.Turn) *TranscriptMessage {
	if turns == nil {
		turns = []entities.Turn{}
	}
	return &TranscriptMessage{BaseMessage: base(MessageTypeTranscript), Turns: turns}
}

// CreateAudioMessage creates an audio playback message
func CreateAudioMessage(start, duration float64, sampleRate int, data string) *AudioMessage {
	return &AudioMessage{
		BaseMessage: base(MessageTypeAudio),
		Start:       start,
		Duration:    duration,
		SampleRate:  sampleRate,
		Data:        data,
	}
}
