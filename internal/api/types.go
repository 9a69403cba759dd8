package api

import (
	"time"

	"github.com/satriahrh/drishti/domain/entities"
)

// SetupRequest represents the onboarding wizard submission
type SetupRequest struct {
	UserProfile   entities.UserProfile   `json:"userProfile"`
	SurveyAnswers entities.SurveyAnswers `json:"surveyAnswers"`
}

// SetupResponse carries the new profile's token
type SetupResponse struct {
	ProfileID string    `json:"profile_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProfileResponse is the stored profile plus the greeting for the chat screen
type ProfileResponse struct {
	UserProfile           *entities.UserProfile   `json:"userProfile"`
	SurveyAnswers         *entities.SurveyAnswers `json:"surveyAnswers"`
	AssistantInstructions string                  `json:"assistantInstructions"`
	Greeting              string                  `json:"greeting"`
}

// SettingsRequest represents a settings save
type SettingsRequest struct {
	UserProfile           entities.UserProfile `json:"userProfile"`
	AssistantInstructions string               `json:"assistantInstructions"`
}

// AskRequest represents a chat question. Attachment data is base64.
type AskRequest struct {
	Text       string              `json:"text"`
	UsePro     bool                `json:"usePro"`
	UseSearch  bool                `json:"useSearch"`
	Attachment *entities.MediaFile `json:"attachment,omitempty"`
}

// SpeakRequest asks for text to be read aloud
type SpeakRequest struct {
	Text string `json:"text"`
}

// VisionResponse carries the analysis text
type VisionResponse struct {
	Mode   entities.RecognitionMode `json:"mode"`
	Result string                   `json:"result"`
}

// ImageRequest asks for a new image
type ImageRequest struct {
	Prompt string `json:"prompt"`
}

// ImageResponse carries a generated image as a data URL
type ImageResponse struct {
	Image string `json:"image"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
