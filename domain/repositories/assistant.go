package repositories

import (
	"context"

	"github.com/satriahrh/drishti/domain/entities"
)

// Assistant abstracts the hosted generative backend used by the
// chat, vision and media generation features
type Assistant interface {
	// GenerateText answers a single prompt, optionally grounded on search or
	// using an extended thinking budget
	GenerateText(ctx context.Context, req TextRequest) (*TextResponse, error)
	// AnalyzeMedia answers a prompt about an uploaded file
	AnalyzeMedia(ctx context.Context, req MediaRequest) (string, error)
	// GenerateImage creates a new image, or edits Source when it is set
	GenerateImage(ctx context.Context, req ImageRequest) (*entities.MediaFile, error)
	// StartVideo submits a long-running video generation
	StartVideo(ctx context.Context, req VideoRequest) (*VideoOperation, error)
	// PollVideo refreshes the status of a video generation
	PollVideo(ctx context.Context, op *VideoOperation) (*VideoOperation, error)
	// DownloadVideo fetches the generated video behind an authenticated link
	DownloadVideo(ctx context.Context, op *VideoOperation) (*entities.MediaFile, error)
}

// TextRequest describes a chat completion request
type TextRequest struct {
	Model             string
	Prompt            string
	SystemInstruction string
	// Search enables web search grounding
	Search bool
	// ThinkingBudget is passed through when non-zero
	ThinkingBudget int32
	Attachment     *entities.MediaFile
}

// TextResponse is a chat completion
type TextResponse struct {
	Text    string
	Sources []entities.Source
}

// MediaRequest describes a media analysis request
type MediaRequest struct {
	Model             string
	Prompt            string
	SystemInstruction string
	File              entities.MediaFile
}

// ImageRequest describes an image generation or edit
type ImageRequest struct {
	Model  string
	Prompt string
	Source *entities.MediaFile
}

// VideoRequest describes a video generation
type VideoRequest struct {
	Model       string
	Prompt      string
	AspectRatio entities.AspectRatio
	Resolution  string
	Image       *entities.MediaFile
}

// VideoOperation tracks a long-running video generation
type VideoOperation struct {
	Name     string
	Done     bool
	VideoURI string
	// Handle is the provider's operation object, opaque to callers
	Handle any
}
