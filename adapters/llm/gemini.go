package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/domain/entities"
	"github.com/satriahrh/drishti/domain/repositories"
)

const (
	defaultTimeoutSeconds = 120
	// notFoundMessage is what the file service answers when the key cannot see the video
	notFoundMessage = "Requested entity was not found."
)

// GeminiConfig holds the Gemini client configuration
type GeminiConfig struct {
	APIKey         string
	TimeoutSeconds int
}

// NewGeminiConfigFromEnv reads GEMINI_API_KEY (or API_KEY) and GEMINI_TIMEOUT_SECONDS
func NewGeminiConfigFromEnv() GeminiConfig {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("API_KEY")
	}
	timeout, _ := strconv.Atoi(os.Getenv("GEMINI_TIMEOUT_SECONDS"))
	return GeminiConfig{APIKey: apiKey, TimeoutSeconds: timeout}
}

// ValidateGeminiConfig validates the GeminiConfig
func ValidateGeminiConfig(config GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required: %w", domain.ErrMissingCredential)
	}
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}
	return nil
}

// NewGeminiClient creates a genai client for the Gemini Developer API
func NewGeminiClient(ctx context.Context, config GeminiConfig) (*genai.Client, error) {
	if err := ValidateGeminiConfig(config); err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// GeminiAssistant implements the Assistant interface using Google's Gemini API
type GeminiAssistant struct {
	client  *genai.Client
	logger  *zap.Logger
	timeout time.Duration
}

// NewGeminiAssistant creates a new Gemini assistant
func NewGeminiAssistant(client *genai.Client, config GeminiConfig, logger *zap.Logger) *GeminiAssistant {
	timeoutSeconds := config.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = defaultTimeoutSeconds
		logger.Info("Using default timeoutSeconds", zap.Int("timeoutSeconds", timeoutSeconds))
	}
	return &GeminiAssistant{
		client:  client,
		logger:  logger,
		timeout: time.Duration(timeoutSeconds) * time.Second,
	}
}

// GenerateText answers a prompt with optional search grounding, thinking budget or image attachment
func (g *GeminiAssistant) GenerateText(ctx context.Context, req repositories.TextRequest) (*repositories.TextResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	if req.Attachment != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Attachment.Data, req.Attachment.MIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	config := &genai.GenerateContentConfig{SystemInstruction: systemInstruction(req.SystemInstruction)}
	if req.Search {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.ThinkingBudget != 0 {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(req.ThinkingBudget)}
	}

	response, err := g.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", classify(err))
	}

	text := responseText(response)
	if text == "" {
		g.logger.Warn("Empty text response", zap.String("model", req.Model))
		return nil, fmt.Errorf("model %s returned no text: %w", req.Model, domain.ErrEmptyResult)
	}

	result := &repositories.TextResponse{Text: text}
	if req.Search {
		result.Sources = extractSources(response)
	}

	g.logger.Info("Text generated",
		zap.String("model", req.Model),
		zap.Bool("search", req.Search),
		zap.Int("sources", len(result.Sources)),
		zap.String("responsePreview", text[:min(50, len(text))]))
	return result, nil
}

// AnalyzeMedia answers a prompt about a single uploaded file
func (g *GeminiAssistant) AnalyzeMedia(ctx context.Context, req repositories.MediaRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(req.File.Data, req.File.MIMEType),
		genai.NewPartFromText(req.Prompt),
	}, genai.RoleUser)}

	response, err := g.client.Models.GenerateContent(ctx, req.Model, contents, &genai.GenerateContentConfig{
		SystemInstruction: systemInstruction(req.SystemInstruction),
	})
	if err != nil {
		return "", fmt.Errorf("failed to analyze media: %w", classify(err))
	}

	text := responseText(response)
	if text == "" {
		return "", fmt.Errorf("analysis returned no text: %w", domain.ErrEmptyResult)
	}

	g.logger.Info("Media analyzed",
		zap.String("model", req.Model),
		zap.String("mimeType", req.File.MIMEType),
		zap.Int("bytes", len(req.File.Data)))
	return text, nil
}

// GenerateImage creates an image from a prompt or edits the source image
func (g *GeminiAssistant) GenerateImage(ctx context.Context, req repositories.ImageRequest) (*entities.MediaFile, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var parts []*genai.Part
	if req.Source != nil {
		parts = append(parts, genai.NewPartFromBytes(req.Source.Data, req.Source.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))

	response, err := g.client.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{ResponseModalities: []string{string(genai.ModalityImage)}})
	if err != nil {
		return nil, fmt.Errorf("failed to generate image: %w", classify(err))
	}

	image := firstImage(response)
	if image == nil {
		return nil, fmt.Errorf("no image in response: %w", domain.ErrEmptyResult)
	}

	g.logger.Info("Image generated", zap.Bool("edit", req.Source != nil), zap.Int("bytes", len(image.Data)))
	return image, nil
}

// StartVideo submits a video generation operation
func (g *GeminiAssistant) StartVideo(ctx context.Context, req repositories.VideoRequest) (*repositories.VideoOperation, error) {
	var image *genai.Image
	if req.Image != nil {
		image = &genai.Image{ImageBytes: req.Image.Data, MIMEType: req.Image.MIMEType}
	}

	op, err := g.client.Models.GenerateVideos(ctx, req.Model, req.Prompt, image, &genai.GenerateVideosConfig{
		NumberOfVideos: 1,
		Resolution:     req.Resolution,
		AspectRatio:    string(req.AspectRatio),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start video generation: %w", classify(err))
	}

	g.logger.Info("Video generation started", zap.String("operation", op.Name), zap.String("aspectRatio", string(req.AspectRatio)))
	return toVideoOperation(op), nil
}

// PollVideo refreshes a video generation operation
func (g *GeminiAssistant) PollVideo(ctx context.Context, op *repositories.VideoOperation) (*repositories.VideoOperation, error) {
	handle, ok := op.Handle.(*genai.GenerateVideosOperation)
	if !ok {
		handle = &genai.GenerateVideosOperation{Name: op.Name}
	}

	updated, err := g.client.Operations.GetVideosOperation(ctx, handle, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to poll video operation: %w", classify(err))
	}
	return toVideoOperation(updated), nil
}

// DownloadVideo fetches the generated video bytes
func (g *GeminiAssistant) DownloadVideo(ctx context.Context, op *repositories.VideoOperation) (*entities.MediaFile, error) {
	handle, ok := op.Handle.(*genai.GenerateVideosOperation)
	if !ok || handle.Response == nil || len(handle.Response.GeneratedVideos) == 0 {
		return nil, fmt.Errorf("video generation failed or returned no link: %w", domain.ErrEmptyResult)
	}

	video := handle.Response.GeneratedVideos[0]
	data, err := g.client.Files.Download(ctx, genai.NewDownloadURIFromGeneratedVideo(video), nil)
	if err != nil {
		g.logger.Error("Video download failed", zap.String("uri", op.VideoURI), zap.Error(err))
		return nil, fmt.Errorf("failed to download video: %w", classify(err))
	}

	mimeType := "video/mp4"
	if video.Video != nil && video.Video.MIMEType != "" {
		mimeType = video.Video.MIMEType
	}
	return &entities.MediaFile{Name: "video.mp4", MIMEType: mimeType, Data: data}, nil
}

func toVideoOperation(op *genai.GenerateVideosOperation) *repositories.VideoOperation {
	result := &repositories.VideoOperation{Name: op.Name, Done: op.Done, Handle: op}
	if op.Response != nil && len(op.Response.GeneratedVideos) > 0 {
		if v := op.Response.GeneratedVideos[0].Video; v != nil {
			result.VideoURI = v.URI
		}
	}
	return result
}

// classify maps backend errors onto domain error kinds
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if strings.Contains(apiErr.Message, notFoundMessage) || apiErr.Code == 401 || apiErr.Code == 403 {
			return fmt.Errorf("%w: %s", domain.ErrMissingCredential, apiErr.Message)
		}
		return err
	}
	if strings.Contains(err.Error(), notFoundMessage) {
		return fmt.Errorf("%w: %v", domain.ErrMissingCredential, err)
	}
	return err
}

func systemInstruction(text string) *genai.Content {
	if text == "" {
		return nil
	}
	return genai.NewContentFromText(text, genai.RoleUser)
}

// responseText joins the non-thought text parts of the first candidate
func responseText(response *genai.GenerateContentResponse) string {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

// extractSources returns the web citations of the first candidate in order
func extractSources(response *genai.GenerateContentResponse) []entities.Source {
	if response == nil || len(response.Candidates) == 0 {
		return nil
	}
	metadata := response.Candidates[0].GroundingMetadata
	if metadata == nil {
		return nil
	}

	var sources []entities.Source
	for _, chunk := range metadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		sources = append(sources, entities.Source{URI: chunk.Web.URI, Title: chunk.Web.Title})
	}
	return sources
}

// firstImage returns the first inline image of the first candidate
func firstImage(response *genai.GenerateContentResponse) *entities.MediaFile {
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range response.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil && len(part.InlineData.Data) > 0 {
			// Images are always presented as PNG
			return &entities.MediaFile{Name: "image.png", MIMEType: "image/png", Data: part.InlineData.Data}
		}
	}
	return nil
}
