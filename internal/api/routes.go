package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/domain/entities"
	"github.com/satriahrh/drishti/internal/auth"
	"github.com/satriahrh/drishti/internal/websocket"
	"github.com/satriahrh/drishti/usecase"
)

// Dependencies are the services behind the HTTP surface
type Dependencies struct {
	Profiles *usecase.ProfileService
	Ask      *usecase.AskService
	Vision   *usecase.VisionService
	Generate *usecase.GenerateService
	Issuer   *auth.Issuer
	Hub      *websocket.Hub
	// Now is the clock used for greetings, time.Now when nil
	Now func() time.Time
}

type handler struct {
	Dependencies
	logger *zap.Logger
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, deps Dependencies, logger *zap.Logger) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	h := &handler{Dependencies: deps, logger: logger}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"service":     "drishti-server",
			"liveClients": deps.Hub.ClientCount(),
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")
	v1.POST("/setup", h.setup)

	authed := v1.Group("", requireProfile(deps.Issuer, logger))
	authed.GET("/profile", h.getProfile)
	authed.PUT("/settings", h.saveSettings)
	authed.GET("/export", h.export)
	authed.DELETE("/account", h.deleteAccount)
	authed.POST("/ask", h.ask)
	authed.POST("/ask/voice", h.askVoice)
	authed.POST("/speak", h.speak)
	authed.POST("/vision/analyze", h.analyze)
	authed.POST("/generate/image", h.generateImage)
	authed.POST("/generate/image/edit", h.editImage)
	authed.POST("/generate/video", h.generateVideo)

	// WebSocket endpoint with JWT validation
	e.GET("/ws/live", h.live, requireProfile(deps.Issuer, logger))
}

func (h *handler) setup(c echo.Context) error {
	var req SetupRequest
	if err := c.Bind(&req); err != nil {
		h.logger.Error("Failed to bind setup request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	id, err := h.Profiles.Setup(c.Request().Context(), req.UserProfile, req.SurveyAnswers)
	if err != nil {
		return h.writeError(c, err)
	}

	token, expiresAt, err := h.Issuer.GenerateProfileToken(id)
	if err != nil {
		h.logger.Error("Failed to generate profile token",
			zap.String("profileID", id),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	return c.JSON(http.StatusCreated, SetupResponse{
		ProfileID: id,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// loadProfile returns the caller's state, or an error response when setup
// has not been completed or the stored data had to be wiped
func (h *handler) loadProfile(c echo.Context) (*usecase.ProfileState, error) {
	state, err := h.Profiles.Load(c.Request().Context(), profileID(c))
	if err != nil {
		return nil, h.writeError(c, err)
	}
	if !state.SetupComplete() {
		message := "Profile setup is required"
		if state.Reset {
			message = "Stored profile data was unreadable and has been cleared"
		}
		return nil, c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "setup_required",
			Message: message,
		})
	}
	return state, nil
}

func (h *handler) getProfile(c echo.Context) error {
	state, err := h.loadProfile(c)
	if state == nil {
		return err
	}
	return c.JSON(http.StatusOK, ProfileResponse{
		UserProfile:           state.Profile,
		SurveyAnswers:         state.Answers,
		AssistantInstructions: state.Instructions,
		Greeting:              usecase.Greeting(h.Now(), state.Profile),
	})
}

func (h *handler) saveSettings(c echo.Context) error {
	var req SettingsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if err := h.Profiles.SaveSettings(c.Request().Context(), profileID(c), req.UserProfile, req.AssistantInstructions); err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Settings saved!"})
}

func (h *handler) export(c echo.Context) error {
	data, err := h.Profiles.Export(c.Request().Context(), profileID(c))
	if err != nil {
		return h.writeError(c, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", entities.ExportFileName))
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

func (h *handler) deleteAccount(c echo.Context) error {
	if err := h.Profiles.Delete(c.Request().Context(), profileID(c)); err != nil {
		return h.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *handler) ask(c echo.Context) error {
	state, err := h.loadProfile(c)
	if state == nil {
		return err
	}

	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	reply, err := h.Ask.Ask(c.Request().Context(), usecase.AskRequest{
		Text:         req.Text,
		Attachment:   req.Attachment,
		UsePro:       req.UsePro,
		UseSearch:    req.UseSearch,
		Instructions: state.Instructions,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, reply)
}

func (h *handler) askVoice(c echo.Context) error {
	state, err := h.loadProfile(c)
	if state == nil {
		return err
	}

	recording, err := formFile(c, "audio", "audio/webm")
	if err != nil {
		return h.writeError(c, err)
	}

	result, err := h.Ask.AskByVoice(c.Request().Context(), usecase.VoiceRequest{
		Audio:    recording.Data,
		MIMEType: recording.MIMEType,
		AskRequest: usecase.AskRequest{
			UsePro:       c.FormValue("usePro") == "true",
			UseSearch:    c.FormValue("useSearch") == "true",
			Instructions: state.Instructions,
		},
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// speak streams raw PCM as it is synthesized
func (h *handler) speak(c echo.Context) error {
	var req SpeakRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	chunks, sampleRate, err := h.Ask.Speak(c.Request().Context(), req.Text)
	if err != nil {
		return h.writeError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, fmt.Sprintf("audio/pcm;rate=%d", sampleRate))
	res.WriteHeader(http.StatusOK)
	for chunk := range chunks {
		if _, err := res.Write(chunk); err != nil {
			h.logger.Warn("Client went away during speech", zap.Error(err))
			// Drain so the synthesizer can finish
			for range chunks {
			}
			return nil
		}
		res.Flush()
	}
	return nil
}

func (h *handler) analyze(c echo.Context) error {
	state, err := h.loadProfile(c)
	if state == nil {
		return err
	}

	file, err := formFile(c, "file", "")
	if err != nil {
		return h.writeError(c, err)
	}

	mode := entities.RecognitionMode(c.FormValue("mode"))
	if mode == "" {
		mode = entities.RecognitionImage
	}

	result, err := h.Vision.Analyze(c.Request().Context(), usecase.VisionRequest{
		Mode:         mode,
		File:         file,
		Prompt:       c.FormValue("prompt"),
		Instructions: state.Instructions,
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, VisionResponse{Mode: mode, Result: result})
}

func (h *handler) generateImage(c echo.Context) error {
	var req ImageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	image, err := h.Generate.GenerateImage(c.Request().Context(), req.Prompt)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, ImageResponse{Image: image})
}

func (h *handler) editImage(c echo.Context) error {
	source, err := formFile(c, "image", "")
	if err != nil {
		return h.writeError(c, err)
	}
	image, err := h.Generate.EditImage(c.Request().Context(), source, c.FormValue("prompt"))
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusOK, ImageResponse{Image: image})
}

func (h *handler) generateVideo(c echo.Context) error {
	req := usecase.VideoRequest{
		Prompt:      c.FormValue("prompt"),
		AspectRatio: entities.AspectRatio(c.FormValue("aspectRatio")),
	}
	if _, err := c.FormFile("image"); err == nil {
		if req.Image, err = formFile(c, "image", ""); err != nil {
			return h.writeError(c, err)
		}
	}

	video, err := h.Generate.GenerateVideo(c.Request().Context(), req)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Blob(http.StatusOK, video.MIMEType, video.Data)
}

func (h *handler) live(c echo.Context) error {
	state, err := h.loadProfile(c)
	if state == nil {
		return err
	}
	return websocket.HandleWebSocketWithAuth(h.Hub, c, profileID(c), state.Instructions, h.logger)
}

// formFile reads an uploaded multipart file into memory. Untyped uploads
// get fallbackType, or a sniffed type when fallbackType is empty.
func formFile(c echo.Context, field, fallbackType string) (*entities.MediaFile, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s upload is required: %w", field, domain.ErrInvalidInput)
	}
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	mimeType := header.Header.Get(echo.HeaderContentType)
	if mimeType == "" || mimeType == echo.MIMEOctetStream {
		mimeType = fallbackType
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	return &entities.MediaFile{Name: header.Filename, MIMEType: mimeType, Data: data}, nil
}

// writeError maps domain errors onto HTTP responses
func (h *handler) writeError(c echo.Context, err error) error {
	status, code, message := http.StatusInternalServerError, "internal_error", "Something went wrong"

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status, code, message = http.StatusBadRequest, "invalid_input", err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, code, message = http.StatusNotFound, "not_found", "Nothing stored for this profile"
	case errors.Is(err, domain.ErrMissingCredential):
		status, code, message = http.StatusBadGateway, "missing_credential", "API Key not found or invalid. Please re-select your API Key."
	case errors.Is(err, domain.ErrEmptyResult):
		status, code, message = http.StatusBadGateway, "empty_result", emptyResultMessage(err)
	case errors.Is(err, context.DeadlineExceeded):
		status, code, message = http.StatusGatewayTimeout, "timeout", "The assistant took too long to respond"
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.String("code", code),
			zap.Error(err))
	}
	return c.JSON(status, ErrorResponse{Error: code, Message: message})
}

func emptyResultMessage(err error) string {
	if strings.Contains(err.Error(), usecase.MsgNoVideoLink) {
		return usecase.MsgNoVideoLink
	}
	return "The assistant returned nothing"
}
