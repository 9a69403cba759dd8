package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/drishti/adapters"
	"github.com/satriahrh/drishti/adapters/llm"
	"github.com/satriahrh/drishti/domain/entities"
	"github.com/satriahrh/drishti/internal/auth"
	"github.com/satriahrh/drishti/internal/live"
	"github.com/satriahrh/drishti/internal/websocket"
	"github.com/satriahrh/drishti/usecase"
)

type testServer struct {
	e      *echo.Echo
	store  *adapters.MemoryStore
	issuer *auth.Issuer
}

func setupTestServer(t *testing.T) *testServer {
	logger := zaptest.NewLogger(t)
	store := adapters.NewMemoryStore()
	assistant := llm.NewMockAssistant()

	issuer, err := auth.NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("Failed to create issuer: %v", err)
	}

	e := echo.New()
	InitRoutes(e, Dependencies{
		Profiles: usecase.NewProfileService(store, logger),
		Ask:      usecase.NewAskService(assistant, assistant, nil, logger),
		Vision:   usecase.NewVisionService(assistant, logger),
		Generate: usecase.NewGenerateService(assistant, time.Millisecond, logger),
		Issuer:   issuer,
		Hub:      websocket.NewHub(llm.NewMockLive(), live.Config{}, logger),
		Now: func() time.Time {
			return time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
		},
	}, logger)

	return &testServer{e: e, store: store, issuer: issuer}
}

func (s *testServer) do(t *testing.T, req *http.Request, token string) *httptest.ResponseRecorder {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

type formPart struct {
	field, filename, contentType string
	data                         []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...formPart) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("Failed to write field: %v", err)
		}
	}
	for _, f := range files {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="` + f.field + `"; filename="` + f.filename + `"`}
		header["Content-Type"] = []string{f.contentType}
		part, err := w.CreatePart(header)
		if err != nil {
			t.Fatalf("Failed to create part: %v", err)
		}
		part.Write(f.data)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func validSetup() SetupRequest {
	return SetupRequest{
		UserProfile:   entities.UserProfile{FirstName: "Asha", LastName: "Rao", Age: 34, Gender: "Female"},
		SurveyAnswers: entities.SurveyAnswers{IntroductionSource: "friend", UsedBefore: "no", IsVisuallyImpaired: "yes"},
	}
}

// setupProfile completes onboarding and returns the issued token
func (s *testServer) setupProfile(t *testing.T) (string, string) {
	t.Helper()
	rec := s.do(t, jsonRequest(http.MethodPost, "/api/v1/setup", validSetup()), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp SetupResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode setup response: %v", err)
	}
	if resp.Token == "" || resp.ProfileID == "" {
		t.Fatalf("Expected token and profile id, got %+v", resp)
	}
	return resp.Token, resp.ProfileID
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode error response: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestHealth(t *testing.T) {
	s := setupTestServer(t)
	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/health", nil), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"service":"drishti-server"`) {
		t.Errorf("Expected service name in body, got %s", rec.Body.String())
	}
}

func TestSetupRejectsIncompleteProfile(t *testing.T) {
	s := setupTestServer(t)
	req := validSetup()
	req.UserProfile.Age = 0

	rec := s.do(t, jsonRequest(http.MethodPost, "/api/v1/setup", req), "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rec.Code)
	}
	if got := decodeError(t, rec).Error; got != "invalid_input" {
		t.Errorf("Expected error invalid_input, got %s", got)
	}
}

func TestAuthRequired(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil), "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rec.Code)
	}
	if got := decodeError(t, rec).Error; got != "missing_token" {
		t.Errorf("Expected missing_token, got %s", got)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil), "not-a-jwt")
	if got := decodeError(t, rec).Error; got != "invalid_token" {
		t.Errorf("Expected invalid_token, got %s", got)
	}
}

func TestProfileLifecycle(t *testing.T) {
	s := setupTestServer(t)
	token, _ := s.setupProfile(t)

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var profile ProfileResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &profile); err != nil {
		t.Fatalf("Failed to decode profile: %v", err)
	}
	if profile.Greeting != "Good Morning, Asha!" {
		t.Errorf("Expected morning greeting, got %q", profile.Greeting)
	}

	settings := SettingsRequest{UserProfile: *profile.UserProfile, AssistantInstructions: "Speak slowly."}
	settings.UserProfile.FirstName = "Meera"
	rec = s.do(t, jsonRequest(http.MethodPut, "/api/v1/settings", settings), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/export", nil), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(got, entities.ExportFileName) {
		t.Errorf("Expected attachment %s, got %q", entities.ExportFileName, got)
	}
	var bundle entities.ExportBundle
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("Failed to decode export: %v", err)
	}
	if bundle.UserProfile.FirstName != "Meera" || bundle.AssistantInstructions != "Speak slowly." {
		t.Errorf("Expected saved settings in export, got %+v", bundle)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/account", nil), token)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", rec.Code)
	}

	rec = s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil), token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404 after delete, got %d", rec.Code)
	}
	if got := decodeError(t, rec).Error; got != "setup_required" {
		t.Errorf("Expected setup_required, got %s", got)
	}
}

func TestCorruptProfileIsReset(t *testing.T) {
	s := setupTestServer(t)
	token, id := s.setupProfile(t)

	if err := s.store.Set(context.Background(), id, entities.KeyUserProfile, []byte("{not json")); err != nil {
		t.Fatalf("Failed to corrupt store: %v", err)
	}

	rec := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil), token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}
	if msg := decodeError(t, rec).Message; !strings.Contains(msg, "cleared") {
		t.Errorf("Expected reset message, got %q", msg)
	}

	keys, err := s.store.Keys(context.Background(), id)
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected wiped namespace, got keys %v", keys)
	}
}

func TestAsk(t *testing.T) {
	s := setupTestServer(t)
	token, _ := s.setupProfile(t)

	rec := s.do(t, jsonRequest(http.MethodPost, "/api/v1/ask", AskRequest{Text: "What is the weather?", UseSearch: true}), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var reply entities.ChatMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("Failed to decode reply: %v", err)
	}
	if reply.Role != entities.MessageRoleModel {
		t.Errorf("Expected model role, got %s", reply.Role)
	}
	if !strings.Contains(reply.Text, "("+usecase.ModelSearch+")") {
		t.Errorf("Expected search model to answer, got %q", reply.Text)
	}
	if len(reply.Sources) == 0 {
		t.Error("Expected sources for a search answer")
	}

	rec = s.do(t, jsonRequest(http.MethodPost, "/api/v1/ask", AskRequest{Text: "  "}), token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for empty question, got %d", rec.Code)
	}
}

func TestAskRequiresSetup(t *testing.T) {
	s := setupTestServer(t)
	token, _, err := s.issuer.GenerateProfileToken("never-setup")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	rec := s.do(t, jsonRequest(http.MethodPost, "/api/v1/ask", AskRequest{Text: "hello"}), token)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}

func TestAskByVoice(t *testing.T) {
	s := setupTestServer(t)
	token, _ := s.setupProfile(t)

	req := multipartRequest(t, "/api/v1/ask/voice", map[string]string{"usePro": "true"},
		formPart{field: "audio", filename: "recording.webm", contentType: "audio/webm", data: []byte("0123456789")})
	rec := s.do(t, req, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var reply usecase.VoiceReply
	if err := json.Unmarshal(rec.Body.Bytes(), &reply); err != nil {
		t.Fatalf("Failed to decode reply: %v", err)
	}
	if reply.Transcript != "recording of 10 bytes" {
		t.Errorf("Expected mock transcript, got %q", reply.Transcript)
	}
	if !strings.Contains(reply.Reply.Text, "("+usecase.ModelPro+")") {
		t.Errorf("Expected pro model to answer, got %q", reply.Reply.Text)
	}

	rec = s.do(t, multipartRequest(t, "/api/v1/ask/voice", nil), token)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without audio, got %d", rec.Code)
	}
}

func TestSpeakWithoutVoice(t *testing.T) {
	s := setupTestServer(t)
	token, _ := s.setupProfile(t)

	rec := s.do(t, jsonRequest(http.MethodPost, "/api/v1/speak", SpeakRequest{Text: "hello"}), token)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected status 502, got %d", rec.Code)
	}
	if msg := decodeError(t, rec).Message; !strings.Contains(msg, "API Key") {
		t.Errorf("Expected credential message, got %q", msg)
	}
}

func TestVisionAnalyze(t *testing.T) {
	s := setupTestServer(t)
	token, _ := s.setupProfile(t)

	req := multipartRequest(t, "/api/v1/vision/analyze",
		map[string]string{"mode": "Document", "prompt": "Summarize"},
		formPart{field: "file", filename: "report.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4")})
	rec := s.do(t, req, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp VisionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Mode != entities.RecognitionDocument {
		t.Errorf("Expected Document mode, got %s", resp.Mode)
	}
	if !strings.Contains(resp.Result, "application/pdf") {
		t.Errorf("Expected analysis of the pdf, got %q", resp.Result)
	}

	req = multipartRequest(t, "/api/v1/vision/analyze", map[string]string{"prompt": "Summarize"})
	if rec := s.do(t, req, token); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without file, got %d", rec.Code)
	}
}

func TestGenerateImage(t *testing.T) {
	s := setupTestServer(t)
	token, _ := s.setupProfile(t)

	rec := s.do(t, jsonRequest(http.MethodPost, "/api/v1/generate/image", ImageRequest{Prompt: "a lighthouse"}), token)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ImageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !strings.HasPrefix(resp.Image, "data:image/png;base64,") {
		t.Errorf("Expected PNG data URL, got %q", resp.Image)
	}

	req := multipartRequest(t, "/api/v1/generate/image/edit", map[string]string{"prompt": "add a boat"},
		formPart{field: "image", filename: "sea.png", contentType: "image/png", data: []byte{0x89, 'P', 'N', 'G'}})
	if rec := s.do(t, req, token); rec.Code != http.StatusOK {
		t.Errorf("Expected status 200 for edit, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestGenerateVideo(t *testing.T) {
	s := setupTestServer(t)
	token, _ := s.setupProfile(t)

	req := multipartRequest(t, "/api/v1/generate/video", map[string]string{"prompt": "waves", "aspectRatio": "9:16"})
	rec := s.do(t, req, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != "video/mp4" {
		t.Errorf("Expected video/mp4, got %s", got)
	}

	req = multipartRequest(t, "/api/v1/generate/video", map[string]string{"prompt": "waves", "aspectRatio": "4:3"})
	if rec := s.do(t, req, token); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad aspect ratio, got %d", rec.Code)
	}
}
