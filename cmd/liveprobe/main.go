// Command liveprobe streams a recording through the server's Live endpoint
// and prints the transcript. The recording is raw 16-bit mono PCM at 16 kHz.
// Model speech is appended to the output file as raw 16-bit PCM at 24 kHz.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/drishti/domain/entities"
	"github.com/satriahrh/drishti/internal/api"
	"github.com/satriahrh/drishti/internal/live"
	ws "github.com/satriahrh/drishti/internal/websocket"
)

func main() {
	server := flag.String("server", "localhost:8080", "server host and port")
	input := flag.String("in", "sample_audio.pcm", "raw 16-bit 16 kHz mono PCM to send")
	output := flag.String("out", "", "file to append model speech to")
	token := flag.String("token", os.Getenv("DRISHTI_TOKEN"), "profile token, a throwaway profile is created when empty")
	wait := flag.Duration("wait", 10*time.Second, "how long to wait for replies after the recording ends")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *token == "" {
		t, err := createProfile(*server)
		if err != nil {
			logger.Fatal("Failed to create profile", zap.Error(err))
		}
		*token = t
		logger.Info("Created throwaway profile")
	}

	recording, err := os.ReadFile(*input)
	if err != nil {
		logger.Fatal("Failed to read recording", zap.Error(err))
	}

	var speech io.Writer = io.Discard
	if *output != "" {
		f, err := os.OpenFile(*output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Fatal("Failed to open output", zap.Error(err))
		}
		defer f.Close()
		speech = f
	}

	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws/live", RawQuery: url.Values{"token": {*token}}.Encode()}
	logger.Info("Connecting", zap.String("url", u.Redacted()))

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Fatal("Failed to dial", zap.Error(err))
	}
	defer c.Close()

	done := make(chan struct{})
	connected := make(chan struct{})
	go readMessages(c, speech, connected, done, logger)

	if err := sendControl(c, ws.MessageTypeStart); err != nil {
		logger.Fatal("Failed to start session", zap.Error(err))
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// The first binary frame also grants the microphone
	if err := streamRecording(c, recording, interrupt); err != nil {
		logger.Error("Failed to stream recording", zap.Error(err))
	}

	select {
	case <-connected:
	default:
		logger.Warn("Session never connected")
	}

	select {
	case <-done:
	case <-interrupt:
	case <-time.After(*wait):
	}

	sendControl(c, ws.MessageTypeStop)
	c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func createProfile(server string) (string, error) {
	body, err := json.Marshal(api.SetupRequest{
		UserProfile:   entities.UserProfile{FirstName: "Probe", LastName: "Client", Age: 30, Gender: "Other"},
		SurveyAnswers: entities.SurveyAnswers{IntroductionSource: "liveprobe"},
	})
	if err != nil {
		return "", err
	}

	resp, err := http.Post("http://"+server+"/api/v1/setup", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("setup failed: %s", string(data))
	}

	var setup api.SetupResponse
	if err := json.Unmarshal(data, &setup); err != nil {
		return "", err
	}
	return setup.Token, nil
}

func sendControl(c *websocket.Conn, msgType ws.MessageType) error {
	return c.WriteJSON(ws.ControlMessage{BaseMessage: ws.BaseMessage{Type: msgType}})
}

// streamRecording sends the PCM as float32 frames paced at real time
func streamRecording(c *websocket.Conn, recording []byte, interrupt <-chan os.Signal) error {
	buf := live.DecodePCM16(recording, live.InputSampleRate, 1)
	frame := live.DefaultFrameSize
	interval := time.Duration(float64(frame) / live.InputSampleRate * float64(time.Second))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for start := 0; start < len(buf.Samples); start += frame {
		end := min(start+frame, len(buf.Samples))
		if err := c.WriteMessage(websocket.BinaryMessage, ws.EncodeFloat32Frame(buf.Samples[start:end])); err != nil {
			return err
		}
		select {
		case <-interrupt:
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

type serverMessage struct {
	Type    ws.MessageType  `json:"type"`
	State   string          `json:"state"`
	Error   string          `json:"error"`
	Code    string          `json:"error_code"`
	Message string          `json:"message"`
	Turns   []entities.Turn `json:"turns"`
	Start   float64         `json:"start"`
	Data    string          `json:"data"`
}

func readMessages(c *websocket.Conn, speech io.Writer, connected, done chan struct{}, logger *zap.Logger) {
	defer close(done)
	connectedOnce := false
	printed := 0

	for {
		messageType, data, err := c.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				logger.Info("Connection closed", zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("Invalid message from server", zap.Error(err))
			continue
		}

		switch msg.Type {
		case ws.MessageTypeState:
			logger.Info("State changed", zap.String("state", msg.State), zap.String("error", msg.Error))
			if msg.State == string(live.StateConnected) && !connectedOnce {
				connectedOnce = true
				close(connected)
			}
			if msg.State == string(live.StateError) {
				return
			}
		case ws.MessageTypeTranscript:
			if len(msg.Turns) < printed {
				printed = 0
			}
			for printed < len(msg.Turns) && msg.Turns[printed].IsFinal {
				fmt.Printf("You: %s\nDrishti: %s\n", msg.Turns[printed].User, msg.Turns[printed].Model)
				printed++
			}
		case ws.MessageTypeAudio:
			pcm, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				logger.Warn("Invalid audio payload", zap.Error(err))
				continue
			}
			speech.Write(pcm)
		case ws.MessageTypeError:
			logger.Warn("Server error", zap.String("code", msg.Code), zap.String("message", msg.Message))
		}
	}
}
