// Command live holds a voice conversation with the assistant through the
// local microphone and speakers. Press Enter to start or stop talking.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/satriahrh/drishti/adapters/audio"
	"github.com/satriahrh/drishti/adapters/llm"
	"github.com/satriahrh/drishti/domain/repositories"
	"github.com/satriahrh/drishti/internal/config"
	"github.com/satriahrh/drishti/internal/live"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("Live session failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	geminiConfig := llm.NewGeminiConfigFromEnv()
	var connector repositories.LiveConnector
	if os.Getenv("ASSISTANT_BACKEND") == config.BackendMock {
		logger.Warn("Using mock live backend")
		connector = llm.NewMockLive()
	} else {
		if err := llm.ValidateGeminiConfig(geminiConfig); err != nil {
			return err
		}
		client, err := llm.NewGeminiClient(ctx, geminiConfig)
		if err != nil {
			return err
		}
		connector = llm.NewGeminiLive(client, logger)
	}

	system, err := audio.NewSystem(logger)
	if err != nil {
		return err
	}
	defer system.Close()

	model := os.Getenv("LIVE_MODEL")
	if model == "" {
		model = config.DefaultLiveModel
	}
	voice := os.Getenv("LIVE_VOICE")
	if voice == "" {
		voice = config.DefaultLiveVoice
	}

	controller := live.NewController(logger, system, connector, live.Config{
		Model:             model,
		Voice:             voice,
		SystemInstruction: os.Getenv("ASSISTANT_INSTRUCTIONS"),
	})
	defer controller.Stop()

	updates, unsubscribe := controller.Subscribe()
	defer unsubscribe()
	go printUpdates(updates)

	enter := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			enter <- struct{}{}
		}
	}()

	fmt.Println("Press Enter to start talking, Enter again to stop, Ctrl+C to quit.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-enter:
		}

		switch controller.State() {
		case live.StateConnecting, live.StateConnected:
			controller.Stop()
		default:
			go func() {
				err := controller.Start(ctx)
				if err != nil && !errors.Is(err, live.ErrAborted) {
					logger.Error("Failed to start live session", zap.Error(err))
				}
			}()
		}
	}
}

// printUpdates prints state changes and each turn once it is final
func printUpdates(updates <-chan live.Update) {
	var state live.State
	printed := 0
	for update := range updates {
		if update.State != state {
			state = update.State
			if update.Err != nil {
				fmt.Printf("[%s] %v\n", state, update.Err)
			} else {
				fmt.Printf("[%s]\n", state)
			}
		}
		if len(update.Turns) < printed {
			printed = 0
		}
		for printed < len(update.Turns) && update.Turns[printed].IsFinal {
			turn := update.Turns[printed]
			fmt.Printf("You: %s\nDrishti: %s\n", turn.User, turn.Model)
			printed++
		}
	}
}
