package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/drishti/domain/entities"
	"github.com/satriahrh/drishti/domain/repositories"
	"github.com/satriahrh/drishti/internal/saga"
)

// State of a live conversation
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

var (
	// ErrSessionActive is returned by Start when a session is connecting or connected
	ErrSessionActive = errors.New("live session already active")
	// ErrAborted is returned by Start when Stop interrupted it
	ErrAborted = errors.New("live session start aborted")
)

// Config configures the live conversation
type Config struct {
	Model             string
	Voice             string
	SystemInstruction string
	FrameSize         int
}

// Update is a snapshot published whenever the state or transcript changes
type Update struct {
	State State
	Turns []entities.Turn
	Err   error
}

// Controller owns one live conversation at a time: the audio devices, the
// backend session, the playback cursor and the transcript.
type Controller struct {
	logger     *zap.Logger
	audio      AudioSystem
	connector  repositories.LiveConnector
	config     Config
	runner     *saga.Runner
	scheduler  *Scheduler
	transcript *Transcript

	mu          sync.Mutex
	state       State
	lastErr     error
	epoch       uint64
	cancelStart context.CancelFunc
	output      OutputContext
	session     repositories.LiveSession
	mic         Microphone
	input       InputContext
	capture     *Capture

	subsMu  sync.Mutex
	subs    map[int]chan Update
	nextSub int
}

// NewController creates a controller in the disconnected state
func NewController(logger *zap.Logger, audio AudioSystem, connector repositories.LiveConnector, config Config) *Controller {
	if config.FrameSize <= 0 {
		config.FrameSize = DefaultFrameSize
	}
	return &Controller{
		logger:     logger,
		audio:      audio,
		connector:  connector,
		config:     config,
		runner:     saga.NewRunner(logger),
		scheduler:  NewScheduler(),
		transcript: NewTranscript(),
		state:      StateDisconnected,
		subs:       make(map[int]chan Update),
	}
}

// State returns the current connection state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error that moved the controller into the error state
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Turns returns the transcript of the current or last conversation
func (c *Controller) Turns() []entities.Turn {
	return c.transcript.Turns()
}

// Start opens the output, connects the session, acquires the microphone and
// starts streaming. It is allowed from the disconnected and error states.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected && c.state != StateError {
		c.mu.Unlock()
		return ErrSessionActive
	}
	c.epoch++
	epoch := c.epoch
	startCtx, cancel := context.WithCancel(ctx)
	c.cancelStart = cancel
	c.state = StateConnecting
	c.lastErr = nil
	c.mu.Unlock()
	defer cancel()

	c.transcript.Reset()
	c.scheduler.Reset()
	c.publish()

	c.logger.Info("Starting live conversation", zap.Uint64("epoch", epoch), zap.String("model", c.config.Model))

	var (
		output  OutputContext
		session repositories.LiveSession
		mic     Microphone
		input   InputContext
	)

	steps := []saga.Step{
		{
			ID: "open-output",
			Execute: func(ctx context.Context) error {
				out, err := c.audio.NewOutputContext(ctx, OutputSampleRate)
				if err != nil {
					return fmt.Errorf("failed to open output context: %w", err)
				}
				if !c.adopt(epoch, func() { c.output = out }) {
					c.release("output context", out.Close)
					return ErrAborted
				}
				output = out
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return c.releaseOutput(output)
			},
		},
		{
			ID: "connect-session",
			Execute: func(ctx context.Context) error {
				s, err := c.connector.Connect(ctx, repositories.LiveConfig{
					Model:             c.config.Model,
					Voice:             c.config.Voice,
					SystemInstruction: c.config.SystemInstruction,
				})
				if err != nil {
					return fmt.Errorf("failed to connect live session: %w", err)
				}
				if !c.adopt(epoch, func() { c.session = s }) {
					c.release("session", s.Close)
					return ErrAborted
				}
				session = s
				go c.dispatch(epoch, s)
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return c.releaseSession(session)
			},
		},
		{
			ID: "open-microphone",
			Execute: func(ctx context.Context) error {
				m, err := c.audio.OpenMicrophone(ctx)
				if err != nil {
					return fmt.Errorf("failed to open microphone: %w", err)
				}
				if !c.adopt(epoch, func() { c.mic = m }) {
					c.release("microphone", m.Stop)
					return ErrAborted
				}
				mic = m
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return c.releaseMic(mic)
			},
		},
		{
			ID: "open-input",
			Execute: func(ctx context.Context) error {
				in, err := c.audio.NewInputContext(ctx, InputSampleRate)
				if err != nil {
					return fmt.Errorf("failed to open input context: %w", err)
				}
				if !c.adopt(epoch, func() { c.input = in }) {
					c.release("input context", in.Close)
					return ErrAborted
				}
				input = in
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return c.releaseInput(input)
			},
		},
		{
			ID: "start-capture",
			Execute: func(ctx context.Context) error {
				send := session.SendAudio
				capture, err := StartCapture(c.logger, input, mic, c.config.FrameSize, send)
				if err != nil {
					return err
				}
				if !c.adopt(epoch, func() { c.capture = capture }) {
					c.release("capture", capture.Close)
					return ErrAborted
				}
				return nil
			},
		},
	}

	if _, err := c.runner.Run(startCtx, "live-start", steps...); err != nil {
		c.mu.Lock()
		if c.epoch != epoch {
			// Stop or a transport failure took over
			defer c.mu.Unlock()
			if c.state == StateError && c.lastErr != nil {
				return c.lastErr
			}
			return ErrAborted
		}
		c.state = StateError
		c.lastErr = err
		c.cancelStart = nil
		c.mu.Unlock()

		c.scheduler.Reset()
		c.logger.Error("Failed to start live conversation", zap.Error(err))
		c.publish()
		return err
	}

	c.mu.Lock()
	if c.epoch == epoch {
		c.cancelStart = nil
	}
	c.mu.Unlock()
	return nil
}

// Stop tears the conversation down. It is idempotent and safe to call
// concurrently, including while Start is in progress.
func (c *Controller) Stop() {
	c.teardown(StateDisconnected, nil)
}

func (c *Controller) teardown(final State, cause error) {
	c.mu.Lock()
	c.epoch++
	if c.cancelStart != nil {
		c.cancelStart()
		c.cancelStart = nil
	}
	session, mic, capture, input, output := c.session, c.mic, c.capture, c.input, c.output
	c.session, c.mic, c.capture, c.input, c.output = nil, nil, nil, nil, nil
	changed := c.state != final || cause != nil
	c.state = final
	c.lastErr = cause
	c.mu.Unlock()

	c.scheduler.Reset()

	if session != nil {
		c.release("session", session.Close)
	}
	if mic != nil {
		c.release("microphone", mic.Stop)
	}
	if capture != nil {
		c.release("capture", capture.Close)
	}
	if input != nil {
		c.release("input context", input.Close)
	}
	if output != nil {
		c.release("output context", output.Close)
	}

	if changed {
		c.logger.Info("Live conversation stopped", zap.String("state", string(final)), zap.Error(cause))
		c.publish()
	}
}

// adopt stores a freshly opened handle if the attempt is still current
func (c *Controller) adopt(epoch uint64, store func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	store()
	return true
}

func (c *Controller) releaseOutput(out OutputContext) error {
	c.mu.Lock()
	if out == nil || c.output != out {
		c.mu.Unlock()
		return nil
	}
	c.output = nil
	c.mu.Unlock()
	return out.Close()
}

func (c *Controller) releaseSession(s repositories.LiveSession) error {
	c.mu.Lock()
	if s == nil || c.session != s {
		c.mu.Unlock()
		return nil
	}
	c.session = nil
	c.mu.Unlock()
	return s.Close()
}

func (c *Controller) releaseMic(m Microphone) error {
	c.mu.Lock()
	if m == nil || c.mic != m {
		c.mu.Unlock()
		return nil
	}
	c.mic = nil
	c.mu.Unlock()
	return m.Stop()
}

func (c *Controller) releaseInput(in InputContext) error {
	c.mu.Lock()
	if in == nil || c.input != in {
		c.mu.Unlock()
		return nil
	}
	c.input = nil
	c.mu.Unlock()
	return in.Close()
}

// release closes a resource and only logs failures
func (c *Controller) release(name string, fn func() error) {
	if err := fn(); err != nil {
		c.logger.Warn("Failed to release resource", zap.String("resource", name), zap.Error(err))
	}
}

// dispatch consumes session events until the channel closes.
// Events from a superseded attempt are drained and ignored.
func (c *Controller) dispatch(epoch uint64, session repositories.LiveSession) {
	for ev := range session.Events() {
		c.mu.Lock()
		current := c.epoch == epoch && c.session == session
		if !current {
			c.mu.Unlock()
			continue
		}

		switch ev.Type {
		case repositories.LiveEventOpened:
			changed := c.state == StateConnecting
			if changed {
				c.state = StateConnected
			}
			c.mu.Unlock()
			if changed {
				c.logger.Info("Live session opened", zap.Uint64("epoch", epoch))
				c.publish()
			}

		case repositories.LiveEventAudio:
			// Play may block on a slow sink, so it must not hold c.mu
			out := c.output
			c.mu.Unlock()
			if _, err := c.scheduler.Schedule(out, ev.Audio); err != nil {
				c.logger.Warn("Failed to play audio chunk", zap.Error(err))
			}

		case repositories.LiveEventTranscript, repositories.LiveEventTurnComplete:
			changed := c.transcript.Apply(Delta{
				UserText:     ev.InputText,
				ModelText:    ev.OutputText,
				TurnComplete: ev.Type == repositories.LiveEventTurnComplete,
			})
			c.mu.Unlock()
			if changed {
				c.publish()
			}

		case repositories.LiveEventClosed:
			c.mu.Unlock()
			c.logger.Info("Live session closed by remote")
			c.Stop()

		case repositories.LiveEventFailed:
			c.mu.Unlock()
			err := ev.Err
			if err == nil {
				err = errors.New("live session failed")
			}
			c.logger.Error("Live session failed", zap.Error(err))
			c.teardown(StateError, err)

		default:
			c.mu.Unlock()
		}
	}
}

// Subscribe returns a channel of updates and a function that cancels the subscription.
// Slow subscribers only lose intermediate snapshots, never the latest one.
func (c *Controller) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 16)

	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subsMu.Unlock()

	return ch, func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

func (c *Controller) publish() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if len(c.subs) == 0 {
		return
	}

	c.mu.Lock()
	update := Update{State: c.state, Err: c.lastErr}
	c.mu.Unlock()
	update.Turns = c.transcript.Turns()

	for _, ch := range c.subs {
		select {
		case ch <- update:
		default:
			// Drop the oldest snapshot to make room
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- update:
			default:
			}
		}
	}
}
