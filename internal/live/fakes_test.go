package live

import (
	"context"
	"errors"
	"sync"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/domain/entities"
	"github.com/satriahrh/drishti/domain/repositories"
)

type played struct {
	at     float64
	frames int
}

type fakeOutput struct {
	mu     sync.Mutex
	now    float64
	plays  []played
	closed int

	// playGate, when set, holds every Play call until it is closed
	playGate   chan struct{}
	playCalled chan struct{}
}

func (o *fakeOutput) SampleRate() int { return OutputSampleRate }

func (o *fakeOutput) CurrentTime() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now
}

func (o *fakeOutput) setTime(t float64) {
	o.mu.Lock()
	o.now = t
	o.mu.Unlock()
}

func (o *fakeOutput) Play(buf *AudioBuffer, at float64) error {
	if o.playCalled != nil {
		select {
		case o.playCalled <- struct{}{}:
		default:
		}
	}
	if o.playGate != nil {
		<-o.playGate
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed > 0 {
		return errors.New("output closed")
	}
	o.plays = append(o.plays, played{at: at, frames: buf.Frames()})
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
	return nil
}

func (o *fakeOutput) closeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

type fakeMic struct {
	mu      sync.Mutex
	stopped int
}

func (m *fakeMic) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped++
	return nil
}

func (m *fakeMic) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

type fakeNode struct {
	input *fakeInput
}

func (n *fakeNode) Close() error {
	n.input.mu.Lock()
	defer n.input.mu.Unlock()
	n.input.handler = nil
	n.input.nodeClosed++
	return nil
}

type fakeInput struct {
	mu         sync.Mutex
	handler    func([]float32)
	captureErr error
	closed     int
	nodeClosed int
}

func (i *fakeInput) SampleRate() int { return InputSampleRate }

func (i *fakeInput) Capture(mic Microphone, frameSize int, handler func([]float32)) (CaptureNode, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.captureErr != nil {
		return nil, i.captureErr
	}
	i.handler = handler
	return &fakeNode{input: i}, nil
}

// push simulates the audio thread delivering a frame
func (i *fakeInput) push(frame []float32) {
	i.mu.Lock()
	h := i.handler
	i.mu.Unlock()
	if h != nil {
		h(frame)
	}
}

func (i *fakeInput) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed++
	return nil
}

func (i *fakeInput) closeCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.closed
}

type fakeSystem struct {
	output *fakeOutput
	input  *fakeInput
	mic    *fakeMic

	micErr error
	// micGate blocks OpenMicrophone until closed or the context ends
	micGate chan struct{}
	micCall chan struct{}
}

func newFakeSystem() *fakeSystem {
	return &fakeSystem{
		output:  &fakeOutput{},
		input:   &fakeInput{},
		mic:     &fakeMic{},
		micCall: make(chan struct{}, 1),
	}
}

func (s *fakeSystem) NewOutputContext(ctx context.Context, sampleRate int) (OutputContext, error) {
	return s.output, nil
}

func (s *fakeSystem) NewInputContext(ctx context.Context, sampleRate int) (InputContext, error) {
	return s.input, nil
}

func (s *fakeSystem) OpenMicrophone(ctx context.Context) (Microphone, error) {
	select {
	case s.micCall <- struct{}{}:
	default:
	}
	if s.micGate != nil {
		select {
		case <-s.micGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.micErr != nil {
		return nil, s.micErr
	}
	return s.mic, nil
}

type fakeSession struct {
	mu     sync.Mutex
	events chan repositories.LiveEvent
	sent   []entities.AudioChunk
	closed int
	done   chan struct{}
	once   sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		events: make(chan repositories.LiveEvent, 32),
		done:   make(chan struct{}),
	}
}

func (s *fakeSession) SendAudio(chunk entities.AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed > 0 {
		return errors.New("session closed")
	}
	s.sent = append(s.sent, chunk)
	return nil
}

func (s *fakeSession) Events() <-chan repositories.LiveEvent { return s.events }

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed++
	s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) sentChunks() []entities.AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.AudioChunk, len(s.sent))
	copy(out, s.sent)
	return out
}

// emit delivers an event unless the session was closed
func (s *fakeSession) emit(ev repositories.LiveEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

type fakeConnector struct {
	mu       sync.Mutex
	sessions []*fakeSession
	err      error
	// autoOpen emits an opened event right after connecting
	autoOpen bool
}

func (c *fakeConnector) Connect(ctx context.Context, config repositories.LiveConfig) (repositories.LiveSession, error) {
	if c.err != nil {
		return nil, c.err
	}
	s := newFakeSession()
	c.mu.Lock()
	c.sessions = append(c.sessions, s)
	c.mu.Unlock()
	if c.autoOpen {
		s.emit(repositories.LiveEvent{Type: repositories.LiveEventOpened})
	}
	return s, nil
}

func (c *fakeConnector) last() *fakeSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sessions) == 0 {
		return nil
	}
	return c.sessions[len(c.sessions)-1]
}

var errDenied = errors.Join(domain.ErrPermissionDenied, errors.New("user dismissed prompt"))
