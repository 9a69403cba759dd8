package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/internal/live"
)

type micState int

const (
	micPending micState = iota
	micGranted
	micDenied
)

// remoteAudio is a live.AudioSystem backed by a browser: binary frames from
// the client are the microphone, audio messages to the client are the speaker.
type remoteAudio struct {
	// deliver queues a message for the client and reports whether it was accepted
	deliver func(v interface{}) bool
	clock   func() time.Time

	mu      sync.Mutex
	attempt uint64
	mic     micState
	changed chan struct{} // closed and replaced whenever mic changes
	pending []float32
	sink    *remoteCapture
}

var _ live.AudioSystem = (*remoteAudio)(nil)

func newRemoteAudio(deliver func(v interface{}) bool) *remoteAudio {
	return &remoteAudio{
		deliver: deliver,
		clock:   time.Now,
		changed: make(chan struct{}),
	}
}

func (r *remoteAudio) setMic(state micState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setMicLocked(state)
}

func (r *remoteAudio) setMicLocked(state micState) {
	if r.mic == state {
		return
	}
	r.mic = state
	close(r.changed)
	r.changed = make(chan struct{})
}

// beginAttempt forgets the previous grant or denial. The client answers
// each start with fresh frames or a fresh mic_denied.
func (r *remoteAudio) beginAttempt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempt++
	r.setMicLocked(micPending)
}

// denyMicrophone records that the client could not open its microphone
func (r *remoteAudio) denyMicrophone() {
	r.setMic(micDenied)
}

// pushFrame feeds microphone samples from the client. The first frame
// counts as the client granting microphone access.
func (r *remoteAudio) pushFrame(samples []float32) {
	r.setMic(micGranted)

	r.mu.Lock()
	sink := r.sink
	if sink == nil {
		r.pending = r.pending[:0]
		r.mu.Unlock()
		return
	}
	r.pending = append(r.pending, samples...)
	var frames [][]float32
	for len(r.pending) >= sink.frameSize {
		frame := make([]float32, sink.frameSize)
		copy(frame, r.pending)
		r.pending = r.pending[sink.frameSize:]
		frames = append(frames, frame)
	}
	r.mu.Unlock()

	for _, frame := range frames {
		sink.handler(frame)
	}
}

// NewOutputContext starts a virtual playback clock at zero
func (r *remoteAudio) NewOutputContext(ctx context.Context, sampleRate int) (live.OutputContext, error) {
	return &remoteOutput{audio: r, sampleRate: sampleRate, opened: r.clock()}, nil
}

func (r *remoteAudio) NewInputContext(ctx context.Context, sampleRate int) (live.InputContext, error) {
	return &remoteInput{audio: r, sampleRate: sampleRate}, nil
}

// OpenMicrophone waits until the client either streams audio or reports that
// access was denied.
func (r *remoteAudio) OpenMicrophone(ctx context.Context) (live.Microphone, error) {
	for {
		r.mu.Lock()
		state, changed, attempt := r.mic, r.changed, r.attempt
		r.mu.Unlock()

		switch state {
		case micGranted:
			return &remoteMic{audio: r, attempt: attempt}, nil
		case micDenied:
			return nil, fmt.Errorf("client microphone unavailable: %w", domain.ErrPermissionDenied)
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

type remoteMic struct {
	audio   *remoteAudio
	attempt uint64
}

// Stop releases the grant unless a newer attempt already began
func (m *remoteMic) Stop() error {
	m.audio.mu.Lock()
	defer m.audio.mu.Unlock()
	if m.audio.attempt == m.attempt {
		m.audio.setMicLocked(micPending)
	}
	return nil
}

type remoteOutput struct {
	audio      *remoteAudio
	sampleRate int
	opened     time.Time
}

func (o *remoteOutput) SampleRate() int {
	return o.sampleRate
}

func (o *remoteOutput) CurrentTime() float64 {
	return o.audio.clock().Sub(o.opened).Seconds()
}

// Play forwards the buffer to the client with its scheduled start time
func (o *remoteOutput) Play(buf *live.AudioBuffer, at float64) error {
	chunk := live.NewAudioChunk(buf.Samples)
	if !o.audio.deliver(CreateAudioMessage(at, buf.Duration(), buf.SampleRate, chunk.Base64())) {
		return fmt.Errorf("client gone: %w", domain.ErrTransport)
	}
	return nil
}

func (o *remoteOutput) Close() error {
	return nil
}

type remoteInput struct {
	audio      *remoteAudio
	sampleRate int
}

func (i *remoteInput) SampleRate() int {
	return i.sampleRate
}

// Capture routes client frames, regrouped to frameSize samples, to handler
func (i *remoteInput) Capture(mic live.Microphone, frameSize int, handler func(frame []float32)) (live.CaptureNode, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("invalid frame size %d", frameSize)
	}
	node := &remoteCapture{audio: i.audio, frameSize: frameSize, handler: handler}

	i.audio.mu.Lock()
	defer i.audio.mu.Unlock()
	if i.audio.sink != nil {
		return nil, fmt.Errorf("capture already running")
	}
	i.audio.sink = node
	i.audio.pending = i.audio.pending[:0]
	return node, nil
}

func (i *remoteInput) Close() error {
	return nil
}

type remoteCapture struct {
	audio     *remoteAudio
	frameSize int
	handler   func(frame []float32)
}

func (n *remoteCapture) Close() error {
	n.audio.mu.Lock()
	defer n.audio.mu.Unlock()
	if n.audio.sink == n {
		n.audio.sink = nil
		n.audio.pending = n.audio.pending[:0]
	}
	return nil
}
