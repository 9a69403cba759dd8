package live

import "context"

// OutputContext is a platform playback clock and sink
type OutputContext interface {
	SampleRate() int
	// CurrentTime is the playback clock in seconds since the context opened
	CurrentTime() float64
	// Play schedules buf to start at the given clock time
	Play(buf *AudioBuffer, at float64) error
	Close() error
}

// Microphone is an acquired input device
type Microphone interface {
	Stop() error
}

// InputContext turns a microphone into a stream of fixed-size frames
type InputContext interface {
	SampleRate() int
	// Capture calls handler on the platform audio thread for every frame.
	// The handler must not block and must not retain the slice.
	Capture(mic Microphone, frameSize int, handler func(frame []float32)) (CaptureNode, error)
	Close() error
}

// CaptureNode is a running capture that can be disconnected
type CaptureNode interface {
	Close() error
}

// AudioSystem opens platform audio resources. OpenMicrophone returns an
// error wrapping domain.ErrPermissionDenied when access is refused.
type AudioSystem interface {
	NewOutputContext(ctx context.Context, sampleRate int) (OutputContext, error)
	NewInputContext(ctx context.Context, sampleRate int) (InputContext, error)
	OpenMicrophone(ctx context.Context) (Microphone, error)
}
