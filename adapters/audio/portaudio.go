// Package audio implements live.AudioSystem on the local sound card.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/internal/live"
)

// System is a PortAudio backed live.AudioSystem
type System struct {
	logger *zap.Logger
}

var _ live.AudioSystem = (*System)(nil)

// NewSystem initializes PortAudio. Call Close when done.
func NewSystem(logger *zap.Logger) (*System, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	logger.Info("PortAudio initialized", zap.String("version", portaudio.VersionText()))
	return &System{logger: logger}, nil
}

// Close terminates PortAudio
func (s *System) Close() error {
	return portaudio.Terminate()
}

// NewOutputContext opens a mono callback stream on the default output device.
// Its clock advances by the frames handed to the device.
func (s *System) NewOutputContext(ctx context.Context, sampleRate int) (live.OutputContext, error) {
	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, fmt.Errorf("no output device: %w", err)
	}

	out := &outputContext{sampleRate: sampleRate, logger: s.logger}
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowOutputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}

	stream, err := portaudio.OpenStream(params, out.render)
	if err != nil {
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start output stream: %w", err)
	}
	out.stream = stream

	s.logger.Debug("Output context opened",
		zap.String("device", dev.Name),
		zap.Int("sampleRate", sampleRate))
	return out, nil
}

// NewInputContext prepares capture at sampleRate. Streams are opened per Capture.
func (s *System) NewInputContext(ctx context.Context, sampleRate int) (live.InputContext, error) {
	return &inputContext{sampleRate: sampleRate, logger: s.logger}, nil
}

// OpenMicrophone resolves the default input device
func (s *System) OpenMicrophone(ctx context.Context) (live.Microphone, error) {
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, fmt.Errorf("microphone unavailable: %w: %w", domain.ErrPermissionDenied, err)
	}
	if dev.MaxInputChannels < 1 {
		return nil, fmt.Errorf("microphone %q has no input channels: %w", dev.Name, domain.ErrPermissionDenied)
	}
	s.logger.Debug("Microphone acquired", zap.String("device", dev.Name))
	return &microphone{device: dev}, nil
}

type outputContext struct {
	sampleRate int
	stream     *portaudio.Stream
	timeline   Timeline
	rendered   atomic.Int64
	closeOnce  sync.Once
	logger     *zap.Logger
}

// render runs on the PortAudio thread
func (o *outputContext) render(out []float32) {
	clear(out)
	start := o.rendered.Load()
	o.timeline.Mix(out, start)
	o.rendered.Add(int64(len(out)))
}

func (o *outputContext) SampleRate() int {
	return o.sampleRate
}

func (o *outputContext) CurrentTime() float64 {
	return float64(o.rendered.Load()) / float64(o.sampleRate)
}

func (o *outputContext) Play(buf *live.AudioBuffer, at float64) error {
	if buf.SampleRate != o.sampleRate {
		return fmt.Errorf("buffer rate %d does not match output rate %d", buf.SampleRate, o.sampleRate)
	}
	o.timeline.Add(FrameAt(at, o.sampleRate), downmix(buf))
	return nil
}

func (o *outputContext) Close() error {
	var err error
	o.closeOnce.Do(func() {
		o.timeline.Clear()
		err = errors.Join(o.stream.Stop(), o.stream.Close())
	})
	return err
}

// downmix averages interleaved channels into mono
func downmix(buf *live.AudioBuffer) []float32 {
	if buf.Channels <= 1 {
		return buf.Samples
	}
	frames := buf.Frames()
	mono := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		for c := 0; c < buf.Channels; c++ {
			sum += buf.Samples[f*buf.Channels+c]
		}
		mono[f] = sum / float32(buf.Channels)
	}
	return mono
}

type microphone struct {
	device  *portaudio.DeviceInfo
	stopped atomic.Bool
}

func (m *microphone) Stop() error {
	m.stopped.Store(true)
	return nil
}

type inputContext struct {
	sampleRate int
	logger     *zap.Logger
}

func (i *inputContext) SampleRate() int {
	return i.sampleRate
}

// Capture opens a mono input stream delivering exactly frameSize samples per callback
func (i *inputContext) Capture(mic live.Microphone, frameSize int, handler func(frame []float32)) (live.CaptureNode, error) {
	m, ok := mic.(*microphone)
	if !ok {
		return nil, fmt.Errorf("unsupported microphone type %T", mic)
	}
	if m.stopped.Load() {
		return nil, fmt.Errorf("microphone already stopped: %w", domain.ErrPermissionDenied)
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   m.device,
			Channels: 1,
			Latency:  m.device.DefaultLowInputLatency,
		},
		SampleRate:      float64(i.sampleRate),
		FramesPerBuffer: frameSize,
	}

	stream, err := portaudio.OpenStream(params, func(in []float32) {
		if m.stopped.Load() {
			return
		}
		handler(in)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start input stream: %w", err)
	}

	i.logger.Debug("Capture started",
		zap.String("device", m.device.Name),
		zap.Int("frameSize", frameSize))
	return &captureNode{stream: stream}, nil
}

func (i *inputContext) Close() error {
	return nil
}

type captureNode struct {
	stream    *portaudio.Stream
	closeOnce sync.Once
}

func (n *captureNode) Close() error {
	var err error
	n.closeOnce.Do(func() {
		err = errors.Join(n.stream.Stop(), n.stream.Close())
	})
	return err
}
