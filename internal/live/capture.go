package live

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/satriahrh/drishti/domain/entities"
)

// ChunkConsumer receives encoded chunks in capture order
type ChunkConsumer func(chunk entities.AudioChunk) error

// frameBacklog bounds the frames waiting for the encoder
const frameBacklog = 64

// Capture moves frames off the platform audio thread, encodes them and
// hands them to a consumer
type Capture struct {
	logger   *zap.Logger
	node     CaptureNode
	frames   chan []float32
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	dropped  atomic.Int64
	failures atomic.Int64
}

// StartCapture wires mic through input into consume
func StartCapture(logger *zap.Logger, input InputContext, mic Microphone, frameSize int, consume ChunkConsumer) (*Capture, error) {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	c := &Capture{
		logger: logger,
		frames: make(chan []float32, frameBacklog),
		done:   make(chan struct{}),
	}

	c.wg.Add(1)
	go c.encodeLoop(consume)

	node, err := input.Capture(mic, frameSize, c.handleFrame)
	if err != nil {
		close(c.done)
		c.wg.Wait()
		return nil, fmt.Errorf("failed to start capture: %w", err)
	}
	c.node = node
	return c, nil
}

// handleFrame runs on the audio thread and never blocks
func (c *Capture) handleFrame(frame []float32) {
	select {
	case <-c.done:
		return
	default:
	}

	cp := make([]float32, len(frame))
	copy(cp, frame)

	select {
	case c.frames <- cp:
	default:
		if n := c.dropped.Add(1); n == 1 || n%100 == 0 {
			c.logger.Warn("Capture backlog full, dropping frame", zap.Int64("dropped", n))
		}
	}
}

func (c *Capture) encodeLoop(consume ChunkConsumer) {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.frames:
			if err := consume(NewAudioChunk(frame)); err != nil {
				if n := c.failures.Add(1); n == 1 {
					c.logger.Warn("Failed to deliver audio chunk", zap.Error(err))
				}
			}
		}
	}
}

// Dropped returns how many frames were discarded because the encoder fell behind
func (c *Capture) Dropped() int64 {
	return c.dropped.Load()
}

// Close disconnects the capture node and stops the encoder. Safe to call more than once.
func (c *Capture) Close() error {
	var err error
	c.once.Do(func() {
		if c.node != nil {
			err = c.node.Close()
		}
		close(c.done)
		c.wg.Wait()
	})
	return err
}
