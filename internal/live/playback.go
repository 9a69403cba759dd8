package live

import (
	"fmt"
	"math"
	"sync"
)

// Scheduled describes where a chunk landed on the output clock
type Scheduled struct {
	Start    float64
	Duration float64
}

// Scheduler places incoming audio chunks back to back on the output clock.
// Chunks are never dropped or reordered and the cursor never moves back
// except through Reset.
type Scheduler struct {
	mu            sync.Mutex
	nextStartTime float64
	sampleRate    int
	channels      int
}

// NewScheduler creates a scheduler for 24 kHz mono backend audio
func NewScheduler() *Scheduler {
	return &Scheduler{sampleRate: OutputSampleRate, channels: 1}
}

// Schedule decodes a PCM chunk and queues it on out
func (s *Scheduler) Schedule(out OutputContext, chunk []byte) (Scheduled, error) {
	if out == nil {
		return Scheduled{}, fmt.Errorf("no output context")
	}
	buf := DecodePCM16(chunk, s.sampleRate, s.channels)

	// Reserve the slot first so Play runs without holding the cursor lock
	s.mu.Lock()
	start := math.Max(out.CurrentTime(), s.nextStartTime)
	end := start + buf.Duration()
	s.nextStartTime = end
	s.mu.Unlock()

	if err := out.Play(buf, start); err != nil {
		s.mu.Lock()
		if s.nextStartTime == end {
			s.nextStartTime = start
		}
		s.mu.Unlock()
		return Scheduled{}, fmt.Errorf("failed to schedule audio: %w", err)
	}
	return Scheduled{Start: start, Duration: buf.Duration()}, nil
}

// NextStartTime returns the time the next chunk would start at, ignoring the clock
func (s *Scheduler) NextStartTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStartTime
}

// Reset rewinds the cursor for a fresh output clock
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.nextStartTime = 0
	s.mu.Unlock()
}
