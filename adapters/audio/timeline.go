package audio

import (
	"math"
	"sync"
)

type timelineEntry struct {
	start   int64 // first frame
	samples []float32
}

// Timeline holds mono buffers placed at absolute frame positions and mixes
// them into consecutive render windows.
type Timeline struct {
	mu      sync.Mutex
	entries []timelineEntry
}

// FrameAt converts a clock time in seconds to a frame index
func FrameAt(seconds float64, sampleRate int) int64 {
	return int64(math.Round(seconds * float64(sampleRate)))
}

// Add places samples starting at frame start. The slice is retained.
func (t *Timeline) Add(start int64, samples []float32) {
	if len(samples) == 0 {
		return
	}
	t.mu.Lock()
	t.entries = append(t.entries, timelineEntry{start: start, samples: samples})
	t.mu.Unlock()
}

// Mix adds every buffer overlapping [windowStart, windowStart+len(dst)) into
// dst, clamps the result to [-1, 1] and drops buffers that have finished.
func (t *Timeline) Mix(dst []float32, windowStart int64) {
	windowEnd := windowStart + int64(len(dst))

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.entries[:0]
	for _, e := range t.entries {
		end := e.start + int64(len(e.samples))
		if end <= windowStart {
			continue
		}
		kept = append(kept, e)
		if e.start >= windowEnd {
			continue
		}

		from := max(e.start, windowStart)
		to := min(end, windowEnd)
		for f := from; f < to; f++ {
			dst[f-windowStart] += e.samples[f-e.start]
		}
	}
	for i := len(kept); i < len(t.entries); i++ {
		t.entries[i] = timelineEntry{}
	}
	t.entries = kept

	for i, s := range dst {
		if s > 1 {
			dst[i] = 1
		} else if s < -1 {
			dst[i] = -1
		}
	}
}

// Pending returns the number of buffers not yet fully rendered
func (t *Timeline) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Clear drops everything
func (t *Timeline) Clear() {
	t.mu.Lock()
	t.entries = nil
	t.mu.Unlock()
}
