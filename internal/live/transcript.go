package live

import (
	"sync"

	"github.com/satriahrh/drishti/domain/entities"
)

// Delta is an incremental transcription update
type Delta struct {
	UserText     string
	ModelText    string
	TurnComplete bool
}

// Transcript reconciles transcription deltas into turns.
// At most one turn is open at a time and it is always the last one.
type Transcript struct {
	mu      sync.Mutex
	turns   []entities.Turn
	counter int
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Apply folds a delta into the open turn, creating one if needed.
// It reports whether the transcript changed.
func (t *Transcript) Apply(d Delta) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	hasText := d.UserText != "" || d.ModelText != ""
	open := t.openTurn()
	if open == nil {
		if !hasText {
			return false
		}
		t.turns = append(t.turns, entities.Turn{ID: t.counter})
		open = &t.turns[len(t.turns)-1]
	}

	open.User += d.UserText
	open.Model += d.ModelText
	if d.TurnComplete {
		open.IsFinal = true
		t.counter++
	}
	return true
}

func (t *Transcript) openTurn() *entities.Turn {
	if n := len(t.turns); n > 0 && !t.turns[n-1].IsFinal {
		return &t.turns[n-1]
	}
	return nil
}

// Turns returns a copy of all turns including the one in progress
func (t *Transcript) Turns() []entities.Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]entities.Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Reset clears the transcript for a new session
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.turns = nil
	t.counter = 0
	t.mu.Unlock()
}
