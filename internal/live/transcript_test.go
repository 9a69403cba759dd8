package live

import "testing"

func TestTranscriptTurnLifecycle(t *testing.T) {
	tr := NewTranscript()

	tr.Apply(Delta{UserText: "Hi"})
	tr.Apply(Delta{ModelText: "Hello!"})
	tr.Apply(Delta{TurnComplete: true})

	turns := tr.Turns()
	if len(turns) != 1 {
		t.Fatalf("Expected 1 turn, got %d", len(turns))
	}
	if turns[0].User != "Hi" || turns[0].Model != "Hello!" || !turns[0].IsFinal {
		t.Errorf("Unexpected turn %+v", turns[0])
	}

	tr.Apply(Delta{UserText: "What time is it?"})
	turns = tr.Turns()
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(turns))
	}
	if turns[1].ID != turns[0].ID+1 {
		t.Errorf("Expected sequence %d, got %d", turns[0].ID+1, turns[1].ID)
	}
	if turns[1].IsFinal {
		t.Error("Expected new turn to be open")
	}
}

func TestTranscriptAppendsInReceiptOrder(t *testing.T) {
	tr := NewTranscript()
	for _, d := range []Delta{
		{UserText: "How "},
		{UserText: "are "},
		{ModelText: "I am "},
		{UserText: "you?"},
		{ModelText: "fine.", TurnComplete: true},
	} {
		tr.Apply(d)
	}

	turns := tr.Turns()
	if len(turns) != 1 {
		t.Fatalf("Expected 1 turn, got %d", len(turns))
	}
	if turns[0].User != "How are you?" {
		t.Errorf("Expected user text 'How are you?', got %q", turns[0].User)
	}
	if turns[0].Model != "I am fine." {
		t.Errorf("Expected model text 'I am fine.', got %q", turns[0].Model)
	}
}

func TestTranscriptOnlyOneOpenTurn(t *testing.T) {
	tr := NewTranscript()
	for i := 0; i < 5; i++ {
		tr.Apply(Delta{UserText: "a"})
		tr.Apply(Delta{ModelText: "b", TurnComplete: i%2 == 0})
	}

	open := 0
	for i, turn := range tr.Turns() {
		if !turn.IsFinal {
			open++
		}
		if turn.ID != i {
			t.Errorf("Expected sequence %d, got %d", i, turn.ID)
		}
	}
	if open > 1 {
		t.Errorf("Expected at most one open turn, got %d", open)
	}
}

func TestTranscriptIgnoresBareTurnComplete(t *testing.T) {
	tr := NewTranscript()
	if tr.Apply(Delta{TurnComplete: true}) {
		t.Error("Expected bare turn completion to be a no-op")
	}
	if len(tr.Turns()) != 0 {
		t.Errorf("Expected no turns, got %d", len(tr.Turns()))
	}

	tr.Apply(Delta{UserText: "x"})
	if tr.Turns()[0].ID != 0 {
		t.Errorf("Expected first turn to keep sequence 0, got %d", tr.Turns()[0].ID)
	}
}

func TestTranscriptSnapshotIsCopy(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(Delta{UserText: "a"})
	snap := tr.Turns()
	snap[0].User = "mutated"

	if tr.Turns()[0].User != "a" {
		t.Error("Expected snapshot mutation not to leak into transcript")
	}
}

func TestTranscriptReset(t *testing.T) {
	tr := NewTranscript()
	tr.Apply(Delta{UserText: "a", TurnComplete: true})
	tr.Reset()
	tr.Apply(Delta{UserText: "b"})

	turns := tr.Turns()
	if len(turns) != 1 || turns[0].ID != 0 {
		t.Errorf("Expected fresh numbering after reset, got %+v", turns)
	}
}
