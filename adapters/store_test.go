package adapters

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/domain/repositories"
)

func storesUnderTest(t *testing.T) map[string]repositories.KeyValueStore {
	fileStore, err := NewFileStore(t.TempDir(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}
	return map[string]repositories.KeyValueStore{
		"memory": NewMemoryStore(),
		"file":   fileStore,
	}
}

func TestKeyValueStore(t *testing.T) {
	ctx := context.Background()

	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Get(ctx, "p1", "userProfile"); !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}

			if err := store.Set(ctx, "p1", "userProfile", []byte(`{"firstName":"Asha"}`)); err != nil {
				t.Fatalf("Failed to set: %v", err)
			}
			if err := store.Set(ctx, "p1", "assistantInstructions", []byte(`"be brief"`)); err != nil {
				t.Fatalf("Failed to set: %v", err)
			}
			if err := store.Set(ctx, "p2", "userProfile", []byte(`{}`)); err != nil {
				t.Fatalf("Failed to set: %v", err)
			}

			value, err := store.Get(ctx, "p1", "userProfile")
			if err != nil {
				t.Fatalf("Failed to get: %v", err)
			}
			if string(value) != `{"firstName":"Asha"}` {
				t.Errorf("Expected stored value, got %s", value)
			}

			keys, err := store.Keys(ctx, "p1")
			if err != nil {
				t.Fatalf("Failed to list keys: %v", err)
			}
			if len(keys) != 2 || keys[0] != "assistantInstructions" || keys[1] != "userProfile" {
				t.Errorf("Expected sorted keys, got %v", keys)
			}

			if err := store.Clear(ctx, "p1"); err != nil {
				t.Fatalf("Failed to clear: %v", err)
			}
			keys, _ = store.Keys(ctx, "p1")
			if len(keys) != 0 {
				t.Errorf("Expected empty namespace after clear, got %v", keys)
			}
			if _, err := store.Get(ctx, "p2", "userProfile"); err != nil {
				t.Errorf("Expected other namespace untouched, got %v", err)
			}

			if err := store.Set(ctx, "", "k", nil); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput for empty namespace, got %v", err)
			}
		})
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	store := NewMemoryStore()
	value := []byte("abc")
	store.Set(context.Background(), "ns", "k", value)
	value[0] = 'z'

	got, _ := store.Get(context.Background(), "ns", "k")
	if string(got) != "abc" {
		t.Errorf("Expected stored copy 'abc', got %s", got)
	}
	got[1] = 'z'
	again, _ := store.Get(context.Background(), "ns", "k")
	if string(again) != "abc" {
		t.Errorf("Expected returned copy, got %s", again)
	}
}

func TestFileStoreEscapesNames(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	ctx := context.Background()
	if err := store.Set(ctx, "../escape", "a/b", []byte("1")); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 1 {
		t.Fatalf("Expected one namespace directory, got %d", len(entries))
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escape")); err == nil {
		t.Error("Expected namespace to stay inside the root")
	}

	keys, _ := store.Keys(ctx, "../escape")
	if len(keys) != 1 || keys[0] != "a/b" {
		t.Errorf("Expected key 'a/b', got %v", keys)
	}
}

func TestFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore("", zaptest.NewLogger(t)); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestFileStoreDotNamespace(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "store")
	store, _ := NewFileStore(root, zaptest.NewLogger(t))
	os.WriteFile(filepath.Join(parent, "keep"), []byte("x"), 0o600)

	if err := store.Clear(context.Background(), ".."); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	if _, err := os.Stat(filepath.Join(parent, "keep")); err != nil {
		t.Error("Expected files outside the root to survive")
	}
}
