package adapters

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/drishti/domain"
)

const valueExt = ".json"

// FileStore keeps each namespace in its own directory under root and each
// key in its own file. Writes go through a temp file and a rename.
type FileStore struct {
	root   string
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewFileStore creates the root directory if needed
func NewFileStore(root string, logger *zap.Logger) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("storage path is required: %w", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	logger.Info("File store ready", zap.String("path", root))
	return &FileStore{root: root, logger: logger}, nil
}

// escapeName maps an arbitrary name to a single path element
func escapeName(name string) string {
	escaped := url.PathEscape(name)
	if strings.HasPrefix(escaped, ".") {
		escaped = "%2E" + escaped[1:]
	}
	return escaped
}

func (s *FileStore) namespaceDir(namespace string) string {
	return filepath.Join(s.root, escapeName(namespace))
}

func (s *FileStore) keyPath(namespace, key string) string {
	return filepath.Join(s.namespaceDir(namespace), escapeName(key)+valueExt)
}

// Get implements KeyValueStore interface
func (s *FileStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.keyPath(namespace, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("key %s/%s: %w", namespace, key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s/%s: %w", namespace, key, err)
	}
	return data, nil
}

// Set implements KeyValueStore interface
func (s *FileStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	if namespace == "" || key == "" {
		return fmt.Errorf("namespace and key are required: %w", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.namespaceDir(namespace)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create namespace directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write key %s/%s: %w", namespace, key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write key %s/%s: %w", namespace, key, err)
	}
	if err := os.Rename(tmp.Name(), s.keyPath(namespace, key)); err != nil {
		return fmt.Errorf("failed to commit key %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Keys implements KeyValueStore interface
func (s *FileStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.namespaceDir(namespace))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list namespace %s: %w", namespace, err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), valueExt)
		if entry.IsDir() || !ok || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		key, err := url.PathUnescape(name)
		if err != nil {
			s.logger.Warn("Skipping unreadable key file", zap.String("file", entry.Name()))
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear implements KeyValueStore interface
func (s *FileStore) Clear(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.namespaceDir(namespace)); err != nil {
		return fmt.Errorf("failed to clear namespace %s: %w", namespace, err)
	}
	return nil
}
