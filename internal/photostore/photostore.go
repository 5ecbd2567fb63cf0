// Package photostore keeps the raw bytes of submitted photos. Keys are
// opaque strings handed back by Save and recorded on the submission row.
package photostore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrNotFound is returned by Load for an unknown key
var ErrNotFound = errors.New("photo not found")

// ErrInvalidKey is returned for keys that could escape the store
var ErrInvalidKey = errors.New("invalid photo key")

// Store saves and loads photo bytes
type Store interface {
	Save(ctx context.Context, data []byte, contentType string) (string, error)
	Load(ctx context.Context, key string) ([]byte, error)
}

// newKey builds a random key whose extension follows the detected content
func newKey(data []byte) string {
	return uuid.NewString() + mimetype.Detect(data).Extension()
}

func validKey(key string) bool {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return false
	}
	return true
}

// FS stores photos as files in a single directory
type FS struct {
	dir string
}

// NewFS creates dir if needed and returns a store rooted there
func NewFS(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FS{dir: dir}, nil
}

func (s *FS) Save(ctx context.Context, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := newKey(data)
	tmp := filepath.Join(s.dir, "."+key+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, key)); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return key, nil
}

func (s *FS) Load(ctx context.Context, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// Memory keeps photos in a map. Used in tests and for ephemeral runs.
type Memory struct {
	mu     sync.RWMutex
	photos map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{photos: make(map[string][]byte)}
}

func (m *Memory) Save(_ context.Context, data []byte, _ string) (string, error) {
	key := newKey(data)
	m.mu.Lock()
	m.photos[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return key, nil
}

func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.photos[key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// Put stores data under a caller-chosen key
func (m *Memory) Put(key string, data []byte) {
	m.mu.Lock()
	m.photos[key] = data
	m.mu.Unlock()
}

var (
	_ Store = (*FS)(nil)
	_ Store = (*Memory)(nil)
	_ Store = (*S3)(nil)
)
