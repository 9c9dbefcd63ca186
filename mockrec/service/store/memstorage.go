package store

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-appsec/mockrec/mockrec/service/match"
)

// MemStorage keeps encoded artifacts in memory. Content goes through the same JSON encoding
// as FileStorage, so reads return the same shapes a file read would.
type MemStorage struct {
	mu    sync.RWMutex
	files map[string][]byte // cleaned path -> encoded artifact
}

func NewMemStorage() *MemStorage {
	return &MemStorage{files: make(map[string][]byte)}
}

func (m *MemStorage) ReadArtifact(path string) (*RecordedArtifact, error) {
	m.mu.RLock()
	data, ok := m.files[filepath.Clean(path)]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return DecodeArtifact(data)
}

func (m *MemStorage) WriteArtifact(path string, a *RecordedArtifact) error {
	data, err := EncodeArtifact(a)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = data
	return nil
}

// Put stores raw file content at path, bypassing encoding.
func (m *MemStorage) Put(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filepath.Clean(path)] = data
}

func (m *MemStorage) ListArtifacts(root string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var paths []string
	for p := range m.files {
		rel, ok := relativeTo(root, p)
		if !ok || !match.IsArtifactName(filepath.Base(p)) {
			continue
		}
		paths = append(paths, rel)
	}
	sort.Strings(paths)
	return paths, nil
}

func (m *MemStorage) DeleteAndRecreate(root string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for p := range m.files {
		if _, ok := relativeTo(root, p); ok {
			delete(m.files, p)
		}
	}
	return nil
}

func (m *MemStorage) Exists(path string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[filepath.Clean(path)]
	return ok
}

func (m *MemStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

func relativeTo(root, p string) (string, bool) {
	root = filepath.Clean(root)
	if root == "." {
		return filepath.ToSlash(p), !strings.HasPrefix(p, "..") && !filepath.IsAbs(p)
	}
	prefix := root + string(filepath.Separator)
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	return filepath.ToSlash(strings.TrimPrefix(p, prefix)), true
}
