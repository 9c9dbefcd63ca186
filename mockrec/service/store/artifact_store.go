package store

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-appsec/mockrec/mockrec/service/match"
)

// ArtifactVersion is written to every artifact produced by this store.
const ArtifactVersion = "1.0"

var errNoSanitizer = errors.New("artifact store has no sanitizer")

// ArtifactStore persists recorded exchanges and serves them back through a cache-aside
// in-memory cache. The cache is never the source of truth. Thread-safe.
type ArtifactStore struct {
	root      string
	storage   Storage
	sanitizer Sanitizer
	cache     *snapshotCache
	logger    *slog.Logger

	mu      sync.Mutex
	session []string // paths saved by this process, in save order
}

// NewArtifactStore returns a store rooted at root. Every artifact passes through sanitizer
// before it reaches storage; a nil sanitizer makes Save fail.
func NewArtifactStore(root string, storage Storage, sanitizer Sanitizer, logger *slog.Logger) *ArtifactStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ArtifactStore{
		root:      root,
		storage:   storage,
		sanitizer: sanitizer,
		cache:     newSnapshotCache(logger),
		logger:    logger,
	}
}

func (s *ArtifactStore) Root() string {
	return s.root
}

// Path returns the full storage path for sig.
func (s *ArtifactStore) Path(sig match.Signature) string {
	return match.BuildPath(s.root, sig)
}

// Save sanitizes and persists one exchange and returns the path it was written to.
// It does not populate the cache.
func (s *ArtifactStore) Save(req CapturedRequest, resp CapturedResponse, responseTime time.Duration) (string, error) {
	if s.sanitizer == nil {
		return "", errNoSanitizer
	}

	sig := match.BuildSignature(req.Method, req.URL)
	path := s.Path(sig)

	metadata := make(map[string]any, len(resp.Metadata))
	maps.Copy(metadata, resp.Metadata)

	artifact := &RecordedArtifact{
		Method:          sig.Method,
		URL:             req.URL,
		Pathname:        sig.Pathname,
		QueryParams:     sig.QueryParams,
		Status:          resp.Status,
		StatusMessage:   resp.StatusMessage,
		RequestHeaders:  req.Headers,
		ResponseHeaders: resp.Headers,
		RequestBody:     req.Body,
		Response:        resp.Body,
		ResponseTime:    responseTime.Milliseconds(),
		RecordedAt:      time.Now().UTC(),
		Version:         ArtifactVersion,
		Metadata:        metadata,
	}
	sanitized := s.sanitizer.SanitizeRecordedData(artifact)
	if sanitized == nil {
		return "", fmt.Errorf("sanitize %s %s: no result", sig.Method, req.URL)
	}

	if err := s.storage.WriteArtifact(path, sanitized); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", path, err)
	}

	s.mu.Lock()
	s.session = append(s.session, path)
	s.mu.Unlock()

	s.logger.Debug("store/save: artifact written", "path", path, "method", sig.Method, "status", resp.Status)
	return path, nil
}

// Load returns the artifact recorded for sig, or false when there is none. Read failures
// are logged and reported as absence.
func (s *ArtifactStore) Load(sig match.Signature) (*RecordedArtifact, bool) {
	key := sig.CacheKey()
	if a, ok := s.cache.get(key); ok {
		return a, true
	}

	path := s.Path(sig)
	a, err := s.storage.ReadArtifact(path)
	if err != nil {
		s.logger.Warn("store/load: unreadable artifact treated as missing", "path", path, "error", err)
		return nil, false
	} else if a == nil {
		return nil, false
	}

	s.cache.put(key, a)
	return a, true
}

// Exists reports whether an artifact for sig is cached or stored.
func (s *ArtifactStore) Exists(sig match.Signature) bool {
	return s.cache.contains(sig.CacheKey()) || s.storage.Exists(s.Path(sig))
}

// List returns every stored artifact path relative to the root.
func (s *ArtifactStore) List() ([]string, error) {
	return s.storage.ListArtifacts(s.root)
}

// ClearAll empties the cache and the session list, then deletes and recreates the root.
func (s *ArtifactStore) ClearAll() error {
	s.cache.reset()
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()

	if err := s.storage.DeleteAndRecreate(s.root); err != nil {
		return fmt.Errorf("clear %s: %w", s.root, err)
	}
	s.logger.Info("store/clear: all artifacts removed", "root", s.root)
	return nil
}

// Preload reads every stored artifact into the cache and returns how many were loaded.
// Entries that cannot be read are skipped.
func (s *ArtifactStore) Preload() (int, error) {
	paths, err := s.List()
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", s.root, err)
	}

	var loaded int
	for _, rel := range paths {
		full := filepath.Join(s.root, filepath.FromSlash(rel))
		a, err := s.storage.ReadArtifact(full)
		if err != nil {
			s.logger.Warn("store/preload: skipping artifact", "path", full, "error", err)
			continue
		} else if a == nil || a.Method == "" {
			s.logger.Warn("store/preload: skipping incomplete artifact", "path", full)
			continue
		}
		s.cache.put(cacheKeyFor(a), a)
		loaded++
	}
	s.logger.Info("store/preload: artifacts cached", "loaded", loaded, "listed", len(paths))
	return loaded, nil
}

// cacheKeyFor rebuilds the cache key of a stored artifact from its recorded method and URL.
func cacheKeyFor(a *RecordedArtifact) string {
	return match.BuildSignature(strings.ToUpper(a.Method), a.URL).CacheKey()
}

// SessionRecorded returns the paths saved by this process.
func (s *ArtifactStore) SessionRecorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.session)
}

// ClearCache drops every cached artifact. Storage is untouched.
func (s *ArtifactStore) ClearCache() {
	s.cache.reset()
}

func (s *ArtifactStore) CacheLen() int {
	return s.cache.size()
}
