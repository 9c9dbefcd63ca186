package store

import (
	"log/slog"
	"sync"
)

// snapshotCache maps "METHOD:normalizedUrl" to msgpack-encoded artifacts. Each get decodes a
// fresh copy, so no caller can mutate what a later hit returns.
type snapshotCache struct {
	mu      sync.RWMutex
	entries map[string][]byte
	logger  *slog.Logger
}

func newSnapshotCache(logger *slog.Logger) *snapshotCache {
	return &snapshotCache{entries: make(map[string][]byte), logger: logger}
}

func (c *snapshotCache) get(key string) (*RecordedArtifact, bool) {
	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	var a RecordedArtifact
	if err := Deserialize(data, &a); err != nil {
		c.logger.Warn("store/cache: dropping undecodable entry", "key", key, "error", err)
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	// msgpack timestamps lose timezone info; normalize to UTC
	a.RecordedAt = a.RecordedAt.UTC()
	return &a, true
}

func (c *snapshotCache) put(key string, a *RecordedArtifact) {
	data, err := Serialize(a)
	if err != nil {
		c.logger.Warn("store/cache: not caching artifact", "key", key, "error", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
}

func (c *snapshotCache) contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

func (c *snapshotCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *snapshotCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}
