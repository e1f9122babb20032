// Package execcache memoizes successful task-group execution results
// keyed by a content fingerprint of the normalized task-group JSON, the
// Go equivalent of a dashmap::DashMap-backed cache: a sharded map so
// concurrent request handlers never contend on a single global lock for
// unrelated keys.
package execcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash/fnv"
	"sync"

	"github.com/fabrigo/fabrigo/pkg/result"
	"github.com/fabrigo/fabrigo/pkg/task"
)

// shardCount is fixed at a power of two so the shard-selection mask is
// a cheap bitwise AND; 32 shards keeps contention low without wasting
// memory on the overwhelmingly common case of a handful of concurrent
// requests.
const shardCount = 32

type shard struct {
	mu   sync.RWMutex
	data map[string]result.TaskGroupResult
}

// Cache is a sharded, concurrent, in-memory, unbounded cache of
// TaskGroupResult keyed by task-group fingerprint. There is no eviction
// and no at-most-once coalescing of concurrent identical requests: two
// callers racing on the same fingerprint may both miss and both
// execute, and the later Put wins. Results are assumed idempotent for
// cache-hit purposes.
type Cache struct {
	shards [shardCount]*shard
}

// New returns an empty, ready-to-use Cache.
func New() *Cache {
	c := &Cache{}
	for i := range c.shards {
		c.shards[i] = &shard{data: make(map[string]result.TaskGroupResult)}
	}
	return c
}

// Fingerprint computes the SHA-256 hex digest of the canonical JSON
// encoding of a task group, the cache key for TryGet/Put.
func Fingerprint(group task.TaskGroup) (string, error) {
	data, err := json.Marshal(group)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

// TryGet returns the cached result for fingerprint, if any.
func (c *Cache) TryGet(fingerprint string) (result.TaskGroupResult, bool) {
	s := c.shardFor(fingerprint)
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.data[fingerprint]
	return r, ok
}

// Put stores a successful result under fingerprint, overwriting any
// existing entry.
func (c *Cache) Put(fingerprint string, r result.TaskGroupResult) {
	s := c.shardFor(fingerprint)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[fingerprint] = r
}

// Len returns the total number of cached entries across all shards,
// mainly useful for tests and diagnostics.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.data)
		s.mu.RUnlock()
	}
	return n
}
