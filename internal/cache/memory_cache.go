package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultSweepInterval is how often the janitor removes expired entries
const DefaultSweepInterval = 10 * time.Minute

// Entry is one cached value
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// Stats describes the state of a MemoryCache
type Stats struct {
	Total   int           `json:"total"`
	Valid   int           `json:"valid"`
	Expired int           `json:"expired"`
	MaxSize int           `json:"maxSize"`
	TTL     time.Duration `json:"ttl"`
}

// MemoryCache is an in-process TTL cache with insertion-order eviction.
// Expired entries are never returned: Get deletes them lazily and a
// janitor goroutine sweeps the rest.
type MemoryCache[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	sweep   time.Duration
	now     func() time.Time

	order   *list.List // of string keys, oldest first
	entries map[string]*item[V]

	stop     chan struct{}
	stopOnce sync.Once
}

type item[V any] struct {
	entry Entry[V]
	elem  *list.Element
}

// MemoryOption configures a MemoryCache
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	maxSize int
	sweep   time.Duration
	now     func() time.Time
}

// WithMaxSize bounds the number of entries. Zero means unbounded.
func WithMaxSize(n int) MemoryOption {
	return func(c *memoryConfig) {
		c.maxSize = n
	}
}

// WithSweepInterval sets the janitor period. Zero or less disables the janitor.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		c.sweep = d
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) MemoryOption {
	return func(c *memoryConfig) {
		c.now = now
	}
}

// NewMemoryCache creates a cache with the given default TTL
func NewMemoryCache[V any](ttl time.Duration, opts ...MemoryOption) *MemoryCache[V] {
	cfg := memoryConfig{
		sweep: DefaultSweepInterval,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &MemoryCache[V]{
		ttl:     ttl,
		maxSize: cfg.maxSize,
		sweep:   cfg.sweep,
		now:     cfg.now,
		order:   list.New(),
		entries: make(map[string]*item[V]),
		stop:    make(chan struct{}),
	}
	if c.sweep > 0 {
		go c.janitor()
	}
	return c
}

// Get returns the value for key if present and not expired
func (c *MemoryCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	it, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().After(it.entry.ExpiresAt) {
		c.remove(key, it)
		return zero, false
	}
	return it.entry.Value, true
}

// Set stores value under key. A ttl of zero or less uses the cache default.
// Overwriting a key keeps its original insertion position.
func (c *MemoryCache[V]) Set(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := Entry[V]{Value: value, ExpiresAt: c.now().Add(ttl)}
	if it, ok := c.entries[key]; ok {
		it.entry = entry
		return
	}

	if c.maxSize > 0 {
		for len(c.entries) >= c.maxSize {
			oldest := c.order.Front()
			if oldest == nil {
				break
			}
			k, _ := oldest.Value.(string)
			c.remove(k, c.entries[k])
		}
	}

	c.entries[key] = &item[V]{entry: entry, elem: c.order.PushBack(key)}
}

// Delete removes key
func (c *MemoryCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.entries[key]; ok {
		c.remove(key, it)
	}
}

// Clear removes all entries
func (c *MemoryCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*item[V])
}

// Len returns the number of stored entries, expired ones included
func (c *MemoryCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Cleanup removes every expired entry and returns how many were removed
func (c *MemoryCache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, it := range c.entries {
		if now.After(it.entry.ExpiresAt) {
			c.remove(key, it)
			removed++
		}
	}
	return removed
}

// Stats reports entry counts without evicting anything
func (c *MemoryCache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	s := Stats{Total: len(c.entries), MaxSize: c.maxSize, TTL: c.ttl}
	for _, it := range c.entries {
		if now.After(it.entry.ExpiresAt) {
			s.Expired++
		} else {
			s.Valid++
		}
	}
	return s
}

// Close stops the janitor and drops all entries
func (c *MemoryCache[V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	c.Clear()
}

func (c *MemoryCache[V]) remove(key string, it *item[V]) {
	if it == nil {
		delete(c.entries, key)
		return
	}
	c.order.Remove(it.elem)
	delete(c.entries, key)
}

func (c *MemoryCache[V]) janitor() {
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Cleanup()
		case <-c.stop:
			return
		}
	}
}
