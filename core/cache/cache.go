// Package cache keeps recent conversion outputs in memory, keyed by build
// key, so the watch loop can restore a chapter reverted to an earlier
// version without converting it again.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Stats contains cache statistics.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
	Bytes     int64
}

// Config contains cache configuration options.
type Config struct {
	// MaxEntries bounds the number of outputs kept (0 = unlimited).
	MaxEntries int

	// MaxBytes bounds the total size of the outputs kept (0 = unlimited).
	MaxBytes int64

	// TTL is the time-to-live for entries (0 = no expiration).
	TTL time.Duration

	// OnEvict is called when an output is dropped to make room or because
	// it expired.
	OnEvict func(key string, output []byte)
}

// DefaultConfig sizes the cache for a few versions of every chapter of a
// book.
func DefaultConfig() Config {
	return Config{
		MaxEntries: 64,
		MaxBytes:   32 << 20,
	}
}

type entry struct {
	key       string
	output    []byte
	expiresAt time.Time
}

// OutputCache is a thread-safe LRU cache of chapter outputs.
type OutputCache struct {
	mu      sync.Mutex
	config  Config
	entries map[string]*list.Element
	order   *list.List
	bytes   int64
	stats   Stats
}

// NewOutputCache creates an output cache with the given configuration.
func NewOutputCache(config Config) *OutputCache {
	if config.MaxEntries < 0 {
		config.MaxEntries = 0
	}
	if config.MaxBytes < 0 {
		config.MaxBytes = 0
	}
	return &OutputCache{
		config:  config,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// NewDefaultOutputCache creates an output cache with DefaultConfig.
func NewDefaultOutputCache() *OutputCache {
	return NewOutputCache(DefaultConfig())
}

// Get returns the output stored under a build key.
func (c *OutputCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	e := el.Value.(*entry)
	if c.config.TTL > 0 && time.Now().After(e.expiresAt) {
		c.evict(el)
		c.stats.Misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.stats.Hits++
	return e.output, true
}

// Put stores output under a build key. An output larger than MaxBytes is
// not kept.
func (c *OutputCache) Put(key string, output []byte) {
	size := int64(len(output))
	if c.config.MaxBytes > 0 && size > c.config.MaxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry)
		c.bytes += size - int64(len(e.output))
		e.output = output
		e.expiresAt = c.deadline()
		c.order.MoveToFront(el)
	} else {
		e := &entry{key: key, output: output, expiresAt: c.deadline()}
		c.entries[key] = c.order.PushFront(e)
		c.bytes += size
	}

	for c.over() {
		c.evict(c.order.Back())
	}
}

// Len returns the number of cached outputs.
func (c *OutputCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns cache statistics.
func (c *OutputCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = c.order.Len()
	s.Bytes = c.bytes
	return s
}

func (c *OutputCache) deadline() time.Time {
	if c.config.TTL > 0 {
		return time.Now().Add(c.config.TTL)
	}
	return time.Time{}
}

// over reports whether either limit is exceeded. The most recent entry is
// never evicted, so a single output within MaxBytes always fits.
func (c *OutputCache) over() bool {
	if c.order.Len() <= 1 {
		return false
	}
	if c.config.MaxEntries > 0 && c.order.Len() > c.config.MaxEntries {
		return true
	}
	return c.config.MaxBytes > 0 && c.bytes > c.config.MaxBytes
}

func (c *OutputCache) evict(el *list.Element) {
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.entries, e.key)
	c.bytes -= int64(len(e.output))
	c.stats.Evictions++

	if c.config.OnEvict != nil {
		c.config.OnEvict(e.key, e.output)
	}
}
