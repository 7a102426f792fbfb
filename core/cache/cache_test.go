package cache

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestOutputCacheLRU(t *testing.T) {
	c := NewOutputCache(Config{MaxEntries: 2})

	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	if got, ok := c.Get("a"); !ok || string(got) != "1" {
		t.Fatalf("Get(a) = %q, %v; want 1, true", got, ok)
	}

	// "b" is now least recently used.
	c.Put("c", []byte("3"))
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should have survived")
	}

	c.Put("a", []byte("10"))
	if got, _ := c.Get("a"); string(got) != "10" {
		t.Errorf("Get(a) after update = %q, want 10", got)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestOutputCacheStats(t *testing.T) {
	c := NewOutputCache(Config{MaxEntries: 1})
	c.Put("a", []byte("abc"))
	c.Get("a")
	c.Get("b")
	c.Put("b", []byte("de"))

	want := Stats{Hits: 1, Misses: 1, Evictions: 1, Entries: 1, Bytes: 2}
	if s := c.Stats(); s != want {
		t.Errorf("Stats() = %+v, want %+v", s, want)
	}
}

func TestOutputCacheMaxBytes(t *testing.T) {
	tests := []struct {
		name    string
		puts    []string
		want    []string
		gone    []string
		wantLen int
	}{
		{
			name:    "oldest dropped to fit",
			puts:    []string{"a", "b", "c"},
			want:    []string{"b", "c"},
			gone:    []string{"a"},
			wantLen: 2,
		},
		{
			name:    "oversized output not kept",
			puts:    []string{"a", "huge"},
			want:    []string{"a"},
			gone:    []string{"huge"},
			wantLen: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewOutputCache(Config{MaxBytes: 10})
			for _, k := range tt.puts {
				size := 4
				if k == "huge" {
					size = 11
				}
				c.Put(k, []byte(strings.Repeat("x", size)))
			}
			for _, k := range tt.want {
				if _, ok := c.Get(k); !ok {
					t.Errorf("%s missing", k)
				}
			}
			for _, k := range tt.gone {
				if _, ok := c.Get(k); ok {
					t.Errorf("%s should not be cached", k)
				}
			}
			if c.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", c.Len(), tt.wantLen)
			}
		})
	}
}

func TestOutputCacheResizedEntry(t *testing.T) {
	c := NewOutputCache(Config{MaxBytes: 10})
	c.Put("a", []byte("xxxx"))
	c.Put("b", []byte("xxxx"))
	c.Put("b", []byte("x"))
	if got := c.Stats().Bytes; got != 5 {
		t.Errorf("Bytes = %d, want 5", got)
	}
}

func TestOutputCacheTTL(t *testing.T) {
	c := NewOutputCache(Config{TTL: 20 * time.Millisecond})
	c.Put("a", []byte("1"))
	if _, ok := c.Get("a"); !ok {
		t.Fatal("fresh entry missing")
	}
	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Error("expired entry returned")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry kept, Len() = %d", c.Len())
	}
}

func TestOutputCacheOnEvict(t *testing.T) {
	var evicted []string
	c := NewOutputCache(Config{
		MaxEntries: 1,
		OnEvict:    func(key string, _ []byte) { evicted = append(evicted, key) },
	})
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Put("c", []byte("3"))

	if len(evicted) != 2 || evicted[0] != "a" || evicted[1] != "b" {
		t.Errorf("evicted = %v, want [a b]", evicted)
	}
}

func TestOutputCacheUnlimited(t *testing.T) {
	c := NewOutputCache(Config{MaxEntries: -1, MaxBytes: -1})
	for i := 0; i < 500; i++ {
		c.Put(fmt.Sprint(i), []byte("x"))
	}
	if c.Len() != 500 {
		t.Errorf("Len() = %d, want 500", c.Len())
	}
}

func TestOutputCacheConcurrency(t *testing.T) {
	c := NewOutputCache(Config{MaxEntries: 50})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (g*200+i)%80)
				c.Put(key, []byte(key))
				c.Get(key)
			}
		}(g)
	}
	wg.Wait()
	if c.Len() > 50 {
		t.Errorf("Len() = %d exceeds MaxEntries", c.Len())
	}
}

func TestDefaultOutputCache(t *testing.T) {
	c := NewDefaultOutputCache()
	if c.config.MaxEntries != 64 {
		t.Errorf("MaxEntries = %d, want 64", c.config.MaxEntries)
	}

	c.Put("key-1", []byte("<p>one</p>"))
	got, ok := c.Get("key-1")
	if !ok || string(got) != "<p>one</p>" {
		t.Errorf("Get(key-1) = %q, %v", got, ok)
	}
	if _, ok := c.Get("key-2"); ok {
		t.Error("Get(key-2) should miss")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}
