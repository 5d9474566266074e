package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/paysimples-checkout-go/internal/infra/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected key to exist")
	}
	if val != "value1" {
		t.Errorf("expected 'value1', got '%s'", val)
	}
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	if _, ok := c.Get("nonexistent"); ok {
		t.Fatal("expected cache miss for nonexistent key")
	}
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string](50 * time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected cache entry to be expired")
	}
}

func TestCache_SlidingExpiry(t *testing.T) {
	c := cache.New[string](80*time.Millisecond, cache.WithSlidingExpiry[string]())
	defer c.Close()

	c.Set("key1", "value1")
	for i := 0; i < 4; i++ {
		time.Sleep(40 * time.Millisecond)
		if _, ok := c.Get("key1"); !ok {
			t.Fatalf("expected entry kept alive by reads (iteration %d)", i)
		}
	}
}

func TestCache_ExpireHook(t *testing.T) {
	var mu sync.Mutex
	expired := map[string]string{}
	done := make(chan struct{})

	c := cache.New[string](30*time.Millisecond, cache.WithExpireHook(func(key, value string) {
		mu.Lock()
		expired[key] = value
		mu.Unlock()
		close(done)
	}))
	defer c.Close()

	c.Set("session-1", "payload")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected expire hook to run")
	}

	mu.Lock()
	defer mu.Unlock()
	if expired["session-1"] != "payload" {
		t.Errorf("unexpected expired entries: %v", expired)
	}
	if c.Len() != 0 {
		t.Errorf("expected entry swept, got len %d", c.Len())
	}
}

func TestCache_DeleteAndTake(t *testing.T) {
	c := cache.New[string](5 * time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Delete("key1")
	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected key to be deleted")
	}

	c.Set("key2", "value2")
	v, ok := c.Take("key2")
	if !ok || v != "value2" {
		t.Fatalf("expected to take value2, got %q (ok=%v)", v, ok)
	}
	if _, ok := c.Take("key2"); ok {
		t.Fatal("expected second take to miss")
	}
}

func TestCache_Drain(t *testing.T) {
	c := cache.New[int](5 * time.Minute)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)

	got := c.Drain()
	if len(got) != 2 || got["a"] != 1 || got["b"] != 2 {
		t.Errorf("unexpected drained entries: %v", got)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got len %d", c.Len())
	}
}
