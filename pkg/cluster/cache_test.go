package cluster

import (
	"testing"
	"time"
)

func TestCacheAddGetSet(t *testing.T) {
	c := NewCache[string](time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Fatal("empty cache returned a value")
	}
	if !c.Add("k", "v1") {
		t.Fatal("first Add refused")
	}
	if c.Add("k", "v2") {
		t.Fatal("Add overwrote a live entry")
	}
	if v, ok := c.Get("k"); !ok || v != "v1" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	c.Set("k", "v3")
	if v, _ := c.Get("k"); v != "v3" {
		t.Fatalf("Set did not overwrite: %q", v)
	}

	c.Remove("k")
	if _, ok := c.Get("k"); ok {
		t.Fatal("Remove left the entry")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache[int](10 * time.Millisecond)
	c.Set("k", 1)
	time.Sleep(25 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned")
	}
	// a dead entry no longer blocks Add
	if !c.Add("k", 2) {
		t.Fatal("Add refused after expiry")
	}
}

func TestCacheSlidingExpiration(t *testing.T) {
	c := NewCache[int](40 * time.Millisecond)
	c.Set("k", 1)
	// keep touching the entry past its original deadline
	for i := 0; i < 4; i++ {
		time.Sleep(20 * time.Millisecond)
		if _, ok := c.Get("k"); !ok {
			t.Fatalf("entry expired despite access at step %d", i)
		}
	}
}

func TestCachePurge(t *testing.T) {
	c := NewCache[int](15 * time.Millisecond)
	c.Set("dead", 1)
	time.Sleep(30 * time.Millisecond)
	c.Set("live", 2)
	if remaining := c.Purge(); remaining != 1 {
		t.Fatalf("remaining = %d", remaining)
	}
}
