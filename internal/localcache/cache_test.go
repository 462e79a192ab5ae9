package localcache

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSetGetRoundTrip(t *testing.T) {
	c, err := Open("")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	type payload struct{ N int }
	if err := c.Set("k", payload{N: 7}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var got payload
	if !c.Get("k", &got) || got.N != 7 {
		t.Fatalf("get = %+v", got)
	}
}

func TestExpiryServedAsStale(t *testing.T) {
	c, _ := Open("")
	now := time.Now()
	c.now = func() time.Time { return now }

	if err := c.Set("k", 42, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var v int
	if !c.Get("k", &v) {
		t.Fatal("entry should be fresh before TTL")
	}

	now = now.Add(2 * time.Minute)
	if c.Get("k", &v) {
		t.Fatal("expired entry must not be served as fresh")
	}
	ok, stale := c.GetStale("k", &v)
	if !ok || !stale || v != 42 {
		t.Fatalf("expired entry should still be readable as stale: ok=%v stale=%v v=%d", ok, stale, v)
	}
}

func TestNoTTLNeverExpires(t *testing.T) {
	c, _ := Open("")
	now := time.Now()
	c.now = func() time.Time { return now }

	_ = c.Set("k", "v", 0)
	now = now.Add(1000 * time.Hour)

	var v string
	if !c.Get("k", &v) || v != "v" {
		t.Fatal("entry without TTL must never expire")
	}
}

func TestFilePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	c1, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c1.Set(AttemptKey("2024-06-01"), AttemptEntry{TargetID: "b"}, time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}

	c2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	var e AttemptEntry
	if !c2.Get(AttemptKey("2024-06-01"), &e) || e.TargetID != "b" {
		t.Fatalf("entry lost across reopen: %+v", e)
	}
}

func TestDelete(t *testing.T) {
	c, _ := Open("")
	_ = c.Set("k", 1, 0)
	c.Delete("k")
	var v int
	if ok, _ := c.GetStale("k", &v); ok {
		t.Fatal("deleted entry still readable")
	}
}
