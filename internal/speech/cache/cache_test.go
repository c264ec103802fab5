package cache

import (
	"bytes"
	"errors"
	"testing"
)

func TestMemoryLRU(t *testing.T) {
	c := NewMemory(10)
	_ = c.Put("a", []byte("aaaa"))
	_ = c.Put("b", []byte("bbbb"))
	c.Get("a") // a is now most recent
	_ = c.Put("c", []byte("cccc"))

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}
	if s := c.Stats(); s.Evictions != 1 || s.Size != 8 || s.Items != 2 {
		t.Errorf("Stats() = %+v", s)
	}
	if err := c.Put("big", make([]byte, 11)); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Put(big) error = %v", err)
	}
}

func TestDiskRoundTripAndReopen(t *testing.T) {
	dir := t.TempDir()
	payload := bytes.Repeat([]byte("pcm-sample-"), 500)

	d, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDisk() error = %v", err)
	}
	if err := d.Put("k", payload); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if s := d.Stats(); s.Size >= int64(len(payload)) {
		t.Errorf("stored %d bytes for %d byte payload; expected compression", s.Size, len(payload))
	}
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	d2, err := NewDisk(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	got, ok := d2.Get("k")
	if !ok || !bytes.Equal(got, payload) {
		t.Fatalf("Get() after reopen = %d bytes, %v", len(got), ok)
	}
	if err := d2.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, ok := d2.Get("k"); ok {
		t.Error("Get() after Clear hit")
	}
}

func TestTieredPromotesFromDisk(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DiskPath = t.TempDir()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	key := Key("piper", "0", "hello")
	if err := c.Put(key, []byte("audio")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	c.mem.Clear()

	if v, ok := c.Get(key); !ok || string(v) != "audio" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}
	mem, disk := c.Stats()
	if mem.Items != 1 || disk.Hits != 1 {
		t.Errorf("mem = %+v, disk = %+v", mem, disk)
	}
}

func TestKeyStable(t *testing.T) {
	if Key("a", "b", "c") != Key("a", "b", "c") {
		t.Error("Key is not deterministic")
	}
	if Key("a", "b", "c") == Key("a", "bc", "") {
		t.Error("Key collides across field boundaries")
	}
}
