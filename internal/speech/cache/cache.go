// Package cache keeps rendered speech so repeated announcements (milestone
// lines, common chat phrases) skip synthesis. A bounded in-memory LRU sits
// in front of a zstd-compressed directory on disk.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	// ErrItemTooLarge is returned when an item exceeds a tier's capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheCorrupted is returned when stored data cannot be decoded.
	ErrCacheCorrupted = errors.New("cache data corrupted")
)

// Stats are hit and size counters for one tier.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int
	Hits      int64
	Misses    int64
	Evictions int64
}

// HitRate returns hits / (hits + misses).
func (s Stats) HitRate() float64 {
	if s.Hits+s.Misses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Hits+s.Misses)
}

// Key derives a stable key for one rendering.
func Key(engine, voice, text string) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%s", engine, voice, text))
	return hex.EncodeToString(sum[:16])
}

// Config configures a Tiered cache.
type Config struct {
	MemoryCapacity int64
	// DiskPath disables the disk tier when empty.
	DiskPath         string
	DiskCapacity     int64
	CompressionLevel int
}

// DefaultConfig returns the default capacities.
func DefaultConfig() Config {
	return Config{
		MemoryCapacity:   32 << 20,
		DiskCapacity:     256 << 20,
		CompressionLevel: 3,
	}
}

// Tiered reads through memory then disk and writes to both.
type Tiered struct {
	mem  *Memory
	disk *Disk
}

// New builds a Tiered cache.
func New(cfg Config) (*Tiered, error) {
	t := &Tiered{mem: NewMemory(cfg.MemoryCapacity)}
	if cfg.DiskPath != "" {
		d, err := NewDisk(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, err
		}
		t.disk = d
	}
	return t, nil
}

// Get returns a cached value.
func (t *Tiered) Get(key string) ([]byte, bool) {
	if v, ok := t.mem.Get(key); ok {
		return v, true
	}
	if t.disk == nil {
		return nil, false
	}
	v, ok := t.disk.Get(key)
	if ok {
		_ = t.mem.Put(key, v)
	}
	return v, ok
}

// Put stores a value in every tier.
func (t *Tiered) Put(key string, value []byte) error {
	memErr := t.mem.Put(key, value)
	if t.disk == nil {
		return memErr
	}
	return errors.Join(memErr, t.disk.Put(key, value))
}

// Clear empties every tier.
func (t *Tiered) Clear() error {
	t.mem.Clear()
	if t.disk != nil {
		return t.disk.Clear()
	}
	return nil
}

// Stats returns per-tier statistics. Disk stats are zero without a disk tier.
func (t *Tiered) Stats() (mem, disk Stats) {
	mem = t.mem.Stats()
	if t.disk != nil {
		disk = t.disk.Stats()
	}
	return mem, disk
}

// Close flushes the disk index.
func (t *Tiered) Close() error {
	if t.disk != nil {
		return t.disk.Close()
	}
	return nil
}
