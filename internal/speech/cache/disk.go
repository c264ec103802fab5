package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const indexFile = "index.json"

// Disk stores zstd-compressed values as files under one directory.
type Disk struct {
	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	mu    sync.Mutex
	index map[string]*diskEntry
	stats Stats
}

type diskEntry struct {
	File       string    `json:"file"`
	Size       int64     `json:"size"`
	LastAccess time.Time `json:"lastAccess"`
}

// NewDisk opens or creates a disk cache in dir.
func NewDisk(dir string, capacity int64, level int) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	if level <= 0 {
		level = 3
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	d := &Disk{
		dir:      dir,
		capacity: capacity,
		encoder:  enc,
		decoder:  dec,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}
	// A missing or unreadable index starts the cache empty.
	_ = d.loadIndex()
	return d, nil
}

// Get reads and decompresses a value.
func (d *Disk) Get(key string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.index[key]
	if !ok {
		d.stats.Misses++
		return nil, false
	}
	raw, err := os.ReadFile(filepath.Join(d.dir, entry.File))
	if err != nil {
		d.dropLocked(key)
		d.stats.Misses++
		return nil, false
	}
	value, err := d.decoder.DecodeAll(raw, nil)
	if err != nil {
		d.dropLocked(key)
		d.stats.Misses++
		return nil, false
	}
	entry.LastAccess = time.Now()
	d.stats.Hits++
	return value, true
}

// Put compresses and writes a value.
func (d *Disk) Put(key string, value []byte) error {
	compressed := d.encoder.EncodeAll(value, nil)
	size := int64(len(compressed))
	if size > d.capacity {
		return ErrItemTooLarge
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[key]; ok {
		d.dropLocked(key)
	}
	for d.size+size > d.capacity && len(d.index) > 0 {
		d.evictOldestLocked()
	}

	file := key + ".zst"
	if err := os.WriteFile(filepath.Join(d.dir, file), compressed, 0o644); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	d.index[key] = &diskEntry{File: file, Size: size, LastAccess: time.Now()}
	d.size += size
	return nil
}

func (d *Disk) dropLocked(key string) {
	entry, ok := d.index[key]
	if !ok {
		return
	}
	_ = os.Remove(filepath.Join(d.dir, entry.File))
	d.size -= entry.Size
	delete(d.index, key)
}

func (d *Disk) evictOldestLocked() {
	keys := make([]string, 0, len(d.index))
	for k := range d.index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return d.index[keys[i]].LastAccess.Before(d.index[keys[j]].LastAccess)
	})
	if len(keys) > 0 {
		d.dropLocked(keys[0])
		d.stats.Evictions++
	}
}

// Clear removes every file.
func (d *Disk) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k := range d.index {
		d.dropLocked(k)
	}
	return d.saveIndexLocked()
}

// Stats returns cache statistics.
func (d *Disk) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	s.Size = d.size
	s.Items = len(d.index)
	return s
}

// Close persists the index.
func (d *Disk) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.decoder.Close()
	return d.saveIndexLocked()
}

func (d *Disk) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(d.dir, indexFile))
	if err != nil {
		return err
	}
	var idx map[string]*diskEntry
	if err := json.Unmarshal(data, &idx); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheCorrupted, err)
	}
	for k, e := range idx {
		if _, err := os.Stat(filepath.Join(d.dir, e.File)); err != nil {
			continue
		}
		d.index[k] = e
		d.size += e.Size
	}
	return nil
}

func (d *Disk) saveIndexLocked() error {
	data, err := json.Marshal(d.index)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(d.dir, indexFile), data, 0o644)
}
