package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FileCache persists response bodies on disk with a TTL. It keeps the
// station table across process restarts so startup does not refetch it.
type FileCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// fileEntry is the on-disk representation of one cached body
type fileEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewFileCache creates a file cache rooted at dir
func NewFileCache(dir string, ttl time.Duration) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}

	return &FileCache{
		dir: dir,
		ttl: ttl,
		now: time.Now,
	}, nil
}

// DefaultCacheDir returns $XDG_CACHE_HOME/crtm or ~/.cache/crtm
func DefaultCacheDir() string {
	if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
		return filepath.Join(xdgCache, "crtm")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "crtm-cache")
	}

	return filepath.Join(home, ".cache", "crtm")
}

func (c *FileCache) path(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(hash[:])+".json")
}

func (c *FileCache) read(filename string) (fileEntry, bool) {
	var entry fileEntry

	// #nosec G304 -- filename is a hash inside the cache directory
	data, err := os.ReadFile(filename)
	if err != nil {
		return entry, false
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = os.Remove(filename)
		return entry, false
	}
	if c.now().After(entry.ExpiresAt) {
		_ = os.Remove(filename)
		return entry, false
	}
	return entry, true
}

// Get returns the stored body, removing it when expired or unreadable
func (c *FileCache) Get(key string) ([]byte, bool) {
	entry, ok := c.read(c.path(key))
	if !ok {
		return nil, false
	}
	return entry.Data, true
}

// Set stores a body
func (c *FileCache) Set(key string, value []byte) error {
	now := c.now()
	data, err := json.Marshal(fileEntry{
		Key:       key,
		Data:      value,
		StoredAt:  now,
		ExpiresAt: now.Add(c.ttl),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(key), data, 0600)
}

// Delete removes one key
func (c *FileCache) Delete(key string) error {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Clear removes all entries
func (c *FileCache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			_ = os.Remove(filepath.Join(c.dir, entry.Name()))
		}
	}
	return nil
}

// Cleanup removes expired entries and returns how many are left
func (c *FileCache) Cleanup() (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}

	kept := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if _, ok := c.read(filepath.Join(c.dir, entry.Name())); ok {
			kept++
		}
	}
	return kept, nil
}
