package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeClock is a settable time source
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestFileCache(t *testing.T, ttl time.Duration) (*FileCache, *fakeClock) {
	t.Helper()
	fc, err := NewFileCache(t.TempDir(), ttl)
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	clock := newFakeClock()
	fc.now = clock.Now
	return fc, clock
}

func TestFileCache_SetAndGet(t *testing.T) {
	fc, _ := newTestFileCache(t, time.Hour)

	key := "station_name.js"
	value := []byte(`var station_names ='@aaa|A|AAA|a|aaa|0';`)

	if err := fc.Set(key, value); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok := fc.Get(key)
	if !ok {
		t.Fatal("Get() returned false, want true")
	}
	if string(got) != string(value) {
		t.Errorf("Get() = %q, want %q", got, value)
	}
}

func TestFileCache_GetMissing(t *testing.T) {
	fc, _ := newTestFileCache(t, time.Hour)

	if _, ok := fc.Get("non-existent-key"); ok {
		t.Error("Get() returned true for non-existent key")
	}
}

func TestFileCache_Expiration(t *testing.T) {
	fc, clock := newTestFileCache(t, 24*time.Hour)

	if err := fc.Set("stations", []byte("body")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	clock.Advance(24*time.Hour - time.Second)
	if _, ok := fc.Get("stations"); !ok {
		t.Error("Get() returned false before expiry")
	}

	clock.Advance(2 * time.Second)
	if _, ok := fc.Get("stations"); ok {
		t.Error("Get() returned true for expired key")
	}
	if entries, _ := os.ReadDir(fc.dir); len(entries) != 0 {
		t.Errorf("expired entry left on disk: %d files", len(entries))
	}
}

func TestFileCache_CorruptEntry(t *testing.T) {
	fc, _ := newTestFileCache(t, time.Hour)

	if err := os.WriteFile(fc.path("broken"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, ok := fc.Get("broken"); ok {
		t.Error("Get() returned true for corrupt entry")
	}
	if _, err := os.Stat(fc.path("broken")); !os.IsNotExist(err) {
		t.Error("corrupt entry was not removed")
	}
}

func TestFileCache_CreateDirectory(t *testing.T) {
	nestedDir := filepath.Join(t.TempDir(), "nested", "cache", "dir")

	fc, err := NewFileCache(nestedDir, time.Minute)
	if err != nil {
		t.Fatalf("NewFileCache() error = %v", err)
	}
	if _, err := os.Stat(nestedDir); os.IsNotExist(err) {
		t.Error("Cache directory was not created")
	}
	if err := fc.Set("test", []byte("data")); err != nil {
		t.Errorf("Set() error = %v", err)
	}
}

func TestDefaultCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	if got := DefaultCacheDir(); got != filepath.Join("/tmp/xdg", "crtm") {
		t.Errorf("DefaultCacheDir() = %q", got)
	}
}

func TestFileCache_DeleteAndClear(t *testing.T) {
	fc, _ := newTestFileCache(t, time.Hour)

	for _, key := range []string{"a", "b", "c"} {
		if err := fc.Set(key, []byte(key)); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	if err := fc.Delete("a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := fc.Delete("a"); err != nil {
		t.Errorf("Delete() of missing key error = %v", err)
	}
	if _, ok := fc.Get("a"); ok {
		t.Error("Get(a) returned true after Delete()")
	}

	if err := fc.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	for _, key := range []string{"b", "c"} {
		if _, ok := fc.Get(key); ok {
			t.Errorf("Get(%q) returned true after Clear()", key)
		}
	}
	if _, err := os.Stat(fc.dir); os.IsNotExist(err) {
		t.Error("Cache directory was deleted by Clear()")
	}
}

func TestFileCache_Cleanup(t *testing.T) {
	fc, clock := newTestFileCache(t, time.Minute)

	for _, key := range []string{"old1", "old2"} {
		if err := fc.Set(key, []byte("old data")); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}
	clock.Advance(2 * time.Minute)
	if err := fc.Set("fresh", []byte("fresh data")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	kept, err := fc.Cleanup()
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if kept != 1 {
		t.Errorf("Cleanup() kept %d, want 1", kept)
	}
	if _, ok := fc.Get("fresh"); !ok {
		t.Error("fresh entry was removed")
	}
}
