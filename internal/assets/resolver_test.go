package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/rs/zerolog"
)

func setupResolver(t *testing.T, ttl time.Duration) (*Resolver, string) {
	t.Helper()

	dir := t.TempDir()
	for _, name := range []string{"strip-preview.png", "strip-bg.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("png"), 0644); err != nil {
			t.Fatalf("failed to write asset: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "frames"), 0755); err != nil {
		t.Fatalf("failed to create subdirectory: %v", err)
	}

	r, err := NewResolver(Config{Dir: dir, CacheSize: 8, CacheTTL: ttl}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewResolver() error: %v", err)
	}
	return r, dir
}

func TestResolver_Resolve(t *testing.T) {
	r, dir := setupResolver(t, time.Minute)

	tests := []struct {
		name     string
		preview  string
		bg       string
		wantFail bool
	}{
		{name: "both present", preview: "strip-preview.png", bg: "strip-bg.png"},
		{name: "no assets named"},
		{name: "absolute path inside dir", bg: filepath.Join(dir, "strip-bg.png")},
		{name: "missing background", preview: "strip-preview.png", bg: "missing.png", wantFail: true},
		{name: "directory", bg: "frames", wantFail: true},
		{name: "escapes dir", bg: "../etc/passwd", wantFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := domain.Template{ID: "grid", PhotoCount: 1, Width: 1, Height: 1, PreviewAsset: tt.preview, BackgroundAsset: tt.bg}
			err := r.Resolve(context.Background(), tpl)
			if tt.wantFail && err == nil {
				t.Error("Resolve() succeeded, want error")
			}
			if !tt.wantFail && err != nil {
				t.Errorf("Resolve() error: %v", err)
			}
		})
	}
}

func TestResolver_CacheTTL(t *testing.T) {
	r, dir := setupResolver(t, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	path, err := r.Path("strip-bg.png")
	if err != nil {
		t.Fatalf("Path() error: %v", err)
	}
	if path != filepath.Join(dir, "strip-bg.png") {
		t.Errorf("Path() = %q", path)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("failed to remove asset: %v", err)
	}

	// Cached entry still answers within the TTL
	if _, err := r.Path("strip-bg.png"); err != nil {
		t.Errorf("cached Path() error: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := r.Path("strip-bg.png"); err == nil {
		t.Error("expired entry was not re-checked")
	}
}

func TestResolver_Purge(t *testing.T) {
	r, dir := setupResolver(t, 0)

	if _, err := r.Path("strip-preview.png"); err != nil {
		t.Fatalf("Path() error: %v", err)
	}
	_ = os.Remove(filepath.Join(dir, "strip-preview.png"))

	r.Purge()
	if _, err := r.Path("strip-preview.png"); err == nil {
		t.Error("purged entry was served from cache")
	}
}

func TestNewResolver_RequiresDir(t *testing.T) {
	if _, err := NewResolver(Config{}, zerolog.Nop()); err == nil {
		t.Error("NewResolver() accepted an empty directory")
	}
}
