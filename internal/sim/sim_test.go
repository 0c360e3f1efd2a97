package sim

import (
	"context"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/rs/zerolog"
)

func captureN(t *testing.T, cam *Camera, n int) []string {
	t.Helper()

	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		path, err := cam.CapturePhoto(context.Background(), "shot")
		if err != nil {
			t.Fatalf("CapturePhoto() error: %v", err)
		}
		paths = append(paths, path)
	}
	return paths
}

func TestCamera_CapturePhoto(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "photos")
	cam := NewCamera(dir, 0, zerolog.Nop())

	if err := cam.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	paths := captureN(t, cam, 2)
	if paths[0] == paths[1] {
		t.Error("shots share a path")
	}
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			t.Fatalf("shot not written: %v", err)
		}
		if _, err := jpeg.Decode(f); err != nil {
			t.Errorf("shot is not a JPEG: %v", err)
		}
		f.Close()
	}
}

func TestCamera_FailEvery(t *testing.T) {
	cam := NewCamera(t.TempDir(), 3, zerolog.Nop())

	var failed []int
	for shot := 1; shot <= 6; shot++ {
		if _, err := cam.CapturePhoto(context.Background(), "shot"); err != nil {
			failed = append(failed, shot)
		}
	}
	if len(failed) != 2 || failed[0] != 3 || failed[1] != 6 {
		t.Errorf("failed shots = %v, want [3 6]", failed)
	}
}

func TestCamera_CancelledContext(t *testing.T) {
	cam := NewCamera(t.TempDir(), 0, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := cam.CapturePhoto(ctx, "shot"); err == nil {
		t.Error("CapturePhoto() ignored a cancelled context")
	}
}

func TestCompositor_ComposePhotos(t *testing.T) {
	cam := NewCamera(t.TempDir(), 0, zerolog.Nop())
	paths := captureN(t, cam, 3)
	comp := NewCompositor(filepath.Join(t.TempDir(), "out"), zerolog.Nop())

	tests := []struct {
		name  string
		slots []domain.Slot
	}{
		{name: "strip layout"},
		{name: "explicit slots", slots: []domain.Slot{
			{X: 0, Y: 0, Width: 300, Height: 300},
			{X: 300, Y: 0, Width: 300, Height: 300},
			{X: 0, Y: 300, Width: 600, Height: 300},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := domain.Template{ID: "grid-3", PhotoCount: 3, Width: 600, Height: 600, Slots: tt.slots}
			result, err := comp.ComposePhotos(context.Background(), tpl, paths)
			if err != nil {
				t.Fatalf("ComposePhotos() error: %v", err)
			}
			if !result.Success {
				t.Fatalf("ComposePhotos() failed: %s", result.Message)
			}

			f, err := os.Open(result.OutputPath)
			if err != nil {
				t.Fatalf("output not written: %v", err)
			}
			defer f.Close()
			cfg, err := jpeg.DecodeConfig(f)
			if err != nil {
				t.Fatalf("output is not a JPEG: %v", err)
			}
			if cfg.Width != 600 || cfg.Height != 600 {
				t.Errorf("output is %dx%d, want 600x600", cfg.Width, cfg.Height)
			}
			if result.PreviewImage == "" || result.PreviewImage == result.OutputPath {
				t.Errorf("PreviewImage = %q", result.PreviewImage)
			}
		})
	}
}

func TestCompositor_Failures(t *testing.T) {
	comp := NewCompositor(t.TempDir(), zerolog.Nop())
	tpl := domain.Template{ID: "grid-2", PhotoCount: 2, Width: 100, Height: 100}

	result, err := comp.ComposePhotos(context.Background(), tpl, []string{"/nope.jpg"})
	if err != nil || result.Success {
		t.Errorf("wrong photo count: result = %+v, err = %v", result, err)
	}

	result, err = comp.ComposePhotos(context.Background(), tpl, []string{"/nope-1.jpg", "/nope-2.jpg"})
	if err != nil || result.Success || result.Message == "" {
		t.Errorf("missing photos: result = %+v, err = %v", result, err)
	}
}

func TestReleaser_Release(t *testing.T) {
	dir := t.TempDir()
	cam := NewCamera(dir, 0, zerolog.Nop())
	paths := captureN(t, cam, 2)

	outside := filepath.Join(t.TempDir(), "keep.jpg")
	if err := os.WriteFile(outside, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	NewReleaser(dir, zerolog.Nop()).Release(append(paths, outside, filepath.Join(dir, "gone.jpg")))

	for _, p := range paths {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s not released", p)
		}
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("file outside the photo directory was removed: %v", err)
	}
}
