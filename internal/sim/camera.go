// Package sim provides a file-backed camera, compositor and photo
// releaser for running the kiosk without hardware.
package sim

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const (
	shotWidth  = 640
	shotHeight = 480
)

// Camera writes a solid-colour JPEG per shot into a directory.
type Camera struct {
	dir       string
	failEvery int
	logger    zerolog.Logger

	mu    sync.Mutex
	shots int
}

// NewCamera creates a camera writing to dir. When failEvery is N > 0,
// every Nth shot fails.
func NewCamera(dir string, failEvery int, logger zerolog.Logger) *Camera {
	return &Camera{
		dir:       dir,
		failEvery: failEvery,
		logger:    logger.With().Str("component", "sim-camera").Logger(),
	}
}

// Start prepares the photo directory.
func (c *Camera) Start(ctx context.Context) error {
	if err := ensureDir(c.dir); err != nil {
		return fmt.Errorf("failed to create photo directory: %w", err)
	}
	c.logger.Debug().Str("dir", c.dir).Msg("Camera started")
	return nil
}

// CapturePhoto writes the next shot and returns its path.
func (c *Camera) CapturePhoto(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	c.shots++
	shot := c.shots
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if c.failEvery > 0 && shot%c.failEvery == 0 {
		return "", fmt.Errorf("simulated shutter failure on shot %d", shot)
	}

	path := filepath.Join(c.dir, fmt.Sprintf("%s-%06d.jpg", name, shot))
	if err := writeJPEG(path, solid(shotWidth, shotHeight, palette[shot%len(palette)])); err != nil {
		return "", err
	}

	c.logger.Debug().Str("path", path).Msg("Photo captured")
	return path, nil
}

var palette = []color.RGBA{
	{R: 0xe6, G: 0x39, B: 0x46, A: 0xff},
	{R: 0x2a, G: 0x9d, B: 0x8f, A: 0xff},
	{R: 0xe9, G: 0xc4, B: 0x6a, A: 0xff},
	{R: 0x26, G: 0x46, B: 0x53, A: 0xff},
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func writeJPEG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 85}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
