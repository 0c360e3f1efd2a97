package sim

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"
)

// Compositor lays captured photos into the template slots on a white
// canvas and writes the result as JPEG.
type Compositor struct {
	dir    string
	logger zerolog.Logger
}

// NewCompositor creates a compositor writing into dir.
func NewCompositor(dir string, logger zerolog.Logger) *Compositor {
	return &Compositor{
		dir:    dir,
		logger: logger.With().Str("component", "sim-compositor").Logger(),
	}
}

// ComposePhotos renders paths into template. Photo i goes into slot i;
// a template without slots gets an even vertical strip.
func (c *Compositor) ComposePhotos(ctx context.Context, template domain.Template, paths []string) (domain.ComposeResult, error) {
	if len(paths) != template.PhotoCount {
		return domain.ComposeResult{
			Message: fmt.Sprintf("template %s needs %d photos, got %d", template.ID, template.PhotoCount, len(paths)),
		}, nil
	}
	if err := ensureDir(c.dir); err != nil {
		return domain.ComposeResult{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, template.Width, template.Height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	slots := template.Slots
	if len(slots) < len(paths) {
		slots = stripSlots(template.Width, template.Height, len(paths))
	}

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return domain.ComposeResult{}, err
		}
		photo, err := readImage(path)
		if err != nil {
			return domain.ComposeResult{Message: err.Error()}, nil
		}
		s := slots[i]
		dst := image.Rect(s.X, s.Y, s.X+s.Width, s.Y+s.Height)
		xdraw.CatmullRom.Scale(canvas, dst, photo, photo.Bounds(), draw.Over, nil)
	}

	out := filepath.Join(c.dir, fmt.Sprintf("%s-%s.jpg", template.ID, uuid.NewString()))
	if err := writeJPEG(out, canvas); err != nil {
		return domain.ComposeResult{}, err
	}

	preview := out[:len(out)-len(".jpg")] + "-preview.jpg"
	small := image.NewRGBA(image.Rect(0, 0, template.Width/2, template.Height/2))
	xdraw.ApproxBiLinear.Scale(small, small.Bounds(), canvas, canvas.Bounds(), draw.Src, nil)
	if err := writeJPEG(preview, small); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to write preview, using full image")
		preview = out
	}

	c.logger.Info().Str("template", template.ID).Str("path", out).Msg("Composition written")
	return domain.ComposeResult{Success: true, OutputPath: out, PreviewImage: preview}, nil
}

func stripSlots(width, height, n int) []domain.Slot {
	const margin = 10
	h := (height - margin*(n+1)) / n
	slots := make([]domain.Slot, n)
	for i := range slots {
		slots[i] = domain.Slot{X: margin, Y: margin + i*(h+margin), Width: width - 2*margin, Height: h}
	}
	return slots
}

func readImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open photo: %w", err)
	}
	defer f.Close()

	img, err := jpeg.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
