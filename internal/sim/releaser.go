package sim

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Releaser deletes discarded photos that live under its directory and
// leaves anything else alone.
type Releaser struct {
	dir    string
	logger zerolog.Logger
}

// NewReleaser creates a releaser confined to dir.
func NewReleaser(dir string, logger zerolog.Logger) *Releaser {
	return &Releaser{
		dir:    filepath.Clean(dir),
		logger: logger.With().Str("component", "sim-releaser").Logger(),
	}
}

// Release removes paths.
func (r *Releaser) Release(paths []string) {
	for _, path := range paths {
		clean := filepath.Clean(path)
		if !strings.HasPrefix(clean, r.dir+string(filepath.Separator)) {
			r.logger.Warn().Str("path", path).Msg("Refusing to release photo outside photo directory")
			continue
		}
		if err := os.Remove(clean); err != nil && !os.IsNotExist(err) {
			r.logger.Warn().Err(err).Str("path", path).Msg("Failed to release photo")
			continue
		}
		r.logger.Debug().Str("path", path).Msg("Photo released")
	}
}

// ensureDir creates an output directory readable by the print spooler.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
