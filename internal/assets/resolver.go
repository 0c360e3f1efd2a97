// Package assets locates template preview and background images on disk.
package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goodtune/photokiosk/internal/domain"
	"github.com/goodtune/photokiosk/internal/metrics"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// Resolver checks template assets under a base directory and caches
// positive lookups
type Resolver struct {
	dir      string
	cache    *lru.Cache[string, entry]
	cacheTTL time.Duration
	now      func() time.Time
	logger   zerolog.Logger
	mu       sync.RWMutex
}

type entry struct {
	path      string
	checkedAt time.Time
}

// Config holds resolver configuration
type Config struct {
	Dir       string
	CacheSize int
	CacheTTL  time.Duration
}

// NewResolver creates a resolver rooted at config.Dir
func NewResolver(config Config, logger zerolog.Logger) (*Resolver, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("asset directory is required")
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 256
	}

	dir, err := filepath.Abs(config.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve asset directory: %w", err)
	}

	cache, err := lru.New[string, entry](config.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create asset cache: %w", err)
	}

	r := &Resolver{
		dir:      dir,
		cache:    cache,
		cacheTTL: config.CacheTTL,
		now:      time.Now,
		logger:   logger.With().Str("component", "assets").Logger(),
	}

	r.logger.Info().
		Str("dir", dir).
		Int("cache_size", config.CacheSize).
		Dur("cache_ttl", config.CacheTTL).
		Msg("Asset resolver initialized")

	return r, nil
}

// Resolve reports an error unless every asset the template names exists
func (r *Resolver) Resolve(ctx context.Context, template domain.Template) error {
	for _, name := range []string{template.PreviewAsset, template.BackgroundAsset} {
		if name == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := r.Path(name); err != nil {
			return fmt.Errorf("template %s: %w", template.ID, err)
		}
	}
	return nil
}

// Path returns the absolute path of the named asset
func (r *Resolver) Path(name string) (string, error) {
	r.mu.RLock()
	if e, ok := r.cache.Get(name); ok && r.fresh(e) {
		r.mu.RUnlock()
		metrics.AssetCacheHits.Inc()
		return e.path, nil
	}
	r.mu.RUnlock()

	metrics.AssetCacheMisses.Inc()

	path, err := r.lookup(name)
	if err != nil {
		r.logger.Debug().Err(err).Str("asset", name).Msg("Asset lookup failed")
		return "", err
	}

	r.mu.Lock()
	r.cache.Add(name, entry{path: path, checkedAt: r.now()})
	r.mu.Unlock()

	return path, nil
}

// Purge drops every cached lookup
func (r *Resolver) Purge() {
	r.mu.Lock()
	r.cache.Purge()
	r.mu.Unlock()
}

func (r *Resolver) fresh(e entry) bool {
	return r.cacheTTL <= 0 || r.now().Sub(e.checkedAt) < r.cacheTTL
}

func (r *Resolver) lookup(name string) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.dir, path)
	}
	path = filepath.Clean(path)

	if path != r.dir && !strings.HasPrefix(path, r.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("asset %s is outside %s", name, r.dir)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("asset %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("asset %s is not a regular file", name)
	}
	return path, nil
}
