package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/golang-lru/v2"
)

// CachedImageGenerator memoizes image results by prompt so that asking for
// the same picture twice costs one provider call.
type CachedImageGenerator struct {
	next   ImageGenerator
	cache  *lru.Cache[string, string]
	logger *slog.Logger
}

var _ ImageGenerator = (*CachedImageGenerator)(nil)

// NewCachedImageGenerator wraps next with an LRU of the given size.
func NewCachedImageGenerator(next ImageGenerator, size int, logger *slog.Logger) (*CachedImageGenerator, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create image cache: %w", err)
	}
	return &CachedImageGenerator{next: next, cache: cache, logger: logger}, nil
}

// GenerateImage returns a cached image for the trimmed prompt if present.
// Errors and empty results are not cached.
func (c *CachedImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	key := strings.TrimSpace(prompt)
	if key == "" {
		return "", ErrEmptyPrompt
	}
	if url, ok := c.cache.Get(key); ok {
		c.logger.Debug("Image cache hit", "prompt_len", len(key))
		return url, nil
	}

	url, err := c.next.GenerateImage(ctx, key)
	if err != nil || url == "" {
		return url, err
	}
	c.cache.Add(key, url)
	return url, nil
}

// Len is the number of cached images.
func (c *CachedImageGenerator) Len() int {
	return c.cache.Len()
}
