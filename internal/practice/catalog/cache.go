// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     catalog
// Description: In-memory reference audio cache with bounded prefetch
// Author:      Mike Stoffels
// Created:     2025-12-09
// License:     MIT
// ============================================================================

package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/msto63/hatsuon/pkg/core/logging"
)

// DefaultPrefetchLimit bounds concurrent downloads during Prefetch
const DefaultPrefetchLimit = 4

// FetchTimeout bounds a shared download once it no longer follows a caller
const FetchTimeout = 30 * time.Second

// AudioCache memoizes reference audio per lesson id
type AudioCache struct {
	fetcher AudioFetcher
	limit   int
	logger  *logging.Logger
	group   singleflight.Group

	mu    sync.Mutex
	items map[string][]byte
}

// NewAudioCache creates a cache in front of fetcher
func NewAudioCache(fetcher AudioFetcher, limit int, logger *logging.Logger) *AudioCache {
	if limit <= 0 {
		limit = DefaultPrefetchLimit
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &AudioCache{
		fetcher: fetcher,
		limit:   limit,
		logger:  logger,
		items:   make(map[string][]byte),
	}
}

// Get returns cached audio or fetches it. Concurrent calls for one id share
// a single download; a caller giving up does not abort it for the others.
// Failed fetches are not cached.
func (c *AudioCache) Get(ctx context.Context, id string) ([]byte, error) {
	if data, ok := c.lookup(id); ok {
		return data, nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	result := c.group.DoChan(id, func() (interface{}, error) {
		if data, ok := c.lookup(id); ok {
			return data, nil
		}
		fctx, cancel := context.WithTimeout(fetchCtx, FetchTimeout)
		defer cancel()

		data, err := c.fetcher.ReferenceAudio(fctx, id)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items[id] = data
		c.mu.Unlock()
		return data, nil
	})

	select {
	case r := <-result:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *AudioCache) lookup(id string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.items[id]
	return data, ok
}

// Cached reports whether audio for id is in memory
func (c *AudioCache) Cached(id string) bool {
	_, ok := c.lookup(id)
	return ok
}

// Len returns the number of cached recordings
func (c *AudioCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Prefetch downloads audio for ids with bounded concurrency. Individual
// failures are logged and counted, not returned; only cancellation aborts.
func (c *AudioCache) Prefetch(ctx context.Context, ids []string) (failed int, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)

	var mu sync.Mutex
	for _, id := range ids {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if _, err := c.Get(gctx, id); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Debug("Reference audio prefetch failed", "lesson_id", id, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
			return nil
		})
	}
	err = g.Wait()
	return failed, err
}
