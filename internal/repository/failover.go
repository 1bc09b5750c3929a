package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"listraksync/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryWindow = time.Minute

// FailoverTokenCache reads and writes the primary cache while it is healthy
// and switches to the fallback on the first error. The primary is probed
// again once the recovery window has passed.
type FailoverTokenCache struct {
	primary  domain.TokenCache
	fallback domain.TokenCache
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
	now       func() time.Time
}

func NewFailoverTokenCache(primary, fallback domain.TokenCache, logger *zerolog.Logger) *FailoverTokenCache {
	return &FailoverTokenCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (c *FailoverTokenCache) GetToken(ctx context.Context, key string) (string, time.Duration, error) {
	if c.usePrimary() {
		tok, ttl, err := c.primary.GetToken(ctx, key)
		if err == nil {
			c.isDown.Store(false)
			return tok, ttl, nil
		}
		c.markDown(err)
	}
	return c.fallback.GetToken(ctx, key)
}

func (c *FailoverTokenCache) SetToken(ctx context.Context, key, token string, ttl time.Duration) error {
	// the fallback always gets a copy so a later outage still finds the token
	if err := c.fallback.SetToken(ctx, key, token, ttl); err != nil {
		return err
	}
	if c.usePrimary() {
		if err := c.primary.SetToken(ctx, key, token, ttl); err != nil {
			c.markDown(err)
		}
	}
	return nil
}

// DeleteToken removes the token from both caches. A primary failure only
// marks it down; the fallback copy is gone either way.
func (c *FailoverTokenCache) DeleteToken(ctx context.Context, key string) error {
	if err := c.fallback.DeleteToken(ctx, key); err != nil {
		return err
	}
	if c.usePrimary() {
		if err := c.primary.DeleteToken(ctx, key); err != nil {
			c.markDown(err)
		}
	}
	return nil
}

func (c *FailoverTokenCache) usePrimary() bool {
	if !c.isDown.Load() {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Sub(c.lastCheck) > recoveryWindow
}

func (c *FailoverTokenCache) markDown(err error) {
	if !c.isDown.Swap(true) {
		c.logger.Error().Err(err).Msg("primary token cache failed, falling back to memory")
	}
	c.mu.Lock()
	c.lastCheck = c.now()
	c.mu.Unlock()
}
