package repository

import (
	"context"
	"sync"
	"time"
)

type memoryToken struct {
	value     string
	expiresAt time.Time
}

// MemoryTokenCache keeps tokens for the lifetime of the process.
type MemoryTokenCache struct {
	mu     sync.RWMutex
	tokens map[string]memoryToken
	now    func() time.Time
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{tokens: make(map[string]memoryToken), now: time.Now}
}

func (c *MemoryTokenCache) GetToken(_ context.Context, key string) (string, time.Duration, error) {
	c.mu.RLock()
	tok, ok := c.tokens[key]
	c.mu.RUnlock()
	if !ok {
		return "", 0, nil
	}
	left := tok.expiresAt.Sub(c.now())
	if left <= 0 {
		c.mu.Lock()
		delete(c.tokens, key)
		c.mu.Unlock()
		return "", 0, nil
	}
	return tok.value, left, nil
}

func (c *MemoryTokenCache) SetToken(_ context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	c.tokens[key] = memoryToken{value: token, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
	return nil
}

func (c *MemoryTokenCache) DeleteToken(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.tokens, key)
	c.mu.Unlock()
	return nil
}
