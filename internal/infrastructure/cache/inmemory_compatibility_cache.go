package cache

import (
	"context"
	"sync"
	"time"

	"github.com/pharmapos/backend/internal/domain/ledger"
)

const defaultCleanupInterval = 5 * time.Minute

// entry is a cached report with its expiry. A zero expiresAt never expires.
type entry struct {
	report    ledger.CompatibilityReport
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// InMemoryCompatibilityCache implements ledger.CompatibilityCache using an in-process map.
// This is suitable for single-instance deployments and testing
type InMemoryCompatibilityCache struct {
	mu        sync.RWMutex
	entries   map[string]entry
	ttl       time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// InMemoryOption configures an InMemoryCompatibilityCache
type InMemoryOption func(*InMemoryCompatibilityCache)

// WithInMemoryClock overrides the clock used for expiry
func WithInMemoryClock(now func() time.Time) InMemoryOption {
	return func(c *InMemoryCompatibilityCache) {
		c.now = now
	}
}

// NewInMemoryCompatibilityCache creates a cache whose entries live for ttl (0 disables expiry).
// It starts a background goroutine to clean up expired entries
func NewInMemoryCompatibilityCache(ttl time.Duration, opts ...InMemoryOption) *InMemoryCompatibilityCache {
	c := &InMemoryCompatibilityCache{
		entries:  make(map[string]entry),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.wg.Add(1)
	go c.cleanupLoop(defaultCleanupInterval)

	return c
}

// Get returns a copy of the cached report for key
func (c *InMemoryCompatibilityCache) Get(_ context.Context, key string) (*ledger.CompatibilityReport, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || e.expired(c.now()) {
		return nil, false, nil
	}
	report := e.report
	report.Issues = append([]ledger.Issue(nil), e.report.Issues...)
	return &report, true, nil
}

// Set stores a copy of report under key, replacing any previous value
func (c *InMemoryCompatibilityCache) Set(_ context.Context, key string, report *ledger.CompatibilityReport) error {
	if report == nil {
		return nil
	}
	e := entry{report: *report}
	e.report.Issues = append([]ledger.Issue(nil), report.Issues...)
	if c.ttl > 0 {
		e.expiresAt = c.now().Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Delete removes key. Deleting a missing key is a no-op
func (c *InMemoryCompatibilityCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// Clear removes every entry
func (c *InMemoryCompatibilityCache) Clear(_ context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
	return nil
}

// Close stops the cleanup goroutine and releases resources
// Safe to call multiple times
func (c *InMemoryCompatibilityCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

func (c *InMemoryCompatibilityCache) cleanupLoop(interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes expired entries from the cache
func (c *InMemoryCompatibilityCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// Size returns the number of entries held, expired or not (for testing/monitoring)
func (c *InMemoryCompatibilityCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ ledger.CompatibilityCache = (*InMemoryCompatibilityCache)(nil)
