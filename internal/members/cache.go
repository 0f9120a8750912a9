package members

import (
	"context"
	"sync"
	"time"

	"team-pulse/internal/chat"
)

const DefaultTTL = 5 * time.Minute

// Loader fetches the current member list from the directory.
type Loader func(ctx context.Context) ([]chat.User, error)

// Cache memoizes the member list for a fixed TTL measured on the wall clock.
// A failed load leaves the previous snapshot in place.
type Cache struct {
	load Loader
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	members []chat.User
	expire  time.Time
}

func NewCache(load Loader, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{load: load, ttl: ttl, now: time.Now}
}

// Get returns the cached members, refreshing them when the snapshot expired.
func (c *Cache) Get(ctx context.Context) ([]chat.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.members != nil && c.now().Before(c.expire) {
		return append([]chat.User(nil), c.members...), nil
	}
	list, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []chat.User{}
	}
	c.members = list
	c.expire = c.now().Add(c.ttl)
	return append([]chat.User(nil), list...), nil
}

// Invalidate drops the snapshot so the next Get reloads.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.members = nil
	c.expire = time.Time{}
	c.mu.Unlock()
}
