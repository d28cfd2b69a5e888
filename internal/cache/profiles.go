package cache

import (
	"sync"
	"time"

	"github.com/geocoder89/accounthub/internal/domain/user"
)

// Profiles is a small in-process TTL cache for profile reads, keyed by
// user id. Writes to a user must invalidate its entry.
type Profiles struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]profileEntry
}

type profileEntry struct {
	profile user.Profile
	exp     time.Time
}

func NewProfiles(ttl time.Duration) *Profiles {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	return &Profiles{
		ttl: ttl,
		m:   make(map[string]profileEntry),
	}
}

func (c *Profiles) Get(userID string) (user.Profile, bool) {
	now := time.Now()
	c.mu.RLock()
	e, ok := c.m[userID]
	c.mu.RUnlock()
	if !ok {
		return user.Profile{}, false
	}

	if now.After(e.exp) {
		c.mu.Lock()
		delete(c.m, userID)
		c.mu.Unlock()
		return user.Profile{}, false
	}

	return e.profile, true
}

func (c *Profiles) Set(userID string, p user.Profile) {
	c.mu.Lock()
	c.m[userID] = profileEntry{profile: p, exp: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *Profiles) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.m, userID)
	c.mu.Unlock()
}

func (c *Profiles) Clear() {
	c.mu.Lock()
	c.m = make(map[string]profileEntry)
	c.mu.Unlock()
}
