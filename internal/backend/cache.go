package backend

import (
	"sync"
	"time"
)

type cachedAnime struct {
	anime    *Anime
	storedAt time.Time
}

// AnimeCache keeps catalog lookups so a watch session fetches each anime
// id once.
type AnimeCache struct {
	mu   sync.RWMutex
	ttl  time.Duration
	data map[int]cachedAnime
	now  func() time.Time
}

// NewAnimeCache creates a cache; a zero ttl never expires entries
func NewAnimeCache(ttl time.Duration) *AnimeCache {
	return &AnimeCache{
		ttl:  ttl,
		data: make(map[int]cachedAnime),
		now:  time.Now,
	}
}

// Get retrieves a cached anime
func (c *AnimeCache) Get(id int) (*Anime, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.data[id]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		return nil, false
	}
	return entry.anime, true
}

// Set stores an anime
func (c *AnimeCache) Set(id int, anime *Anime) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[id] = cachedAnime{anime: anime, storedAt: c.now()}
}
