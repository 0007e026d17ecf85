package pipeline

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/screamguard/internal/escalation"
)

// registry holds candidates awaiting confirmation. Entries expire after the
// TTL; take removes an entry so each candidate is dispatched at most once.
type registry struct {
	mu    sync.Mutex // serialises take against concurrent takes of one id
	cache *cache.Cache
}

func newRegistry(ttl time.Duration) *registry {
	return &registry{cache: cache.New(ttl, ttl)}
}

func (r *registry) put(c *escalation.Candidate) {
	r.cache.SetDefault(c.ID, c)
}

// take returns and removes the candidate.
func (r *registry) take(id string) (*escalation.Candidate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, found := r.cache.Get(id)
	if !found {
		return nil, false
	}
	r.cache.Delete(id)
	c, ok := v.(*escalation.Candidate)
	return c, ok
}

// Len counts unexpired candidates.
func (r *registry) Len() int {
	return len(r.cache.Items())
}
