package scope

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	id "gatehouse/pkg/domain"
)

// CachedStore layers a bounded, expiring ancestor-closure cache over a Store.
// Invalidation is TTL-only: topology mutations are rare administrative
// operations, and the TTL is the documented propagation bound for them
// (config.ScopeClosureTTL). Everything except the closure queries delegates
// straight through.
type CachedStore struct {
	Store
	chains *expirable.LRU[id.ScopeID, []id.ScopeID]
}

// NewCachedStore wraps inner with a closure cache of at most size entries,
// each valid for ttl.
func NewCachedStore(inner Store, size int, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Store:  inner,
		chains: expirable.NewLRU[id.ScopeID, []id.ScopeID](size, nil, ttl),
	}
}

func (s *CachedStore) AncestorChain(ctx context.Context, scopeID id.ScopeID) ([]id.ScopeID, error) {
	if chain, ok := s.chains.Get(scopeID); ok {
		out := make([]id.ScopeID, len(chain))
		copy(out, chain)
		return out, nil
	}
	chain, err := s.Store.AncestorChain(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	// Empty chains (unknown scopes) are not cached: the scope may be created
	// moments later and a cached miss would extend the propagation window.
	if len(chain) > 0 {
		cached := make([]id.ScopeID, len(chain))
		copy(cached, chain)
		s.chains.Add(scopeID, cached)
	}
	return chain, nil
}

func (s *CachedStore) IsAncestor(ctx context.Context, candidate, target id.ScopeID) (bool, error) {
	chain, err := s.AncestorChain(ctx, target)
	if err != nil {
		return false, err
	}
	return chainContains(chain, candidate), nil
}

// Put writes through and drops the stale closure immediately rather than
// waiting out the TTL.
func (s *CachedStore) Put(ctx context.Context, sc *Scope) error {
	if err := s.Store.Put(ctx, sc); err != nil {
		return err
	}
	s.chains.Remove(sc.ID)
	return nil
}
