package scope

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	id "gatehouse/pkg/domain"
)

// RedisClosureCache shares ancestor closures between replicas. Same TTL-only
// invalidation contract as CachedStore; a cache error falls back to the inner
// store so Redis outages degrade latency, never correctness.
type RedisClosureCache struct {
	Store
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClosureCache(inner Store, client *redis.Client, ttl time.Duration) *RedisClosureCache {
	return &RedisClosureCache{Store: inner, client: client, ttl: ttl}
}

func closureKey(scopeID id.ScopeID) string {
	return "gatehouse:scope-closure:" + scopeID.String()
}

func (s *RedisClosureCache) AncestorChain(ctx context.Context, scopeID id.ScopeID) ([]id.ScopeID, error) {
	raw, err := s.client.Get(ctx, closureKey(scopeID)).Bytes()
	if err == nil {
		var ids []uuid.UUID
		if err := json.Unmarshal(raw, &ids); err == nil {
			chain := make([]id.ScopeID, len(ids))
			for i, u := range ids {
				chain[i] = id.ScopeID(u)
			}
			return chain, nil
		}
	}

	chain, err := s.Store.AncestorChain(ctx, scopeID)
	if err != nil {
		return nil, err
	}
	if len(chain) > 0 {
		ids := make([]uuid.UUID, len(chain))
		for i, sc := range chain {
			ids[i] = uuid.UUID(sc)
		}
		if raw, err := json.Marshal(ids); err == nil {
			// Best effort: a failed SET only costs the next caller a store read.
			s.client.Set(ctx, closureKey(scopeID), raw, s.ttl)
		}
	}
	return chain, nil
}

func (s *RedisClosureCache) IsAncestor(ctx context.Context, candidate, target id.ScopeID) (bool, error) {
	chain, err := s.AncestorChain(ctx, target)
	if err != nil {
		return false, err
	}
	return chainContains(chain, candidate), nil
}

func (s *RedisClosureCache) Put(ctx context.Context, sc *Scope) error {
	if err := s.Store.Put(ctx, sc); err != nil {
		return err
	}
	s.client.Del(ctx, closureKey(sc.ID))
	return nil
}
