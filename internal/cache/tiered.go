package cache

import (
	"context"
	"time"

	"github.com/agentuity/go-common/logger"
)

// Config selects the cache backend. An empty RedisURL (or Disabled) yields
// a purely in-process cache.
type Config struct {
	RedisURL   string
	DefaultTTL time.Duration
	Disabled   bool
}

// TieredCache fronts the shared redis backend with the in-process cache.
// Backend faults degrade to local-only behavior with identical TTL
// semantics; callers never see them. Writes land in both layers so a
// backend outage mid-lifetime still leaves warm local state.
type TieredCache struct {
	remote *redisCache
	local  *MemoryCache
	logger logger.Logger
}

// New builds the cache for the given config. A redis connection failure is
// not an error: the condition is logged and the cache starts local-only.
func New(cfg Config, log logger.Logger) *TieredCache {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	t := &TieredCache{
		local:  NewMemoryCache(cfg.DefaultTTL),
		logger: log,
	}
	if cfg.Disabled || cfg.RedisURL == "" {
		log.Debug("shared cache disabled, using in-process cache only")
		return t
	}
	remote, err := newRedisCache(cfg.RedisURL, cfg.DefaultTTL, log)
	if err != nil {
		log.Warn("shared cache unreachable at %s, falling back to in-process cache: %s", cfg.RedisURL, err)
		return t
	}
	log.Info("connected to shared cache at %s", cfg.RedisURL)
	t.remote = remote
	remote.listen(t.applyRemoteInvalidation)
	return t
}

func (t *TieredCache) Get(ctx context.Context, agentName string) ([]byte, bool) {
	if t.remote != nil {
		value, ok, err := t.remote.get(ctx, agentName)
		if err == nil {
			if ok {
				return value, true
			}
		} else {
			t.logger.Debug("shared cache get failed, using in-process cache: %s", err)
		}
	}
	return t.local.Get(ctx, agentName)
}

func (t *TieredCache) Put(ctx context.Context, agentName string, value []byte, sourceTag string, ttl time.Duration) {
	if t.remote != nil {
		if err := t.remote.put(ctx, agentName, value, sourceTag, ttl); err != nil {
			t.logger.Debug("shared cache put failed: %s", err)
		}
	}
	t.local.Put(ctx, agentName, value, sourceTag, ttl)
}

func (t *TieredCache) Invalidate(ctx context.Context, agentName string) {
	t.local.Invalidate(ctx, agentName)
	if t.remote != nil {
		if err := t.remote.invalidate(ctx, agentName); err != nil {
			t.logger.Debug("shared cache invalidate failed: %s", err)
		}
		if err := t.remote.publish(ctx, invalidationMessage{AgentName: agentName}); err != nil {
			t.logger.Debug("failed to broadcast invalidation for %s: %s", agentName, err)
		}
	}
}

func (t *TieredCache) InvalidateBySource(ctx context.Context, sourceTag string) int {
	count := t.local.InvalidateBySource(ctx, sourceTag)
	if t.remote != nil {
		remoteCount, err := t.remote.invalidateBySource(ctx, sourceTag)
		if err != nil {
			t.logger.Debug("shared cache source invalidation failed: %s", err)
		} else if remoteCount > count {
			count = remoteCount
		}
		if err := t.remote.publish(ctx, invalidationMessage{SourceTag: sourceTag}); err != nil {
			t.logger.Debug("failed to broadcast source invalidation for %s: %s", sourceTag, err)
		}
	}
	return count
}

func (t *TieredCache) Close() error {
	if t.remote != nil {
		return t.remote.close()
	}
	return nil
}

// applyRemoteInvalidation drops in-process copies when another process
// publishes an invalidation. Re-applying our own broadcasts is idempotent.
func (t *TieredCache) applyRemoteInvalidation(msg invalidationMessage) {
	ctx := context.Background()
	switch {
	case msg.AgentName != "":
		t.logger.Debug("remote invalidation for agent %s", msg.AgentName)
		t.local.Invalidate(ctx, msg.AgentName)
	case msg.SourceTag != "":
		t.logger.Debug("remote invalidation for source %s", msg.SourceTag)
		t.local.InvalidateBySource(ctx, msg.SourceTag)
	}
}
