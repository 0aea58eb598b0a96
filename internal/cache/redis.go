package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/agentuity/go-common/logger"
	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 2 * time.Second

// redisCache is the shared backend. Keys carry their own TTL via SET EX and
// a per-source set acts as the secondary index for bulk invalidation, so no
// key-space scan is ever needed. Invalidations are additionally published
// on a channel so sibling processes can drop their in-process copies.
type redisCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	logger     logger.Logger

	sub    *redis.PubSub
	closed chan struct{}
}

func newRedisCache(url string, defaultTTL time.Duration, log logger.Logger) (*redisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = redisOpTimeout
	opts.ReadTimeout = redisOpTimeout
	opts.WriteTimeout = redisOpTimeout

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &redisCache{
		client:     client,
		defaultTTL: defaultTTL,
		logger:     log,
		closed:     make(chan struct{}),
	}, nil
}

func (c *redisCache) get(ctx context.Context, agentName string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	value, err := c.client.Get(ctx, keyPrefix+agentName).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (c *redisCache) put(ctx context.Context, agentName string, value []byte, sourceTag string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, keyPrefix+agentName, value, ttl)
	if sourceTag != "" {
		pipe.SAdd(ctx, sourceIndexPrefix+sourceTag, agentName)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *redisCache) invalidate(ctx context.Context, agentName string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	return c.client.Del(ctx, keyPrefix+agentName).Err()
}

func (c *redisCache) invalidateBySource(ctx context.Context, sourceTag string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	indexKey := sourceIndexPrefix + sourceTag
	members, err := c.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, c.client.Del(ctx, indexKey).Err()
	}
	keys := make([]string, 0, len(members)+1)
	for _, agentName := range members {
		keys = append(keys, keyPrefix+agentName)
	}
	keys = append(keys, indexKey)
	deleted, err := c.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, err
	}
	// the index key itself is not a cache entry
	count := int(deleted) - 1
	if count < 0 {
		count = 0
	}
	return count, nil
}

func (c *redisCache) publish(ctx context.Context, msg invalidationMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	return c.client.Publish(ctx, invalidationChannel, payload).Err()
}

// listen subscribes to the invalidation channel and calls apply for every
// message until the cache is closed. Malformed messages are logged and
// skipped.
func (c *redisCache) listen(apply func(invalidationMessage)) {
	c.sub = c.client.Subscribe(context.Background(), invalidationChannel)
	go func() {
		ch := c.sub.Channel()
		for {
			select {
			case <-c.closed:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var inv invalidationMessage
				if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
					c.logger.Warn("invalid cache invalidation message: %s", err)
					continue
				}
				apply(inv)
			}
		}
	}()
}

func (c *redisCache) close() error {
	close(c.closed)
	if c.sub != nil {
		c.sub.Close()
	}
	return c.client.Close()
}
