package refcache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/epic1st/shadowfix/internal/logging"
)

const invalidationChannel = "shadowfix:refcache:invalidate"

// Publisher notifies other gateway replicas that the reference-data
// seed changed and their caches should reload.
type Publisher struct {
	rdb *redis.Client
}

func NewPublisher(rdb *redis.Client) *Publisher { return &Publisher{rdb: rdb} }

func (p *Publisher) PublishInvalidation(ctx context.Context) error {
	return p.rdb.Publish(ctx, invalidationChannel, "refresh").Err()
}

// Subscribe blocks, calling cache.Refresh each time another replica
// publishes an invalidation, until ctx is cancelled. Intended to run
// in its own goroutine for the process lifetime.
func Subscribe(ctx context.Context, rdb *redis.Client, cache *Cache, logger *logging.Logger) {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.With(logging.Component("refcache-invalidation"))

	sub := rdb.Subscribe(ctx, invalidationChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_ = msg
			if err := cache.Refresh(ctx); err != nil {
				logger.Error("reference cache refresh after invalidation failed", logging.Err(err))
				continue
			}
			logger.Info("reference cache reloaded after cross-replica invalidation")
		}
	}
}
