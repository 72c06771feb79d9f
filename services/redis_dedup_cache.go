package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const dedupKeyPrefix = "notif:dedup:"

// RedisDedupCache keeps the dedup window in redis so replicas of the session host share it.
// Claims are a single SET NX PX, so two replicas racing on one id see one winner.
// The TTL is the only bound: redis expires entries itself and there is no entry-count cap.
// Redis errors fail open: a duplicate banner is preferred over a lost one.
type RedisDedupCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

var _ DedupCache = (*RedisDedupCache)(nil)

// NewRedisDedupCache scopes keys by owner so users never share a window.
func NewRedisDedupCache(rdb *redis.Client, owner string, ttl time.Duration) *RedisDedupCache {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDedupCache{rdb: rdb, prefix: dedupKeyPrefix + owner + ":", ttl: ttl}
}

func (c *RedisDedupCache) Seen(ctx context.Context, id string) bool {
	n, err := c.rdb.Exists(ctx, c.prefix+id).Result()
	if err != nil {
		logrus.WithError(err).WithField("notificationId", id).Warn("⚠️ Dedup lookup failed")
		return false
	}
	return n > 0
}

func (c *RedisDedupCache) Remember(ctx context.Context, id string) {
	if err := c.rdb.Set(ctx, c.prefix+id, 1, c.ttl).Err(); err != nil {
		logrus.WithError(err).WithField("notificationId", id).Warn("⚠️ Dedup remember failed")
	}
}

func (c *RedisDedupCache) Claim(ctx context.Context, id string) bool {
	claimed, err := c.rdb.SetNX(ctx, c.prefix+id, 1, c.ttl).Result()
	if err != nil {
		logrus.WithError(err).WithField("notificationId", id).Warn("⚠️ Dedup claim failed")
		return true
	}
	return claimed
}
