package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lightkeeper-hq/lightkeeper/pkg/connector"
)

// RedisStore is a response cache backed by Redis, for deployments that run
// the dispatcher behind multiple lightkeeper processes sharing one cache.
// Eviction is delegated to Redis key expiry (ttl); there is no separate
// size bound because Redis already enforces maxmemory policy cluster-wide.
type RedisStore struct {
	log    logrus.FieldLogger
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore wraps an existing Redis client. keyPrefix namespaces cache
// keys so the response cache can share a Redis instance with other
// lightkeeper state.
func NewRedisStore(log logrus.FieldLogger, client *redis.Client, keyPrefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		log:    log.WithField("component", "response-cache-redis"),
		client: client,
		prefix: keyPrefix,
		ttl:    ttl,
	}
}

func (r *RedisStore) key(fingerprint string) string {
	return r.prefix + fingerprint
}

// hostKey names the set tracking every fingerprint cached for hostID, so
// Invalidate can find them without reversing the fingerprint hash.
func (r *RedisStore) hostKey(hostID string) string {
	return r.prefix + "host:" + hostID
}

func (r *RedisStore) Get(ctx context.Context, fingerprint string) (connector.ResponseMessage, bool) {
	raw, err := r.client.Get(ctx, r.key(fingerprint)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.WithError(err).Warn("response cache lookup failed")
		}

		return connector.ResponseMessage{}, false
	}

	var resp connector.ResponseMessage
	if err := json.Unmarshal(raw, &resp); err != nil {
		r.log.WithError(err).Warn("response cache entry corrupt")

		return connector.ResponseMessage{}, false
	}

	return connector.FromCache(resp), true
}

func (r *RedisStore) Put(ctx context.Context, fingerprint string, hostID string, resp connector.ResponseMessage) {
	raw, err := json.Marshal(resp)
	if err != nil {
		r.log.WithError(err).Warn("failed to marshal response for cache")

		return
	}

	if err := r.client.Set(ctx, r.key(fingerprint), raw, r.ttl).Err(); err != nil {
		r.log.WithError(err).Warn("response cache write failed")

		return
	}

	if hostID == "" {
		return
	}

	hostKey := r.hostKey(hostID)

	if err := r.client.SAdd(ctx, hostKey, fingerprint).Err(); err != nil {
		r.log.WithError(err).Warn("response cache host index write failed")

		return
	}

	if r.ttl > 0 {
		if err := r.client.Expire(ctx, hostKey, r.ttl).Err(); err != nil {
			r.log.WithError(err).Warn("response cache host index expiry failed")
		}
	}
}

// Invalidate removes every fingerprint recorded under hostID along with
// the host index itself.
func (r *RedisStore) Invalidate(ctx context.Context, hostID string) {
	hostKey := r.hostKey(hostID)

	fingerprints, err := r.client.SMembers(ctx, hostKey).Result()
	if err != nil && err != redis.Nil {
		r.log.WithError(err).Warn("response cache invalidate lookup failed")

		return
	}

	keys := make([]string, 0, len(fingerprints)+1)
	for _, fingerprint := range fingerprints {
		keys = append(keys, r.key(fingerprint))
	}

	keys = append(keys, hostKey)

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		r.log.WithError(err).Warn("response cache invalidate failed")
	}
}
