package blacklist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/common"
	"github.com/dmitrijs2005/campusgate/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces blacklist keys in a shared Redis database.
const KeyPrefix = "blacklist:"

// minTTL keeps an entry for an already-expired token visible briefly instead
// of writing a key with no expiry.
const minTTL = time.Second

type redisEntry struct {
	TokenID     string    `json:"tokenId"`
	ExpiresAt   time.Time `json:"expiresAt"`
	TokenType   string    `json:"tokenType"`
	UserAgent   string    `json:"userAgent,omitempty"`
	IPAddress   string    `json:"ipAddress,omitempty"`
	DeviceClass string    `json:"deviceClass,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RedisRepository implements Repository on Redis keys whose TTL equals the
// remaining lifetime of the revoked token, so expiry is handled by Redis.
type RedisRepository struct {
	client redis.Cmdable
	now    func() time.Time
}

// RedisOption configures a RedisRepository.
type RedisOption func(*RedisRepository)

// WithRedisClock overrides the clock used to compute key TTLs.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(r *RedisRepository) { r.now = now }
}

// NewRedisRepository wraps a go-redis client.
func NewRedisRepository(client redis.Cmdable, opts ...RedisOption) *RedisRepository {
	r := &RedisRepository{client: client, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

func key(tokenID string) string { return KeyPrefix + tokenID }

func (r *RedisRepository) Add(ctx context.Context, e *models.BlacklistEntry) (bool, error) {
	now := r.now()
	tokenType := e.TokenType
	if tokenType == "" {
		tokenType = models.BlacklistTokenTypeAccess
	}
	data, err := json.Marshal(redisEntry{
		TokenID:     e.TokenID,
		ExpiresAt:   e.ExpiresAt.UTC(),
		TokenType:   string(tokenType),
		UserAgent:   e.UserAgent,
		IPAddress:   e.IPAddress,
		DeviceClass: e.DeviceClass,
		CreatedAt:   now.UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("encode blacklist entry: %w", err)
	}

	ttl := e.ExpiresAt.Sub(now)
	if ttl < minTTL {
		ttl = minTTL
	}
	ok, err := r.client.SetNX(ctx, key(e.TokenID), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return ok, nil
}

func (r *RedisRepository) Exists(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRepository) Find(ctx context.Context, tokenID string) (*models.BlacklistEntry, error) {
	data, err := r.client.Get(ctx, key(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("redis error: %w", err)
	}
	var re redisEntry
	if err := json.Unmarshal(data, &re); err != nil {
		return nil, fmt.Errorf("decode blacklist entry: %w", err)
	}
	return &models.BlacklistEntry{
		TokenID:     re.TokenID,
		ExpiresAt:   re.ExpiresAt,
		TokenType:   models.BlacklistTokenType(re.TokenType),
		UserAgent:   re.UserAgent,
		IPAddress:   re.IPAddress,
		DeviceClass: re.DeviceClass,
		CreatedAt:   re.CreatedAt,
	}, nil
}

// DeleteExpired is a no-op: Redis evicts entries when their TTL elapses.
func (r *RedisRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}
