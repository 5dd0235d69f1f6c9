package refreshtokens

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/storefront/internal/common"
	"github.com/dmitrijs2005/storefront/internal/server/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "refresh:"
	fieldTokenHash = "token_hash"
	fieldExpiresAt = "expires_at"
	casStatusOK    = 1
)

// KEYS[1] record key
// ARGV[1] expected hash, ARGV[2] new hash, ARGV[3] new expiry (unix ms)
const rotateScript = `
local current = redis.call("HGET", KEYS[1], "token_hash")
if (not current) or current ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "token_hash", ARGV[2], "expires_at", ARGV[3])
redis.call("PEXPIREAT", KEYS[1], ARGV[3])
return 1
`

var rotateLua = redis.NewScript(rotateScript)

// RedisRepository keeps one hash per user under "refresh:<userID>". The key
// expires together with the token it describes.
type RedisRepository struct {
	redis redis.UniversalClient
}

func NewRedisRepository(client redis.UniversalClient) *RedisRepository {
	return &RedisRepository{redis: client}
}

func redisKey(userID string) string {
	return redisKeyPrefix + userID
}

func (r *RedisRepository) Upsert(ctx context.Context, rec *models.RefreshToken) error {
	key := redisKey(rec.UserID)
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldTokenHash, rec.TokenHash, fieldExpiresAt, rec.ExpiresAt.UnixMilli())
		pipe.PExpireAt(ctx, key, rec.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Get(ctx context.Context, userID string) (*models.RefreshToken, error) {
	fields, err := r.redis.HGetAll(ctx, redisKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	hash, ok := fields[fieldTokenHash]
	if !ok {
		return nil, common.ErrorNotFound
	}

	ms, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt refresh record for %s", common.ErrStore, userID)
	}

	return &models.RefreshToken{
		UserID:    userID,
		TokenHash: hash,
		ExpiresAt: time.UnixMilli(ms),
	}, nil
}

func (r *RedisRepository) Delete(ctx context.Context, userID string) error {
	if err := r.redis.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) CompareAndSwap(ctx context.Context, oldHash string, rec *models.RefreshToken) error {
	status, err := rotateLua.Run(ctx, r.redis,
		[]string{redisKey(rec.UserID)},
		oldHash, rec.TokenHash, rec.ExpiresAt.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if status != casStatusOK {
		return common.ErrVersionConflict
	}
	return nil
}
