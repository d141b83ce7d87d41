package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

const (
	idempotencyKeyPrefix = "idempotency:"
	sessionKeyPrefix     = "session:"
	rateLimitKeyPrefix   = "ratelimit:"
	idempotencyKeyTTL    = 24 * time.Hour
)

// rateLimitScript counts a hit in a fixed window. The window starts with
// the first hit and expires after ARGV[1] milliseconds.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])

local current = redis.call('INCR', key)
if current == 1 then
	redis.call('PEXPIRE', key, window)
end

if current > limit then
	return 0
end

return 1
`)

type RedisAdapter struct {
	client redis.UniversalClient
}

func NewRedisAdapter(client redis.UniversalClient) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisAdapter) AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	result, err := rateLimitScript.Run(ctx, r.client, []string{rateLimitKeyPrefix + key}, window.Milliseconds(), limit).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) SaveSession(ctx context.Context, session domain.Session) error {
	key := sessionKeyPrefix + session.Token
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"user_id", session.UserID,
			"username", session.Username,
			"is_admin", strconv.FormatBool(session.IsAdmin),
			"expires_at", session.ExpiresAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.ExpireAt(ctx, key, session.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *RedisAdapter) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	values, err := r.client.HGetAll(ctx, sessionKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(values) == 0 {
		return nil, domain.ErrNotFound
	}

	userID, err := strconv.ParseInt(values["user_id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode session user_id: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, values["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("decode session expires_at: %w", err)
	}
	isAdmin, _ := strconv.ParseBool(values["is_admin"])

	return &domain.Session{
		Token:     token,
		UserID:    userID,
		Username:  values["username"],
		IsAdmin:   isAdmin,
		ExpiresAt: expiresAt,
	}, nil
}

func (r *RedisAdapter) DeleteSession(ctx context.Context, token string) error {
	return r.client.Del(ctx, sessionKeyPrefix+token).Err()
}
