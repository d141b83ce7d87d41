package port

import (
	"context"
	"time"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency drops the key so a failed request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error

	// AllowRequest counts a hit against key in a fixed window, returns false once limit is exceeded
	AllowRequest(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type SessionStore interface {
	SaveSession(ctx context.Context, session domain.Session) error
	// GetSession returns domain.ErrNotFound for unknown or expired tokens.
	GetSession(ctx context.Context, token string) (*domain.Session, error)
	DeleteSession(ctx context.Context, token string) error
}
