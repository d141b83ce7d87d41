package memory

import (
	"context"
	"time"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

func (s *Store) SetIdempotency(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if exp, ok := s.idempotency[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.idempotency[key] = now.Add(s.idemTTL)
	return true, nil
}

func (s *Store) ReleaseIdempotency(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.idempotency, key)
	return nil
}

func (s *Store) AllowRequest(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := s.counters[key]
	if !now.Before(c.resetAt) {
		c = windowCounter{resetAt: now.Add(window)}
	}
	c.count++
	s.counters[key] = c
	return c.count <= limit, nil
}

func (s *Store) SaveSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.Token] = session
	return nil
}

func (s *Store) GetSession(_ context.Context, token string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, token)
		return nil, domain.ErrNotFound
	}
	return &sess, nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}
