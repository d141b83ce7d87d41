package memory

import (
	"context"
	"strings"

	"github.com/rl1809/grocery-store/internal/core/domain"
)

func (s *Store) CreateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Username, user.Username) || strings.EqualFold(u.Email, user.Email) {
			return domain.ErrDuplicate
		}
	}
	user.ID = s.nextID()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *Store) GetUser(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) findUser(match func(*domain.User) bool) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	return s.findUser(func(u *domain.User) bool { return strings.EqualFold(u.Username, username) })
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	return s.findUser(func(u *domain.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *Store) GetUserByVerificationToken(_ context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	return s.findUser(func(u *domain.User) bool { return u.VerificationToken == token })
}

func (s *Store) GetUserByResetToken(_ context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	return s.findUser(func(u *domain.User) bool { return u.ResetToken == token })
}

func (s *Store) UpdateUser(_ context.Context, user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; !ok {
		return domain.ErrNotFound
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}
