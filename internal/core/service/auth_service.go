package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/port"
)

const (
	minPasswordLength = 8
	resetTokenTTL     = time.Hour

	// bcrypt rejects input longer than 72 bytes.
	maxPasswordBytes = 72
)

type AuthConfig struct {
	SessionTTL time.Duration
	// BaseURL prefixes links placed in emails.
	BaseURL    string
	BcryptCost int
}

type AuthService struct {
	users    port.UserRepository
	sessions port.SessionStore
	cfg      AuthConfig
	deps     Deps
}

func NewAuthService(users port.UserRepository, sessions port.SessionStore, cfg AuthConfig, deps Deps) *AuthService {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{users: users, sessions: sessions, cfg: cfg, deps: deps.withDefaults()}
}

type RegisterInput struct {
	Username   string
	Email      string
	Password   string
	FirstName  string
	LastName   string
	Phone      string
	Address    string
	City       string
	PostalCode string
}

func (in RegisterInput) validate() error {
	required := []struct{ field, value string }{
		{"username", in.Username},
		{"email", in.Email},
		{"password", in.Password},
		{"first_name", in.FirstName},
		{"last_name", in.LastName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return domain.Invalid("%s is required", r.field)
		}
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return domain.Invalid("Invalid email address")
	}
	return validatePassword(in.Password)
}

func validatePassword(pw string) error {
	if len(pw) < minPasswordLength {
		return domain.Invalid("Password must be at least %d characters", minPasswordLength)
	}
	if len(pw) > maxPasswordBytes {
		return domain.Invalid("Password must be at most %d bytes", maxPasswordBytes)
	}
	return nil
}

// newToken returns 64 hex characters built from two random UUIDs.
func newToken() string {
	a, b := uuid.New(), uuid.New()
	return hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (_ *domain.User, err error) {
	defer s.deps.track("auth.register")(&err)

	user, err := s.createUser(ctx, in, false)
	if err != nil {
		return nil, err
	}

	s.deps.notify(ctx, port.Notification{
		To:       user.Email,
		Subject:  "Verify Your Account",
		Template: port.TemplateVerifyEmail,
		Data: map[string]any{
			"first_name": user.FirstName,
			"link":       s.cfg.BaseURL + "/verify-email?token=" + user.VerificationToken,
		},
	})
	s.deps.logger(ctx).Info("user_registered", zap.Int64("user_id", user.ID))
	return user, nil
}

// CreateAdmin bootstraps an already verified administrator account.
func (s *AuthService) CreateAdmin(ctx context.Context, in RegisterInput) (*domain.User, error) {
	return s.createUser(ctx, in, true)
}

func (s *AuthService) createUser(ctx context.Context, in RegisterInput, admin bool) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := in.validate(); err != nil {
		return nil, err
	}

	if _, err := s.users.GetUserByUsername(ctx, in.Username); err == nil {
		return nil, domain.Invalid("Username already exists")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}
	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, domain.Invalid("Email already exists")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:      in.Username,
		Email:         in.Email,
		PasswordHash:  string(hash),
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		Phone:         in.Phone,
		Address:       in.Address,
		City:          in.City,
		PostalCode:    in.PostalCode,
		IsAdmin:       admin,
		IsActive:      true,
		EmailVerified: admin,
		CreatedAt:     s.deps.now(),
	}
	if !admin {
		user.VerificationToken = newToken()
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// lost a race with a concurrent registration
			return nil, domain.Invalid("Username or email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) (err error) {
	defer s.deps.track("auth.verify_email")(&err)

	user, err := s.users.GetUserByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return fmt.Errorf("lookup verification token: %w", err)
	}
	user.EmailVerified = true
	user.VerificationToken = ""
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	s.deps.notify(ctx, port.Notification{
		To:       user.Email,
		Subject:  "Welcome to FreshMart!",
		Template: port.TemplateWelcome,
		Data:     map[string]any{"first_name": user.FirstName, "link": s.cfg.BaseURL},
	})
	return nil
}

// Login checks credentials and opens a session.
func (s *AuthService) Login(ctx context.Context, username, password string) (_ *domain.User, _ *domain.Session, err error) {
	defer s.deps.track("auth.login")(&err)

	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrInvalidCredentials
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, nil, domain.ErrAccountDisabled
	}

	now := s.deps.now()
	user.LastLogin = &now
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, nil, fmt.Errorf("update last login: %w", err)
	}

	sess := domain.Session{
		Token:     newToken(),
		UserID:    user.ID,
		Username:  user.Username,
		IsAdmin:   user.IsAdmin,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
	}
	if err := s.sessions.SaveSession(ctx, sess); err != nil {
		return nil, nil, fmt.Errorf("save session: %w", err)
	}
	s.deps.logger(ctx).Info("user_logged_in", zap.Int64("user_id", user.ID))
	return user, &sess, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteSession(ctx, token)
}

// Authenticate resolves a session token. Missing or expired sessions yield
// domain.ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}
	sess, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

func (s *AuthService) SessionTTL() time.Duration {
	return s.cfg.SessionTTL
}

// ForgotPassword never reveals whether the address is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (err error) {
	defer s.deps.track("auth.forgot_password")(&err)

	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup email: %w", err)
	}

	expires := s.deps.now().Add(resetTokenTTL)
	user.ResetToken = newToken()
	user.ResetTokenExpires = &expires
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	s.deps.notify(ctx, port.Notification{
		To:       user.Email,
		Subject:  "Reset Your Password",
		Template: port.TemplateResetPassword,
		Data: map[string]any{
			"first_name": user.FirstName,
			"link":       s.cfg.BaseURL + "/reset-password?token=" + user.ResetToken,
		},
	})
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password string) (err error) {
	defer s.deps.track("auth.reset_password")(&err)

	if err := validatePassword(password); err != nil {
		return err
	}
	user, err := s.users.GetUserByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrInvalidToken
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}
	if !user.ResetTokenValid(token, s.deps.now()) {
		return domain.ErrInvalidToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.ResetToken = ""
	user.ResetTokenExpires = nil
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	return user, nil
}
