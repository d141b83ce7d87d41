package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/port"
)

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
		msg  string
	}{
		{"missing username", RegisterInput{Email: "a@b.c", Password: "longenough", FirstName: "A", LastName: "B"}, "username is required"},
		{"missing last name", RegisterInput{Username: "a", Email: "a@b.c", Password: "longenough", FirstName: "A"}, "last_name is required"},
		{"short password", RegisterInput{Username: "a", Email: "a@b.c", Password: "short", FirstName: "A", LastName: "B"}, "Password must be at least 8 characters"},
		{"bad email", RegisterInput{Username: "a", Email: "nope", Password: "longenough", FirstName: "A", LastName: "B"}, "Invalid email address"},
		{"password over bcrypt limit", RegisterInput{Username: "a", Email: "a@b.c", Password: strings.Repeat("x", 73), FirstName: "A", LastName: "B"}, "Password must be at most 72 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.Register(ctx, tt.in)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.msg, ve.Message)
		})
	}
}

func TestRegister_DuplicatesAndVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("alice")

	assert.False(t, u.EmailVerified)
	assert.NotEmpty(t, u.VerificationToken)
	verify := f.notifier.byTemplate(port.TemplateVerifyEmail)
	require.Len(t, verify, 1)
	assert.Contains(t, verify[0].Data["link"], u.VerificationToken)

	_, err := f.auth.Register(ctx, RegisterInput{Username: "alice", Email: "other@example.com", Password: "longenough", FirstName: "A", LastName: "B"})
	assert.EqualError(t, err, "Username already exists")
	_, err = f.auth.Register(ctx, RegisterInput{Username: "alice2", Email: "ALICE@example.com", Password: "longenough", FirstName: "A", LastName: "B"})
	assert.EqualError(t, err, "Email already exists")

	require.NoError(t, f.auth.VerifyEmail(ctx, u.VerificationToken))
	stored, err := f.store.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
	assert.Empty(t, stored.VerificationToken)
	assert.Len(t, f.notifier.byTemplate(port.TemplateWelcome), 1)

	assert.ErrorIs(t, f.auth.VerifyEmail(ctx, u.VerificationToken), domain.ErrInvalidToken)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("bob")

	_, _, err := f.auth.Login(ctx, "bob", "wrong password")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, _, err = f.auth.Login(ctx, "nobody", "correct horse")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	user, sess, err := f.auth.Login(ctx, "bob", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, user.ID)
	require.NotNil(t, user.LastLogin)
	assert.Len(t, sess.Token, 64)
	assert.Equal(t, f.now.Add(7*24*time.Hour), sess.ExpiresAt)

	got, err := f.auth.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)

	require.NoError(t, f.auth.Logout(ctx, sess.Token))
	_, err = f.auth.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user("carl")
	u.IsActive = false
	require.NoError(t, f.store.UpdateUser(ctx, u))

	_, _, err := f.auth.Login(ctx, "carl", "correct horse")
	assert.ErrorIs(t, err, domain.ErrAccountDisabled)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user("dana")

	require.NoError(t, f.auth.ForgotPassword(ctx, "unknown@example.com"))
	assert.Empty(t, f.notifier.byTemplate(port.TemplateResetPassword))

	require.NoError(t, f.auth.ForgotPassword(ctx, "dana@example.com"))
	resets := f.notifier.byTemplate(port.TemplateResetPassword)
	require.Len(t, resets, 1)

	stored, err := f.store.GetUserByEmail(ctx, "dana@example.com")
	require.NoError(t, err)
	token := stored.ResetToken
	require.NotEmpty(t, token)

	assert.ErrorIs(t, f.auth.ResetPassword(ctx, "bogus", "new password"), domain.ErrInvalidToken)

	var ve *domain.ValidationError
	require.ErrorAs(t, f.auth.ResetPassword(ctx, token, strings.Repeat("é", 40)), &ve)
	assert.Equal(t, "Password must be at most 72 bytes", ve.Message)

	f.now = f.now.Add(2 * time.Hour)
	assert.ErrorIs(t, f.auth.ResetPassword(ctx, token, "new password"), domain.ErrInvalidToken)
	f.now = f.now.Add(-2 * time.Hour)

	require.NoError(t, f.auth.ResetPassword(ctx, token, "new password"))
	_, _, err = f.auth.Login(ctx, "dana", "new password")
	require.NoError(t, err)
	assert.ErrorIs(t, f.auth.ResetPassword(ctx, token, "again again"), domain.ErrInvalidToken)
}

func TestCreateAdmin(t *testing.T) {
	f := newFixture(t)
	admin, err := f.auth.CreateAdmin(context.Background(), RegisterInput{
		Username: "root", Email: "root@example.com", Password: "supersecret", FirstName: "Root", LastName: "Admin",
	})
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin)
	assert.True(t, admin.EmailVerified)
	assert.Empty(t, f.notifier.byTemplate(port.TemplateVerifyEmail))
}
