package domain

import (
	"strings"
	"time"
)

type User struct {
	ID                int64
	Username          string
	Email             string
	PasswordHash      string
	FirstName         string
	LastName          string
	Phone             string
	Address           string
	City              string
	PostalCode        string
	IsAdmin           bool
	IsActive          bool
	EmailVerified     bool
	VerificationToken string
	ResetToken        string
	ResetTokenExpires *time.Time
	CreatedAt         time.Time
	LastLogin         *time.Time
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ShortName renders "First L." for public review listings.
func (u *User) ShortName() string {
	return ShortName(u.FirstName, u.LastName)
}

func ShortName(first, last string) string {
	if last == "" {
		return first
	}
	r := []rune(last)
	return first + " " + string(r[0]) + "."
}

func (u *User) ResetTokenValid(token string, now time.Time) bool {
	if token == "" || u.ResetToken != token || u.ResetTokenExpires == nil {
		return false
	}
	return now.Before(*u.ResetTokenExpires)
}

type Session struct {
	Token     string
	UserID    int64
	Username  string
	IsAdmin   bool
	ExpiresAt time.Time
}
