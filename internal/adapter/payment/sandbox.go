// Package payment holds the card processors behind port.PaymentProvider.
package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/grocery-store/internal/port"
)

var (
	ErrDeclined     = errors.New("card declined")
	ErrUnknownToken = errors.New("unknown payment token")
	ErrRefunded     = errors.New("payment already refunded")
)

var _ port.PaymentProvider = (*Sandbox)(nil)

// Sandbox approves every charge up to an optional ceiling and keeps the
// captured payments in memory so refunds can be checked.
type Sandbox struct {
	mu           sync.Mutex
	declineAbove decimal.NullDecimal
	captured     map[string]decimal.Decimal
	refunded     map[string]bool
}

func NewSandbox(declineAbove decimal.NullDecimal) *Sandbox {
	return &Sandbox{
		declineAbove: declineAbove,
		captured:     make(map[string]decimal.Decimal),
		refunded:     make(map[string]bool),
	}
}

func (s *Sandbox) Charge(ctx context.Context, amount decimal.Decimal, reference string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: amount must be positive", ErrDeclined)
	}
	if s.declineAbove.Valid && amount.GreaterThan(s.declineAbove.Decimal) {
		return "", fmt.Errorf("%w: %s exceeds limit for %s", ErrDeclined, amount.StringFixed(2), reference)
	}

	token := "pay_sandbox_" + uuid.NewString()
	s.mu.Lock()
	s.captured[token] = amount
	s.mu.Unlock()
	return token, nil
}

func (s *Sandbox) Refund(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.captured[token]; !ok {
		return ErrUnknownToken
	}
	if s.refunded[token] {
		return ErrRefunded
	}
	s.refunded[token] = true
	return nil
}
