package port

import (
	"context"

	"github.com/shopspring/decimal"
)

type PaymentProvider interface {
	// Charge captures amount and returns the provider's payment token.
	Charge(ctx context.Context, amount decimal.Decimal, reference string) (string, error)
	Refund(ctx context.Context, token string) error
}
