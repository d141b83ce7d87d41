// Package service holds the use cases behind the HTTP and gRPC transports.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/grocery-store/internal/observability"
	"github.com/rl1809/grocery-store/internal/port"
)

// Deps carries the collaborators every service shares.
type Deps struct {
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Notifier   port.Notifier
	Clock      func() time.Time
	AdminEmail string
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

func (d Deps) now() time.Time {
	return d.Clock().UTC()
}

func (d Deps) logger(ctx context.Context) *zap.Logger {
	return observability.FromContextOr(ctx, d.Logger)
}

// track records outcome and latency of a use case. Use as
// defer d.track("cart.add")(&err).
func (d Deps) track(useCase string) func(*error) {
	start := time.Now()
	return func(errp *error) {
		outcome := "success"
		if errp != nil && *errp != nil {
			outcome = "error"
		}
		d.Metrics.ObserveUseCase(useCase, outcome, time.Since(start))
	}
}

// notify delivers n best effort. Failures are logged and counted but never
// returned to the caller.
func (d Deps) notify(ctx context.Context, n port.Notification) {
	if d.Notifier == nil || n.To == "" {
		return
	}
	if err := d.Notifier.Notify(context.WithoutCancel(ctx), n); err != nil {
		d.logger(ctx).Warn("notification_failed",
			zap.String("template", n.Template),
			zap.String("to", n.To),
			zap.Error(err),
		)
		d.Metrics.NotificationFailed(n.Template)
	}
}
