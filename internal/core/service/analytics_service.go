package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/port"
)

const (
	defaultDashboardDays = 30
	maxDashboardDays     = 365
)

type AnalyticsService struct {
	analytics port.AnalyticsRepository
	deps      Deps
}

func NewAnalyticsService(analytics port.AnalyticsRepository, deps Deps) *AnalyticsService {
	return &AnalyticsService{analytics: analytics, deps: deps.withDefaults()}
}

// Dashboard aggregates the last days of activity.
func (s *AnalyticsService) Dashboard(ctx context.Context, days int) (_ *domain.Dashboard, err error) {
	defer s.deps.track("analytics.dashboard")(&err)

	if days <= 0 {
		days = defaultDashboardDays
	}
	if days > maxDashboardDays {
		return nil, domain.NewValidationError("days", fmt.Sprintf("must be at most %d", maxDashboardDays))
	}
	since := s.deps.now().Add(-time.Duration(days) * 24 * time.Hour)
	d, err := s.analytics.Dashboard(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	d.PeriodDays = days
	return d, nil
}
