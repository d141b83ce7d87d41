package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/port"
)

const defaultInventoryLogLimit = 50

type InventoryService struct {
	catalog port.CatalogRepository
	deps    Deps
}

func NewInventoryService(catalog port.CatalogRepository, deps Deps) *InventoryService {
	return &InventoryService{catalog: catalog, deps: deps.withDefaults()}
}

type StockAdjustment struct {
	ProductID  int64
	Delta      int
	ChangeType domain.ChangeType
	Reason     string
	AdminID    int64
}

func (a StockAdjustment) validate() error {
	if !a.ChangeType.Valid() {
		return domain.NewValidationError("change_type", "must be one of restock, sale, adjustment, expired")
	}
	if a.Delta == 0 {
		return domain.NewValidationError("quantity_change", "must not be zero")
	}
	switch a.ChangeType {
	case domain.ChangeRestock:
		if a.Delta < 0 {
			return domain.NewValidationError("quantity_change", "restock must be positive")
		}
	case domain.ChangeSale, domain.ChangeExpired:
		if a.Delta > 0 {
			return domain.NewValidationError("quantity_change", "must be negative for "+string(a.ChangeType))
		}
	}
	return nil
}

// AdjustStock applies a manual stock change and records it. A change that
// would make stock negative fails with domain.ErrInsufficientStock.
func (s *InventoryService) AdjustStock(ctx context.Context, adj StockAdjustment) (_ *domain.InventoryLog, err error) {
	defer s.deps.track("inventory.adjust")(&err)

	if err := adj.validate(); err != nil {
		return nil, err
	}
	change := domain.StockChange{
		ProductID:  adj.ProductID,
		Delta:      adj.Delta,
		ChangeType: adj.ChangeType,
		Reason:     adj.Reason,
	}
	if adj.AdminID != 0 {
		change.CreatedBy = &adj.AdminID
	}
	log, err := s.catalog.AdjustStock(ctx, change)
	if err != nil {
		return nil, fmt.Errorf("adjust stock for product %d: %w", adj.ProductID, err)
	}

	s.deps.logger(ctx).Info("stock_adjusted",
		zap.Int64("product_id", adj.ProductID),
		zap.String("change_type", string(adj.ChangeType)),
		zap.Int("previous", log.PreviousQuantity),
		zap.Int("new", log.NewQuantity),
	)

	if p, err := s.catalog.GetProduct(ctx, adj.ProductID); err == nil {
		s.deps.alertLowStock(ctx, p)
	}
	return log, nil
}

func (s *InventoryService) Logs(ctx context.Context, productID int64, limit int) ([]domain.InventoryLog, error) {
	if limit <= 0 || limit > domain.MaxPerPage {
		limit = defaultInventoryLogLimit
	}
	if _, err := s.catalog.GetProduct(ctx, productID); err != nil {
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	logs, err := s.catalog.ListInventoryLogs(ctx, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("list inventory logs: %w", err)
	}
	return logs, nil
}

// alertLowStock mails the admin address when p sits at or below its
// minimum level.
func (d Deps) alertLowStock(ctx context.Context, p *domain.Product) {
	if p == nil || !p.IsLowStock() || d.AdminEmail == "" {
		return
	}
	d.logger(ctx).Warn("low_stock",
		zap.Int64("product_id", p.ID),
		zap.Int("stock", p.StockQuantity),
		zap.Int("min_level", p.MinStockLevel),
	)
	d.notify(ctx, port.Notification{
		To:       d.AdminEmail,
		Subject:  "Low Stock Alert - " + p.Name,
		Template: port.TemplateLowStockAlert,
		Data: map[string]any{
			"product_name":  p.Name,
			"product_id":    p.ID,
			"current_stock": p.StockQuantity,
			"min_level":     p.MinStockLevel,
		},
	})
}
