package port

import "context"

const (
	TemplateVerifyEmail       = "verify_email"
	TemplateResetPassword     = "reset_password"
	TemplateWelcome           = "welcome_email"
	TemplateOrderConfirmation = "order_confirmation"
	TemplateOrderStatusUpdate = "order_status_update"
	TemplateLowStockAlert     = "low_stock_alert"
)

type Notification struct {
	To       string
	Subject  string
	Template string
	Data     map[string]any
}

// Notifier delivers a rendered notification. Callers treat failures as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
