// Package notify delivers transactional emails.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"github.com/rl1809/grocery-store/internal/observability"
	"github.com/rl1809/grocery-store/internal/port"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Render produces the HTML body for n.
func Render(n port.Notification) (string, error) {
	t := templates.Lookup(n.Template + ".html")
	if t == nil {
		return "", fmt.Errorf("unknown template %q", n.Template)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, n.Data); err != nil {
		return "", fmt.Errorf("render %s: %w", n.Template, err)
	}
	return buf.String(), nil
}

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, msg port.Notification) error {
	body, err := Render(msg)
	if err != nil {
		return err
	}
	observability.FromContextOr(ctx, n.logger).Info("notification_logged",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("template", msg.Template),
		zap.Int("body_bytes", len(body)),
	)
	return nil
}
