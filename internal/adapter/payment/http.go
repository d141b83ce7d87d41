package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/grocery-store/internal/port"
)

type HTTPConfig struct {
	Endpoint  string
	SecretKey string
	Currency  string
	Timeout   time.Duration
}

var _ port.PaymentProvider = (*HTTPProvider)(nil)

// HTTPProvider talks to a JSON payment gateway authenticated with a bearer
// secret key.
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &HTTPProvider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

type chargeRequest struct {
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

type refundRequest struct {
	Payment string `json:"payment"`
}

type gatewayResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *HTTPProvider) Charge(ctx context.Context, amount decimal.Decimal, reference string) (string, error) {
	resp, err := p.post(ctx, "/charges", reference, chargeRequest{
		Amount:    amount.StringFixed(2),
		Currency:  p.cfg.Currency,
		Reference: reference,
	})
	if err != nil {
		return "", err
	}
	if resp.Status != "succeeded" || resp.ID == "" {
		return "", fmt.Errorf("%w: status %q", ErrDeclined, resp.Status)
	}
	return resp.ID, nil
}

func (p *HTTPProvider) Refund(ctx context.Context, token string) error {
	resp, err := p.post(ctx, "/refunds", "refund-"+token, refundRequest{Payment: token})
	if err != nil {
		return err
	}
	if resp.Status != "succeeded" {
		return fmt.Errorf("refund %s: status %q", token, resp.Status)
	}
	return nil
}

func (p *HTTPProvider) post(ctx context.Context, path, idempotencyKey string, body any) (*gatewayResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment gateway: %w", err)
	}
	defer res.Body.Close()

	var gr gatewayResponse
	if err := json.NewDecoder(res.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("payment gateway: decode %s response: %w", res.Status, err)
	}
	if res.StatusCode >= 400 {
		msg := res.Status
		if gr.Error != nil && gr.Error.Message != "" {
			msg = gr.Error.Message
		}
		if res.StatusCode == http.StatusPaymentRequired {
			return nil, fmt.Errorf("%w: %s", ErrDeclined, msg)
		}
		return nil, fmt.Errorf("payment gateway: %s", msg)
	}
	return &gr, nil
}
