package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apony/quoteintake/internal/core"
)

// DefaultFunctionTimeout bounds one call to the notifier function.
const DefaultFunctionTimeout = 30 * time.Second

const maxFunctionResponseBytes = 64 << 10

// Brand styles the email the notifier function renders.
type Brand struct {
	Name         string `json:"name"`
	PrimaryColor string `json:"primaryColor"`
	HeaderBg     string `json:"headerBg"`
	HeaderFg     string `json:"headerFg"`
}

// CloudFunctionConfig configures the primary transport.
type CloudFunctionConfig struct {
	URL      string
	Timeout  time.Duration
	Lang     string
	Currency string
	Brand    Brand
}

// CloudFunctionTransport posts notifications to an HTTP notifier function.
type CloudFunctionTransport struct {
	cfg    CloudFunctionConfig
	client *http.Client
}

// NewCloudFunctionTransport builds the transport. A nil client gets one with
// the configured timeout.
func NewCloudFunctionTransport(cfg CloudFunctionConfig, client *http.Client) *CloudFunctionTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFunctionTimeout
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &CloudFunctionTransport{cfg: cfg, client: client}
}

// Method implements Transport.
func (t *CloudFunctionTransport) Method() core.NotifyMethod {
	return core.NotifyCloudFunction
}

// Configured implements Transport.
func (t *CloudFunctionTransport) Configured() bool {
	return t != nil && strings.TrimSpace(t.cfg.URL) != ""
}

type functionPayload struct {
	Lang  string        `json:"lang"`
	Brand Brand         `json:"brand"`
	Order functionOrder `json:"order"`
}

type functionOrder struct {
	OrderNo      string         `json:"orderNo"`
	CustomerName string         `json:"customerName"`
	Amount       float64        `json:"amount"`
	Currency     string         `json:"currency"`
	PickupDate   string         `json:"pickupDate"`
	Link         string         `json:"link"`
	To           string         `json:"to"`
	Items        []functionItem `json:"items"`
	Notes        string         `json:"notes,omitempty"`
}

type functionItem struct {
	Name   string `json:"name"`
	Qty    int    `json:"qty"`
	Weight string `json:"weight,omitempty"`
}

type functionResponse struct {
	OK        bool   `json:"ok"`
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

// Send implements Transport. Only a 2xx response with {"ok":true} counts as
// delivered.
func (t *CloudFunctionTransport) Send(ctx context.Context, n Notification) (Receipt, error) {
	if !t.Configured() {
		return Receipt{}, fmt.Errorf("cloud function url not configured")
	}
	if n.Quote == nil {
		return Receipt{}, fmt.Errorf("notification has no quote request")
	}

	body, err := json.Marshal(t.payload(n))
	if err != nil {
		return Receipt{}, fmt.Errorf("encode payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("call cloud function: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxFunctionResponseBytes))
	if err != nil {
		return Receipt{}, fmt.Errorf("read cloud function response: %w", err)
	}

	var parsed functionResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := strings.TrimSpace(parsed.Error)
		if detail == "" {
			detail = strings.TrimSpace(string(raw))
		}
		return Receipt{}, fmt.Errorf("cloud function returned status %d: %s", resp.StatusCode, detail)
	}
	if decodeErr != nil {
		return Receipt{}, fmt.Errorf("decode cloud function response: %w", decodeErr)
	}
	if !parsed.OK {
		detail := parsed.Error
		if detail == "" {
			detail = "ok=false"
		}
		return Receipt{}, fmt.Errorf("cloud function rejected notification: %s", detail)
	}

	return Receipt{MessageID: parsed.MessageID}, nil
}

func (t *CloudFunctionTransport) payload(n Notification) functionPayload {
	q := n.Quote

	qty := 1
	if q.Pieces != nil && *q.Pieces > 0 {
		qty = *q.Pieces
	}
	items := []functionItem{{
		Name:   "cargo",
		Qty:    qty,
		Weight: formatFloat(q.WeightKg) + "kg",
	}}
	if q.Pallets != nil && *q.Pallets > 0 {
		items = append(items, functionItem{Name: "pallets", Qty: *q.Pallets})
	}

	notes := q.Note
	if services := joinServices(q.Services); services != "" {
		if notes != "" {
			notes += "\n"
		}
		notes += "Services: " + services
	}

	customer := q.ContactName
	if q.Company != "" {
		customer = fmt.Sprintf("%s (%s)", q.ContactName, q.Company)
	}

	return functionPayload{
		Lang:  t.cfg.Lang,
		Brand: t.cfg.Brand,
		Order: functionOrder{
			OrderNo:      q.Code,
			CustomerName: customer,
			Amount:       0,
			Currency:     t.cfg.Currency,
			PickupDate:   q.ShipDate,
			Link:         n.Link,
			To:           strings.Join(n.Recipients, ","),
			Items:        items,
			Notes:        notes,
		},
	}
}
