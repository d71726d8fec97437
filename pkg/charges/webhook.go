package charges

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// webhookTimeout bounds one merchant delivery so an unresponsive
// endpoint cannot stall the reconciliation pass.
const webhookTimeout = 10 * time.Second

// WebhookPayload is the canonical settlement notification body.
type WebhookPayload struct {
	ID          string          `json:"id"`
	AmountSat   int64           `json:"amountSat"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	PaymentHash string          `json:"paymentHash"`
	Invoice     string          `json:"invoice"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
}

// NewWebhookPayload projects a charge into the wire payload. Metadata
// is re-embedded as parsed JSON, timestamps as ISO-8601.
func NewWebhookPayload(charge Charge) WebhookPayload {
	metadata := json.RawMessage("null")
	if stored := charge.Metadata.String(); stored != "" && json.Valid([]byte(stored)) {
		metadata = json.RawMessage(stored)
	}
	return WebhookPayload{
		ID:          charge.ID,
		AmountSat:   charge.AmountSat.Int64(),
		Description: charge.Description,
		Status:      charge.Status.String(),
		PaymentHash: charge.PaymentHash.String(),
		Invoice:     charge.Invoice,
		Metadata:    metadata,
		CreatedAt:   charge.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   charge.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// WebhookSender delivers a settlement notification to a merchant
// endpoint. A nil return means the merchant answered 2xx.
type WebhookSender interface {
	Deliver(ctx context.Context, webhookURL string, payload WebhookPayload) error
}

// HTTPWebhookSender posts payloads with a bounded timeout.
type HTTPWebhookSender struct {
	httpClient *http.Client
}

// NewHTTPWebhookSender wires the default sender.
func NewHTTPWebhookSender() *HTTPWebhookSender {
	return &HTTPWebhookSender{
		httpClient: &http.Client{Timeout: webhookTimeout},
	}
}

// Deliver implements WebhookSender.
func (sender *HTTPWebhookSender) Deliver(ctx context.Context, webhookURL string, payload WebhookPayload) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, webhookTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, webhookURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := sender.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return fmt.Errorf("webhook endpoint returned %d", response.StatusCode)
	}
	return nil
}
