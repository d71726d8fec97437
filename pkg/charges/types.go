package charges

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// AmountSat is an integer amount in satoshis.
type AmountSat int64

// NewAmountSat validates a charge amount (minimum one satoshi).
func NewAmountSat(raw int64) (AmountSat, error) {
	if raw < 1 {
		return 0, fmt.Errorf("%w: must be at least 1 sat", ErrInvalidAmountSat)
	}
	return AmountSat(raw), nil
}

// Int64 returns the raw satoshi amount.
func (amount AmountSat) Int64() int64 {
	return int64(amount)
}

// PaymentHash is the cryptographic identifier of a Lightning invoice.
// Unique and immutable once set on a charge.
type PaymentHash struct {
	value string
}

// NewPaymentHash validates and normalizes a payment hash.
func NewPaymentHash(raw string) (PaymentHash, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return PaymentHash{}, fmt.Errorf("%w: empty value", ErrInvalidPaymentHash)
	}
	return PaymentHash{value: trimmed}, nil
}

// String returns the normalized hash.
func (hash PaymentHash) String() string {
	return hash.value
}

// WebhookURL is an optional merchant notification endpoint. The zero
// value means no webhook is configured.
type WebhookURL struct {
	value string
}

// NewWebhookURL validates a webhook URL. Empty input yields the zero
// value (webhook disabled).
func NewWebhookURL(raw string) (WebhookURL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return WebhookURL{}, nil
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return WebhookURL{}, fmt.Errorf("%w: must be a valid http(s) url", ErrInvalidWebhookURL)
	}
	return WebhookURL{value: trimmed}, nil
}

// IsSet reports whether a webhook endpoint is configured.
func (webhookURL WebhookURL) IsSet() bool {
	return webhookURL.value != ""
}

// String returns the normalized URL ("" when unset).
func (webhookURL WebhookURL) String() string {
	return webhookURL.value
}

// MetadataJSON stores an opaque merchant-supplied JSON blob.
type MetadataJSON struct {
	value string
}

// NewMetadataJSON validates metadata (defaulting to "{}" when empty).
func NewMetadataJSON(raw string) (MetadataJSON, error) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		normalized = "{}"
	}
	if !json.Valid([]byte(normalized)) {
		return MetadataJSON{}, fmt.Errorf("%w: must be valid json", ErrInvalidMetadataJSON)
	}
	return MetadataJSON{value: normalized}, nil
}

// String returns the normalized JSON blob.
func (metadata MetadataJSON) String() string {
	return metadata.value
}

// ChargeStatus is the settlement lifecycle of a charge. Transitions run
// only forward: pending to paid, or pending to expired.
type ChargeStatus string

const (
	ChargeStatusPending ChargeStatus = "pending"
	ChargeStatusPaid    ChargeStatus = "paid"
	ChargeStatusExpired ChargeStatus = "expired"
)

// ParseChargeStatus validates a stored status value.
func ParseChargeStatus(raw string) (ChargeStatus, error) {
	switch ChargeStatus(raw) {
	case ChargeStatusPending, ChargeStatusPaid, ChargeStatusExpired:
		return ChargeStatus(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidChargeStatus, raw)
	}
}

// String returns the stored representation.
func (status ChargeStatus) String() string {
	return string(status)
}

// WebhookStatus records the delivery outcome of the settlement webhook.
// Meaningful only once the charge is paid.
type WebhookStatus string

const (
	WebhookStatusPending WebhookStatus = "pending"
	WebhookStatusSuccess WebhookStatus = "success"
	WebhookStatusFailed  WebhookStatus = "failed"
)

// ParseWebhookStatus validates a stored webhook status value.
func ParseWebhookStatus(raw string) (WebhookStatus, error) {
	switch WebhookStatus(raw) {
	case WebhookStatusPending, WebhookStatusSuccess, WebhookStatusFailed:
		return WebhookStatus(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidWebhookStatus, raw)
	}
}

// String returns the stored representation.
func (status WebhookStatus) String() string {
	return string(status)
}

// Charge is a merchant-facing invoice record.
type Charge struct {
	ID            string
	AmountSat     AmountSat
	Description   string
	WebhookURL    WebhookURL
	Status        ChargeStatus
	WebhookStatus WebhookStatus
	PaymentHash   PaymentHash
	Invoice       string
	Metadata      MetadataJSON
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewChargeInput is the validated payload handed to the store on
// creation. Status starts pending/pending.
type NewChargeInput struct {
	AmountSat   AmountSat
	Description string
	WebhookURL  WebhookURL
	Metadata    MetadataJSON
	PaymentHash PaymentHash
	Invoice     string
}

// Store is the persistence contract used by Service.
type Store interface {
	CreateCharge(ctx context.Context, input NewChargeInput) (Charge, error)
	GetCharge(ctx context.Context, chargeID string) (Charge, error)
	ListPendingCharges(ctx context.Context) ([]Charge, error)
	// MarkChargePaid performs the guarded pending-to-paid transition.
	// The boolean reports whether THIS call won the transition; a loser
	// must not dispatch a webhook.
	MarkChargePaid(ctx context.Context, chargeID string) (Charge, bool, error)
	SetWebhookStatus(ctx context.Context, chargeID string, status WebhookStatus) error
	FindActiveAPIKey(ctx context.Context, key string) (bool, error)
}
