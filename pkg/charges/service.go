package charges

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Gateway is the slice of the daemon client the charges service needs.
type Gateway interface {
	CreateInvoice(ctx context.Context, amountSat int64, description string) (invoice string, paymentHash string, err error)
	ReceiveStatus(ctx context.Context, paymentHash string) (status string, err error)
}

// Service owns the charge lifecycle: creation against the daemon and
// the settlement reconciliation pass.
type Service struct {
	store   Store
	gateway Gateway
	sender  WebhookSender
	logger  *zap.Logger
}

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// WithLogger wires a structured logger for reconciliation events.
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithWebhookSender replaces the webhook dispatcher (used by tests).
func WithWebhookSender(sender WebhookSender) ServiceOption {
	return func(service *Service) {
		service.sender = sender
	}
}

// NewService wires a Service.
func NewService(store Store, gateway Gateway, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if gateway == nil {
		return nil, fmt.Errorf("%w: gateway dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:   store,
		gateway: gateway,
		sender:  NewHTTPWebhookSender(),
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// CreateInput is the raw merchant request to create a charge.
type CreateInput struct {
	AmountSat   int64
	Description string
	WebhookURL  string
	Metadata    string
}

// Create validates the input, obtains a Lightning invoice from the
// daemon, and persists the charge in the pending state. Validation
// failures surface as ErrInvalid* values; upstream invoice failures as
// ErrUpstreamInvoice so the HTTP layer can answer 502.
func (service *Service) Create(ctx context.Context, input CreateInput) (Charge, error) {
	amount, err := NewAmountSat(input.AmountSat)
	if err != nil {
		return Charge{}, err
	}
	webhookURL, err := NewWebhookURL(input.WebhookURL)
	if err != nil {
		return Charge{}, err
	}
	metadata, err := NewMetadataJSON(input.Metadata)
	if err != nil {
		return Charge{}, err
	}

	invoice, rawHash, err := service.gateway.CreateInvoice(ctx, amount.Int64(), input.Description)
	if err != nil {
		return Charge{}, fmt.Errorf("%w: %v", ErrUpstreamInvoice, err)
	}
	paymentHash, err := NewPaymentHash(rawHash)
	if err != nil {
		return Charge{}, fmt.Errorf("%w: payment hash not returned", ErrUpstreamInvoice)
	}

	charge, err := service.store.CreateCharge(ctx, NewChargeInput{
		AmountSat:   amount,
		Description: input.Description,
		WebhookURL:  webhookURL,
		Metadata:    metadata,
		PaymentHash: paymentHash,
		Invoice:     invoice,
	})
	if err != nil {
		return Charge{}, err
	}
	service.logger.Info("charge created",
		zap.String("charge_id", charge.ID),
		zap.Int64("amount_sat", charge.AmountSat.Int64()),
		zap.Bool("webhook", charge.WebhookURL.IsSet()))
	return charge, nil
}

// Get returns a charge by id.
func (service *Service) Get(ctx context.Context, chargeID string) (Charge, error) {
	return service.store.GetCharge(ctx, chargeID)
}

// Authenticate reports whether the given API key is active.
func (service *Service) Authenticate(ctx context.Context, key string) (bool, error) {
	return service.store.FindActiveAPIKey(ctx, key)
}
