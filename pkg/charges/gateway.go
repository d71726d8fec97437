package charges

import (
	"context"
	"errors"

	"github.com/barkdesk/barkdesk/pkg/bark"
)

// BarkGateway adapts the daemon client's value-shaped results onto the
// error-shaped Gateway contract the service consumes.
type BarkGateway struct {
	client *bark.Client
}

// NewBarkGateway wires a BarkGateway.
func NewBarkGateway(client *bark.Client) *BarkGateway {
	return &BarkGateway{client: client}
}

// CreateInvoice implements Gateway.
func (gateway *BarkGateway) CreateInvoice(ctx context.Context, amountSat int64, description string) (string, string, error) {
	result := gateway.client.CreateLightningInvoice(ctx, amountSat, description)
	if !result.Success {
		return "", "", errors.New(result.Message)
	}
	return result.Invoice, result.PaymentHash, nil
}

// ReceiveStatus implements Gateway.
func (gateway *BarkGateway) ReceiveStatus(ctx context.Context, paymentHash string) (string, error) {
	result := gateway.client.LightningReceiveStatus(ctx, paymentHash)
	if !result.Success {
		return "", errors.New(result.Message)
	}
	return result.Status, nil
}
