package pos

import (
	"context"
	"errors"

	"github.com/barkdesk/barkdesk/pkg/bark"
)

// BarkGateway adapts the daemon client onto the session's Gateway
// contract.
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

// NextArkAddress implements Gateway.
func (gateway *BarkGateway) NextArkAddress(ctx context.Context) (string, error) {
	result := gateway.client.NextArkAddress(ctx)
	if !result.Success {
		return "", errors.New(result.Message)
	}
	return result.Address, nil
}

// VtxoCount implements Gateway.
func (gateway *BarkGateway) VtxoCount(ctx context.Context) (int, error) {
	vtxos, result := gateway.client.Vtxos(ctx)
	if !result.Success {
		return 0, errors.New(result.Message)
	}
	return len(vtxos), nil
}
