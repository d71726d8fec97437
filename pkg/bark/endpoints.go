package bark

import (
	"context"
	"encoding/json"
	"net/http"
)

const messageInvalidResponse = "invalid response format from daemon"

// InvoiceResult is the outcome of a Lightning invoice creation.
type InvoiceResult struct {
	Success     bool
	Message     string
	Invoice     string
	PaymentHash string
}

// StatusResult is the outcome of a Lightning receive status query.
type StatusResult struct {
	Success bool
	Message string
	Status  string
}

// AddressResult is the outcome of an address generation call.
type AddressResult struct {
	Success bool
	Message string
	Address string
}

// CreateLightningInvoice requests a new receive invoice from the daemon.
func (client *Client) CreateLightningInvoice(ctx context.Context, amountSat int64, description string) InvoiceResult {
	result := client.post(ctx, "/lightning/receives/invoice", map[string]any{
		"amount_sat":  amountSat,
		"description": description,
	})
	if !result.Success {
		return InvoiceResult{Message: result.Message}
	}
	var payload struct {
		Invoice     string `json:"invoice"`
		PaymentHash string `json:"payment_hash"`
	}
	if err := json.Unmarshal(result.Data, &payload); err != nil || payload.Invoice == "" {
		return InvoiceResult{Message: messageInvalidResponse}
	}
	return InvoiceResult{
		Success:     true,
		Invoice:     payload.Invoice,
		PaymentHash: payload.PaymentHash,
	}
}

// LightningReceiveStatus queries the settlement status of an invoice by
// its payment hash. Daemon status values include "pending", "settled",
// "paid", and "expired".
func (client *Client) LightningReceiveStatus(ctx context.Context, paymentHash string) StatusResult {
	result := client.get(ctx, "/lightning/receives/"+paymentHash)
	if !result.Success {
		return StatusResult{Message: result.Message}
	}
	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(result.Data, &payload); err != nil || payload.Status == "" {
		return StatusResult{Message: messageInvalidResponse}
	}
	return StatusResult{Success: true, Status: payload.Status}
}

// NextOnchainAddress generates a fresh L1 receive address. The daemon
// mandates POST for this endpoint.
func (client *Client) NextOnchainAddress(ctx context.Context) AddressResult {
	return client.nextAddress(ctx, "/onchain/addresses/next")
}

// NextArkAddress generates a fresh Ark (L2) receive address.
func (client *Client) NextArkAddress(ctx context.Context) AddressResult {
	return client.nextAddress(ctx, "/wallet/addresses/next")
}

func (client *Client) nextAddress(ctx context.Context, path string) AddressResult {
	result := client.post(ctx, path, nil)
	if !result.Success {
		return AddressResult{Message: result.Message}
	}
	var payload struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(result.Data, &payload); err != nil || payload.Address == "" {
		return AddressResult{Message: messageInvalidResponse}
	}
	return AddressResult{Success: true, Address: payload.Address}
}

// SendArk submits an L2 payment.
func (client *Client) SendArk(ctx context.Context, destination string, amountSat int64, comment string) Result {
	body := map[string]any{
		"destination": destination,
		"amount_sat":  amountSat,
	}
	if comment != "" {
		body["comment"] = comment
	}
	return client.post(ctx, "/wallet/send", body)
}

// SendOnchain submits an L1 payment.
func (client *Client) SendOnchain(ctx context.Context, destination string, amountSat int64) Result {
	return client.post(ctx, "/onchain/send", map[string]any{
		"destination": destination,
		"amount_sat":  amountSat,
	})
}

// PayLightning pays a BOLT11 invoice. A zero amount defers to the
// amount embedded in the invoice.
func (client *Client) PayLightning(ctx context.Context, invoice string, amountSat int64) Result {
	body := map[string]any{"invoice": invoice}
	if amountSat > 0 {
		body["amount_sat"] = amountSat
	}
	return client.post(ctx, "/lightning/pay", body)
}

// RefreshVtxos asks the daemon to refresh the given VTXOs in the next
// round.
func (client *Client) RefreshVtxos(ctx context.Context, vtxoIDs []string) Result {
	return client.post(ctx, "/wallet/refresh/vtxos", map[string]any{"vtxos": vtxoIDs})
}

// RefreshAll refreshes every refreshable VTXO.
func (client *Client) RefreshAll(ctx context.Context) Result {
	return client.post(ctx, "/wallet/refresh/all", nil)
}

// StartAllExits begins a unilateral exit for every VTXO.
func (client *Client) StartAllExits(ctx context.Context) Result {
	return client.post(ctx, "/exits/start/all", nil)
}

// OffboardVtxos collaboratively sends the given VTXOs to the onchain
// wallet.
func (client *Client) OffboardVtxos(ctx context.Context, vtxoIDs []string) Result {
	return client.post(ctx, "/wallet/offboard/vtxos", map[string]any{"vtxos": vtxoIDs})
}

// ClaimExits sweeps matured unilateral exits to a destination address.
func (client *Client) ClaimExits(ctx context.Context, vtxoIDs []string, destination string) Result {
	return client.post(ctx, "/exits/claim/vtxos", map[string]any{
		"vtxos":       vtxoIDs,
		"destination": destination,
	})
}

// BoardAmount converts confirmed L1 funds into an L2 VTXO.
func (client *Client) BoardAmount(ctx context.Context, amountSat int64) Result {
	return client.post(ctx, "/boards/board-amount", map[string]any{"amount_sat": amountSat})
}

// SyncWallet triggers an Ark wallet sync.
func (client *Client) SyncWallet(ctx context.Context) Result {
	return client.post(ctx, "/wallet/sync", nil)
}

// SyncOnchain triggers an onchain wallet sync.
func (client *Client) SyncOnchain(ctx context.Context) Result {
	return client.post(ctx, "/onchain/sync", nil)
}

// WalletBalance fetches the Ark balance.
func (client *Client) WalletBalance(ctx context.Context) (WalletBalance, Result) {
	var balance WalletBalance
	result := client.get(ctx, "/wallet/balance")
	return balance, decodeInto(result, &balance)
}

// OnchainBalance fetches the L1 balance.
func (client *Client) OnchainBalance(ctx context.Context) (OnchainBalance, Result) {
	var balance OnchainBalance
	result := client.get(ctx, "/onchain/balance")
	return balance, decodeInto(result, &balance)
}

// BitcoinTip fetches the current L1 chain tip height.
func (client *Client) BitcoinTip(ctx context.Context) (ChainTip, Result) {
	var tip ChainTip
	result := client.get(ctx, "/bitcoin/tip")
	return tip, decodeInto(result, &tip)
}

// ArkServerInfo fetches Ark network metadata.
func (client *Client) ArkServerInfo(ctx context.Context) (ArkInfo, Result) {
	var info ArkInfo
	result := client.get(ctx, "/wallet/ark-info")
	return info, decodeInto(result, &info)
}

// Vtxos lists the wallet's VTXOs. A 404 from a fresh wallet yields an
// empty list, not a failure.
func (client *Client) Vtxos(ctx context.Context) ([]Vtxo, Result) {
	var vtxos []Vtxo
	result := client.get(ctx, "/wallet/vtxos")
	return vtxos, decodeList(result, &vtxos)
}

// OnchainTransactions lists L1 wallet transactions.
func (client *Client) OnchainTransactions(ctx context.Context) ([]OnchainTransaction, Result) {
	var transactions []OnchainTransaction
	result := client.get(ctx, "/onchain/transactions")
	return transactions, decodeList(result, &transactions)
}

// ArkMovements lists L2 movement history.
func (client *Client) ArkMovements(ctx context.Context) ([]ArkMovement, Result) {
	var movements []ArkMovement
	result := client.get(ctx, "/wallet/movements")
	return movements, decodeList(result, &movements)
}

// ExitProgressList lists in-flight unilateral exits.
func (client *Client) ExitProgressList(ctx context.Context) ([]ExitProgress, Result) {
	var exits []ExitProgress
	result := client.get(ctx, "/exits/progress")
	return exits, decodeList(result, &exits)
}

// PendingRounds lists in-flight collaborative rounds.
func (client *Client) PendingRounds(ctx context.Context) ([]PendingRound, Result) {
	var rounds []PendingRound
	result := client.get(ctx, "/rounds/pending")
	return rounds, decodeList(result, &rounds)
}

func decodeInto(result Result, target any) Result {
	if !result.Success {
		return result
	}
	if err := json.Unmarshal(result.Data, target); err != nil {
		return failure(result.Status, messageInvalidResponse)
	}
	return result
}

// decodeList tolerates 404 (fresh wallets report no history) by
// returning success with an empty slice.
func decodeList(result Result, target any) Result {
	if !result.Success {
		if result.Status == http.StatusNotFound {
			return Result{Success: true, Status: result.Status}
		}
		return result
	}
	if len(result.Data) == 0 {
		return result
	}
	if err := json.Unmarshal(result.Data, target); err != nil {
		return failure(result.Status, messageInvalidResponse)
	}
	return result
}
