package wallet

import (
	"context"
	"fmt"

	"github.com/barkdesk/barkdesk/pkg/activity"
	"github.com/barkdesk/barkdesk/pkg/bark"
	"go.uber.org/zap"
)

// Service exposes the console's wallet actions and dashboard queries.
// Every action validates its input locally before touching the daemon
// and resolves to an ActionResult instead of returning an error, so the
// UI can render the message directly.
type Service struct {
	client *bark.Client
	logger *zap.Logger
}

// NewService wires a Service.
func NewService(client *bark.Client, logger *zap.Logger) (*Service, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client dependency is nil", ErrInvalidServiceConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, logger: logger}, nil
}

// ActionResult is the uniform outcome of a wallet action.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func resultFrom(result bark.Result) ActionResult {
	return ActionResult{Success: result.Success, Message: result.Message}
}

func validationFailure(err error) ActionResult {
	return ActionResult{Success: false, Message: err.Error()}
}

// SendArk submits a validated L2 payment.
func (service *Service) SendArk(ctx context.Context, destination string, amountSat int64, comment string) ActionResult {
	input, err := NewSendArkInput(destination, amountSat, comment)
	if err != nil {
		return validationFailure(err)
	}
	return resultFrom(service.client.SendArk(ctx, input.Destination, input.AmountSat, input.Comment))
}

// SendOnchain submits a validated L1 payment.
func (service *Service) SendOnchain(ctx context.Context, destination string, amountSat int64) ActionResult {
	input, err := NewSendOnchainInput(destination, amountSat)
	if err != nil {
		return validationFailure(err)
	}
	return resultFrom(service.client.SendOnchain(ctx, input.Destination, input.AmountSat))
}

// PayLightning pays a validated BOLT11 invoice.
func (service *Service) PayLightning(ctx context.Context, destination string, amountSat int64) ActionResult {
	input, err := NewSendLightningInput(destination, amountSat)
	if err != nil {
		return validationFailure(err)
	}
	return resultFrom(service.client.PayLightning(ctx, input.Destination, input.AmountSat))
}

// InvoiceResult carries a freshly created receive invoice.
type InvoiceResult struct {
	ActionResult
	Invoice     string `json:"invoice,omitempty"`
	PaymentHash string `json:"paymentHash,omitempty"`
}

// CreateInvoice requests a validated Lightning receive invoice.
func (service *Service) CreateInvoice(ctx context.Context, amountSat int64, description string) InvoiceResult {
	input, err := NewInvoiceInput(amountSat, description)
	if err != nil {
		return InvoiceResult{ActionResult: validationFailure(err)}
	}
	result := service.client.CreateLightningInvoice(ctx, input.AmountSat, input.Description)
	if !result.Success {
		return InvoiceResult{ActionResult: ActionResult{Message: result.Message}}
	}
	return InvoiceResult{
		ActionResult: ActionResult{Success: true},
		Invoice:      result.Invoice,
		PaymentHash:  result.PaymentHash,
	}
}

// AddressResult carries a freshly generated receive address.
type AddressResult struct {
	ActionResult
	Address string `json:"address,omitempty"`
}

// NewOnchainAddress generates a fresh L1 address.
func (service *Service) NewOnchainAddress(ctx context.Context) AddressResult {
	result := service.client.NextOnchainAddress(ctx)
	return AddressResult{
		ActionResult: ActionResult{Success: result.Success, Message: result.Message},
		Address:      result.Address,
	}
}

// NewArkAddress generates a fresh Ark address.
func (service *Service) NewArkAddress(ctx context.Context) AddressResult {
	result := service.client.NextArkAddress(ctx)
	return AddressResult{
		ActionResult: ActionResult{Success: result.Success, Message: result.Message},
		Address:      result.Address,
	}
}

// RefreshVtxos submits the selected VTXOs for refresh.
func (service *Service) RefreshVtxos(ctx context.Context, vtxoIDs []string) ActionResult {
	if len(vtxoIDs) == 0 {
		return resultFrom(service.client.RefreshAll(ctx))
	}
	return resultFrom(service.client.RefreshVtxos(ctx, vtxoIDs))
}

// StartExitAll begins unilateral exits for every VTXO.
func (service *Service) StartExitAll(ctx context.Context) ActionResult {
	return resultFrom(service.client.StartAllExits(ctx))
}

// ClaimExits sweeps matured exits to a validated L1 destination.
func (service *Service) ClaimExits(ctx context.Context, vtxoIDs []string, destination string) ActionResult {
	input, err := NewClaimInput(vtxoIDs, destination)
	if err != nil {
		return validationFailure(err)
	}
	return resultFrom(service.client.ClaimExits(ctx, input.VtxoIDs, input.Destination))
}

// Offboard collaboratively moves VTXOs back to the L1 wallet.
func (service *Service) Offboard(ctx context.Context, vtxoIDs []string) ActionResult {
	if len(vtxoIDs) == 0 {
		return ActionResult{Message: "no vtxos to offboard"}
	}
	return resultFrom(service.client.OffboardVtxos(ctx, vtxoIDs))
}

// Board converts confirmed L1 funds into a VTXO.
func (service *Service) Board(ctx context.Context, amountSat int64) ActionResult {
	input, err := NewBoardInput(amountSat)
	if err != nil {
		return validationFailure(err)
	}
	return resultFrom(service.client.BoardAmount(ctx, input.AmountSat))
}

// Sync triggers both wallet and onchain syncs; the first failure wins.
func (service *Service) Sync(ctx context.Context) ActionResult {
	if result := service.client.SyncWallet(ctx); !result.Success {
		return resultFrom(result)
	}
	return resultFrom(service.client.SyncOnchain(ctx))
}

// Balances aggregates L1 and Ark balances. A failing side degrades to
// zeroes rather than failing the dashboard.
func (service *Service) Balances(ctx context.Context) Balances {
	var balances Balances
	wallet, walletResult := service.client.WalletBalance(ctx)
	if walletResult.Success {
		balances.ArkSpendableSat = wallet.SpendableSat
	} else {
		service.logger.Warn("wallet balance fetch failed", zap.String("message", walletResult.Message))
	}
	onchain, onchainResult := service.client.OnchainBalance(ctx)
	if onchainResult.Success {
		balances.OnchainConfirmedSat = onchain.ConfirmedSat
		balances.OnchainTotalSat = onchain.TotalSat
		balances.OnchainPendingSat = onchain.TrustedPendingSat
	} else {
		service.logger.Warn("onchain balance fetch failed", zap.String("message", onchainResult.Message))
	}
	return balances
}

// NodeInfo collects chain tip and Ark network metadata, tolerating
// partial failure.
func (service *Service) NodeInfo(ctx context.Context) NodeInfo {
	info := NodeInfo{Network: "unknown"}
	tip, tipResult := service.client.BitcoinTip(ctx)
	if tipResult.Success {
		info.BlockHeight = tip.TipHeight
	} else {
		service.logger.Warn("bitcoin tip fetch failed", zap.String("message", tipResult.Message))
	}
	arkInfo, infoResult := service.client.ArkServerInfo(ctx)
	if infoResult.Success && arkInfo.Network != "" {
		info.Network = arkInfo.Network
		info.Pubkey = arkInfo.ServerPubkey
	} else if !infoResult.Success {
		service.logger.Warn("ark info fetch failed", zap.String("message", infoResult.Message))
	}
	return info
}

// Vtxos lists the wallet's coins ([] on failure).
func (service *Service) Vtxos(ctx context.Context) []bark.Vtxo {
	vtxos, result := service.client.Vtxos(ctx)
	if !result.Success {
		service.logger.Warn("vtxo fetch failed", zap.String("message", result.Message))
		return []bark.Vtxo{}
	}
	if vtxos == nil {
		vtxos = []bark.Vtxo{}
	}
	return vtxos
}

// OnchainTransactions lists L1 wallet transactions ([] on failure).
func (service *Service) OnchainTransactions(ctx context.Context) []bark.OnchainTransaction {
	transactions, result := service.client.OnchainTransactions(ctx)
	if !result.Success {
		service.logger.Warn("onchain transactions fetch failed", zap.String("message", result.Message))
		return []bark.OnchainTransaction{}
	}
	if transactions == nil {
		transactions = []bark.OnchainTransaction{}
	}
	return transactions
}

// ArkMovements lists L2 movement history ([] on failure).
func (service *Service) ArkMovements(ctx context.Context) []bark.ArkMovement {
	movements, result := service.client.ArkMovements(ctx)
	if !result.Success {
		service.logger.Warn("ark movements fetch failed", zap.String("message", result.Message))
		return []bark.ArkMovement{}
	}
	if movements == nil {
		movements = []bark.ArkMovement{}
	}
	return movements
}

// ActivityFeed assembles the recovery feed from exits and rounds at the
// current chain height. A failed tip fetch degrades to height zero so
// timelocks render conservatively instead of hiding the feed.
func (service *Service) ActivityFeed(ctx context.Context) ([]activity.ActivityItem, error) {
	var currentHeight int64
	tip, tipResult := service.client.BitcoinTip(ctx)
	if tipResult.Success {
		currentHeight = tip.TipHeight
	} else {
		service.logger.Warn("bitcoin tip fetch failed", zap.String("message", tipResult.Message))
	}

	exits, exitsResult := service.client.ExitProgressList(ctx)
	if !exitsResult.Success {
		return nil, fmt.Errorf("exit progress fetch failed: %s", exitsResult.Message)
	}
	rounds, roundsResult := service.client.PendingRounds(ctx)
	if !roundsResult.Success {
		return nil, fmt.Errorf("pending rounds fetch failed: %s", roundsResult.Message)
	}
	return activity.Feed(exits, rounds, currentHeight), nil
}
