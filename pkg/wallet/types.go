package wallet

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	minArkDestinationLength = 10
	minArkSendSat           = 10_000
	dustLimitSat            = 546
	minInvoiceSat           = 1
)

// Testnet-family address prefixes the daemon accepts for L1 sends.
var onchainDestinationPattern = regexp.MustCompile(`^(tb1|m|n).+`)

// SendArkInput is a validated L2 send request.
type SendArkInput struct {
	Destination string
	AmountSat   int64
	Comment     string
}

// NewSendArkInput enforces the Ark send minimums before any daemon
// call is made.
func NewSendArkInput(destination string, amountSat int64, comment string) (SendArkInput, error) {
	trimmed := strings.TrimSpace(destination)
	if len(trimmed) < minArkDestinationLength {
		return SendArkInput{}, fmt.Errorf("%w: destination must be at least %d characters", ErrInvalidSendInput, minArkDestinationLength)
	}
	if amountSat < minArkSendSat {
		return SendArkInput{}, fmt.Errorf("%w: ark payments must be at least %d sats", ErrInvalidSendInput, minArkSendSat)
	}
	return SendArkInput{Destination: trimmed, AmountSat: amountSat, Comment: comment}, nil
}

// SendOnchainInput is a validated L1 send request.
type SendOnchainInput struct {
	Destination string
	AmountSat   int64
}

// NewSendOnchainInput enforces the testnet address shape and the 546
// sat dust limit.
func NewSendOnchainInput(destination string, amountSat int64) (SendOnchainInput, error) {
	trimmed := strings.TrimSpace(destination)
	if !onchainDestinationPattern.MatchString(trimmed) {
		return SendOnchainInput{}, fmt.Errorf("%w: destination must start with tb1, m, or n", ErrInvalidSendInput)
	}
	if amountSat < dustLimitSat {
		return SendOnchainInput{}, fmt.Errorf("%w: amount must be at least %d sats (dust limit)", ErrInvalidSendInput, dustLimitSat)
	}
	return SendOnchainInput{Destination: trimmed, AmountSat: amountSat}, nil
}

// SendLightningInput is a validated Lightning pay request. A zero
// amount defers to the amount embedded in the invoice.
type SendLightningInput struct {
	Destination string
	AmountSat   int64
}

// NewSendLightningInput enforces the BOLT11 prefix.
func NewSendLightningInput(destination string, amountSat int64) (SendLightningInput, error) {
	trimmed := strings.TrimSpace(destination)
	if !strings.HasPrefix(trimmed, "ln") {
		return SendLightningInput{}, fmt.Errorf("%w: must be a lightning invoice", ErrInvalidSendInput)
	}
	if amountSat < 0 {
		return SendLightningInput{}, fmt.Errorf("%w: amount cannot be negative", ErrInvalidSendInput)
	}
	return SendLightningInput{Destination: trimmed, AmountSat: amountSat}, nil
}

// InvoiceInput is a validated invoice creation request.
type InvoiceInput struct {
	AmountSat   int64
	Description string
}

// NewInvoiceInput enforces the one-sat invoice minimum.
func NewInvoiceInput(amountSat int64, description string) (InvoiceInput, error) {
	if amountSat < minInvoiceSat {
		return InvoiceInput{}, fmt.Errorf("%w: amount must be at least %d sat", ErrInvalidSendInput, minInvoiceSat)
	}
	return InvoiceInput{AmountSat: amountSat, Description: description}, nil
}

// BoardInput is a validated boarding request.
type BoardInput struct {
	AmountSat int64
}

// NewBoardInput enforces a positive boarding amount.
func NewBoardInput(amountSat int64) (BoardInput, error) {
	if amountSat < 1 {
		return BoardInput{}, fmt.Errorf("%w: boarding amount must be positive", ErrInvalidSendInput)
	}
	return BoardInput{AmountSat: amountSat}, nil
}

// ClaimInput is a validated exit claim request.
type ClaimInput struct {
	VtxoIDs     []string
	Destination string
}

// NewClaimInput requires at least one vtxo and an L1 destination.
func NewClaimInput(vtxoIDs []string, destination string) (ClaimInput, error) {
	if len(vtxoIDs) == 0 {
		return ClaimInput{}, fmt.Errorf("%w: no vtxos to claim", ErrInvalidSendInput)
	}
	trimmed := strings.TrimSpace(destination)
	if !onchainDestinationPattern.MatchString(trimmed) {
		return ClaimInput{}, fmt.Errorf("%w: destination must start with tb1, m, or n", ErrInvalidSendInput)
	}
	return ClaimInput{VtxoIDs: vtxoIDs, Destination: trimmed}, nil
}

// Balances aggregates the L1 and Ark balances for the dashboard.
type Balances struct {
	OnchainConfirmedSat int64 `json:"onchainConfirmedSat"`
	OnchainTotalSat     int64 `json:"onchainTotalSat"`
	OnchainPendingSat   int64 `json:"onchainPendingSat"`
	ArkSpendableSat     int64 `json:"arkSpendableSat"`
}

// NodeInfo carries daemon metadata for the header widgets.
type NodeInfo struct {
	Network     string `json:"network"`
	BlockHeight int64  `json:"blockHeight"`
	Pubkey      string `json:"pubkey,omitempty"`
}
