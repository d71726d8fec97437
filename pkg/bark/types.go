package bark

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString decodes a JSON string or number into a string. Daemon ids
// have changed shape between releases.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (value *FlexString) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*value = ""
		return nil
	}
	if trimmed[0] == '"' {
		var parsed string
		if err := json.Unmarshal(trimmed, &parsed); err != nil {
			return err
		}
		*value = FlexString(parsed)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(trimmed, &number); err != nil {
		return err
	}
	*value = FlexString(number.String())
	return nil
}

// String returns the decoded value.
func (value FlexString) String() string {
	return string(value)
}

// WalletBalance mirrors GET /wallet/balance.
type WalletBalance struct {
	SpendableSat        int64 `json:"spendable_sat"`
	PendingLightningSat int64 `json:"pending_lightning_send_sat"`
	PendingExitSat      int64 `json:"pending_exit_sat"`
}

// OnchainBalance mirrors GET /onchain/balance.
type OnchainBalance struct {
	ConfirmedSat      int64 `json:"confirmed_sat"`
	TotalSat          int64 `json:"total_sat"`
	TrustedPendingSat int64 `json:"trusted_pending_sat"`
}

// ChainTip mirrors GET /bitcoin/tip.
type ChainTip struct {
	TipHeight int64 `json:"tip_height"`
}

// ArkInfo mirrors GET /wallet/ark-info. Unknown extra fields are
// ignored on purpose: the daemon adds fields between releases.
type ArkInfo struct {
	Network      string `json:"network"`
	ServerPubkey string `json:"server_pubkey"`
	Version      string `json:"version"`
}

// Vtxo is a spendable (or in-flight) L2 coin as reported by the daemon.
type Vtxo struct {
	ID           string `json:"id"`
	AmountSat    int64  `json:"amount_sat"`
	ExpiryHeight int64  `json:"expiry_height"`
	State        string `json:"state"`
}

// OnchainTransaction mirrors one entry of GET /onchain/transactions.
type OnchainTransaction struct {
	Txid string `json:"txid"`
	Tx   string `json:"tx"`
}

// ArkMovement mirrors one entry of GET /wallet/movements.
type ArkMovement struct {
	ID                 FlexString        `json:"id"`
	Status             string            `json:"status"`
	IntendedBalanceSat int64             `json:"intended_balance_sat"`
	Subsystem          MovementSubsystem `json:"subsystem"`
	Time               MovementTime      `json:"time"`
}

// MovementSubsystem names the daemon subsystem that produced a movement.
type MovementSubsystem struct {
	Kind string `json:"kind"`
}

// MovementTime carries a movement's timestamps.
type MovementTime struct {
	CreatedAt string `json:"created_at"`
}

// ExitProgress is one unilateral-exit progress record keyed by vtxo id.
// Produced entirely by the daemon; this module only interprets it.
type ExitProgress struct {
	VtxoID string          `json:"vtxo_id"`
	State  ExitState       `json:"state"`
	Error  json.RawMessage `json:"error"`
}

// ExitStateKind is the closed set of exit states this module acts on.
type ExitStateKind string

const (
	ExitStateAwaitingDelta     ExitStateKind = "awaiting-delta"
	ExitStateProcessing        ExitStateKind = "processing"
	ExitStateClaimable         ExitStateKind = "claimable"
	ExitStateTransactionFailed ExitStateKind = "transaction failed"
	ExitStateUnknown           ExitStateKind = "unknown"
)

// ExitState is the daemon's tagged state union. All fields besides Type
// are optional; which ones are present depends on the variant. Fields
// that only some daemon versions emit (claimable_since, confirmed_block,
// errors, tip_height) are kept raw and inspected opportunistically.
type ExitState struct {
	Type            string            `json:"type"`
	ClaimTxid       string            `json:"claim_txid"`
	ClaimableHeight int64             `json:"claimable_height"`
	ClaimableSince  json.RawMessage   `json:"claimable_since"`
	ConfirmedBlock  json.RawMessage   `json:"confirmed_block"`
	TipHeight       int64             `json:"tip_height"`
	Transactions    []ExitTransaction `json:"transactions"`
	Errors          []json.RawMessage `json:"errors"`
}

// Kind maps the daemon's type string onto the closed variant set.
func (state ExitState) Kind() ExitStateKind {
	switch state.Type {
	case string(ExitStateAwaitingDelta):
		return ExitStateAwaitingDelta
	case string(ExitStateProcessing):
		return ExitStateProcessing
	case string(ExitStateClaimable):
		return ExitStateClaimable
	case string(ExitStateTransactionFailed):
		return ExitStateTransactionFailed
	default:
		return ExitStateUnknown
	}
}

// HasClaimableSince reports whether the daemon marked the exit
// claimable via the legacy claimable_since field.
func (state ExitState) HasClaimableSince() bool {
	return rawFieldPresent(state.ClaimableSince)
}

// ConfirmedBlockRef parses the "<height>:<hash>" confirmed_block format.
func (state ExitState) ConfirmedBlockRef() (BlockRef, bool) {
	if !rawFieldPresent(state.ConfirmedBlock) {
		return BlockRef{}, false
	}
	var encoded string
	if err := json.Unmarshal(state.ConfirmedBlock, &encoded); err != nil {
		return BlockRef{}, false
	}
	parts := strings.SplitN(encoded, ":", 2)
	height, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return BlockRef{}, false
	}
	ref := BlockRef{Height: height}
	if len(parts) == 2 {
		ref.Hash = parts[1]
	}
	return ref, true
}

// BlockRef points at an L1 block.
type BlockRef struct {
	Height int64
	Hash   string
}

// ExitTransaction is one broadcast attempt within a processing exit.
type ExitTransaction struct {
	Txid   string                `json:"txid"`
	Status ExitTransactionStatus `json:"status"`
}

// ExitTransactionStatus decodes either the current object form
// {"type":"broadcast"} or the older bare string form.
type ExitTransactionStatus struct {
	Type string `json:"type"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (status *ExitTransactionStatus) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var parsed string
		if err := json.Unmarshal(trimmed, &parsed); err != nil {
			return err
		}
		status.Type = parsed
		return nil
	}
	type alias ExitTransactionStatus
	var parsed alias
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	status.Type = parsed.Type
	return nil
}

// RoundKind classifies a pending collaborative round.
type RoundKind string

const (
	RoundFinished            RoundKind = "Finished"
	RoundPendingConfirmation RoundKind = "PendingConfirmation"
)

// PendingRound is a collaborative batch operation record.
type PendingRound struct {
	ID         FlexString `json:"id"`
	Kind       RoundKind  `json:"kind"`
	RoundTxid  string     `json:"round_txid"`
	InputVtxos []string   `json:"input_vtxos"`
}

func rawFieldPresent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}
	switch string(trimmed) {
	case "null", `""`, "false", "0":
		return false
	default:
		return true
	}
}
