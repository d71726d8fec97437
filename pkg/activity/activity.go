// Package activity projects the daemon's exit and round records into a
// human-actionable recovery model. The projection is recomputed from
// scratch on every fetch; the daemon is the sole source of truth, so no
// state is kept across calls.
package activity

import (
	"fmt"

	"github.com/barkdesk/barkdesk/pkg/bark"
)

// ItemType distinguishes the two record families.
type ItemType string

const (
	ItemExit  ItemType = "exit"
	ItemRound ItemType = "round"
)

// Action is a user action an item may require.
type Action string

// ActionClaim asks the user to sweep a matured exit to L1.
const ActionClaim Action = "claim"

// BlockLink points the UI at an L1 block.
type BlockLink struct {
	Height int64 `json:"height"`
}

// ActivityItem is the canonical view of one in-flight exit or round.
type ActivityItem struct {
	ID          string     `json:"id"`
	Type        ItemType   `json:"type"`
	Title       string     `json:"title"`
	VtxoIDs     []string   `json:"vtxoIds"`
	Progress    int        `json:"progress"`
	StatusLabel string     `json:"statusLabel"`
	Txid        string     `json:"txid,omitempty"`
	BlockLink   *BlockLink `json:"blockLink,omitempty"`
	Error       string     `json:"error,omitempty"`
	Action      Action     `json:"action,omitempty"`
	Info        string     `json:"info,omitempty"`
	IsMining    bool       `json:"isMining,omitempty"`
}

const (
	exitTitle = "Unilateral Exit"

	labelClaimed      = "Claimed on L1"
	labelReadyToClaim = "Ready to Claim"
	labelSecuring     = "Securing Anchor"
	labelBroadcasting = "Broadcasting"
	labelCPFP         = "Broadcasting (CPFP)"
	labelParentWait   = "Waiting for Parent"
	labelProcessing   = "Processing"

	labelCompleted    = "Completed"
	labelMining       = "Mining on L1 (Waiting for Block)"
	labelWaitingL1    = "Waiting for L1"
	labelWaitingASP   = "Waiting for ASP Broadcast"
	miningAdvisory    = "This step depends on Bitcoin block times (~10m)."

	transactionStatusBroadcast = "broadcast"
	transactionStatusCPFP      = "broadcast-with-cpfp"
	transactionStatusConfirmed = "confirmed"
	transactionStatusAwaiting  = "awaiting-input-confirmation"
)

// MapExit classifies one exit progress record at the given chain
// height. Pure: identical inputs always yield the identical item.
func MapExit(exit bark.ExitProgress, currentHeight int64) ActivityItem {
	item := ActivityItem{
		ID:      exit.VtxoID,
		Type:    ItemExit,
		Title:   exitTitle,
		VtxoIDs: []string{exit.VtxoID},
		Error:   exitError(exit),
	}
	state := exit.State

	// Claimed dominates every other signal.
	if state.ClaimTxid != "" {
		item.Progress = 100
		item.StatusLabel = labelClaimed
		item.Txid = state.ClaimTxid
		return item
	}

	if state.Kind() == bark.ExitStateClaimable || state.HasClaimableSince() {
		item.Progress = 95
		item.StatusLabel = labelReadyToClaim
		item.Action = ActionClaim
		return item
	}

	if state.Kind() == bark.ExitStateAwaitingDelta && state.ClaimableHeight > 0 {
		blocksRemaining := state.ClaimableHeight - currentHeight
		if blocksRemaining <= 0 {
			item.Progress = 95
			item.StatusLabel = labelReadyToClaim
			item.Action = ActionClaim
			return item
		}
		item.Progress = 75
		item.StatusLabel = fmt.Sprintf("Timelock Active (%d %s left)", blocksRemaining, pluralBlocks(blocksRemaining))
		if ref, ok := state.ConfirmedBlockRef(); ok {
			item.BlockLink = &BlockLink{Height: ref.Height}
		}
		return item
	}

	if state.Kind() == bark.ExitStateProcessing && len(state.Transactions) > 0 {
		selected := selectTransaction(state.Transactions)
		item.Txid = selected.Txid
		switch selected.Status.Type {
		case transactionStatusConfirmed:
			item.Progress = 50
			item.StatusLabel = labelSecuring
			if ref, ok := state.ConfirmedBlockRef(); ok {
				item.BlockLink = &BlockLink{Height: ref.Height}
			}
		case transactionStatusCPFP:
			item.Progress = 25
			item.StatusLabel = labelCPFP
		case transactionStatusBroadcast:
			item.Progress = 25
			item.StatusLabel = labelBroadcasting
		case transactionStatusAwaiting:
			item.Progress = 25
			item.StatusLabel = labelParentWait
		default:
			item.Progress = 25
			item.StatusLabel = labelProcessing
		}
		return item
	}

	// Older daemons report only a tip height while broadcasting.
	if state.TipHeight > 0 {
		item.Progress = 25
		item.StatusLabel = labelBroadcasting
		return item
	}

	item.Progress = 25
	item.StatusLabel = labelProcessing
	return item
}

// selectTransaction prefers the attempt that actually reached the
// network over whatever happens to be last in the list.
func selectTransaction(transactions []bark.ExitTransaction) bark.ExitTransaction {
	for _, transaction := range transactions {
		if transaction.Status.Type == transactionStatusCPFP || transaction.Status.Type == transactionStatusBroadcast {
			return transaction
		}
	}
	return transactions[len(transactions)-1]
}

// MapRound classifies one pending round record.
func MapRound(round bark.PendingRound) ActivityItem {
	vtxoIDs := round.InputVtxos
	if vtxoIDs == nil {
		vtxoIDs = []string{}
	}
	item := ActivityItem{
		ID:      "round-" + round.ID.String(),
		Type:    ItemRound,
		Title:   roundTitle(round),
		VtxoIDs: vtxoIDs,
	}

	switch {
	case round.Kind == bark.RoundFinished:
		item.Progress = 100
		item.StatusLabel = labelCompleted
		item.Txid = round.RoundTxid
	case round.Kind == bark.RoundPendingConfirmation && round.RoundTxid != "":
		item.Progress = 80
		item.StatusLabel = labelMining
		item.Txid = round.RoundTxid
		item.Info = miningAdvisory
		item.IsMining = true
	case round.RoundTxid != "":
		item.Progress = 75
		item.StatusLabel = labelWaitingL1
		item.Txid = round.RoundTxid
	default:
		item.Progress = 75
		item.StatusLabel = labelWaitingASP
	}
	return item
}

func roundTitle(round bark.PendingRound) string {
	switch count := len(round.InputVtxos); {
	case count > 1:
		return fmt.Sprintf("Consolidating %d VTXOs", count)
	case count == 1:
		return fmt.Sprintf("Refreshing VTXO %s", truncateID(round.InputVtxos[0]))
	default:
		return fmt.Sprintf("Active Round: #%s", round.ID.String())
	}
}

// Feed assembles the full activity list, exits first.
func Feed(exits []bark.ExitProgress, rounds []bark.PendingRound, currentHeight int64) []ActivityItem {
	items := make([]ActivityItem, 0, len(exits)+len(rounds))
	for _, exit := range exits {
		items = append(items, MapExit(exit, currentHeight))
	}
	for _, round := range rounds {
		items = append(items, MapRound(round))
	}
	return items
}

func truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:4] + "..." + id[len(id)-4:]
}

func pluralBlocks(count int64) string {
	if count == 1 {
		return "block"
	}
	return "blocks"
}
