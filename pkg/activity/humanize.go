package activity

import (
	"strings"

	"github.com/barkdesk/barkdesk/pkg/bark"
)

const labelBroadcastFailed = "Broadcast Failed"

// Known daemon error substrings mapped to guidance the operator can act
// on. Matching is ordered; first hit wins.
var knownErrors = []struct {
	substring string
	friendly  string
}{
	{"package-not-child-with-unconfirmed-parents", "Waiting for Parent Tx Propagation (Mempool Issue)"},
	{"min relay fee not met", "Network Rejected: Transaction value is too low (Dust). Try adding L1 funds or this coin may be unrecoverable."},
	{"bad-txns-inputs-missingorspent", "Conflict: This coin is already spent or invalid."},
	{"transaction failed", labelBroadcastFailed},
	{"dust", "Value too low for fees (Dust Error)"},
	{"insufficient-confirmed-funds", "Insufficient L1 Gas (Deposit BTC)"},
}

// HumanizeError swaps recognized daemon error text for friendlier
// guidance; unrecognized errors pass through verbatim.
func HumanizeError(message string) string {
	lowered := strings.ToLower(message)
	for _, known := range knownErrors {
		if strings.Contains(lowered, known.substring) {
			return known.friendly
		}
	}
	return message
}

// exitError joins every error signal an exit record can carry into one
// humanized string: the top-level error field, a literal
// "transaction failed" state, or a state-level errors array.
func exitError(exit bark.ExitProgress) string {
	if len(exit.Error) > 0 {
		if normalized := bark.NormalizeError(exit.Error); normalized != "" {
			return HumanizeError(normalized)
		}
	}

	if len(exit.State.Errors) > 0 {
		messages := make([]string, 0, len(exit.State.Errors))
		for _, raw := range exit.State.Errors {
			if normalized := bark.NormalizeError(raw); normalized != "" {
				messages = append(messages, HumanizeError(normalized))
			}
		}
		if len(messages) > 0 {
			return strings.Join(messages, "; ")
		}
	}

	if exit.State.Kind() == bark.ExitStateTransactionFailed {
		return labelBroadcastFailed
	}
	return ""
}
