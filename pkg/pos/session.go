// Package pos drives a point-of-sale checkout session: one state
// machine unifying Lightning settlement polling and Ark coin-count
// polling behind the same lifecycle.
package pos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the session lifecycle. Paid and error are terminal until an
// explicit Reset returns the session to idle.
type State string

const (
	StateIdle            State = "idle"
	StateCreating        State = "creating"
	StateAwaitingPayment State = "awaiting_payment"
	StatePaid            State = "paid"
	StateError           State = "error"
)

// Mode selects the payment rail and with it the completion-detection
// strategy.
type Mode string

const (
	ModeLightning Mode = "lightning"
	ModeArk       Mode = "ark"
)

// ParseMode validates a payment mode.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeLightning, ModeArk:
		return Mode(raw), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, raw)
	}
}

const (
	defaultPollInterval = 2 * time.Second

	messageStatusCheckFailed = "Failed to check payment status"
	messagePaymentExpired    = "Payment expired"
	messageMissingHash       = "Payment hash not returned from server"
	defaultDescription       = "POS Payment"

	statusSettled = "settled"
	statusExpired = "expired"
)

// Gateway is the slice of the daemon client a session polls against.
type Gateway interface {
	CreateInvoice(ctx context.Context, amountSat int64, description string) (invoice string, paymentHash string, err error)
	ReceiveStatus(ctx context.Context, paymentHash string) (status string, err error)
	NextArkAddress(ctx context.Context) (address string, err error)
	VtxoCount(ctx context.Context) (int, error)
}

// Session is one POS transaction attempt. All state access is guarded
// by the mutex; the generation counter fences poll goroutines so a
// cancelled poll can never write into a session that has moved on.
type Session struct {
	gateway  Gateway
	interval time.Duration
	logger   *zap.Logger

	mu           sync.Mutex
	state        State
	mode         Mode
	invoice      string
	paymentHash  string
	errorMessage string
	generation   uint64
	cancelPoll   context.CancelFunc
	closed       bool
}

// SessionOption configures a Session instance.
type SessionOption func(*Session)

// WithPollInterval overrides the 2-second poll cadence (used by tests).
func WithPollInterval(interval time.Duration) SessionOption {
	return func(session *Session) {
		if interval > 0 {
			session.interval = interval
		}
	}
}

// WithSessionLogger wires a structured logger.
func WithSessionLogger(logger *zap.Logger) SessionOption {
	return func(session *Session) {
		session.logger = logger
	}
}

// NewSession wires a Session.
func NewSession(gateway Gateway, options ...SessionOption) (*Session, error) {
	if gateway == nil {
		return nil, fmt.Errorf("%w: gateway dependency is nil", ErrInvalidSessionConfig)
	}
	session := &Session{
		gateway:  gateway,
		interval: defaultPollInterval,
		logger:   zap.NewNop(),
		state:    StateIdle,
	}
	for _, option := range options {
		if option != nil {
			option(session)
		}
	}
	return session, nil
}

// Snapshot is a copied view of the session state.
type Snapshot struct {
	State       State  `json:"state"`
	Mode        Mode   `json:"mode,omitempty"`
	Invoice     string `json:"invoice,omitempty"`
	PaymentHash string `json:"paymentHash,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Snapshot returns the current session view.
func (session *Session) Snapshot() Snapshot {
	session.mu.Lock()
	defer session.mu.Unlock()
	return Snapshot{
		State:       session.state,
		Mode:        session.mode,
		Invoice:     session.invoice,
		PaymentHash: session.paymentHash,
		Error:       session.errorMessage,
	}
}

// StartTransaction begins a new payment attempt, implicitly cancelling
// any poll loop from a prior attempt. For Lightning it requests an
// invoice and polls settlement by hash; for Ark it snapshots the coin
// count, requests a fresh address, and polls for a new coin.
func (session *Session) StartTransaction(ctx context.Context, amountSat int64, mode Mode, description string) error {
	if description == "" {
		description = defaultDescription
	}

	session.mu.Lock()
	if session.closed {
		session.mu.Unlock()
		return ErrSessionClosed
	}
	session.stopPollLocked()
	session.generation++
	generation := session.generation
	session.state = StateCreating
	session.mode = mode
	session.invoice = ""
	session.paymentHash = ""
	session.errorMessage = ""
	session.mu.Unlock()

	if amountSat < 1 {
		session.fail(generation, "Amount must be at least 1 sat")
		return nil
	}

	switch mode {
	case ModeLightning:
		session.startLightning(ctx, generation, amountSat, description)
	case ModeArk:
		session.startArk(ctx, generation)
	default:
		session.fail(generation, fmt.Sprintf("unsupported payment mode %q", mode))
	}
	return nil
}

func (session *Session) startLightning(ctx context.Context, generation uint64, amountSat int64, description string) {
	invoice, paymentHash, err := session.gateway.CreateInvoice(ctx, amountSat, description)
	if err != nil {
		session.fail(generation, err.Error())
		return
	}
	if paymentHash == "" {
		session.fail(generation, messageMissingHash)
		return
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.generation != generation {
		return
	}
	session.invoice = invoice
	session.paymentHash = paymentHash
	session.state = StateAwaitingPayment
	pollCtx, cancel := context.WithCancel(context.Background())
	session.cancelPoll = cancel
	go session.pollLightning(pollCtx, generation, paymentHash)
}

func (session *Session) startArk(ctx context.Context, generation uint64) {
	initialCount, err := session.gateway.VtxoCount(ctx)
	if err != nil {
		session.fail(generation, err.Error())
		return
	}
	address, err := session.gateway.NextArkAddress(ctx)
	if err != nil {
		session.fail(generation, err.Error())
		return
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.generation != generation {
		return
	}
	// The address doubles as the displayed "invoice".
	session.invoice = address
	session.state = StateAwaitingPayment
	pollCtx, cancel := context.WithCancel(context.Background())
	session.cancelPoll = cancel
	go session.pollArk(pollCtx, generation, initialCount)
}

// pollLightning polls settlement status every interval until settled,
// expired, failed, or cancelled.
func (session *Session) pollLightning(ctx context.Context, generation uint64, paymentHash string) {
	ticker := time.NewTicker(session.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := session.gateway.ReceiveStatus(ctx, paymentHash)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			session.finishPoll(generation, StateError, messageStatusCheckFailed)
			return
		}
		switch status {
		case statusSettled:
			session.finishPoll(generation, StatePaid, "")
			return
		case statusExpired:
			session.finishPoll(generation, StateError, messagePaymentExpired)
			return
		}
		// Any other status (e.g. pending): keep polling.
	}
}

// pollArk re-fetches the coin list every interval; a count above the
// snapshot means a payment landed.
func (session *Session) pollArk(ctx context.Context, generation uint64, initialCount int) {
	ticker := time.NewTicker(session.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		count, err := session.gateway.VtxoCount(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			session.finishPoll(generation, StateError, messageStatusCheckFailed)
			return
		}
		if count > initialCount {
			session.finishPoll(generation, StatePaid, "")
			return
		}
	}
}

// finishPoll applies a terminal poll outcome unless the session has
// been reset or restarted since the poll began.
func (session *Session) finishPoll(generation uint64, state State, message string) {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.generation != generation || session.state != StateAwaitingPayment {
		return
	}
	session.stopPollLocked()
	session.state = state
	session.errorMessage = message
}

// fail moves the in-flight attempt into the error state.
func (session *Session) fail(generation uint64, message string) {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.generation != generation {
		return
	}
	session.state = StateError
	session.errorMessage = message
}

// Reset cancels any active poll and returns the session to idle. No
// status check or state write from a cancelled poll lands afterward.
func (session *Session) Reset() {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.stopPollLocked()
	session.generation++
	session.state = StateIdle
	session.mode = ""
	session.invoice = ""
	session.paymentHash = ""
	session.errorMessage = ""
}

// Close tears the session down; it cannot be restarted afterward.
func (session *Session) Close() {
	session.mu.Lock()
	defer session.mu.Unlock()
	session.stopPollLocked()
	session.generation++
	session.closed = true
	session.state = StateIdle
}

func (session *Session) stopPollLocked() {
	if session.cancelPoll != nil {
		session.cancelPoll()
		session.cancelPoll = nil
	}
}
