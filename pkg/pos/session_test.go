package pos

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeGateway struct {
	mu          sync.Mutex
	invoice     string
	paymentHash string
	createErr   error
	status      string
	statusErr   error
	address     string
	addressErr  error
	vtxoCount   int
	vtxoErr     error
}

func (gateway *fakeGateway) CreateInvoice(_ context.Context, _ int64, _ string) (string, string, error) {
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if gateway.createErr != nil {
		return "", "", gateway.createErr
	}
	return gateway.invoice, gateway.paymentHash, nil
}

func (gateway *fakeGateway) ReceiveStatus(_ context.Context, _ string) (string, error) {
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if gateway.statusErr != nil {
		return "", gateway.statusErr
	}
	return gateway.status, nil
}

func (gateway *fakeGateway) NextArkAddress(_ context.Context) (string, error) {
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if gateway.addressErr != nil {
		return "", gateway.addressErr
	}
	return gateway.address, nil
}

func (gateway *fakeGateway) VtxoCount(_ context.Context) (int, error) {
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if gateway.vtxoErr != nil {
		return 0, gateway.vtxoErr
	}
	return gateway.vtxoCount, nil
}

func (gateway *fakeGateway) setStatus(status string) {
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	gateway.status = status
}

func (gateway *fakeGateway) setVtxoCount(count int) {
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	gateway.vtxoCount = count
}

func mustSession(test *testing.T, gateway Gateway) *Session {
	test.Helper()
	session, err := NewSession(gateway, WithPollInterval(5*time.Millisecond))
	if err != nil {
		test.Fatalf("new session: %v", err)
	}
	test.Cleanup(session.Close)
	return session
}

func waitForState(test *testing.T, session *Session, want State) Snapshot {
	test.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snapshot := session.Snapshot()
		if snapshot.State == want {
			return snapshot
		}
		time.Sleep(time.Millisecond)
	}
	test.Fatalf("session never reached state %s, last state %s", want, session.Snapshot().State)
	return Snapshot{}
}

func TestLightningPaymentSettles(test *testing.T) {
	test.Parallel()
	gateway := &fakeGateway{invoice: "lnbc100n1", paymentHash: "hash-1", status: "pending"}
	session := mustSession(test, gateway)

	if err := session.StartTransaction(context.Background(), 100, ModeLightning, "Latte"); err != nil {
		test.Fatalf("start transaction: %v", err)
	}
	snapshot := waitForState(test, session, StateAwaitingPayment)
	if snapshot.Invoice != "lnbc100n1" || snapshot.PaymentHash != "hash-1" {
		test.Fatalf("unexpected snapshot: %+v", snapshot)
	}

	gateway.setStatus("settled")
	waitForState(test, session, StatePaid)
}

func TestLightningPaymentExpires(test *testing.T) {
	test.Parallel()
	gateway := &fakeGateway{invoice: "lnbc100n1", paymentHash: "hash-2", status: "pending"}
	session := mustSession(test, gateway)

	if err := session.StartTransaction(context.Background(), 100, ModeLightning, ""); err != nil {
		test.Fatalf("start transaction: %v", err)
	}
	waitForState(test, session, StateAwaitingPayment)

	gateway.setStatus("expired")
	snapshot := waitForState(test, session, StateError)
	if snapshot.Error != "Payment expired" {
		test.Fatalf("unexpected error message %q", snapshot.Error)
	}
}

func TestLightningStatusCheckFailure(test *testing.T) {
	test.Parallel()
	gateway := &fakeGateway{invoice: "lnbc100n1", paymentHash: "hash-3", status: "pending"}
	session := mustSession(test, gateway)

	if err := session.StartTransaction(context.Background(), 100, ModeLightning, ""); err != nil {
		test.Fatalf("start transaction: %v", err)
	}
	waitForState(test, session, StateAwaitingPayment)

	gateway.mu.Lock()
	gateway.statusErr = fmt.Errorf("daemon gone")
	gateway.mu.Unlock()
	snapshot := waitForState(test, session, StateError)
	if snapshot.Error != "Failed to check payment status" {
		test.Fatalf("unexpected error message %q", snapshot.Error)
	}
}

func TestLightningMissingPaymentHash(test *testing.T) {
	test.Parallel()
	gateway := &fakeGateway{invoice: "lnbc100n1", paymentHash: ""}
	session := mustSession(test, gateway)

	if err := session.StartTransaction(context.Background(), 100, ModeLightning, ""); err != nil {
		test.Fatalf("start transaction: %v", err)
	}
	snapshot := waitForState(test, session, StateError)
	if snapshot.Error != "Payment hash not returned from server" {
		test.Fatalf("unexpected error message %q", snapshot.Error)
	}
}

func TestAmountBelowOneSatFailsUpFront(test *testing.T) {
	test.Parallel()
	gateway := &fakeGateway{}
	session := mustSession(test, gateway)

	if err := session.StartTransaction(context.Background(), 0, ModeLightning, ""); err != nil {
		test.Fatalf("start transaction: %v", err)
	}
	snapshot := waitForState(test, session, StateError)
	if snapshot.Error == "" {
		test.Fatalf("expected an error message")
	}
}

func TestArkPaymentDetectedByCoinCount(test *testing.T) {
	test.Parallel()
	gateway := &fakeGateway{address: "ark1qdemoaddress", vtxoCount: 2}
	session := mustSession(test, gateway)

	if err := session.StartTransaction(context.Background(), 1000, ModeArk, ""); err != nil {
		test.Fatalf("start transaction: %v", err)
	}
	snapshot := waitForState(test, session, StateAwaitingPayment)
	if snapshot.Invoice != "ark1qdemoaddress" {
		test.Fatalf("expected address as displayed invoice, got %q", snapshot.Invoice)
	}

	// Same count: still waiting.
	time.Sleep(25 * time.Millisecond)
	if session.Snapshot().State != StateAwaitingPayment {
		test.Fatalf("session should still await payment at unchanged coin count")
	}

	gateway.setVtxoCount(3)
	waitForState(test, session, StatePaid)
}

func TestResetStopsPolling(test *testing.T) {
	test.Parallel()
	gateway := &fakeGateway{invoice: "lnbc100n1", paymentHash: "hash-4", status: "pending"}
	session := mustSession(test, gateway)

	if err := session.StartTransaction(context.Background(), 100, ModeLightning, ""); err != nil {
		test.Fatalf("start transaction: %v", err)
	}
	waitForState(test, session, StateAwaitingPayment)

	session.Reset()
	gateway.setStatus("settled")

	// Give any stale poll goroutine time to fire; the reset session must
	// stay idle regardless.
	time.Sleep(50 * time.Millisecond)
	snapshot := session.Snapshot()
	if snapshot.State != StateIdle {
		test.Fatalf("expected idle after reset, got %s", snapshot.State)
	}
	if snapshot.Invoice != "" || snapshot.PaymentHash != "" || snapshot.Error != "" {
		test.Fatalf("expected cleared snapshot, got %+v", snapshot)
	}
}

func TestRestartFencesPriorAttempt(test *testing.T) {
	test.Parallel()
	gateway := &fakeGateway{invoice: "lnbc100n1", paymentHash: "hash-5", status: "pending"}
	session := mustSession(test, gateway)

	if err := session.StartTransaction(context.Background(), 100, ModeLightning, ""); err != nil {
		test.Fatalf("first start: %v", err)
	}
	waitForState(test, session, StateAwaitingPayment)

	gateway.mu.Lock()
	gateway.paymentHash = "hash-6"
	gateway.mu.Unlock()
	if err := session.StartTransaction(context.Background(), 200, ModeLightning, ""); err != nil {
		test.Fatalf("second start: %v", err)
	}
	snapshot := waitForState(test, session, StateAwaitingPayment)
	if snapshot.PaymentHash != "hash-6" {
		test.Fatalf("expected second attempt hash, got %q", snapshot.PaymentHash)
	}

	gateway.setStatus("settled")
	waitForState(test, session, StatePaid)
}

func TestClosedSessionRejectsStart(test *testing.T) {
	test.Parallel()
	gateway := &fakeGateway{}
	session, err := NewSession(gateway, WithPollInterval(5*time.Millisecond))
	if err != nil {
		test.Fatalf("new session: %v", err)
	}
	session.Close()

	if err := session.StartTransaction(context.Background(), 100, ModeLightning, ""); !errors.Is(err, ErrSessionClosed) {
		test.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestParseModeRejectsUnknown(test *testing.T) {
	test.Parallel()
	if _, err := ParseMode("onchain"); !errors.Is(err, ErrInvalidMode) {
		test.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	mode, err := ParseMode("lightning")
	if err != nil || mode != ModeLightning {
		test.Fatalf("unexpected parse result %v %v", mode, err)
	}
}
