package charges

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

func mustCreateCharge(test *testing.T, service *Service, gateway *stubGateway, hash string, webhookURL string) Charge {
	test.Helper()
	gateway.mu.Lock()
	gateway.invoice = "ln-" + hash
	gateway.paymentHash = hash
	gateway.mu.Unlock()
	charge, err := service.Create(context.Background(), CreateInput{
		AmountSat:   5000,
		Description: "Coffee",
		WebhookURL:  webhookURL,
		Metadata:    `{"order":"42"}`,
	})
	if err != nil {
		test.Fatalf("create charge: %v", err)
	}
	return charge
}

func TestProcessWebhooksSettlesAndDelivers(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	gateway := &stubGateway{statusByHash: map[string]string{"hash-a": "settled"}}
	sender := &recordingSender{}
	service := mustNewService(test, store, gateway, sender)
	charge := mustCreateCharge(test, service, gateway, "hash-a", "https://merchant.example/hook")

	stats, err := service.ProcessWebhooks(context.Background())
	if err != nil {
		test.Fatalf("process webhooks: %v", err)
	}
	if stats.Processed != 1 || stats.Settled != 1 || stats.WebhooksSent != 1 {
		test.Fatalf("unexpected stats: %+v", stats)
	}
	updated := store.mustGet(test, charge.ID)
	if updated.Status != ChargeStatusPaid {
		test.Fatalf("expected paid, got %s", updated.Status)
	}
	if updated.WebhookStatus != WebhookStatusSuccess {
		test.Fatalf("expected webhook success, got %s", updated.WebhookStatus)
	}
	if sender.deliveries() != 1 {
		test.Fatalf("expected exactly one delivery, got %d", sender.deliveries())
	}
	payload := sender.payloads[0]
	if payload.AmountSat != 5000 || payload.Status != "paid" || payload.PaymentHash != "hash-a" {
		test.Fatalf("unexpected payload: %+v", payload)
	}
	if string(payload.Metadata) != `{"order":"42"}` {
		test.Fatalf("unexpected payload metadata: %s", payload.Metadata)
	}
}

func TestProcessWebhooksWithoutWebhookURL(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	gateway := &stubGateway{statusByHash: map[string]string{"hash-b": "settled"}}
	sender := &recordingSender{}
	service := mustNewService(test, store, gateway, sender)
	charge := mustCreateCharge(test, service, gateway, "hash-b", "")

	stats, err := service.ProcessWebhooks(context.Background())
	if err != nil {
		test.Fatalf("process webhooks: %v", err)
	}
	if stats.Settled != 1 || stats.WebhooksSent != 0 {
		test.Fatalf("unexpected stats: %+v", stats)
	}
	updated := store.mustGet(test, charge.ID)
	if updated.Status != ChargeStatusPaid {
		test.Fatalf("expected paid, got %s", updated.Status)
	}
	if updated.WebhookStatus != WebhookStatusPending {
		test.Fatalf("expected webhook status untouched, got %s", updated.WebhookStatus)
	}
	if sender.deliveries() != 0 {
		test.Fatalf("expected no deliveries, got %d", sender.deliveries())
	}
}

func TestProcessWebhooksRecordsDeliveryFailure(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	gateway := &stubGateway{statusByHash: map[string]string{"hash-c": "settled"}}
	sender := &recordingSender{err: fmt.Errorf("merchant endpoint down")}
	service := mustNewService(test, store, gateway, sender)
	charge := mustCreateCharge(test, service, gateway, "hash-c", "https://merchant.example/hook")

	stats, err := service.ProcessWebhooks(context.Background())
	if err != nil {
		test.Fatalf("process webhooks: %v", err)
	}
	if stats.Settled != 1 || stats.WebhooksSent != 0 {
		test.Fatalf("unexpected stats: %+v", stats)
	}
	updated := store.mustGet(test, charge.ID)
	if updated.Status != ChargeStatusPaid {
		test.Fatalf("expected charge to stay paid, got %s", updated.Status)
	}
	if updated.WebhookStatus != WebhookStatusFailed {
		test.Fatalf("expected webhook failed, got %s", updated.WebhookStatus)
	}
	if sender.deliveries() != 1 {
		test.Fatalf("expected exactly one attempt, got %d", sender.deliveries())
	}

	// A second pass must not retry: the charge already left pending.
	if _, err := service.ProcessWebhooks(context.Background()); err != nil {
		test.Fatalf("second pass: %v", err)
	}
	if sender.deliveries() != 1 {
		test.Fatalf("expected no retry, got %d deliveries", sender.deliveries())
	}
}

func TestProcessWebhooksSkipsUnsettledCharges(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	gateway := &stubGateway{statusByHash: map[string]string{"hash-d": "pending"}}
	sender := &recordingSender{}
	service := mustNewService(test, store, gateway, sender)
	charge := mustCreateCharge(test, service, gateway, "hash-d", "https://merchant.example/hook")

	stats, err := service.ProcessWebhooks(context.Background())
	if err != nil {
		test.Fatalf("process webhooks: %v", err)
	}
	if stats.Processed != 1 || stats.Settled != 0 || stats.WebhooksSent != 0 {
		test.Fatalf("unexpected stats: %+v", stats)
	}
	if store.mustGet(test, charge.ID).Status != ChargeStatusPending {
		test.Fatalf("charge should remain pending")
	}
}

func TestProcessWebhooksKeepsChargePendingWhenDaemonUnreachable(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	gateway := &stubGateway{}
	sender := &recordingSender{}
	service := mustNewService(test, store, gateway, sender)
	charge := mustCreateCharge(test, service, gateway, "hash-e", "https://merchant.example/hook")
	gateway.mu.Lock()
	gateway.statusErr = fmt.Errorf("connection refused")
	gateway.mu.Unlock()

	stats, err := service.ProcessWebhooks(context.Background())
	if err != nil {
		test.Fatalf("process webhooks: %v", err)
	}
	if stats.Settled != 0 || stats.WebhooksSent != 0 {
		test.Fatalf("unexpected stats: %+v", stats)
	}
	if store.mustGet(test, charge.ID).Status != ChargeStatusPending {
		test.Fatalf("charge should remain pending for the next pass")
	}
	if sender.deliveries() != 0 {
		test.Fatalf("expected no deliveries, got %d", sender.deliveries())
	}
}

func TestProcessWebhooksIsolatesPerChargeFailures(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	gateway := &stubGateway{statusByHash: map[string]string{
		"hash-good": "settled",
		"hash-bad":  "",
	}}
	sender := &recordingSender{}
	service := mustNewService(test, store, gateway, sender)
	bad := mustCreateCharge(test, service, gateway, "hash-bad", "")
	good := mustCreateCharge(test, service, gateway, "hash-good", "https://merchant.example/hook")

	stats, err := service.ProcessWebhooks(context.Background())
	if err != nil {
		test.Fatalf("process webhooks: %v", err)
	}
	if stats.Processed != 2 || stats.Settled != 1 {
		test.Fatalf("unexpected stats: %+v", stats)
	}
	if store.mustGet(test, good.ID).Status != ChargeStatusPaid {
		test.Fatalf("settled charge should be paid")
	}
	if store.mustGet(test, bad.ID).Status != ChargeStatusPending {
		test.Fatalf("unsettled charge should stay pending")
	}
}

func TestProcessWebhooksReturnsErrorOnListFailure(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	store.listErr = fmt.Errorf("database gone")
	service := mustNewService(test, store, &stubGateway{}, &recordingSender{})

	_, err := service.ProcessWebhooks(context.Background())
	if err == nil {
		test.Fatalf("expected error when pending set cannot be loaded")
	}
	var operationError OperationError
	if !errors.As(err, &operationError) {
		test.Fatalf("expected OperationError, got %T", err)
	}
}

func TestConcurrentPassesDeliverAtMostOnce(test *testing.T) {
	test.Parallel()
	store := newStubStore()
	gateway := &stubGateway{statusByHash: map[string]string{"hash-f": "settled"}}
	sender := &recordingSender{}
	service := mustNewService(test, store, gateway, sender)
	mustCreateCharge(test, service, gateway, "hash-f", "https://merchant.example/hook")

	var group sync.WaitGroup
	for range [8]struct{}{} {
		group.Add(1)
		go func() {
			defer group.Done()
			_, _ = service.ProcessWebhooks(context.Background())
		}()
	}
	group.Wait()

	if sender.deliveries() != 1 {
		test.Fatalf("expected exactly one webhook across concurrent passes, got %d", sender.deliveries())
	}
}
