package gormstore

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/barkdesk/barkdesk/pkg/charges"
)

func newTestStore(test *testing.T) *Store {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		test.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		test.Fatalf("db handle: %v", err)
	}
	// One connection keeps every statement on the same in-memory
	// database.
	sqlDB.SetMaxOpenConns(1)
	test.Cleanup(func() { _ = sqlDB.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		test.Fatalf("migrate: %v", err)
	}
	return store
}

func mustChargeInput(test *testing.T, hash string, webhookURL string) charges.NewChargeInput {
	test.Helper()
	amount, err := charges.NewAmountSat(5000)
	if err != nil {
		test.Fatalf("amount: %v", err)
	}
	paymentHash, err := charges.NewPaymentHash(hash)
	if err != nil {
		test.Fatalf("payment hash: %v", err)
	}
	webhook, err := charges.NewWebhookURL(webhookURL)
	if err != nil {
		test.Fatalf("webhook url: %v", err)
	}
	metadata, err := charges.NewMetadataJSON(`{"order":"42"}`)
	if err != nil {
		test.Fatalf("metadata: %v", err)
	}
	return charges.NewChargeInput{
		AmountSat:   amount,
		Description: "Coffee",
		WebhookURL:  webhook,
		Metadata:    metadata,
		PaymentHash: paymentHash,
		Invoice:     "lnbc5000n1demo",
	}
}

func TestCreateChargeRoundTrip(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)

	created, err := store.CreateCharge(context.Background(), mustChargeInput(test, "hash-1", "https://merchant.example/hook"))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		test.Fatalf("expected generated charge id")
	}
	if created.Status != charges.ChargeStatusPending || created.WebhookStatus != charges.WebhookStatusPending {
		test.Fatalf("charge must start pending/pending: %+v", created)
	}

	fetched, err := store.GetCharge(context.Background(), created.ID)
	if err != nil {
		test.Fatalf("get: %v", err)
	}
	if fetched.PaymentHash.String() != "hash-1" || fetched.Invoice != "lnbc5000n1demo" {
		test.Fatalf("unexpected round trip: %+v", fetched)
	}
	if fetched.Metadata.String() != `{"order":"42"}` {
		test.Fatalf("unexpected metadata %q", fetched.Metadata.String())
	}
	if !fetched.WebhookURL.IsSet() || fetched.WebhookURL.String() != "https://merchant.example/hook" {
		test.Fatalf("unexpected webhook url: %+v", fetched.WebhookURL)
	}
}

func TestCreateChargeWithoutWebhookURL(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)

	created, err := store.CreateCharge(context.Background(), mustChargeInput(test, "hash-2", ""))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if created.WebhookURL.IsSet() {
		test.Fatalf("expected unset webhook url")
	}
}

func TestCreateChargeDuplicatePaymentHash(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)

	if _, err := store.CreateCharge(context.Background(), mustChargeInput(test, "hash-3", "")); err != nil {
		test.Fatalf("first create: %v", err)
	}
	_, err := store.CreateCharge(context.Background(), mustChargeInput(test, "hash-3", ""))
	if !errors.Is(err, charges.ErrDuplicatePaymentHash) {
		test.Fatalf("expected ErrDuplicatePaymentHash, got %v", err)
	}
}

func TestGetChargeNotFound(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)

	if _, err := store.GetCharge(context.Background(), "missing"); !errors.Is(err, charges.ErrChargeNotFound) {
		test.Fatalf("expected ErrChargeNotFound, got %v", err)
	}
}

func TestMarkChargePaidWinsExactlyOnce(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)

	created, err := store.CreateCharge(context.Background(), mustChargeInput(test, "hash-4", ""))
	if err != nil {
		test.Fatalf("create: %v", err)
	}

	first, won, err := store.MarkChargePaid(context.Background(), created.ID)
	if err != nil {
		test.Fatalf("first mark paid: %v", err)
	}
	if !won {
		test.Fatalf("first transition should win")
	}
	if first.Status != charges.ChargeStatusPaid {
		test.Fatalf("expected paid, got %s", first.Status)
	}

	second, won, err := store.MarkChargePaid(context.Background(), created.ID)
	if err != nil {
		test.Fatalf("second mark paid: %v", err)
	}
	if won {
		test.Fatalf("second transition must not win")
	}
	if second.Status != charges.ChargeStatusPaid {
		test.Fatalf("status must stay paid, got %s", second.Status)
	}
}

func TestMarkChargePaidUnknownCharge(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)

	if _, _, err := store.MarkChargePaid(context.Background(), "missing"); !errors.Is(err, charges.ErrChargeNotFound) {
		test.Fatalf("expected ErrChargeNotFound, got %v", err)
	}
}

func TestSetWebhookStatusRecordsOutcomeOnce(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)

	created, err := store.CreateCharge(context.Background(), mustChargeInput(test, "hash-5", "https://merchant.example/hook"))
	if err != nil {
		test.Fatalf("create: %v", err)
	}
	if err := store.SetWebhookStatus(context.Background(), created.ID, charges.WebhookStatusFailed); err != nil {
		test.Fatalf("set webhook status: %v", err)
	}
	// The outcome is recorded once; later attempts are no-ops.
	if err := store.SetWebhookStatus(context.Background(), created.ID, charges.WebhookStatusSuccess); err != nil {
		test.Fatalf("repeated set webhook status: %v", err)
	}
	fetched, err := store.GetCharge(context.Background(), created.ID)
	if err != nil {
		test.Fatalf("get: %v", err)
	}
	if fetched.WebhookStatus != charges.WebhookStatusFailed {
		test.Fatalf("expected first outcome kept, got %s", fetched.WebhookStatus)
	}
}

func TestListPendingChargesExcludesPaid(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)

	pendingCharge, err := store.CreateCharge(context.Background(), mustChargeInput(test, "hash-6", ""))
	if err != nil {
		test.Fatalf("create pending: %v", err)
	}
	paidCharge, err := store.CreateCharge(context.Background(), mustChargeInput(test, "hash-7", ""))
	if err != nil {
		test.Fatalf("create paid: %v", err)
	}
	if _, _, err := store.MarkChargePaid(context.Background(), paidCharge.ID); err != nil {
		test.Fatalf("mark paid: %v", err)
	}

	pending, err := store.ListPendingCharges(context.Background())
	if err != nil {
		test.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != pendingCharge.ID {
		test.Fatalf("unexpected pending set: %+v", pending)
	}
}

func TestFindActiveAPIKey(test *testing.T) {
	test.Parallel()
	store := newTestStore(test)

	if err := store.InsertAPIKey(context.Background(), "live-key", "terminal 1", true); err != nil {
		test.Fatalf("insert active key: %v", err)
	}
	if err := store.InsertAPIKey(context.Background(), "revoked-key", "old terminal", false); err != nil {
		test.Fatalf("insert revoked key: %v", err)
	}

	active, err := store.FindActiveAPIKey(context.Background(), "live-key")
	if err != nil || !active {
		test.Fatalf("expected live key active, got active=%v err=%v", active, err)
	}
	active, err = store.FindActiveAPIKey(context.Background(), "revoked-key")
	if err != nil || active {
		test.Fatalf("expected revoked key inactive, got active=%v err=%v", active, err)
	}
	active, err = store.FindActiveAPIKey(context.Background(), "missing")
	if err != nil || active {
		test.Fatalf("expected unknown key inactive, got active=%v err=%v", active, err)
	}
}
