package wallet

import (
	"errors"
	"strings"
	"testing"
)

func TestNewSendArkInputValidation(test *testing.T) {
	test.Parallel()
	if _, err := NewSendArkInput("short", 20_000, ""); !errors.Is(err, ErrInvalidSendInput) {
		test.Fatalf("expected short destination rejected, got %v", err)
	}
	if _, err := NewSendArkInput("ark1qvalidaddress", 9_999, ""); !errors.Is(err, ErrInvalidSendInput) {
		test.Fatalf("expected sub-minimum amount rejected, got %v", err)
	}
	input, err := NewSendArkInput("  ark1qvalidaddress  ", 10_000, "note")
	if err != nil {
		test.Fatalf("valid input rejected: %v", err)
	}
	if input.Destination != "ark1qvalidaddress" {
		test.Fatalf("destination not trimmed: %q", input.Destination)
	}
}

func TestNewSendOnchainInputEnforcesDustLimit(test *testing.T) {
	test.Parallel()
	_, err := NewSendOnchainInput("tb1qexampleaddress", 500)
	if !errors.Is(err, ErrInvalidSendInput) {
		test.Fatalf("expected dust amount rejected, got %v", err)
	}
	if !strings.Contains(err.Error(), "546") {
		test.Fatalf("dust error should name the limit, got %q", err.Error())
	}
	if _, err := NewSendOnchainInput("tb1qexampleaddress", 546); err != nil {
		test.Fatalf("546 sats should pass: %v", err)
	}
}

func TestNewSendOnchainInputAddressPrefixes(test *testing.T) {
	test.Parallel()
	for _, destination := range []string{"tb1qaddr", "maddr123", "naddr123"} {
		if _, err := NewSendOnchainInput(destination, 1000); err != nil {
			test.Fatalf("prefix %q should pass: %v", destination, err)
		}
	}
	if _, err := NewSendOnchainInput("bc1qmainnet", 1000); !errors.Is(err, ErrInvalidSendInput) {
		test.Fatalf("mainnet prefix should be rejected, got %v", err)
	}
}

func TestNewSendLightningInputRequiresInvoicePrefix(test *testing.T) {
	test.Parallel()
	if _, err := NewSendLightningInput("tb1qnotaninvoice", 0); !errors.Is(err, ErrInvalidSendInput) {
		test.Fatalf("expected non-invoice rejected, got %v", err)
	}
	input, err := NewSendLightningInput("lnbc10u1demo", 0)
	if err != nil {
		test.Fatalf("zero-amount invoice should pass: %v", err)
	}
	if input.AmountSat != 0 {
		test.Fatalf("unexpected amount %d", input.AmountSat)
	}
}

func TestNewInvoiceInputMinimum(test *testing.T) {
	test.Parallel()
	if _, err := NewInvoiceInput(0, ""); !errors.Is(err, ErrInvalidSendInput) {
		test.Fatalf("expected zero-sat invoice rejected, got %v", err)
	}
	if _, err := NewInvoiceInput(1, "smallest"); err != nil {
		test.Fatalf("one-sat invoice should pass: %v", err)
	}
}

func TestNewClaimInputValidation(test *testing.T) {
	test.Parallel()
	if _, err := NewClaimInput(nil, "tb1qaddr"); !errors.Is(err, ErrInvalidSendInput) {
		test.Fatalf("expected empty vtxo set rejected, got %v", err)
	}
	if _, err := NewClaimInput([]string{"vtxo-1"}, "bc1qwrong"); !errors.Is(err, ErrInvalidSendInput) {
		test.Fatalf("expected bad destination rejected, got %v", err)
	}
	if _, err := NewClaimInput([]string{"vtxo-1"}, "tb1qaddr"); err != nil {
		test.Fatalf("valid claim rejected: %v", err)
	}
}
