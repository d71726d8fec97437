package bark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func mustClient(test *testing.T, baseURL string) *Client {
	test.Helper()
	client, err := NewClient(Config{BaseURL: baseURL})
	if err != nil {
		test.Fatalf("new client: %v", err)
	}
	return client
}

func TestNewClientRejectsEmptyBaseURL(test *testing.T) {
	test.Parallel()
	if _, err := NewClient(Config{BaseURL: "  "}); err == nil {
		test.Fatalf("expected error for empty base url")
	}
}

func TestRequestsCarryAPIPrefix(test *testing.T) {
	test.Parallel()
	var seenPath string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seenPath = request.URL.Path
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"spendable_sat":1234}`))
	}))
	defer server.Close()
	client := mustClient(test, server.URL)

	balance, result := client.WalletBalance(context.Background())
	if !result.Success {
		test.Fatalf("expected success, got %q", result.Message)
	}
	if seenPath != "/api/v1/wallet/balance" {
		test.Fatalf("unexpected path %q", seenPath)
	}
	if balance.SpendableSat != 1234 {
		test.Fatalf("unexpected balance %d", balance.SpendableSat)
	}
}

func TestTransportFailureBecomesResult(test *testing.T) {
	test.Parallel()
	client := mustClient(test, "http://127.0.0.1:1")

	result := client.SyncWallet(context.Background())
	if result.Success {
		test.Fatalf("expected failure")
	}
	if result.Message != "daemon unreachable" {
		test.Fatalf("unexpected message %q", result.Message)
	}
}

func TestErrorMessageExtractionPreference(test *testing.T) {
	test.Parallel()
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{
			name:   "message field wins",
			status: http.StatusBadRequest,
			body:   `{"message":"insufficient funds","error":"ignored"}`,
			want:   "insufficient funds",
		},
		{
			name:   "error field as fallback",
			status: http.StatusBadRequest,
			body:   `{"error":"bad destination"}`,
			want:   "bad destination",
		},
		{
			name:   "short raw text",
			status: http.StatusInternalServerError,
			body:   "something broke",
			want:   "something broke",
		},
		{
			name:   "long raw text collapses to status line",
			status: http.StatusInternalServerError,
			body:   strings.Repeat("x", 500),
			want:   "request failed: 500",
		},
		{
			name:   "empty body collapses to status line",
			status: http.StatusBadGateway,
			body:   "",
			want:   "request failed: 502",
		},
	}
	for _, testCase := range cases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
				writer.WriteHeader(testCase.status)
				_, _ = writer.Write([]byte(testCase.body))
			}))
			defer server.Close()
			client := mustClient(test, server.URL)

			result := client.SyncWallet(context.Background())
			if result.Success {
				test.Fatalf("expected failure")
			}
			if result.Message != testCase.want {
				test.Fatalf("got %q, want %q", result.Message, testCase.want)
			}
		})
	}
}

func TestListEndpointsTreatNotFoundAsEmpty(test *testing.T) {
	test.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	client := mustClient(test, server.URL)

	vtxos, result := client.Vtxos(context.Background())
	if !result.Success {
		test.Fatalf("expected 404 list to succeed, got %q", result.Message)
	}
	if len(vtxos) != 0 {
		test.Fatalf("expected empty list, got %d", len(vtxos))
	}
}

func TestCreateLightningInvoiceRejectsMissingInvoice(test *testing.T) {
	test.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"payment_hash":"abc"}`))
	}))
	defer server.Close()
	client := mustClient(test, server.URL)

	invoice := client.CreateLightningInvoice(context.Background(), 1000, "Coffee")
	if invoice.Success {
		test.Fatalf("expected failure on missing invoice field")
	}
	if invoice.Message != "invalid response format from daemon" {
		test.Fatalf("unexpected message %q", invoice.Message)
	}
}

func TestCreateLightningInvoiceSuccess(test *testing.T) {
	test.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			test.Errorf("expected POST, got %s", request.Method)
		}
		var body map[string]any
		_ = json.NewDecoder(request.Body).Decode(&body)
		if body["amount_sat"].(float64) != 1000 {
			test.Errorf("unexpected amount %v", body["amount_sat"])
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"invoice":"lnbc10u1demo","payment_hash":"hash-xyz"}`))
	}))
	defer server.Close()
	client := mustClient(test, server.URL)

	invoice := client.CreateLightningInvoice(context.Background(), 1000, "Coffee")
	if !invoice.Success {
		test.Fatalf("expected success, got %q", invoice.Message)
	}
	if invoice.Invoice != "lnbc10u1demo" || invoice.PaymentHash != "hash-xyz" {
		test.Fatalf("unexpected result: %+v", invoice)
	}
}

func TestNextAddressRejectsMissingAddress(test *testing.T) {
	test.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{}`))
	}))
	defer server.Close()
	client := mustClient(test, server.URL)

	address := client.NextArkAddress(context.Background())
	if address.Success {
		test.Fatalf("expected failure on missing address field")
	}
}

func TestPayLightningOmitsZeroAmount(test *testing.T) {
	test.Parallel()
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		_ = json.NewDecoder(request.Body).Decode(&body)
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{}`))
	}))
	defer server.Close()
	client := mustClient(test, server.URL)

	if result := client.PayLightning(context.Background(), "lnbc1demo", 0); !result.Success {
		test.Fatalf("expected success, got %q", result.Message)
	}
	if _, present := body["amount_sat"]; present {
		test.Fatalf("zero amount must defer to the invoice amount")
	}
}
