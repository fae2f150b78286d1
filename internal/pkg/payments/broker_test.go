package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/academyhq/academy-server/app/models"
)

func newTestBroker(t *testing.T) (*Broker, *fakeRepo, *int64) {
	t.Helper()

	var providerCalls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&providerCalls, 1)
		switch r.URL.Path {
		case "/orders":
			json.NewEncoder(w).Encode(map[string]interface{}{"document": "doc-1"})
		case "/checkout/links":
			json.NewEncoder(w).Encode(map[string]string{"payment_url": "https://pay.example/l/code1", "code": "code1"})
		case "/tokens":
			json.NewEncoder(w).Encode(map[string]string{"token": "t", "card_token": "ct"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	repo := newFakeRepo()
	broker := NewBroker(repo, newTestWalletClient(srv.URL), newTestCardClient(srv.URL), "https://academy.example.com")
	return broker, repo, &providerCalls
}

func validWalletInput() *CreateOrderInput {
	return &CreateOrderInput{
		ExternalID:   "ORD-1",
		Amount:       50,
		Description:  "monthly fee",
		SessionToken: "tok-1",
		SessionEpoch: 1700000000,
	}
}

func TestBrokerRejectsInvalidInputBeforeProviderCall(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		mutate   func(*CreateOrderInput)
	}{
		{name: "wallet amount below minimum", provider: models.PaymentProviderWallet, mutate: func(in *CreateOrderInput) { in.Amount = 0 }},
		{name: "empty description", provider: models.PaymentProviderWallet, mutate: func(in *CreateOrderInput) { in.Description = "   " }},
		{name: "wallet order id too long", provider: models.PaymentProviderWallet, mutate: func(in *CreateOrderInput) { in.ExternalID = strings.Repeat("A", 16) }},
		{name: "wallet order id missing", provider: models.PaymentProviderWallet, mutate: func(in *CreateOrderInput) { in.ExternalID = "" }},
		{name: "wallet session missing", provider: models.PaymentProviderWallet, mutate: func(in *CreateOrderInput) { in.SessionToken = "" }},
		{name: "wallet epoch missing", provider: models.PaymentProviderWallet, mutate: func(in *CreateOrderInput) { in.SessionEpoch = 0 }},
		{name: "card amount below minimum", provider: models.PaymentProviderCard, mutate: func(in *CreateOrderInput) { in.Amount = 0.99 }},
		{name: "bad email", provider: models.PaymentProviderWallet, mutate: func(in *CreateOrderInput) { in.PayerEmail = "not-an-email" }},
	}

	for _, tt := range tests {
		broker, _, providerCalls := newTestBroker(t)

		in := validWalletInput()
		tt.mutate(in)

		_, err := broker.CreateOrder(context.Background(), tt.provider, in)
		if err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		if !IsClientError(err) {
			t.Fatalf("%s: expected client error, got %v", tt.name, err)
		}
		if calls := atomic.LoadInt64(providerCalls); calls != 0 {
			t.Fatalf("%s: expected no provider call on validation failure, got %d", tt.name, calls)
		}
	}
}

func TestBrokerWalletOrderIDAtLimit(t *testing.T) {
	broker, _, _ := newTestBroker(t)

	in := validWalletInput()
	in.ExternalID = strings.Repeat("A", WalletOrderIDMaxLen)

	if _, err := broker.CreateOrder(context.Background(), models.PaymentProviderWallet, in); err != nil {
		t.Fatalf("expected 15-char order id to be accepted, got %v", err)
	}
}

func TestBrokerUnknownProvider(t *testing.T) {
	broker, _, providerCalls := newTestBroker(t)

	_, err := broker.CreateOrder(context.Background(), "paypal", validWalletInput())
	if !IsClientError(err) {
		t.Fatalf("expected client error for unknown provider, got %v", err)
	}
	if *providerCalls != 0 {
		t.Fatalf("expected no provider call")
	}
}

func TestBrokerCreateWalletOrderRecordsPendingEntry(t *testing.T) {
	broker, repo, _ := newTestBroker(t)

	in := validWalletInput()
	in.EntityType = models.PaymentEntityPlayer
	in.EntityID = 7

	result, err := broker.CreateOrder(context.Background(), models.PaymentProviderWallet, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OrderData["document"] != "doc-1" {
		t.Fatalf("unexpected order data: %v", result.OrderData)
	}

	entry, err := repo.GetByExternalID(models.PaymentProviderWallet, "ORD-1")
	if err != nil {
		t.Fatalf("expected pending ledger entry: %v", err)
	}
	if entry.Status != models.PaymentStatusPending {
		t.Fatalf("expected pending status, got %q", entry.Status)
	}
	if !strings.Contains(entry.Notes, "entity:player:7") {
		t.Fatalf("expected entity marker in notes, got %q", entry.Notes)
	}
}

func TestBrokerCreateCardLinkRecordsPendingEntry(t *testing.T) {
	broker, repo, _ := newTestBroker(t)

	result, err := broker.CreateOrder(context.Background(), models.PaymentProviderCard, &CreateOrderInput{
		Amount:      150,
		Description: "tournament fee",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Code != "code1" {
		t.Fatalf("unexpected code %q", result.Code)
	}

	entry, err := repo.GetByExternalID(models.PaymentProviderCard, "code1")
	if err != nil {
		t.Fatalf("expected pending ledger entry keyed by link code: %v", err)
	}
	if entry.Status != models.PaymentStatusPending {
		t.Fatalf("expected pending status, got %q", entry.Status)
	}
}

func TestBrokerTokenizeCardValidation(t *testing.T) {
	broker, _, providerCalls := newTestBroker(t)

	_, err := broker.TokenizeCard(context.Background(), &CardDetails{
		HolderName: "Ana Torres",
		// Number missing
		ExpireMonth: "12",
		ExpireYear:  "2030",
		CVV:         "123",
	})
	if !IsClientError(err) {
		t.Fatalf("expected client error for missing card number, got %v", err)
	}
	if *providerCalls != 0 {
		t.Fatalf("expected no provider call on invalid card details")
	}

	token, err := broker.TokenizeCard(context.Background(), &CardDetails{
		HolderName:  "Ana Torres",
		Number:      "4111111111111111",
		ExpireMonth: "12",
		ExpireYear:  "2030",
		CVV:         "123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token.Token != "t" {
		t.Fatalf("unexpected token %+v", token)
	}
}
