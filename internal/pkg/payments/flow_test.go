package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/academyhq/academy-server/app/models"
	"github.com/academyhq/academy-server/internal/pkg/pending"
)

// Covers the full enrollment payment flow: stage form data, create a wallet
// order referencing it, receive the approval callback, and verify the ledger
// entry walks pending -> pending_approval -> approved with the entity
// resolved from the explicit marker.
func TestEnrollmentPaymentFlow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/merchant/validate":
			json.NewEncoder(w).Encode(map[string]interface{}{"token": "tok-1", "epoch_time": 1700000000, "cdn_url": "https://cdn"})
		case "/orders":
			json.NewEncoder(w).Encode(map[string]interface{}{"document": "doc-1"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	repo := newFakeRepo()
	repo.players = []models.Player{{ID: 7, FullName: "Diego Ramirez", Active: true}}
	wallet := newTestWalletClient(srv.URL)
	card := newTestCardClient(srv.URL)
	broker := NewBroker(repo, wallet, card, "https://academy.example.com")
	notifier := &countingNotifier{}
	reconciler := NewReconciler(repo, wallet, card, NewLinker(repo), notifier)

	// 1. Stage the enrollment form.
	store := pending.NewMemoryStore()
	token, err := store.Stage(json.RawMessage(`{"player":"Diego Ramirez","category":"U12"}`))
	if err != nil {
		t.Fatalf("staging failed: %v", err)
	}

	// 2. Merchant handshake.
	session, err := broker.Wallet().ValidateMerchant(context.Background())
	if err != nil {
		t.Fatalf("handshake failed: %v", err)
	}

	// 3. Create the order with the staged data still retrievable.
	if _, err := store.Consume(token); err != nil {
		t.Fatalf("consuming staged data failed: %v", err)
	}
	_, err = broker.CreateOrder(context.Background(), models.PaymentProviderWallet, &CreateOrderInput{
		ExternalID:   "ENR-2025-001",
		Amount:       350,
		Description:  "enrollment Diego Ramirez U12",
		EntityType:   models.PaymentEntityPlayer,
		EntityID:     7,
		SessionToken: session.Token,
		SessionEpoch: session.EpochTime,
	})
	if err != nil {
		t.Fatalf("order creation failed: %v", err)
	}

	entry, err := repo.GetByExternalID(models.PaymentProviderWallet, "ENR-2025-001")
	if err != nil {
		t.Fatalf("missing pending entry: %v", err)
	}
	if entry.Status != models.PaymentStatusPending {
		t.Fatalf("expected pending before callback, got %q", entry.Status)
	}

	// 4. Approval callback arrives.
	result, err := reconciler.HandleCallback(context.Background(), models.PaymentProviderWallet,
		[]byte(`{"order_id":"ENR-2025-001","status":"approved","amount":350}`))
	if err != nil {
		t.Fatalf("callback failed: %v", err)
	}
	if !result.Transitioned {
		t.Fatalf("expected transition, got %+v", result)
	}

	// 5. Ledger converged on approved with the entity linked by exact id.
	final := repo.get(entry.ID)
	if final.Status != models.PaymentStatusApproved {
		t.Fatalf("expected approved, got %q", final.Status)
	}
	if final.EntityType != models.PaymentEntityPlayer || final.EntityID == nil || *final.EntityID != 7 {
		t.Fatalf("expected player:7 link, got %s:%v", final.EntityType, final.EntityID)
	}
	if notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", notifier.count())
	}

	// 6. The staged token was consumed exactly once.
	if _, err := store.Consume(token); err != pending.ErrNotFound {
		t.Fatalf("expected ErrNotFound on second consume, got %v", err)
	}
}
