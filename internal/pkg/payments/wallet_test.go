package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestWalletClient(baseURL string) *WalletClient {
	return &WalletClient{
		MerchantID:  "m-123",
		SecretKey:   "s3cret",
		DomainURL:   "https://academy.example.com",
		Environment: "sandbox",
		BaseURL:     baseURL,
		HTTPClient:  &http.Client{Timeout: 5 * time.Second},
	}
}

func TestWalletValidateMerchant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/merchant/validate" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("invalid request body: %v", err)
		}
		if body["merchant_id"] != "m-123" || body["secret_key"] != "s3cret" {
			t.Fatalf("credentials not forwarded: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token":      "tok-1",
			"epoch_time": 1700000000,
			"cdn_url":    "https://cdn.wallet.example",
		})
	}))
	defer srv.Close()

	session, err := newTestWalletClient(srv.URL).ValidateMerchant(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.Token != "tok-1" || session.EpochTime != 1700000000 {
		t.Fatalf("unexpected session: %+v", session)
	}
	if session.MerchantID != "m-123" {
		t.Fatalf("expected merchant id to be echoed, got %q", session.MerchantID)
	}
}

func TestWalletValidateMerchantMissingConfig(t *testing.T) {
	client := newTestWalletClient("http://unused")
	client.SecretKey = ""

	_, err := client.ValidateMerchant(context.Background())
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestWalletValidateMerchantCredentialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestWalletClient(srv.URL).ValidateMerchant(context.Background())
	var pe *ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if pe.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", pe.StatusCode)
	}
}

func TestWalletCreateOrderRequiresSession(t *testing.T) {
	client := newTestWalletClient("http://unused")

	_, err := client.CreateOrder(context.Background(), &OrderRequest{
		ExternalID:  "ORD-1",
		Amount:      50,
		Description: "monthly fee",
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestWalletCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["token"] != "tok-1" || body["order_id"] != "ORD-1" {
			t.Fatalf("session or order id not forwarded: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"document": "doc-99",
			"status":   "created",
		})
	}))
	defer srv.Close()

	result, err := newTestWalletClient(srv.URL).CreateOrder(context.Background(), &OrderRequest{
		ExternalID:  "ORD-1",
		Amount:      50,
		Currency:    "MXN",
		Description: "monthly fee",
		Session:     &MerchantSession{Token: "tok-1", EpochTime: 1700000000},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OrderData["document"] != "doc-99" {
		t.Fatalf("expected provider payload to be passed through, got %v", result.OrderData)
	}
}

func TestWalletParseCallback(t *testing.T) {
	client := newTestWalletClient("http://unused")

	tests := []struct {
		name        string
		raw         string
		wantErr     bool
		wantID      string
		wantOutcome string
		recognized  bool
	}{
		{
			name:        "approved",
			raw:         `{"order_id":"ORD-1","status":"approved","amount":50}`,
			wantID:      "ORD-1",
			wantOutcome: OutcomeApproved,
			recognized:  true,
		},
		{
			name:        "declined via result field",
			raw:         `{"reference":"ORD-2","result":"declined"}`,
			wantID:      "ORD-2",
			wantOutcome: OutcomeFailed,
			recognized:  true,
		},
		{
			name:        "unknown event tolerated",
			raw:         `{"order_id":"ORD-3","status":"chargeback_opened","extra":{"a":1}}`,
			wantID:      "ORD-3",
			wantOutcome: OutcomeUnknown,
			recognized:  false,
		},
		{
			name:    "not json",
			raw:     `status=approved`,
			wantErr: true,
		},
		{
			name:    "missing order id",
			raw:     `{"status":"approved"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		cb, err := client.ParseCallback([]byte(tt.raw))
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tt.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if cb.ExternalID != tt.wantID || cb.Outcome != tt.wantOutcome || cb.Recognized != tt.recognized {
			t.Fatalf("%s: got id=%q outcome=%q recognized=%t", tt.name, cb.ExternalID, cb.Outcome, cb.Recognized)
		}
	}
}

func TestVerifyWalletCallbackSignature(t *testing.T) {
	payload := []byte(`{"order_id":"ORD-1","status":"approved"}`)
	secret := "hook-secret"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	validSig := hex.EncodeToString(mac.Sum(nil))

	if !VerifyWalletCallbackSignature(payload, validSig, secret) {
		t.Fatalf("expected signature to validate")
	}
	if VerifyWalletCallbackSignature(payload, "deadbeef", secret) {
		t.Fatalf("expected invalid signature to fail")
	}
	if VerifyWalletCallbackSignature(payload, validSig, "") {
		t.Fatalf("expected missing secret to fail verification")
	}
	if VerifyWalletCallbackSignature(payload, "", secret) {
		t.Fatalf("expected missing signature to fail verification")
	}
}
