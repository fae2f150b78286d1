package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/academyhq/academy-server/internal/pkg/env"
)

const (
	defaultWalletSandboxBaseURL    = "https://sandbox.api.wallet-pay.com/v2"
	defaultWalletProductionBaseURL = "https://api.wallet-pay.com/v2"

	// WalletOrderIDMaxLen is the provider-imposed limit on external order ids.
	WalletOrderIDMaxLen = 15
)

// WalletClient talks to the wallet-style provider. Every order-creation flow
// performs a fresh merchant handshake; the provider's protocol is stateless
// and the token/epoch pair it returns is only valid for the order that
// follows it.
type WalletClient struct {
	MerchantID  string
	SecretKey   string
	DomainURL   string
	Environment string

	BaseURL string

	HTTPClient *http.Client
}

// NewWalletClientFromEnv builds a wallet client from environment config.
func NewWalletClientFromEnv() *WalletClient {
	environment := strings.ToLower(strings.TrimSpace(env.GetEnv("WALLET_ENV", "sandbox")))
	baseURL := strings.TrimSpace(env.GetEnv("WALLET_API_BASE_URL", ""))
	if baseURL == "" {
		if environment == "production" {
			baseURL = defaultWalletProductionBaseURL
		} else {
			baseURL = defaultWalletSandboxBaseURL
		}
	}

	return &WalletClient{
		MerchantID:  strings.TrimSpace(env.GetEnv("WALLET_MERCHANT_ID", "")),
		SecretKey:   strings.TrimSpace(env.GetEnv("WALLET_SECRET_KEY", "")),
		DomainURL:   strings.TrimRight(strings.TrimSpace(env.GetEnv("WALLET_DOMAIN_URL", env.GetEnv("PUBLIC_DOMAIN", ""))), "/"),
		Environment: environment,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *WalletClient) Name() string {
	return "wallet"
}

func (c *WalletClient) checkConfig() error {
	if c.MerchantID == "" || c.SecretKey == "" || c.DomainURL == "" {
		return &ConfigurationError{Message: "WALLET_MERCHANT_ID, WALLET_SECRET_KEY and WALLET_DOMAIN_URL must be configured"}
	}
	return nil
}

// ValidateMerchant performs the provider's credential handshake and returns
// the token/epoch pair required by the order creation that follows.
func (c *WalletClient) ValidateMerchant(ctx context.Context) (*MerchantSession, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}

	payload := map[string]string{
		"merchant_id": c.MerchantID,
		"secret_key":  c.SecretKey,
		"domain_url":  c.DomainURL,
	}
	body, err := c.post(ctx, "/merchant/validate", payload)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Token     string `json:"token"`
		EpochTime int64  `json:"epoch_time"`
		CDNURL    string `json:"cdn_url"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Message: "merchant validate response is not valid JSON", Err: err}
	}
	if strings.TrimSpace(raw.Token) == "" || raw.EpochTime == 0 {
		return nil, &ProviderError{Provider: c.Name(), Message: "merchant validate response missing token or epoch_time"}
	}

	return &MerchantSession{
		Token:       raw.Token,
		EpochTime:   raw.EpochTime,
		MerchantID:  c.MerchantID,
		CDNURL:      raw.CDNURL,
		Environment: c.Environment,
	}, nil
}

// CreateOrder submits a wallet order. The request must carry the session
// from a fresh ValidateMerchant call; broker-level validation guarantees the
// domain constraints before this is reached.
func (c *WalletClient) CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}
	if req.Session == nil || strings.TrimSpace(req.Session.Token) == "" || req.Session.EpochTime == 0 {
		return nil, NewValidationError("session", "merchant session token and epoch time are required")
	}

	payload := map[string]interface{}{
		"merchant_id":  c.MerchantID,
		"token":        req.Session.Token,
		"epoch_time":   req.Session.EpochTime,
		"order_id":     req.ExternalID,
		"amount":       req.Amount,
		"currency":     req.Currency,
		"description":  req.Description,
		"callback_url": req.CallbackURL,
	}
	if req.PayerEmail != "" {
		payload["email"] = req.PayerEmail
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}

	body, err := c.post(ctx, "/orders", payload)
	if err != nil {
		return nil, err
	}

	var orderData map[string]interface{}
	if err := json.Unmarshal(body, &orderData); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Message: "order response is not valid JSON", Err: err}
	}

	return &OrderResult{
		Provider:   c.Name(),
		ExternalID: req.ExternalID,
		OrderData:  orderData,
	}, nil
}

// ParseCallback maps a wallet confirmation payload to the canonical shape.
// Unknown and extra fields are tolerated; payload variants observed in the
// wild use either order_id or reference for the external id.
func (c *WalletClient) ParseCallback(raw []byte) (*Callback, error) {
	var payload struct {
		EventType string  `json:"event_type"`
		OrderID   string  `json:"order_id"`
		Reference string  `json:"reference"`
		Status    string  `json:"status"`
		Result    string  `json:"result"`
		Amount    float64 `json:"amount"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, NewValidationError("payload", "wallet callback is not valid JSON")
	}

	externalID := strings.TrimSpace(payload.OrderID)
	if externalID == "" {
		externalID = strings.TrimSpace(payload.Reference)
	}
	if externalID == "" {
		return nil, NewValidationError("order_id", "wallet callback missing order id")
	}

	status := strings.ToLower(strings.TrimSpace(payload.Status))
	if status == "" {
		status = strings.ToLower(strings.TrimSpace(payload.Result))
	}

	eventType := strings.ToLower(strings.TrimSpace(payload.EventType))
	if eventType == "" {
		eventType = "payment.update"
	}

	cb := &Callback{
		Provider:   c.Name(),
		ExternalID: externalID,
		EventType:  eventType,
		Amount:     payload.Amount,
		Raw:        string(raw),
		Recognized: true,
	}

	switch status {
	case "approved", "success", "paid", "completed":
		cb.Outcome = OutcomeApproved
	case "failed", "declined", "rejected", "cancelled", "canceled", "expired":
		cb.Outcome = OutcomeFailed
	default:
		cb.Outcome = OutcomeUnknown
		cb.Recognized = false
	}
	return cb, nil
}

func (c *WalletClient) IsApproved(cb *Callback) bool {
	return cb != nil && cb.Outcome == OutcomeApproved
}

func (c *WalletClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: c.Name(), Message: fmt.Sprintf("request to %s failed", path), Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{
			Provider:   c.Name(),
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("%s returned status %d: %s", path, resp.StatusCode, string(body)),
		}
	}
	return body, nil
}

// VerifyWalletCallbackSignature checks the HMAC-SHA256 hex signature the
// wallet provider attaches to callbacks. Returns false when either the
// signature or the secret is empty; the caller decides whether that is
// acceptable outside production.
func VerifyWalletCallbackSignature(payload []byte, signatureHeader, webhookSecret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	secret := strings.TrimSpace(webhookSecret)
	if sig == "" || secret == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decodedSig)
}
