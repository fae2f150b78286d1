package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/academyhq/academy-server/internal/pkg/env"
)

const (
	defaultCardSandboxBaseURL    = "https://sandbox.api.cardpro.io/v1"
	defaultCardProductionBaseURL = "https://api.cardpro.io/v1"
)

// CardDetails is the input for card tokenization. The PAN never touches the
// ledger; only the provider token is returned to the caller.
type CardDetails struct {
	HolderName  string `json:"holder_name" validate:"required,min=3,max=150"`
	Number      string `json:"number" validate:"required,numeric,min=13,max=19"`
	ExpireMonth string `json:"expire_month" validate:"required,len=2,numeric"`
	ExpireYear  string `json:"expire_year" validate:"required,min=2,max=4,numeric"`
	CVV         string `json:"cvv" validate:"required,min=3,max=4,numeric"`
}

// CardToken is the provider's tokenization result.
type CardToken struct {
	Token     string `json:"token"`
	CardToken string `json:"card_token"`
}

// CardClient talks to the card-processing provider (hosted checkout links
// and card tokenization). Authentication is a bearer API key, no handshake.
type CardClient struct {
	APIKey      string
	Environment string

	BaseURL string

	HTTPClient *http.Client
}

// NewCardClientFromEnv builds a card client from environment config.
func NewCardClientFromEnv() *CardClient {
	environment := strings.ToLower(strings.TrimSpace(env.GetEnv("CARD_ENV", "sandbox")))
	baseURL := strings.TrimSpace(env.GetEnv("CARD_API_BASE_URL", ""))
	if baseURL == "" {
		if environment == "production" {
			baseURL = defaultCardProductionBaseURL
		} else {
			baseURL = defaultCardSandboxBaseURL
		}
	}

	return &CardClient{
		APIKey:      strings.TrimSpace(env.GetEnv("CARD_API_KEY", "")),
		Environment: environment,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

func (c *CardClient) Name() string {
	return "card"
}

func (c *CardClient) checkConfig() error {
	if c.APIKey == "" {
		return &ConfigurationError{Message: "CARD_API_KEY must be configured"}
	}
	return nil
}

// CreateOrder creates a hosted checkout link; that is the card provider's
// order-creation flow. The result carries the URL the payer is redirected to
// and the provider's link code, which doubles as the external id callbacks
// reference.
func (c *CardClient) CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
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

	body, err := c.post(ctx, "/checkout/links", payload)
	if err != nil {
		return nil, err
	}

	var raw struct {
		PaymentURL string `json:"payment_url"`
		Code       string `json:"code"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Message: "checkout link response is not valid JSON", Err: err}
	}
	if strings.TrimSpace(raw.PaymentURL) == "" || strings.TrimSpace(raw.Code) == "" {
		return nil, &ProviderError{Provider: c.Name(), Message: "checkout link response missing payment_url or code"}
	}

	return &OrderResult{
		Provider:   c.Name(),
		ExternalID: raw.Code,
		PaymentURL: raw.PaymentURL,
		Code:       raw.Code,
	}, nil
}

// TokenizeCard exchanges card details for a storable provider token.
func (c *CardClient) TokenizeCard(ctx context.Context, card *CardDetails) (*CardToken, error) {
	if err := c.checkConfig(); err != nil {
		return nil, err
	}

	body, err := c.post(ctx, "/tokens", card)
	if err != nil {
		return nil, err
	}

	var token CardToken
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &ProviderError{Provider: c.Name(), Message: "tokenize response is not valid JSON", Err: err}
	}
	if strings.TrimSpace(token.Token) == "" {
		return nil, &ProviderError{Provider: c.Name(), Message: "tokenize response missing token"}
	}
	return &token, nil
}

// ParseCallback maps a card confirmation to the canonical shape. The card
// provider confirms via GET with query parameters, so raw is the encoded
// query string rather than a JSON body.
func (c *CardClient) ParseCallback(raw []byte) (*Callback, error) {
	values, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, NewValidationError("payload", "card callback query string is malformed")
	}

	externalID := strings.TrimSpace(values.Get("code"))
	if externalID == "" {
		externalID = strings.TrimSpace(values.Get("payment_id"))
	}
	if externalID == "" {
		return nil, NewValidationError("code", "card callback missing link code")
	}

	amount, _ := strconv.ParseFloat(values.Get("amount"), 64)

	cb := &Callback{
		Provider:   c.Name(),
		ExternalID: externalID,
		EventType:  "checkout.result",
		Amount:     amount,
		Raw:        values.Encode(),
		Recognized: true,
	}

	switch strings.ToLower(strings.TrimSpace(values.Get("status"))) {
	case "paid", "approved", "success":
		cb.Outcome = OutcomeApproved
	case "declined", "failed", "expired", "cancelled", "canceled":
		cb.Outcome = OutcomeFailed
	default:
		cb.Outcome = OutcomeUnknown
		cb.Recognized = false
	}
	return cb, nil
}

func (c *CardClient) IsApproved(cb *Callback) bool {
	return cb != nil && cb.Outcome == OutcomeApproved
}

func (c *CardClient) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
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
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

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
