package payments

import "context"

// OrderRequest is the provider-agnostic input for creating a payment intent.
// Immutable once handed to a provider.
type OrderRequest struct {
	ExternalID  string
	Amount      float64
	Currency    string
	Description string
	CallbackURL string
	PayerEmail  string
	Metadata    map[string]string

	// Session carries the merchant handshake result. Required by the wallet
	// provider, ignored by the card provider.
	Session *MerchantSession
}

// OrderResult is what the client needs to continue the flow after a
// successful order creation.
type OrderResult struct {
	Provider   string                 `json:"provider"`
	ExternalID string                 `json:"external_id"`
	PaymentURL string                 `json:"payment_url,omitempty"`
	Code       string                 `json:"code,omitempty"`
	OrderData  map[string]interface{} `json:"order_data,omitempty"`
}

// Callback is the canonical, provider-agnostic shape of an asynchronous
// payment-outcome notification.
type Callback struct {
	Provider   string
	ExternalID string
	EventType  string
	Outcome    string
	Amount     float64
	Raw        string

	// Recognized is false for event types the adapter does not understand.
	// The reconciler logs and acknowledges those instead of erroring, so the
	// provider stops retrying.
	Recognized bool
}

// Callback outcome values set by provider adapters.
const (
	OutcomeApproved = "approved"
	OutcomeFailed   = "failed"
	OutcomeUnknown  = "unknown"
)

// MerchantSession is the result of the wallet provider's merchant handshake.
// Token and EpochTime were issued together and must be used together; the
// provider rejects mixed pairs. Sessions are never cached across independent
// order submissions.
type MerchantSession struct {
	Token       string `json:"token"`
	EpochTime   int64  `json:"epochTime"`
	MerchantID  string `json:"merchantId"`
	CDNURL      string `json:"cdnUrl,omitempty"`
	Environment string `json:"environment"`
}

// Provider is the capability contract every payment provider implements.
// There is no shared implementation between variants, only this contract.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, req *OrderRequest) (*OrderResult, error)
	ParseCallback(raw []byte) (*Callback, error)
	IsApproved(cb *Callback) bool
}
