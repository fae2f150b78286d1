package constants

// Public callback endpoints registered with the payment providers. These are
// the defaults the broker appends to PUBLIC_DOMAIN when the caller does not
// override the callback URL.
const (
	WalletCallbackPath = "/payments/wallet/callback"
	CardCallbackPath   = "/payments/card/callback"
)

// Redirect targets for the card provider's browser callback.
const (
	PaymentSuccessPath = "/payments/success"
	PaymentFailurePath = "/payments/failure"
	PaymentErrorPath   = "/payments/error"
)

// API surface.
const (
	APIV1Prefix = "/api/v1"
)
