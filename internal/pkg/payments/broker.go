package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/academyhq/academy-server/app/models"
	"github.com/academyhq/academy-server/internal/pkg/constants"
	"github.com/academyhq/academy-server/internal/pkg/env"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Provider-specific minimum amounts, in currency units.
const (
	MinWalletOrderAmount = 0.01
	MinCardLinkAmount    = 1.00
)

// CreateOrderInput is the caller-facing input for a new payment intent.
type CreateOrderInput struct {
	ExternalID   string            `json:"external_id"`
	Amount       float64           `json:"amount"`
	Currency     string            `json:"currency" validate:"omitempty,len=3"`
	Description  string            `json:"description"`
	PayerEmail   string            `json:"payer_email" validate:"omitempty,email"`
	CallbackURL  string            `json:"callback_url" validate:"omitempty,url"`
	Metadata     map[string]string `json:"metadata"`
	EntityType   string            `json:"entity_type" validate:"omitempty,oneof=player family sponsor"`
	EntityID     uint              `json:"entity_id"`
	SessionToken string            `json:"session_token"`
	SessionEpoch int64             `json:"session_epoch"`
}

// Broker validates payment intents and submits them to a provider. All
// domain validation happens before any provider call; a rejected input never
// causes network traffic.
type Broker struct {
	providers map[string]Provider
	card      *CardClient
	repo      Repository
	validate  *validator.Validate
	publicURL string
}

// NewBroker wires a broker from explicit collaborators.
func NewBroker(repo Repository, wallet *WalletClient, card *CardClient, publicURL string) *Broker {
	return &Broker{
		providers: map[string]Provider{
			wallet.Name(): wallet,
			card.Name():   card,
		},
		card:      card,
		repo:      repo,
		validate:  validator.New(),
		publicURL: strings.TrimRight(publicURL, "/"),
	}
}

// NewBrokerFromDB wires a broker with env-configured provider clients.
func NewBrokerFromDB(db *gorm.DB) *Broker {
	return NewBroker(
		NewRepository(db),
		NewWalletClientFromEnv(),
		NewCardClientFromEnv(),
		env.GetEnv("PUBLIC_DOMAIN", ""),
	)
}

// Wallet returns the wallet provider client for the merchant handshake.
func (b *Broker) Wallet() *WalletClient {
	return b.providers[models.PaymentProviderWallet].(*WalletClient)
}

// Provider returns the adapter registered for a provider variant.
func (b *Broker) Provider(name string) (Provider, bool) {
	p, ok := b.providers[name]
	return p, ok
}

// CreateOrder validates input and submits a new payment intent to the named
// provider. On success a pending ledger entry is recorded so the later
// callback reconciles against a known row.
func (b *Broker) CreateOrder(ctx context.Context, providerName string, in *CreateOrderInput) (*OrderResult, error) {
	provider, ok := b.providers[providerName]
	if !ok {
		return nil, NewValidationError("provider", fmt.Sprintf("unknown payment provider %q", providerName))
	}

	if err := b.validateInput(providerName, in); err != nil {
		return nil, err
	}

	req := &OrderRequest{
		ExternalID:  strings.TrimSpace(in.ExternalID),
		Amount:      in.Amount,
		Currency:    b.currency(in.Currency),
		Description: strings.TrimSpace(in.Description),
		CallbackURL: b.callbackURL(providerName, in.CallbackURL),
		PayerEmail:  strings.TrimSpace(in.PayerEmail),
		Metadata:    in.Metadata,
	}
	if providerName == models.PaymentProviderWallet {
		req.Session = &MerchantSession{
			Token:     strings.TrimSpace(in.SessionToken),
			EpochTime: in.SessionEpoch,
		}
	}

	result, err := provider.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}

	b.recordPendingEntry(providerName, in, result)
	return result, nil
}

// TokenizeCard validates card details and exchanges them at the card
// provider for a storable token.
func (b *Broker) TokenizeCard(ctx context.Context, card *CardDetails) (*CardToken, error) {
	if err := b.validate.Struct(card); err != nil {
		return nil, b.fieldError(err)
	}
	return b.card.TokenizeCard(ctx, card)
}

func (b *Broker) validateInput(providerName string, in *CreateOrderInput) error {
	if err := b.validate.Struct(in); err != nil {
		return b.fieldError(err)
	}
	if strings.TrimSpace(in.Description) == "" {
		return NewValidationError("description", "description must not be empty")
	}

	switch providerName {
	case models.PaymentProviderWallet:
		if in.Amount < MinWalletOrderAmount {
			return NewValidationError("amount", fmt.Sprintf("wallet orders require an amount of at least %.2f", MinWalletOrderAmount))
		}
		externalID := strings.TrimSpace(in.ExternalID)
		if externalID == "" {
			return NewValidationError("external_id", "wallet orders require an order id")
		}
		if len(externalID) > WalletOrderIDMaxLen {
			return NewValidationError("external_id", fmt.Sprintf("wallet order ids are limited to %d characters", WalletOrderIDMaxLen))
		}
		// An absent handshake is a caller mistake, not a retryable failure.
		if strings.TrimSpace(in.SessionToken) == "" || in.SessionEpoch == 0 {
			return NewValidationError("session", "a merchant session token and epoch time are required, validate the merchant first")
		}
	case models.PaymentProviderCard:
		if in.Amount < MinCardLinkAmount {
			return NewValidationError("amount", fmt.Sprintf("checkout links require an amount of at least %.2f", MinCardLinkAmount))
		}
	}
	return nil
}

func (b *Broker) currency(currency string) string {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if c == "" {
		return "MXN"
	}
	return c
}

func (b *Broker) callbackURL(providerName, override string) string {
	if u := strings.TrimSpace(override); u != "" {
		return u
	}
	path := constants.WalletCallbackPath
	if providerName == models.PaymentProviderCard {
		path = constants.CardCallbackPath
	}
	return b.publicURL + path
}

// recordPendingEntry writes the pending ledger row for a submitted order.
// Failures are logged, not returned: the provider already accepted the order
// and the callback path creates missing rows on first notification.
func (b *Broker) recordPendingEntry(providerName string, in *CreateOrderInput, result *OrderResult) {
	notes := strings.TrimSpace(in.Description)
	if in.EntityType != "" && in.EntityID != 0 {
		notes = fmt.Sprintf("%s\nentity:%s:%d", notes, in.EntityType, in.EntityID)
	}
	if marker, ok := in.Metadata["entity"]; ok && strings.TrimSpace(marker) != "" {
		notes = fmt.Sprintf("%s\nentity:%s", notes, strings.TrimSpace(marker))
	}

	_, _, err := b.repo.UpsertByExternalID(&models.Payment{
		Provider:    providerName,
		ExternalID:  result.ExternalID,
		Amount:      in.Amount,
		Currency:    b.currency(in.Currency),
		Status:      models.PaymentStatusPending,
		Description: strings.TrimSpace(in.Description),
		Notes:       notes,
		PayerEmail:  strings.TrimSpace(in.PayerEmail),
	})
	if err != nil {
		log.Errorf("[Payments] failed to record pending ledger entry for %s/%s: %v", providerName, result.ExternalID, err)
	}
}

func (b *Broker) fieldError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		return NewValidationError(strings.ToLower(f.Field()), fmt.Sprintf("failed on %q validation", f.Tag()))
	}
	return NewValidationError("", err.Error())
}
