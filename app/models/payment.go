package models

import "time"

// Payment provider variants supported by the gateway core.
const (
	PaymentProviderWallet = "wallet"
	PaymentProviderCard   = "card"
)

// Payment lifecycle states. Approved and Failed are terminal: once reached
// they are never overwritten by later callbacks.
const (
	PaymentStatusPending         = "pending"
	PaymentStatusPendingApproval = "pending_approval"
	PaymentStatusApproved        = "approved"
	PaymentStatusFailed          = "failed"
)

// Entity types a payment can be linked to.
const (
	PaymentEntityPlayer  = "player"
	PaymentEntityFamily  = "family"
	PaymentEntitySponsor = "sponsor"
)

// Payment is the durable ledger entry for one payment attempt. The
// (provider, external_id) pair is unique so callback processing stays
// idempotent under provider retries and duplicate deliveries.
type Payment struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Reference       string    `gorm:"type:varchar(36);not null;uniqueIndex" json:"reference"`
	Provider        string    `gorm:"type:varchar(20);not null;index:ux_payments_provider_external,unique,priority:1" json:"provider"`
	ExternalID      string    `gorm:"type:varchar(191);not null;index:ux_payments_provider_external,unique,priority:2" json:"external_id"`
	Amount          float64   `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency        string    `gorm:"type:varchar(3);not null;default:'MXN'" json:"currency"`
	Status          string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Description     string    `gorm:"type:varchar(255);default:''" json:"description"`
	Notes           string    `gorm:"type:text" json:"notes"`
	PayerEmail      string    `gorm:"type:varchar(200);default:''" json:"payer_email"`
	EntityType      string    `gorm:"type:varchar(20);default:''" json:"entity_type"`
	EntityID        *uint     `gorm:"default:null;index" json:"entity_id,omitempty"`
	NeedsReview     bool      `gorm:"default:false;index" json:"needs_review"`
	RawCallbackJSON string    `gorm:"type:longtext" json:"raw_callback_json"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the payment reached a final state.
func (p *Payment) IsTerminal() bool {
	return IsTerminalPaymentStatus(p.Status)
}

// IsTerminalPaymentStatus reports whether a status value is final.
func IsTerminalPaymentStatus(status string) bool {
	return status == PaymentStatusApproved || status == PaymentStatusFailed
}

// IsValidPaymentStatus reports whether a status value belongs to the enum.
func IsValidPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusPending, PaymentStatusPendingApproval, PaymentStatusApproved, PaymentStatusFailed:
		return true
	}
	return false
}
