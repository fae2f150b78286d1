package models

import "time"

const (
	NotificationTypePaymentApproved = "payment_approved"
)

// Notification is the audit row for an outbound notification. One row per
// approved payment guarantees the "exactly once" property survives restarts.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"type:varchar(50);not null" json:"type" validate:"oneof=payment_approved"`
	PaymentID uint      `gorm:"not null;uniqueIndex:ux_notifications_payment_type" json:"payment_id"`
	Recipient string    `gorm:"type:varchar(200);default:''" json:"recipient"`
	Content   string    `gorm:"type:text" json:"content"`
	SentAt    *time.Time `gorm:"type:timestamp;default:null" json:"sent_at,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
