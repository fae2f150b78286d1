// Package notify delivers the approval notification after a payment reaches
// the approved terminal state. An audit row with a unique payment key backs
// the exactly-once guarantee across process restarts.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/academyhq/academy-server/app/models"
	"github.com/academyhq/academy-server/internal/pkg/env"
	"github.com/academyhq/academy-server/internal/pkg/mail"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MailNotifier records a Notification row and sends the approval email.
type MailNotifier struct {
	db *gorm.DB
}

// NewMailNotifier creates a notifier on the given database handle.
func NewMailNotifier(db *gorm.DB) *MailNotifier {
	return &MailNotifier{db: db}
}

// PaymentApproved notifies about one approved payment. A second call for the
// same payment is a silent no-op: the unique index on the audit row catches
// replays the reconciler's compare-and-set could not see (e.g. after a
// restart mid-delivery).
func (n *MailNotifier) PaymentApproved(ctx context.Context, p *models.Payment) error {
	_ = ctx

	recipient := p.PayerEmail
	if recipient == "" {
		recipient = env.GetEnv("PAYMENTS_NOTIFY_FALLBACK", "")
	}

	content := fmt.Sprintf("Payment %s for %.2f %s was approved (provider %s, order %s).",
		p.Reference, p.Amount, p.Currency, p.Provider, p.ExternalID)

	row := &models.Notification{
		Type:      models.NotificationTypePaymentApproved,
		PaymentID: p.ID,
		Recipient: recipient,
		Content:   content,
	}
	tx := n.db.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		log.Infof("[Notify] payment %d already notified, skipping", p.ID)
		return nil
	}

	if recipient == "" {
		log.Warnf("[Notify] payment %d has no payer email and no fallback recipient", p.ID)
		return nil
	}

	if err := mail.SendMail(recipient, "Payment confirmed", content); err != nil {
		// The audit row stays: delivery problems are an operator concern,
		// not a reason to re-trigger business side effects.
		return err
	}

	now := time.Now()
	return n.db.Model(row).Update("sent_at", &now).Error
}
