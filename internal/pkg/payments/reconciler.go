package payments

import (
	"context"
	"errors"

	"github.com/academyhq/academy-server/app/models"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// Notifier is the collaborator invoked after a payment transitions into the
// approved terminal state. It is called at most once per ledger entry.
type Notifier interface {
	PaymentApproved(ctx context.Context, p *models.Payment) error
}

// ReconcileResult describes what a callback delivery did to the ledger.
type ReconcileResult struct {
	Payment      *models.Payment
	Created      bool
	Ignored      bool
	Duplicate    bool
	Transitioned bool
	Notified     bool
}

// Reconciler applies asynchronous provider callbacks to the payment ledger.
// It is the only writer of status transitions.
type Reconciler struct {
	repo      Repository
	providers map[string]Provider
	linker    *Linker
	notifier  Notifier
}

// NewReconciler wires a reconciler from explicit collaborators.
func NewReconciler(repo Repository, wallet *WalletClient, card *CardClient, linker *Linker, notifier Notifier) *Reconciler {
	return &Reconciler{
		repo: repo,
		providers: map[string]Provider{
			wallet.Name(): wallet,
			card.Name():   card,
		},
		linker:   linker,
		notifier: notifier,
	}
}

// NewReconcilerFromDB wires a reconciler with env-configured providers.
func NewReconcilerFromDB(db *gorm.DB, notifier Notifier) *Reconciler {
	repo := NewRepository(db)
	return NewReconciler(repo, NewWalletClientFromEnv(), NewCardClientFromEnv(), NewLinker(repo), notifier)
}

// HandleCallback parses a raw provider callback and applies the idempotent
// state transition it implies. Duplicate and out-of-order deliveries are
// reported as success without side effects; unknown event types are ignored
// so providers stop retrying.
func (r *Reconciler) HandleCallback(ctx context.Context, providerName string, raw []byte) (*ReconcileResult, error) {
	provider, ok := r.providers[providerName]
	if !ok {
		return nil, NewValidationError("provider", "unknown payment provider "+providerName)
	}

	cb, err := provider.ParseCallback(raw)
	if err != nil {
		return nil, err
	}
	if !cb.Recognized {
		log.Infof("[Payments] ignoring unrecognized %s callback event %q for %s", providerName, cb.EventType, cb.ExternalID)
		return &ReconcileResult{Ignored: true}, nil
	}

	result := &ReconcileResult{}

	entry, err := r.repo.GetByExternalID(providerName, cb.ExternalID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Some providers send the confirmation as the first and only
		// notification. Create the row directly in pending_approval.
		created, stored, uerr := r.repo.UpsertByExternalID(&models.Payment{
			Provider:   providerName,
			ExternalID: cb.ExternalID,
			Amount:     cb.Amount,
			Status:     models.PaymentStatusPendingApproval,
		})
		if uerr != nil {
			return nil, uerr
		}
		entry = stored
		result.Created = created
	} else if err != nil {
		return nil, err
	}

	if entry.IsTerminal() {
		result.Payment = entry
		result.Duplicate = true
		return result, nil
	}

	if entry.Status == models.PaymentStatusPending {
		if uerr := r.repo.UpdateStatus(entry.ID, models.PaymentStatusPending, models.PaymentStatusPendingApproval, ""); uerr != nil {
			if !IsConflict(uerr) {
				return nil, uerr
			}
			// A concurrent delivery moved the row; re-read and re-check.
			entry, err = r.repo.GetByExternalID(providerName, cb.ExternalID)
			if err != nil {
				return nil, err
			}
			if entry.IsTerminal() {
				result.Payment = entry
				result.Duplicate = true
				return result, nil
			}
		} else {
			entry.Status = models.PaymentStatusPendingApproval
		}
	}

	target := models.PaymentStatusFailed
	if provider.IsApproved(cb) {
		target = models.PaymentStatusApproved
	}

	if uerr := r.repo.UpdateStatus(entry.ID, models.PaymentStatusPendingApproval, target, cb.Raw); uerr != nil {
		if IsConflict(uerr) {
			// Lost the race against another delivery of the same callback;
			// that delivery owns the side effects.
			log.Infof("[Payments] duplicate %s callback for %s, transition already applied", providerName, cb.ExternalID)
			result.Payment = entry
			result.Duplicate = true
			return result, nil
		}
		return nil, uerr
	}

	entry.Status = target
	entry.RawCallbackJSON = cb.Raw
	result.Payment = entry
	result.Transitioned = true

	if target != models.PaymentStatusApproved {
		return result, nil
	}

	// Winning the compare-and-set above makes this goroutine the only one
	// that saw the transition into approved, so linking and notification run
	// exactly once per entry.
	if r.linker != nil {
		if lerr := r.linker.Link(ctx, entry); lerr != nil {
			log.Errorf("[Payments] entity linking failed for %s/%s: %v", providerName, cb.ExternalID, lerr)
		}
	}
	if r.notifier != nil {
		if nerr := r.notifier.PaymentApproved(ctx, entry); nerr != nil {
			log.Errorf("[Payments] approval notification failed for %s/%s: %v", providerName, cb.ExternalID, nerr)
		} else {
			result.Notified = true
		}
	}
	return result, nil
}
