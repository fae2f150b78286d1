package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/academyhq/academy-server/app/models"
	"gorm.io/gorm"
)

// fakeRepo is an in-memory Repository with the same compare-and-set
// transition semantics as the GORM implementation.
type fakeRepo struct {
	mu     sync.Mutex
	nextID uint
	byID   map[uint]*models.Payment

	players  []models.Player
	families []models.Family
	sponsors []models.Sponsor
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[uint]*models.Payment)}
}

func (r *fakeRepo) findLocked(provider, externalID string) *models.Payment {
	for _, p := range r.byID {
		if p.Provider == provider && p.ExternalID == externalID {
			return p
		}
	}
	return nil
}

func (r *fakeRepo) UpsertByExternalID(p *models.Payment) (bool, *models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing := r.findLocked(p.Provider, p.ExternalID); existing != nil {
		cp := *existing
		return false, &cp, nil
	}

	r.nextID++
	p.ID = r.nextID
	if p.Status == "" {
		p.Status = models.PaymentStatusPending
	}
	if p.Reference == "" {
		p.Reference = fmt.Sprintf("ref-%d", p.ID)
	}
	cp := *p
	r.byID[p.ID] = &cp
	out := cp
	return true, &out, nil
}

func (r *fakeRepo) GetByExternalID(provider, externalID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p := r.findLocked(provider, externalID); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetByReference(reference string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.byID {
		if p.Reference == reference {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) UpdateStatus(id uint, fromStatus, toStatus, rawPayload string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if models.IsTerminalPaymentStatus(fromStatus) {
		return &ConflictError{Message: fmt.Sprintf("payment %d is already %s", id, fromStatus)}
	}
	if p.Status != fromStatus {
		return &ConflictError{Message: fmt.Sprintf("payment %d changed concurrently", id)}
	}
	p.Status = toStatus
	if rawPayload != "" {
		p.RawCallbackJSON = rawPayload
	}
	return nil
}

func (r *fakeRepo) AppendNote(id uint, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.byID[id]; ok {
		p.Notes += "\n" + note
	}
	return nil
}

func (r *fakeRepo) LinkEntity(id uint, entityType string, entityID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.EntityType = entityType
	eid := entityID
	p.EntityID = &eid
	p.NeedsReview = false
	return nil
}

func (r *fakeRepo) MarkNeedsReview(id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.byID[id]; ok {
		p.NeedsReview = true
	}
	return nil
}

func (r *fakeRepo) ListNeedsReview() ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.Payment
	for _, p := range r.byID {
		if p.NeedsReview {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListActivePlayers() ([]models.Player, error) {
	return r.players, nil
}

func (r *fakeRepo) ListFamilies() ([]models.Family, error) {
	return r.families, nil
}

func (r *fakeRepo) ListActiveSponsors() ([]models.Sponsor, error) {
	return r.sponsors, nil
}

func (r *fakeRepo) get(id uint) *models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.byID[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// countingNotifier records how often the approval notification fired.
type countingNotifier struct {
	mu    sync.Mutex
	calls int
	last  *models.Payment
}

func (n *countingNotifier) PaymentApproved(ctx context.Context, p *models.Payment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	cp := *p
	n.last = &cp
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}
