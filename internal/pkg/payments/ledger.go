package payments

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/academyhq/academy-server/app/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the persistence surface of the payment ledger. The ledger
// exclusively owns Payment lifecycle; status transitions go through
// UpdateStatus and nothing else.
type Repository interface {
	UpsertByExternalID(p *models.Payment) (created bool, stored *models.Payment, err error)
	GetByExternalID(provider, externalID string) (*models.Payment, error)
	GetByReference(reference string) (*models.Payment, error)
	UpdateStatus(id uint, fromStatus, toStatus, rawPayload string) error
	AppendNote(id uint, note string) error
	LinkEntity(id uint, entityType string, entityID uint) error
	MarkNeedsReview(id uint) error
	ListNeedsReview() ([]models.Payment, error)

	ListActivePlayers() ([]models.Player, error)
	ListFamilies() ([]models.Family, error)
	ListActiveSponsors() ([]models.Sponsor, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) UpsertByExternalID(p *models.Payment) (bool, *models.Payment, error) {
	if strings.TrimSpace(p.Provider) == "" || strings.TrimSpace(p.ExternalID) == "" {
		return false, nil, errors.New("provider and external_id are required")
	}
	if p.Reference == "" {
		p.Reference = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.PaymentStatusPending
	}

	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "external_id"},
		},
		DoNothing: true,
	}).Create(p)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.Payment
	if err := r.db.Where("provider = ? AND external_id = ?", p.Provider, p.ExternalID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) GetByExternalID(provider, externalID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("provider = ? AND external_id = ?", provider, externalID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetByReference(reference string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.Where("reference = ?", reference).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus applies a conditional transition keyed on the expected current
// status. Losing the race (or trying to leave a terminal state) yields a
// ConflictError and leaves the row untouched.
func (r *gormRepository) UpdateStatus(id uint, fromStatus, toStatus, rawPayload string) error {
	if !models.IsValidPaymentStatus(toStatus) {
		return NewValidationError("status", fmt.Sprintf("unknown payment status %q", toStatus))
	}
	if models.IsTerminalPaymentStatus(fromStatus) {
		return &ConflictError{Message: fmt.Sprintf("payment %d is already %s", id, fromStatus)}
	}

	updates := map[string]interface{}{
		"status":     toStatus,
		"updated_at": time.Now(),
	}
	if rawPayload != "" {
		updates["raw_callback_json"] = rawPayload
	}

	tx := r.db.Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return &ConflictError{Message: fmt.Sprintf("payment %d changed concurrently, %s -> %s not applied", id, fromStatus, toStatus)}
	}
	return nil
}

func (r *gormRepository) AppendNote(id uint, note string) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil
	}
	return r.db.Model(&models.Payment{}).
		Where("id = ?", id).
		Update("notes", gorm.Expr("CONCAT(COALESCE(notes, ''), ?)", "\n"+note)).Error
}

func (r *gormRepository) LinkEntity(id uint, entityType string, entityID uint) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"entity_type":  entityType,
		"entity_id":    entityID,
		"needs_review": false,
	}).Error
}

func (r *gormRepository) MarkNeedsReview(id uint) error {
	return r.db.Model(&models.Payment{}).Where("id = ?", id).
		Update("needs_review", true).Error
}

func (r *gormRepository) ListNeedsReview() ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.Where("needs_review = ?", true).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *gormRepository) ListActivePlayers() ([]models.Player, error) {
	var out []models.Player
	err := r.db.Where("active = ?", true).Find(&out).Error
	return out, err
}

func (r *gormRepository) ListFamilies() ([]models.Family, error) {
	var out []models.Family
	err := r.db.Find(&out).Error
	return out, err
}

func (r *gormRepository) ListActiveSponsors() ([]models.Sponsor, error) {
	var out []models.Sponsor
	err := r.db.Where("active = ?", true).Find(&out).Error
	return out, err
}
