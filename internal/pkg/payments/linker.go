package payments

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/academyhq/academy-server/app/models"
	"github.com/gofiber/fiber/v2/log"
)

var entityMarkerRe = regexp.MustCompile(`entity:(player|family|sponsor):(\d+)`)

// Linker associates ledger entries with business entities on a best-effort
// basis. It never fails the payment flow: an entry it cannot match stays
// valid and is flagged for manual review instead.
type Linker struct {
	repo Repository
}

// NewLinker creates a linker over the ledger repository.
func NewLinker(repo Repository) *Linker {
	return &Linker{repo: repo}
}

// Link resolves the entity reference for a payment, in priority order:
// explicit entity marker embedded at order-creation time, an existing link
// (kept as-is), then case-insensitive substring matching of known names
// against the entry's notes. Re-running never replaces an existing link with
// a lower-confidence match.
func (l *Linker) Link(ctx context.Context, p *models.Payment) error {
	_ = ctx

	if entityType, entityID, ok := parseEntityMarker(p.Notes); ok {
		if err := l.repo.LinkEntity(p.ID, entityType, entityID); err != nil {
			return err
		}
		p.EntityType = entityType
		p.EntityID = &entityID
		p.NeedsReview = false
		return nil
	}

	if p.EntityID != nil && *p.EntityID != 0 {
		return nil
	}

	entityType, entityID, found, err := l.matchByName(p.Notes)
	if err != nil {
		return err
	}
	if !found {
		log.Infof("[Payments] no entity match for payment %s/%s, flagging for review", p.Provider, p.ExternalID)
		if err := l.repo.MarkNeedsReview(p.ID); err != nil {
			return err
		}
		p.NeedsReview = true
		return nil
	}

	if err := l.repo.LinkEntity(p.ID, entityType, entityID); err != nil {
		return err
	}
	p.EntityType = entityType
	p.EntityID = &entityID
	p.NeedsReview = false
	return nil
}

func parseEntityMarker(notes string) (string, uint, bool) {
	m := entityMarkerRe.FindStringSubmatch(notes)
	if m == nil {
		return "", 0, false
	}
	id, err := strconv.ParseUint(m[2], 10, 32)
	if err != nil || id == 0 {
		return "", 0, false
	}
	return m[1], uint(id), true
}

// matchByName scans known entity names for a case-insensitive substring hit
// in the entry's notes. Matching is heuristic by design; common names can
// collide, which is why an unmatched entry is preferred over a forced match.
func (l *Linker) matchByName(notes string) (string, uint, bool, error) {
	haystack := strings.ToLower(notes)
	if strings.TrimSpace(haystack) == "" {
		return "", 0, false, nil
	}

	players, err := l.repo.ListActivePlayers()
	if err != nil {
		return "", 0, false, err
	}
	for _, player := range players {
		if nameMatches(haystack, player.FullName) {
			return models.PaymentEntityPlayer, player.ID, true, nil
		}
	}

	families, err := l.repo.ListFamilies()
	if err != nil {
		return "", 0, false, err
	}
	for _, family := range families {
		if nameMatches(haystack, family.Name) {
			return models.PaymentEntityFamily, family.ID, true, nil
		}
	}

	sponsors, err := l.repo.ListActiveSponsors()
	if err != nil {
		return "", 0, false, err
	}
	for _, sponsor := range sponsors {
		if nameMatches(haystack, sponsor.FullName) {
			return models.PaymentEntitySponsor, sponsor.ID, true, nil
		}
	}

	return "", 0, false, nil
}

func nameMatches(haystack, name string) bool {
	needle := strings.ToLower(strings.TrimSpace(name))
	if len(needle) < 3 {
		// Too short to be a meaningful match.
		return false
	}
	return strings.Contains(haystack, needle)
}
