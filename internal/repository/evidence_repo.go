package repository

import (
	"context"

	"github.com/marcote/comphawk/internal/domain"
	"gorm.io/gorm"
)

// EvidenceRepository handles permanent comp evidence records attached to cards.
type EvidenceRepository struct {
	db *gorm.DB
}

// NewEvidenceRepository creates a new EvidenceRepository.
func NewEvidenceRepository(db *gorm.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

// AttachedURLs returns the set of listing URLs already attached to a card.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - cardAssetID: card to inspect.
// Returns:
//   - map[string]bool: attached listing URLs.
//   - error: non-nil if the query fails.
func (r *EvidenceRepository) AttachedURLs(ctx context.Context, cardAssetID string) (map[string]bool, error) {
	var urls []string
	if err := r.db.WithContext(ctx).
		Model(&domain.AttachedComp{}).
		Where("card_asset_id = ?", cardAssetID).
		Pluck("listing_url", &urls).Error; err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(urls))
	for _, u := range urls {
		seen[u] = true
	}
	return seen, nil
}

// AttachBatch inserts evidence records in one transaction.
func (r *EvidenceRepository) AttachBatch(ctx context.Context, comps []domain.AttachedComp) error {
	if len(comps) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&comps).Error
}

// ListByCard retrieves evidence records for a card, newest first.
func (r *EvidenceRepository) ListByCard(ctx context.Context, cardAssetID string, limit int) ([]domain.AttachedComp, error) {
	var comps []domain.AttachedComp
	if err := r.db.WithContext(ctx).
		Where("card_asset_id = ?", cardAssetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&comps).Error; err != nil {
		return nil, err
	}
	return comps, nil
}
