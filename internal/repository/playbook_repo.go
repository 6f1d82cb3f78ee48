package repository

import (
	"context"

	"github.com/marcote/comphawk/internal/domain"
	"gorm.io/gorm"
)

// PlaybookRepository reads site-specific DOM rule playbooks. Rules are owned by
// operators; this worker only consumes them.
type PlaybookRepository struct {
	db *gorm.DB
}

// NewPlaybookRepository creates a new PlaybookRepository.
func NewPlaybookRepository(db *gorm.DB) *PlaybookRepository {
	return &PlaybookRepository{db: db}
}

// ListForSources retrieves enabled rules for the given sources, priority descending.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - sources: sources whose rules to load.
// Returns:
//   - []domain.PlaybookRule: matching rules.
//   - error: non-nil if the query fails.
func (r *PlaybookRepository) ListForSources(ctx context.Context, sources []domain.SourceID) ([]domain.PlaybookRule, error) {
	var rules []domain.PlaybookRule
	if len(sources) == 0 {
		return rules, nil
	}
	if err := r.db.WithContext(ctx).
		Where("enabled = ? AND source IN ?", true, sources).
		Order("priority DESC").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}
