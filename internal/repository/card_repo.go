package repository

import (
	"context"

	"github.com/marcote/comphawk/internal/domain"
	"gorm.io/gorm"
)

// CardRepository touches the card asset fields this worker owns.
type CardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new CardRepository.
func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

// GetByID retrieves a card asset by its ID.
func (r *CardRepository) GetByID(ctx context.Context, id string) (*domain.CardAsset, error) {
	var card domain.CardAsset
	if err := r.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// UpdateReviewStage moves a card to the given review stage.
func (r *CardRepository) UpdateReviewStage(ctx context.Context, id string, stage domain.ReviewStage) error {
	return r.db.WithContext(ctx).
		Model(&domain.CardAsset{}).
		Where("id = ?", id).
		Update("review_stage", stage).Error
}
