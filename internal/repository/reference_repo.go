package repository

import (
	"context"
	"errors"

	"github.com/marcote/comphawk/internal/domain"
	"gorm.io/gorm"
)

// ReferenceRepository handles uploaded reference images awaiting preprocessing.
type ReferenceRepository struct {
	db *gorm.DB
}

// NewReferenceRepository creates a new ReferenceRepository.
func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// NextPending returns the oldest pending reference image, or nil when none.
func (r *ReferenceRepository) NextPending(ctx context.Context) (*domain.ReferenceImage, error) {
	var ref domain.ReferenceImage
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.ReferenceStatusPending).
		Order("created_at ASC").
		First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// MarkReady stores the quality score and crop URLs and flips status to ready.
func (r *ReferenceRepository) MarkReady(ctx context.Context, id string, qualityScore float64, cropsJSON string) error {
	return r.db.WithContext(ctx).
		Model(&domain.ReferenceImage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        domain.ReferenceStatusReady,
			"quality_score": qualityScore,
			"crops_json":    cropsJSON,
			"error":         "",
		}).Error
}

// MarkFailed records a preprocessing failure.
func (r *ReferenceRepository) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&domain.ReferenceImage{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": domain.ReferenceStatusFailed,
			"error":  errMsg,
		}).Error
}

// LatestReadyForCard returns the newest ready reference image for a card, or nil.
func (r *ReferenceRepository) LatestReadyForCard(ctx context.Context, cardAssetID string) (*domain.ReferenceImage, error) {
	var ref domain.ReferenceImage
	err := r.db.WithContext(ctx).
		Where("card_asset_id = ? AND status = ?", cardAssetID, domain.ReferenceStatusReady).
		Order("created_at DESC").
		First(&ref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
