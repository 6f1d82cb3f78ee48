package domain

import "time"

// ReviewStage tracks where a card asset sits in the valuation review flow.
type ReviewStage string

const (
	ReviewStagePending       ReviewStage = "pending"
	ReviewStageCompsGathered ReviewStage = "comps_gathered"
	ReviewStageReviewed      ReviewStage = "reviewed"
)

// CardAsset is the collectible item a job gathers evidence for. Only the fields
// this worker touches are modeled; the rest of the record belongs to the admin
// side of the system.
type CardAsset struct {
	ID           string      `gorm:"type:text;primaryKey" json:"id"`
	Title        string      `gorm:"type:text" json:"title"`
	ReviewStage  ReviewStage `gorm:"type:text;default:pending" json:"review_stage"`
	RefImageURL  string      `gorm:"type:text" json:"ref_image_url,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// TableName returns the database table name for CardAsset.
func (CardAsset) TableName() string {
	return "card_assets"
}

// AttachedComp is a comp promoted to a permanent evidence record on a card.
type AttachedComp struct {
	ID            string    `gorm:"type:text;primaryKey" json:"id"`
	CardAssetID   string    `gorm:"type:text;not null;index" json:"card_asset_id"`
	JobID         string    `gorm:"type:text;index" json:"job_id"`
	Source        SourceID  `gorm:"type:text" json:"source"`
	Title         string    `gorm:"type:text" json:"title"`
	ListingURL    string    `gorm:"type:text;index" json:"listing_url"`
	Price         string    `gorm:"type:text" json:"price"`
	SoldDate      string    `gorm:"type:text" json:"sold_date"`
	ScreenshotURL string    `gorm:"type:text" json:"screenshot_url"`
	MatchScore    float64   `json:"match_score"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for AttachedComp.
func (AttachedComp) TableName() string {
	return "attached_comps"
}

// ReferenceStatus is the processing state of an uploaded reference image.
type ReferenceStatus string

const (
	ReferenceStatusPending ReferenceStatus = "pending"
	ReferenceStatusReady   ReferenceStatus = "ready"
	ReferenceStatusFailed  ReferenceStatus = "failed"
)

// ReferenceImage is an uploaded photo of the physical item. A background loop
// scores its quality and generates normalized crops used for pattern matching.
type ReferenceImage struct {
	ID           string          `gorm:"type:text;primaryKey" json:"id"`
	CardAssetID  string          `gorm:"type:text;not null;index" json:"card_asset_id"`
	ImageURL     string          `gorm:"type:text;not null" json:"image_url"`
	Status       ReferenceStatus `gorm:"type:text;default:pending;index" json:"status"`
	QualityScore float64         `json:"quality_score"`
	CropsJSON    string          `gorm:"type:text" json:"crops_json,omitempty"`
	Error        string          `json:"error,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// TableName returns the database table name for ReferenceImage.
func (ReferenceImage) TableName() string {
	return "reference_images"
}
