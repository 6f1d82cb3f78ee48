package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JobStatus represents the lifecycle state of a comp-collection job.
// Values include JobStatusQueued, JobStatusRunning, JobStatusComplete, and JobStatusFailed.
type JobStatus string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusFailed   JobStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// SourceID identifies one external marketplace the orchestrator knows how to query.
type SourceID string

const (
	SourceSoldListings    SourceID = "sold_listings"
	SourceLiveListings    SourceID = "live_listings"
	SourcePriceAggregator SourceID = "price_aggregator"
)

// SourceList is a JSON-encoded ordered list of sources stored in a text column.
type SourceList []SourceID

// Value implements the driver.Valuer interface for database serialization.
func (l SourceList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements the sql.Scanner interface for database deserialization.
func (l *SourceList) Scan(value interface{}) error {
	if value == nil {
		*l = SourceList{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan SourceList")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, l)
}

// JobPayload is an opaque per-job config blob (category hints and the like)
// stored as JSON in a text column.
type JobPayload map[string]interface{}

// Value implements the driver.Valuer interface for database serialization.
func (p JobPayload) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	return json.Marshal(p)
}

// Scan implements the sql.Scanner interface for database deserialization.
func (p *JobPayload) Scan(value interface{}) error {
	if value == nil {
		*p = JobPayload{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan JobPayload")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, p)
}

// CompJob represents one queued comp-collection request. A job is created once,
// claimed by exactly one worker, and reaches exactly one terminal state.
type CompJob struct {
	ID          string     `gorm:"type:text;primaryKey" json:"id"`
	Status      JobStatus  `gorm:"default:QUEUED;index" json:"status"`
	CardAssetID string     `gorm:"type:text;index" json:"card_asset_id,omitempty"`
	SearchQuery string     `gorm:"type:text;not null" json:"search_query"`
	Sources     SourceList `gorm:"type:text" json:"sources"`
	MaxComps    int        `gorm:"default:5" json:"max_comps"`
	Payload     JobPayload `gorm:"type:text" json:"payload,omitempty"`
	WorkerID    string     `gorm:"type:text" json:"worker_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	ResultJSON  string     `gorm:"type:text" json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName returns the database table name for CompJob.
func (CompJob) TableName() string {
	return "comp_jobs"
}
