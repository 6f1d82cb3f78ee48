package domain

import "time"

// MatchTier is a discrete confidence bucket derived from a similarity score.
type MatchTier string

const (
	TierVerified MatchTier = "verified"
	TierLikely   MatchTier = "likely"
	TierWeak     MatchTier = "weak"
	TierNone     MatchTier = "none"
)

// PatternMatch records how closely a listing photo matched the reference image.
type PatternMatch struct {
	Score         float64   `json:"score"`
	Distance      int       `json:"distance"`
	ColorDistance float64   `json:"colorDistance"`
	Tier          MatchTier `json:"tier"`
}

// Comp is one external listing used as pricing evidence. Immutable once placed
// in a JobResult.
type Comp struct {
	Source          SourceID      `json:"source"`
	Title           string        `json:"title"`
	URL             string        `json:"url"`
	Price           string        `json:"price"`
	SoldDate        string        `json:"soldDate"`
	ScreenshotURL   string        `json:"screenshotUrl"`
	ListingImageURL string        `json:"listingImageUrl"`
	Notes           string        `json:"notes"`
	PatternMatch    *PatternMatch `json:"patternMatch"`
}

// SourceResult is the outcome of one source attempt. Error set with empty comps
// signals a degraded-but-not-fatal attempt; it never fails the job.
type SourceResult struct {
	Source              SourceID `json:"source"`
	SearchURL           string   `json:"searchUrl"`
	SearchScreenshotURL string   `json:"searchScreenshotUrl"`
	Comps               []Comp   `json:"comps"`
	Error               string   `json:"error,omitempty"`
}

// JobResult is the full output persisted when a job completes. Its JSON shape is
// the contract downstream consumers depend on; field names must not change.
type JobResult struct {
	JobID       string         `json:"jobId"`
	CardAssetID string         `json:"subjectId,omitempty"`
	SearchQuery string         `json:"searchQuery"`
	GeneratedAt string         `json:"generatedAt"`
	Sources     []SourceResult `json:"sources"`
}

// NewJobResult builds the result envelope for a job, stamping generatedAt in
// RFC3339 UTC.
func NewJobResult(job *CompJob, sources []SourceResult) *JobResult {
	return &JobResult{
		JobID:       job.ID,
		CardAssetID: job.CardAssetID,
		SearchQuery: job.SearchQuery,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Sources:     sources,
	}
}

// ImageSignature is a compact perceptual fingerprint of an image: a 64-bit
// mean-threshold hash over an 8x8 greyscale grid plus the average color.
// Signatures of unequal origin are still comparable (fixed length).
type ImageSignature struct {
	HashBits uint64 `json:"hashBits,string"`
	AvgR     uint8  `json:"avgR"`
	AvgG     uint8  `json:"avgG"`
	AvgB     uint8  `json:"avgB"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}
