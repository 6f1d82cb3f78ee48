// Package scraper holds one strategy per marketplace. Strategies share a
// uniform contract: build a search URL, wait for content, apply playbook rules,
// capture evidence, and extract candidate listings. Zero results is never an
// error; only navigation-level faults are surfaced, for the orchestrator's
// retry policy to classify.
package scraper

import (
	"context"

	"github.com/marcote/comphawk/internal/browser"
	"github.com/marcote/comphawk/internal/capture"
	"github.com/marcote/comphawk/internal/domain"
)

// Request is the per-source input for one strategy invocation.
type Request struct {
	JobID        string
	Query        string
	MaxComps     int
	RefSignature *domain.ImageSignature // non-nil only when pattern matching is on
}

// TileMatch pairs an extracted tile with its similarity score. Match is nil for
// the unscored fallback tiles returned when nothing clears the threshold.
type TileMatch struct {
	Tile  browser.Tile
	Match *domain.PatternMatch
}

// TileMatcher ranks a live page's tiles against a reference signature.
// Implemented by the pattern matcher in the service layer.
type TileMatcher interface {
	MatchTiles(ctx context.Context, sess browser.Session, ref domain.ImageSignature, q browser.TileQuery, maxComps int) ([]TileMatch, error)
}

// Env carries the capabilities a strategy runs against. Session is nil for
// strategies whose NeedsBrowser reports false.
type Env struct {
	Session  browser.Session
	Capturer *capture.Capturer
	Matcher  TileMatcher
	Rules    []domain.PlaybookRule
}

// Strategy is one marketplace scraper.
type Strategy interface {
	Source() domain.SourceID
	// NeedsBrowser reports whether Run requires Env.Session. Strategies that
	// parse server-rendered HTML fetch it themselves.
	NeedsBrowser() bool
	// Run executes one attempt. A returned error is a navigation-level fault
	// eligible for orchestrator retry; content-shape problems degrade to
	// empty or partial fields instead.
	Run(ctx context.Context, env Env, req Request) (*domain.SourceResult, error)
}

// tileToComp builds the lower-fidelity comp produced straight from a search
// results tile, before (or instead of) a detail-page visit.
func tileToComp(source domain.SourceID, t browser.Tile, match *domain.PatternMatch, notes string) domain.Comp {
	return domain.Comp{
		Source:          source,
		Title:           t.Title,
		URL:             t.Href,
		Price:           t.PriceText,
		SoldDate:        t.DateText,
		ListingImageURL: t.ThumbURL,
		Notes:           notes,
		PatternMatch:    match,
	}
}

// filterTiles drops tiles that are not real listings: ad placements, promo
// tiles, and anything missing a link or title.
func filterTiles(tiles []browser.Tile, placeholders []string) []browser.Tile {
	kept := make([]browser.Tile, 0, len(tiles))
	for _, t := range tiles {
		if t.Href == "" || t.Title == "" {
			continue
		}
		if isPlaceholderTitle(t.Title, placeholders) {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}

// filterMatches applies the same placeholder screen to matcher output. Promo
// tiles carry thumbnails like any listing, so one can clear the similarity
// threshold or ride along in the unscored fallback.
func filterMatches(matches []TileMatch, placeholders []string) []TileMatch {
	kept := make([]TileMatch, 0, len(matches))
	for _, m := range matches {
		if isPlaceholderTitle(m.Tile.Title, placeholders) {
			continue
		}
		kept = append(kept, m)
	}
	return kept
}

func isPlaceholderTitle(title string, placeholders []string) bool {
	for _, p := range placeholders {
		if title == p {
			return true
		}
	}
	return false
}
