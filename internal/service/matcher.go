// Package service coordinates the pipeline: dispatching queued jobs to
// workers, orchestrating per-source scraping attempts, ranking tiles against a
// reference signature, and preprocessing uploaded reference images.
package service

import (
	"context"
	"sort"

	"github.com/marcote/comphawk/internal/browser"
	"github.com/marcote/comphawk/internal/domain"
	"github.com/marcote/comphawk/internal/imagesig"
	"github.com/marcote/comphawk/internal/logger"
	"github.com/marcote/comphawk/internal/scraper"
)

// SignatureFetcher computes a perceptual signature from an image URL.
// Satisfied by imagesig.Engine.
type SignatureFetcher interface {
	FetchSignature(ctx context.Context, url string) (*domain.ImageSignature, error)
}

// MatcherConfig holds the tuned matching constants. These came out of manual
// tuning against live pages and carry no documented derivation, so they stay
// configurable.
type MatcherConfig struct {
	MinScore     float64
	ScrollPasses int
	ScrollStep   int
}

// Matcher scans a source's listing tiles and ranks them by perceptual
// similarity to a reference signature. Scroll passes are strictly sequential
// to keep the browser session consistent.
type Matcher struct {
	engine SignatureFetcher
	cfg    MatcherConfig
}

func NewMatcher(engine SignatureFetcher, cfg MatcherConfig) *Matcher {
	if cfg.ScrollStep <= 0 {
		cfg.ScrollStep = 800
	}
	return &Matcher{engine: engine, cfg: cfg}
}

// MatchTiles collects tiles over bounded scroll passes, scores each unseen
// tile's thumbnail against ref, and returns up to maxComps matches ordered by
// descending score. When nothing clears MinScore it falls back to the first
// unscored tiles so the caller gets an honest "no confident match" rather than
// a substituted one.
func (m *Matcher) MatchTiles(ctx context.Context, sess browser.Session, ref domain.ImageSignature, q browser.TileQuery, maxComps int) ([]scraper.TileMatch, error) {
	seen := make(map[string]bool)
	matched := make([]scraper.TileMatch, 0, maxComps)
	var unscored []scraper.TileMatch

	for pass := 0; pass < m.cfg.ScrollPasses && len(matched) < maxComps; pass++ {
		tiles, err := sess.Tiles(q)
		if err != nil {
			return nil, err
		}

		for _, tile := range tiles {
			if tile.Href == "" || tile.Title == "" || seen[tile.Href] {
				continue
			}
			seen[tile.Href] = true
			if len(unscored) < maxComps {
				unscored = append(unscored, scraper.TileMatch{Tile: tile})
			}
			if tile.ThumbURL == "" {
				continue
			}

			sig, err := m.engine.FetchSignature(ctx, tile.ThumbURL)
			if err != nil {
				logger.CtxDebug(ctx, "Skipping tile %s, thumbnail signature failed: %v", tile.Href, err)
				continue
			}
			match := imagesig.Match(ref, *sig, m.cfg.MinScore)
			if match.Score >= m.cfg.MinScore {
				matched = append(matched, scraper.TileMatch{Tile: tile, Match: &match})
				if len(matched) >= maxComps {
					break
				}
			}
		}

		if len(matched) >= maxComps || pass == m.cfg.ScrollPasses-1 {
			break
		}
		if err := sess.ScrollBy(m.cfg.ScrollStep); err != nil {
			return nil, err
		}
	}

	if len(matched) == 0 {
		logger.CtxInfo(ctx, "No tile cleared the match threshold, returning %d unscored tiles", len(unscored))
		return unscored, nil
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Match.Score > matched[j].Match.Score
	})
	if len(matched) > maxComps {
		matched = matched[:maxComps]
	}
	return matched, nil
}
