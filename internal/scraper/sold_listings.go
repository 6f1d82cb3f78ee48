package scraper

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/marcote/comphawk/internal/browser"
	"github.com/marcote/comphawk/internal/domain"
	"github.com/marcote/comphawk/internal/logger"
)

const soldContentWait = 15 * time.Second

// soldTileQuery maps the sold-listings results page to candidate tiles. The
// page structure is external and unstable; every selector is best effort.
var soldTileQuery = browser.TileQuery{
	Root:  "li.s-item",
	Title: ".s-item__title",
	Link:  "a.s-item__link",
	Price: ".s-item__price",
	Date:  ".s-item__caption .POSITIVE",
	Thumb: ".s-item__image img",
}

// soldPlaceholderTitles are promo tiles the results page injects between real
// listings.
var soldPlaceholderTitles = []string{"Shop on eBay", "New Listing"}

// SoldListings scrapes the sold/completed listings marketplace. It opens each
// candidate's detail page for a higher-fidelity price, a listing image, and a
// per-comp evidence screenshot.
type SoldListings struct{}

func NewSoldListings() *SoldListings { return &SoldListings{} }

func (s *SoldListings) Source() domain.SourceID { return domain.SourceSoldListings }

func (s *SoldListings) NeedsBrowser() bool { return true }

func soldSearchURL(query string) string {
	return fmt.Sprintf(
		"https://www.ebay.com/sch/i.html?_nkw=%s&LH_Sold=1&LH_Complete=1&_ipg=60",
		url.QueryEscape(query),
	)
}

func (s *SoldListings) Run(ctx context.Context, env Env, req Request) (*domain.SourceResult, error) {
	searchURL := soldSearchURL(req.Query)
	result := &domain.SourceResult{
		Source:    s.Source(),
		SearchURL: searchURL,
		Comps:     []domain.Comp{},
	}

	if err := env.Session.Navigate(searchURL); err != nil {
		return nil, err
	}
	if !env.Session.WaitVisible(soldTileQuery.Root, soldContentWait) {
		logger.CtxInfo(ctx, "No content marker on sold listings page, treating as no items")
	}
	ApplyRules(ctx, env.Session, env.Rules, s.Source(), searchURL)

	result.SearchScreenshotURL = env.Capturer.CapturePage(ctx, env.Session, req.JobID, "sold-search")

	candidates, err := s.collectCandidates(ctx, env, req)
	if err != nil {
		return nil, err
	}
	if len(candidates) > req.MaxComps {
		candidates = candidates[:req.MaxComps]
	}

	for i, cand := range candidates {
		comp := tileToComp(s.Source(), cand.Tile, cand.Match, "")
		if err := s.enrichFromDetail(ctx, env, req, i, &comp); err != nil {
			return nil, err
		}
		result.Comps = append(result.Comps, comp)
	}
	return result, nil
}

// collectCandidates gathers tiles, routed through the pattern matcher when a
// reference signature is present. With zero results it retries once with a
// loosened query before giving up.
func (s *SoldListings) collectCandidates(ctx context.Context, env Env, req Request) ([]TileMatch, error) {
	if req.RefSignature != nil && env.Matcher != nil {
		matched, err := env.Matcher.MatchTiles(ctx, env.Session, *req.RefSignature, soldTileQuery, req.MaxComps)
		if err != nil {
			return nil, err
		}
		return filterMatches(matched, soldPlaceholderTitles), nil
	}

	tiles, err := env.Session.Tiles(soldTileQuery)
	if err != nil {
		return nil, err
	}
	tiles = filterTiles(tiles, soldPlaceholderTitles)

	if len(tiles) == 0 {
		if loosened := NormalizeQuery(req.Query); loosened != req.Query {
			logger.CtxInfo(ctx, "Zero sold listings for %q, retrying with loosened query %q", req.Query, loosened)
			if err := env.Session.Navigate(soldSearchURL(loosened)); err != nil {
				return nil, err
			}
			env.Session.WaitVisible(soldTileQuery.Root, soldContentWait)
			tiles, err = env.Session.Tiles(soldTileQuery)
			if err != nil {
				return nil, err
			}
			tiles = filterTiles(tiles, soldPlaceholderTitles)
		}
	}

	candidates := make([]TileMatch, 0, len(tiles))
	for _, t := range tiles {
		candidates = append(candidates, TileMatch{Tile: t})
	}
	return candidates, nil
}

// enrichFromDetail visits the comp's detail page for a better price, the full
// listing image, and a detail screenshot. A dead session propagates so the
// whole source attempt can be retried fresh; anything else degrades the comp
// to its tile data with a note.
func (s *SoldListings) enrichFromDetail(ctx context.Context, env Env, req Request, idx int, comp *domain.Comp) error {
	if err := env.Session.Navigate(comp.URL); err != nil {
		if browser.Classify(err).Retryable() {
			return err
		}
		logger.CtxWarn(ctx, "Detail page for %s did not load: %v", comp.URL, err)
		comp.Notes = "search tile only; detail page failed to load"
		return nil
	}

	if price, ok := env.Session.Text(".x-price-primary .ux-textspans"); ok && price != "" {
		comp.Price = price
	}
	if img, ok := env.Session.Attr(".ux-image-carousel-item img", "src"); ok && img != "" {
		comp.ListingImageURL = img
	}
	comp.ScreenshotURL = env.Capturer.CapturePage(ctx, env.Session, req.JobID, fmt.Sprintf("sold-detail-%d", idx))
	return nil
}
