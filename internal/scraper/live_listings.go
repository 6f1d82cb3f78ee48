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

const liveContentWait = 15 * time.Second

var liveTileQuery = browser.TileQuery{
	Root:  "li.s-item",
	Title: ".s-item__title",
	Link:  "a.s-item__link",
	Price: ".s-item__price",
	Thumb: ".s-item__image img",
}

// LiveListings scrapes current (not yet sold) listings. Live asking prices are
// weaker evidence than completed sales, so this strategy stays on the search
// page and emits tile-only comps instead of visiting detail pages.
type LiveListings struct{}

func NewLiveListings() *LiveListings { return &LiveListings{} }

func (s *LiveListings) Source() domain.SourceID { return domain.SourceLiveListings }

func (s *LiveListings) NeedsBrowser() bool { return true }

func liveSearchURL(query string) string {
	return fmt.Sprintf(
		"https://www.ebay.com/sch/i.html?_nkw=%s&_ipg=60&rt=nc",
		url.QueryEscape(query),
	)
}

func (s *LiveListings) Run(ctx context.Context, env Env, req Request) (*domain.SourceResult, error) {
	searchURL := liveSearchURL(req.Query)
	result := &domain.SourceResult{
		Source:    s.Source(),
		SearchURL: searchURL,
		Comps:     []domain.Comp{},
	}

	if err := env.Session.Navigate(searchURL); err != nil {
		return nil, err
	}
	if !env.Session.WaitVisible(liveTileQuery.Root, liveContentWait) {
		logger.CtxInfo(ctx, "No content marker on live listings page, treating as no items")
	}
	ApplyRules(ctx, env.Session, env.Rules, s.Source(), searchURL)

	result.SearchScreenshotURL = env.Capturer.CapturePage(ctx, env.Session, req.JobID, "live-search")

	var candidates []TileMatch
	if req.RefSignature != nil && env.Matcher != nil {
		matched, err := env.Matcher.MatchTiles(ctx, env.Session, *req.RefSignature, liveTileQuery, req.MaxComps)
		if err != nil {
			return nil, err
		}
		candidates = filterMatches(matched, soldPlaceholderTitles)
	} else {
		tiles, err := env.Session.Tiles(liveTileQuery)
		if err != nil {
			return nil, err
		}
		for _, t := range filterTiles(tiles, soldPlaceholderTitles) {
			candidates = append(candidates, TileMatch{Tile: t})
		}
	}
	if len(candidates) > req.MaxComps {
		candidates = candidates[:req.MaxComps]
	}

	for _, cand := range candidates {
		result.Comps = append(result.Comps,
			tileToComp(s.Source(), cand.Tile, cand.Match, "current listing; asking price from search tile"))
	}
	return result, nil
}
