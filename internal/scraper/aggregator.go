package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/marcote/comphawk/internal/domain"
)

const aggregatorBaseURL = "https://www.sportscardspro.com"

// Aggregator queries a server-rendered price-aggregator site. It parses the
// fetched HTML directly, so it runs without a browser session and carries no
// search screenshot.
type Aggregator struct {
	client *resty.Client
}

func NewAggregator() *Aggregator {
	client := resty.New().
		SetTimeout(15 * time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36").
		SetHeader("Accept", "text/html")
	return &Aggregator{client: client}
}

func (s *Aggregator) Source() domain.SourceID { return domain.SourcePriceAggregator }

func (s *Aggregator) NeedsBrowser() bool { return false }

func aggregatorSearchURL(query string) string {
	return fmt.Sprintf("%s/search-products?q=%s&type=prices", aggregatorBaseURL, url.QueryEscape(query))
}

func (s *Aggregator) Run(ctx context.Context, env Env, req Request) (*domain.SourceResult, error) {
	searchURL := aggregatorSearchURL(req.Query)
	result := &domain.SourceResult{
		Source:    s.Source(),
		SearchURL: searchURL,
		Comps:     []domain.Comp{},
	}

	doc, err := s.fetchDocument(ctx, searchURL)
	if err != nil {
		return nil, err
	}
	result.Comps = s.parseRows(doc, req.MaxComps)

	if len(result.Comps) == 0 {
		if loosened := NormalizeQuery(req.Query); loosened != req.Query {
			doc, err = s.fetchDocument(ctx, aggregatorSearchURL(loosened))
			if err != nil {
				return nil, err
			}
			result.Comps = s.parseRows(doc, req.MaxComps)
		}
	}
	return result, nil
}

func (s *Aggregator) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := s.client.R().SetContext(ctx).Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch aggregator page: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("aggregator page returned status %d", resp.StatusCode())
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resp.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse aggregator page: %w", err)
	}
	return doc, nil
}

// parseRows extracts product rows. Cells are best effort: rows without a title
// and link are skipped, missing price or category cells degrade to empty
// fields.
func (s *Aggregator) parseRows(doc *goquery.Document, maxComps int) []domain.Comp {
	comps := []domain.Comp{}
	doc.Find("table#games_table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		titleLink := row.Find("td.title a").First()
		title := strings.TrimSpace(titleLink.Text())
		href, _ := titleLink.Attr("href")
		if title == "" || href == "" {
			return true
		}
		if strings.HasPrefix(href, "/") {
			href = aggregatorBaseURL + href
		}

		price := strings.TrimSpace(row.Find("td.price").First().Text())
		category := strings.TrimSpace(row.Find("td.console").First().Text())
		notes := "aggregated market price; not an individual sale"
		if category != "" {
			notes = notes + " (" + category + ")"
		}

		comps = append(comps, domain.Comp{
			Source: s.Source(),
			Title:  title,
			URL:    href,
			Price:  price,
			Notes:  notes,
		})
		return len(comps) < maxComps
	})
	return comps
}
