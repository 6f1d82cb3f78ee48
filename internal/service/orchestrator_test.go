package service

import (
	"context"
	"errors"
	"testing"

	"github.com/marcote/comphawk/internal/browser"
	"github.com/marcote/comphawk/internal/domain"
	"github.com/marcote/comphawk/internal/scraper"
)

// fakeFactory hands out fresh fake sessions and remembers them.
type fakeFactory struct {
	sessions []*fakeSession
	err      error
}

func (f *fakeFactory) NewSession(ctx context.Context) (browser.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSession{}
	f.sessions = append(f.sessions, s)
	return s, nil
}

// scriptedStrategy returns its scripted outcomes in order, one per attempt.
type scriptedStrategy struct {
	source   domain.SourceID
	browser  bool
	outcomes []scriptedOutcome
	attempts int
}

type scriptedOutcome struct {
	result *domain.SourceResult
	err    error
}

func (s *scriptedStrategy) Source() domain.SourceID { return s.source }
func (s *scriptedStrategy) NeedsBrowser() bool      { return s.browser }
func (s *scriptedStrategy) Run(ctx context.Context, env scraper.Env, req scraper.Request) (*domain.SourceResult, error) {
	i := s.attempts
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	s.attempts++
	out := s.outcomes[i]
	return out.result, out.err
}

func okResult(source domain.SourceID, comps int) *domain.SourceResult {
	r := &domain.SourceResult{
		Source:    source,
		SearchURL: "https://example.com/search",
		Comps:     []domain.Comp{},
	}
	for i := 0; i < comps; i++ {
		r.Comps = append(r.Comps, domain.Comp{Source: source, Title: "Listing", URL: "https://example.com/item"})
	}
	return r
}

func testJob(sources ...domain.SourceID) *domain.CompJob {
	return &domain.CompJob{
		ID:          "job-1",
		SearchQuery: "2017 Example Card #1",
		Sources:     sources,
		MaxComps:    5,
	}
}

func TestCollectRetriesTransientFault(t *testing.T) {
	crashed := &browser.Error{Kind: browser.ErrKindSessionCrashed, Err: errors.New("target crashed")}
	strat := &scriptedStrategy{
		source:  domain.SourceSoldListings,
		browser: true,
		outcomes: []scriptedOutcome{
			{err: crashed},
			{result: okResult(domain.SourceSoldListings, 3)},
		},
	}
	factory := &fakeFactory{}
	orch := NewOrchestrator(factory, nil, nil, []scraper.Strategy{strat})

	results := orch.Collect(context.Background(), testJob(domain.SourceSoldListings), nil, nil)

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Error != "" {
		t.Errorf("retried source carries error %q, want none", results[0].Error)
	}
	if len(results[0].Comps) != 3 {
		t.Errorf("got %d comps, want 3", len(results[0].Comps))
	}
	if strat.attempts != 2 {
		t.Errorf("strategy ran %d times, want 2", strat.attempts)
	}
	if len(factory.sessions) != 2 {
		t.Fatalf("created %d sessions, want a fresh one per attempt", len(factory.sessions))
	}
	for i, s := range factory.sessions {
		if s.released != 1 {
			t.Errorf("session %d released %d times, want exactly 1", i, s.released)
		}
	}
}

func TestCollectDoesNotRetryNonRetryable(t *testing.T) {
	strat := &scriptedStrategy{
		source:  domain.SourceSoldListings,
		browser: true,
		outcomes: []scriptedOutcome{
			{err: errors.New("malformed search url")},
			{result: okResult(domain.SourceSoldListings, 3)},
		},
	}
	factory := &fakeFactory{}
	orch := NewOrchestrator(factory, nil, nil, []scraper.Strategy{strat})

	results := orch.Collect(context.Background(), testJob(domain.SourceSoldListings), nil, nil)

	if strat.attempts != 1 {
		t.Errorf("strategy ran %d times, want 1", strat.attempts)
	}
	if results[0].Error == "" {
		t.Error("degraded source result is missing its error message")
	}
	if len(results[0].Comps) != 0 {
		t.Errorf("degraded source result has %d comps, want 0", len(results[0].Comps))
	}
}

func TestCollectFailureDoesNotBlockOtherSources(t *testing.T) {
	broken := &scriptedStrategy{
		source:   domain.SourceSoldListings,
		browser:  true,
		outcomes: []scriptedOutcome{{err: errors.New("boom")}},
	}
	fine := &scriptedStrategy{
		source:   domain.SourceLiveListings,
		outcomes: []scriptedOutcome{{result: okResult(domain.SourceLiveListings, 2)}},
	}
	agg := &scriptedStrategy{
		source:   domain.SourcePriceAggregator,
		outcomes: []scriptedOutcome{{result: okResult(domain.SourcePriceAggregator, 1)}},
	}
	orch := NewOrchestrator(&fakeFactory{}, nil, nil, []scraper.Strategy{broken, fine, agg})

	job := testJob(domain.SourceSoldListings, domain.SourceLiveListings, domain.SourcePriceAggregator)
	results := orch.Collect(context.Background(), job, nil, nil)

	if len(results) != 3 {
		t.Fatalf("got %d results, want one per requested source", len(results))
	}
	// output order must match request order
	wantOrder := []domain.SourceID{domain.SourceSoldListings, domain.SourceLiveListings, domain.SourcePriceAggregator}
	for i, want := range wantOrder {
		if results[i].Source != want {
			t.Errorf("result %d is %s, want %s", i, results[i].Source, want)
		}
	}
	if results[0].Error == "" {
		t.Error("broken source should record its error")
	}
	if len(results[1].Comps) != 2 || len(results[2].Comps) != 1 {
		t.Errorf("healthy sources degraded alongside the broken one: %+v", results)
	}
}

func TestCollectUnknownSource(t *testing.T) {
	orch := NewOrchestrator(&fakeFactory{}, nil, nil, nil)

	results := orch.Collect(context.Background(), testJob("nonsense"), nil, nil)

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Error != "unknown source" {
		t.Errorf("Error = %q, want %q", results[0].Error, "unknown source")
	}
}

func TestCollectSessionAcquireFailure(t *testing.T) {
	strat := &scriptedStrategy{
		source:   domain.SourceSoldListings,
		browser:  true,
		outcomes: []scriptedOutcome{{result: okResult(domain.SourceSoldListings, 1)}},
	}
	factory := &fakeFactory{err: errors.New("browser gone")}
	orch := NewOrchestrator(factory, nil, nil, []scraper.Strategy{strat})

	results := orch.Collect(context.Background(), testJob(domain.SourceSoldListings), nil, nil)

	if strat.attempts != 0 {
		t.Errorf("strategy ran without a session")
	}
	if results[0].Error == "" {
		t.Error("session acquire failure should degrade to a recorded error")
	}
}

// panicStrategy simulates a strategy blowing up mid-scrape.
type panicStrategy struct{ attempts int }

func (p *panicStrategy) Source() domain.SourceID { return domain.SourceSoldListings }
func (p *panicStrategy) NeedsBrowser() bool      { return true }
func (p *panicStrategy) Run(ctx context.Context, env scraper.Env, req scraper.Request) (*domain.SourceResult, error) {
	p.attempts++
	panic("selector walk on detached node")
}

func TestCollectRecoversStrategyPanic(t *testing.T) {
	strat := &panicStrategy{}
	factory := &fakeFactory{}
	orch := NewOrchestrator(factory, nil, nil, []scraper.Strategy{strat})

	results := orch.Collect(context.Background(), testJob(domain.SourceSoldListings), nil, nil)

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Error == "" {
		t.Error("panicking source should record a degraded result with an error")
	}
	if strat.attempts != 1 {
		t.Errorf("non-retryable panic ran %d attempts, want 1", strat.attempts)
	}
	if len(factory.sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(factory.sessions))
	}
	if factory.sessions[0].released != 1 {
		t.Errorf("session released %d times, want 1", factory.sessions[0].released)
	}
}
