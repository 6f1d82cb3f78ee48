package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/marcote/comphawk/internal/domain"
	"github.com/marcote/comphawk/internal/scraper"
)

type fakeJobStore struct {
	completed     map[string]string
	failed        map[string]string
	completeErrs  int // fail this many MarkComplete calls before succeeding
	completeCalls int
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{completed: map[string]string{}, failed: map[string]string{}}
}

func (f *fakeJobStore) ClaimNext(ctx context.Context, workerID string) (*domain.CompJob, error) {
	return nil, nil
}
func (f *fakeJobStore) MarkComplete(ctx context.Context, jobID string, resultJSON string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.completeCalls++
	if f.completeCalls <= f.completeErrs {
		return errors.New("status write failed")
	}
	f.completed[jobID] = resultJSON
	return nil
}
func (f *fakeJobStore) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.failed[jobID] = errMsg
	return nil
}

type fakePlaybookStore struct{ rules []domain.PlaybookRule }

func (f *fakePlaybookStore) ListForSources(ctx context.Context, sources []domain.SourceID) ([]domain.PlaybookRule, error) {
	return f.rules, nil
}

type fakeCardStore struct{ stages map[string]domain.ReviewStage }

func (f *fakeCardStore) UpdateReviewStage(ctx context.Context, id string, stage domain.ReviewStage) error {
	f.stages[id] = stage
	return nil
}

type fakeEvidenceStore struct {
	existing map[string]bool
	attached []domain.AttachedComp
}

func (f *fakeEvidenceStore) AttachedURLs(ctx context.Context, cardAssetID string) (map[string]bool, error) {
	urls := make(map[string]bool, len(f.existing))
	for k, v := range f.existing {
		urls[k] = v
	}
	return urls, nil
}
func (f *fakeEvidenceStore) AttachBatch(ctx context.Context, comps []domain.AttachedComp) error {
	f.attached = append(f.attached, comps...)
	return nil
}

type fakeReferenceStore struct{ ref *domain.ReferenceImage }

func (f *fakeReferenceStore) LatestReadyForCard(ctx context.Context, cardAssetID string) (*domain.ReferenceImage, error) {
	return f.ref, nil
}

// soldResultStrategy returns a fixed sold-listings result without a browser.
type soldResultStrategy struct{ result *domain.SourceResult }

func (s *soldResultStrategy) Source() domain.SourceID { return domain.SourceSoldListings }
func (s *soldResultStrategy) NeedsBrowser() bool      { return false }
func (s *soldResultStrategy) Run(ctx context.Context, env scraper.Env, req scraper.Request) (*domain.SourceResult, error) {
	return s.result, nil
}

func newTestDispatcher(jobs *fakeJobStore, evidence *fakeEvidenceStore, cards *fakeCardStore, result *domain.SourceResult) *Dispatcher {
	orch := NewOrchestrator(&fakeFactory{}, nil, nil, []scraper.Strategy{&soldResultStrategy{result: result}})
	return NewDispatcher(
		jobs,
		&fakePlaybookStore{},
		cards,
		evidence,
		&fakeReferenceStore{},
		&fakeFetcher{},
		orch,
		DispatcherConfig{
			Concurrency:    1,
			PollInterval:   time.Millisecond,
			AutoAttachTopK: 2,
		},
	)
}

func TestProcessReachesTerminalState(t *testing.T) {
	jobs := newFakeJobStore()
	cards := &fakeCardStore{stages: map[string]domain.ReviewStage{}}
	evidence := &fakeEvidenceStore{existing: map[string]bool{}}
	sold := okResult(domain.SourceSoldListings, 2)
	d := newTestDispatcher(jobs, evidence, cards, sold)

	job := testJob(domain.SourceSoldListings)
	job.CardAssetID = "card-1"
	d.process(context.Background(), job)

	raw, ok := jobs.completed[job.ID]
	if !ok {
		t.Fatalf("job not marked complete; failed=%v", jobs.failed)
	}

	var result domain.JobResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		t.Fatalf("persisted result is not valid JSON: %v", err)
	}
	if result.JobID != job.ID {
		t.Errorf("jobId = %q, want %q", result.JobID, job.ID)
	}
	if result.CardAssetID != "card-1" {
		t.Errorf("subjectId = %q, want card-1", result.CardAssetID)
	}
	if len(result.Sources) != 1 || result.Sources[0].Source != domain.SourceSoldListings {
		t.Errorf("unexpected sources in result: %+v", result.Sources)
	}
	if _, err := time.Parse(time.RFC3339, result.GeneratedAt); err != nil {
		t.Errorf("generatedAt %q is not RFC3339: %v", result.GeneratedAt, err)
	}

	if cards.stages["card-1"] != domain.ReviewStageCompsGathered {
		t.Errorf("review stage = %v, want comps_gathered", cards.stages["card-1"])
	}
}

func TestProcessFailsJobWithoutSources(t *testing.T) {
	jobs := newFakeJobStore()
	d := newTestDispatcher(jobs, &fakeEvidenceStore{}, &fakeCardStore{stages: map[string]domain.ReviewStage{}}, nil)

	job := testJob()
	d.process(context.Background(), job)

	if _, ok := jobs.completed[job.ID]; ok {
		t.Fatal("job without sources must not complete")
	}
	if msg := jobs.failed[job.ID]; msg != "no sources configured" {
		t.Errorf("failure message = %q, want %q", msg, "no sources configured")
	}
}

func TestAutoAttachDedupesAndCaps(t *testing.T) {
	jobs := newFakeJobStore()
	cards := &fakeCardStore{stages: map[string]domain.ReviewStage{}}
	evidence := &fakeEvidenceStore{existing: map[string]bool{
		"https://example.com/item/0": true,
	}}

	sold := &domain.SourceResult{
		Source: domain.SourceSoldListings,
		Comps: []domain.Comp{
			{Source: domain.SourceSoldListings, Title: "already attached", URL: "https://example.com/item/0"},
			{Source: domain.SourceSoldListings, Title: "first new", URL: "https://example.com/item/1", PatternMatch: &domain.PatternMatch{Score: 0.95, Tier: domain.TierVerified}},
			{Source: domain.SourceSoldListings, Title: "second new", URL: "https://example.com/item/2"},
			{Source: domain.SourceSoldListings, Title: "over the cap", URL: "https://example.com/item/3"},
		},
	}
	d := newTestDispatcher(jobs, evidence, cards, sold)

	job := testJob(domain.SourceSoldListings)
	job.CardAssetID = "card-1"
	d.process(context.Background(), job)

	if len(evidence.attached) != 2 {
		t.Fatalf("attached %d comps, want TopK=2", len(evidence.attached))
	}
	if evidence.attached[0].ListingURL != "https://example.com/item/1" {
		t.Errorf("first attached = %q, want the first unattached URL", evidence.attached[0].ListingURL)
	}
	if evidence.attached[0].MatchScore != 0.95 {
		t.Errorf("match score not carried onto the evidence record: %v", evidence.attached[0].MatchScore)
	}
	for _, a := range evidence.attached {
		if a.CardAssetID != "card-1" || a.JobID != job.ID {
			t.Errorf("evidence record missing card/job linkage: %+v", a)
		}
		if a.ListingURL == "https://example.com/item/0" {
			t.Error("already attached URL was attached again")
		}
	}
}

func TestProcessRetriesTerminalWrite(t *testing.T) {
	jobs := newFakeJobStore()
	jobs.completeErrs = 1
	cards := &fakeCardStore{stages: map[string]domain.ReviewStage{}}
	evidence := &fakeEvidenceStore{existing: map[string]bool{}}
	d := newTestDispatcher(jobs, evidence, cards, okResult(domain.SourceSoldListings, 1))

	job := testJob(domain.SourceSoldListings)
	d.process(context.Background(), job)

	if _, ok := jobs.completed[job.ID]; !ok {
		t.Fatalf("job not completed after transient write failure; failed=%v", jobs.failed)
	}
	if jobs.completeCalls != 2 {
		t.Errorf("MarkComplete called %d times, want 2", jobs.completeCalls)
	}
	if len(jobs.failed) != 0 {
		t.Errorf("job marked failed despite successful retry: %v", jobs.failed)
	}
}

func TestProcessFallsBackToFailedWhenCompleteKeepsFailing(t *testing.T) {
	jobs := newFakeJobStore()
	jobs.completeErrs = terminalWriteAttempts
	cards := &fakeCardStore{stages: map[string]domain.ReviewStage{}}
	evidence := &fakeEvidenceStore{existing: map[string]bool{}}
	d := newTestDispatcher(jobs, evidence, cards, okResult(domain.SourceSoldListings, 1))

	job := testJob(domain.SourceSoldListings)
	d.process(context.Background(), job)

	if len(jobs.completed) != 0 {
		t.Fatalf("job unexpectedly completed: %v", jobs.completed)
	}
	if _, ok := jobs.failed[job.ID]; !ok {
		t.Fatal("job reached no terminal state: MarkComplete exhausted and MarkFailed never recorded")
	}
}

func TestProcessWritesTerminalStateOnCancelledContext(t *testing.T) {
	jobs := newFakeJobStore()
	cards := &fakeCardStore{stages: map[string]domain.ReviewStage{}}
	evidence := &fakeEvidenceStore{existing: map[string]bool{}}
	d := newTestDispatcher(jobs, evidence, cards, okResult(domain.SourceSoldListings, 1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job := testJob(domain.SourceSoldListings)
	d.process(ctx, job)

	if _, ok := jobs.completed[job.ID]; !ok {
		t.Fatalf("shutdown stranded the job without a terminal state; failed=%v", jobs.failed)
	}
}
