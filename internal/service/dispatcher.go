package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcote/comphawk/internal/domain"
	"github.com/marcote/comphawk/internal/logger"
)

// JobStore is the queue surface the dispatcher runs against.
type JobStore interface {
	ClaimNext(ctx context.Context, workerID string) (*domain.CompJob, error)
	MarkComplete(ctx context.Context, jobID string, resultJSON string) error
	MarkFailed(ctx context.Context, jobID string, errMsg string) error
}

// PlaybookStore loads the DOM rule playbook for a job's sources.
type PlaybookStore interface {
	ListForSources(ctx context.Context, sources []domain.SourceID) ([]domain.PlaybookRule, error)
}

// CardStore updates the card a job gathered evidence for.
type CardStore interface {
	UpdateReviewStage(ctx context.Context, id string, stage domain.ReviewStage) error
}

// EvidenceStore persists auto-attached comps.
type EvidenceStore interface {
	AttachedURLs(ctx context.Context, cardAssetID string) (map[string]bool, error)
	AttachBatch(ctx context.Context, comps []domain.AttachedComp) error
}

// ReferenceStore looks up the processed reference image for a card.
type ReferenceStore interface {
	LatestReadyForCard(ctx context.Context, cardAssetID string) (*domain.ReferenceImage, error)
}

// Terminal-status writes must land: a claimed job that never reaches COMPLETE
// or FAILED can never be claimed again. They retry a few times and run on a
// detached context so a shutdown that cancels the worker cannot strand the
// job as RUNNING.
const (
	terminalWriteAttempts = 3
	terminalWriteDelay    = 250 * time.Millisecond
)

// DispatcherConfig holds the dispatch-loop knobs.
type DispatcherConfig struct {
	Concurrency     int
	PollInterval    time.Duration
	AutoAttachTopK  int
	MatchingEnabled bool
}

// Dispatcher runs W independent workers. Each worker claims one queued job at
// a time, runs the orchestrator to completion, and always moves the job to a
// terminal state before claiming another.
type Dispatcher struct {
	jobs      JobStore
	playbooks PlaybookStore
	cards     CardStore
	evidence  EvidenceStore
	refs      ReferenceStore
	engine    SignatureFetcher
	orch      *Orchestrator
	cfg       DispatcherConfig
}

func NewDispatcher(jobs JobStore, playbooks PlaybookStore, cards CardStore, evidence EvidenceStore, refs ReferenceStore, engine SignatureFetcher, orch *Orchestrator, cfg DispatcherConfig) *Dispatcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Dispatcher{
		jobs:      jobs,
		playbooks: playbooks,
		cards:     cards,
		evidence:  evidence,
		refs:      refs,
		engine:    engine,
		orch:      orch,
		cfg:       cfg,
	}
}

// Run blocks until ctx is cancelled and all workers have drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			d.workerLoop(ctx, idx)
		}(i)
	}
	wg.Wait()
}

func (d *Dispatcher) workerLoop(ctx context.Context, idx int) {
	workerID := fmt.Sprintf("worker-%d", idx)
	wctx := logger.WithFields(ctx, logger.Fields{logger.FieldWorker: workerID})
	logger.CtxInfo(wctx, "Dispatch worker started")

	for {
		select {
		case <-ctx.Done():
			logger.CtxInfo(wctx, "Dispatch worker stopping")
			return
		default:
		}

		job, err := d.jobs.ClaimNext(ctx, workerID)
		if err != nil {
			logger.CtxError(wctx, "Failed to claim next job: %v", err)
			d.sleep(ctx)
			continue
		}
		if job == nil {
			d.sleep(ctx)
			continue
		}

		d.process(wctx, job)
	}
}

func (d *Dispatcher) sleep(ctx context.Context) {
	select {
	case <-time.After(d.cfg.PollInterval):
	case <-ctx.Done():
	}
}

// process runs one claimed job to a terminal state. Setup failures mark the
// job FAILED; everything downstream of a successful setup completes, because
// the orchestrator absorbs per-source failures.
func (d *Dispatcher) process(ctx context.Context, job *domain.CompJob) {
	jctx := logger.WithFields(ctx, logger.Fields{logger.FieldJobID: job.ID})
	logger.CtxInfo(jctx, "Processing job for query %q across %d sources", job.SearchQuery, len(job.Sources))

	if len(job.Sources) == 0 {
		d.fail(jctx, job.ID, "no sources configured")
		return
	}

	rules, err := d.playbooks.ListForSources(jctx, job.Sources)
	if err != nil {
		// scraping proceeds without hints rather than failing the job
		logger.CtxWarn(jctx, "Failed to load playbook rules, proceeding without: %v", err)
		rules = nil
	}

	ref := d.referenceSignature(jctx, job)
	results := d.orch.Collect(jctx, job, ref, rules)

	result := domain.NewJobResult(job, results)
	data, err := json.Marshal(result)
	if err != nil {
		d.fail(jctx, job.ID, fmt.Sprintf("failed to encode job result: %v", err))
		return
	}

	if !d.complete(jctx, job.ID, string(data)) {
		return
	}
	logger.CtxInfo(jctx, "Job complete with %d source results", len(results))

	if job.CardAssetID != "" {
		d.applySideEffects(jctx, job, results)
	}
}

// complete persists the result and the COMPLETE status. When the write keeps
// failing the job falls back to FAILED, so it still reaches a terminal state.
func (d *Dispatcher) complete(ctx context.Context, jobID, resultJSON string) bool {
	tctx := context.WithoutCancel(ctx)
	var err error
	for i := 0; i < terminalWriteAttempts; i++ {
		if err = d.jobs.MarkComplete(tctx, jobID, resultJSON); err == nil {
			return true
		}
		logger.CtxWarn(tctx, "Failed to mark job complete (attempt %d/%d): %v", i+1, terminalWriteAttempts, err)
		time.Sleep(terminalWriteDelay)
	}
	d.fail(tctx, jobID, fmt.Sprintf("failed to persist result: %v", err))
	return false
}

func (d *Dispatcher) fail(ctx context.Context, jobID, msg string) {
	tctx := context.WithoutCancel(ctx)
	logger.CtxError(tctx, "Failing job: %s", msg)
	var err error
	for i := 0; i < terminalWriteAttempts; i++ {
		if err = d.jobs.MarkFailed(tctx, jobID, msg); err == nil {
			return
		}
		logger.CtxWarn(tctx, "Failed to mark job failed (attempt %d/%d): %v", i+1, terminalWriteAttempts, err)
		time.Sleep(terminalWriteDelay)
	}
	logger.CtxError(tctx, "Job stuck without terminal state after %d attempts: %v", terminalWriteAttempts, err)
}

// referenceSignature resolves the card's reference image into a signature when
// pattern matching is enabled. Any failure downgrades the job to unmatched
// scraping instead of blocking it.
func (d *Dispatcher) referenceSignature(ctx context.Context, job *domain.CompJob) *domain.ImageSignature {
	if !d.cfg.MatchingEnabled || job.CardAssetID == "" {
		return nil
	}
	ref, err := d.refs.LatestReadyForCard(ctx, job.CardAssetID)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to load reference image, matching disabled for this job: %v", err)
		return nil
	}
	if ref == nil {
		return nil
	}
	sig, err := d.engine.FetchSignature(ctx, ref.ImageURL)
	if err != nil {
		logger.CtxWarn(ctx, "Failed to compute reference signature, matching disabled for this job: %v", err)
		return nil
	}
	return sig
}

// applySideEffects advances the card's review stage and auto-attaches the top
// sold comps as permanent evidence. Both are best effort after the terminal
// transition.
func (d *Dispatcher) applySideEffects(ctx context.Context, job *domain.CompJob, results []domain.SourceResult) {
	cctx := logger.WithFields(ctx, logger.Fields{logger.FieldCardAssetID: job.CardAssetID})

	if err := d.cards.UpdateReviewStage(cctx, job.CardAssetID, domain.ReviewStageCompsGathered); err != nil {
		logger.CtxWarn(cctx, "Failed to update review stage: %v", err)
	}

	if d.cfg.AutoAttachTopK <= 0 {
		return
	}
	if err := d.autoAttach(cctx, job, results); err != nil {
		logger.CtxWarn(cctx, "Failed to auto-attach comps: %v", err)
	}
}

// autoAttach promotes up to TopK sold-listings comps to attached evidence,
// skipping listing URLs already on the card.
func (d *Dispatcher) autoAttach(ctx context.Context, job *domain.CompJob, results []domain.SourceResult) error {
	var soldComps []domain.Comp
	for _, sr := range results {
		if sr.Source == domain.SourceSoldListings {
			soldComps = sr.Comps
			break
		}
	}
	if len(soldComps) == 0 {
		return nil
	}

	attached, err := d.evidence.AttachedURLs(ctx, job.CardAssetID)
	if err != nil {
		return err
	}

	batch := make([]domain.AttachedComp, 0, d.cfg.AutoAttachTopK)
	for _, comp := range soldComps {
		if len(batch) >= d.cfg.AutoAttachTopK {
			break
		}
		if comp.URL == "" || attached[comp.URL] {
			continue
		}
		attached[comp.URL] = true

		record := domain.AttachedComp{
			ID:            uuid.New().String(),
			CardAssetID:   job.CardAssetID,
			JobID:         job.ID,
			Source:        comp.Source,
			Title:         comp.Title,
			ListingURL:    comp.URL,
			Price:         comp.Price,
			SoldDate:      comp.SoldDate,
			ScreenshotURL: comp.ScreenshotURL,
		}
		if comp.PatternMatch != nil {
			record.MatchScore = comp.PatternMatch.Score
		}
		batch = append(batch, record)
	}
	if len(batch) == 0 {
		return nil
	}

	if err := d.evidence.AttachBatch(ctx, batch); err != nil {
		return err
	}
	logger.CtxInfo(ctx, "Auto-attached %d comps as evidence", len(batch))
	return nil
}
