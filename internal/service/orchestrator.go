package service

import (
	"context"
	"fmt"

	"github.com/marcote/comphawk/internal/browser"
	"github.com/marcote/comphawk/internal/capture"
	"github.com/marcote/comphawk/internal/domain"
	"github.com/marcote/comphawk/internal/logger"
	"github.com/marcote/comphawk/internal/scraper"
)

// maxSourceAttempts bounds retries per source. Only transient automation
// faults earn the second attempt.
const maxSourceAttempts = 2

// SessionFactory hands out isolated browser sessions. Satisfied by
// browser.Manager.
type SessionFactory interface {
	NewSession(ctx context.Context) (browser.Session, error)
}

// Orchestrator runs a job's requested sources in order and merges their
// outcomes. It cannot fail as a whole: every branch, including exhausted
// retries, produces a SourceResult.
type Orchestrator struct {
	sessions   SessionFactory
	capturer   *capture.Capturer
	matcher    scraper.TileMatcher
	strategies map[domain.SourceID]scraper.Strategy
}

func NewOrchestrator(sessions SessionFactory, capturer *capture.Capturer, matcher scraper.TileMatcher, strategies []scraper.Strategy) *Orchestrator {
	byID := make(map[domain.SourceID]scraper.Strategy, len(strategies))
	for _, s := range strategies {
		byID[s.Source()] = s
	}
	return &Orchestrator{
		sessions:   sessions,
		capturer:   capturer,
		matcher:    matcher,
		strategies: byID,
	}
}

// Collect runs every requested source and returns one SourceResult per source,
// in request order. A failed source degrades to a SourceResult with its error
// recorded; it never prevents the remaining sources from running.
func (o *Orchestrator) Collect(ctx context.Context, job *domain.CompJob, ref *domain.ImageSignature, rules []domain.PlaybookRule) []domain.SourceResult {
	results := make([]domain.SourceResult, 0, len(job.Sources))
	for _, source := range job.Sources {
		sctx := logger.WithFields(ctx, logger.Fields{
			logger.FieldSource: string(source),
		})
		results = append(results, o.collectSource(sctx, source, job, ref, rules))
	}
	return results
}

func (o *Orchestrator) collectSource(ctx context.Context, source domain.SourceID, job *domain.CompJob, ref *domain.ImageSignature, rules []domain.PlaybookRule) domain.SourceResult {
	strat, ok := o.strategies[source]
	if !ok {
		return domain.SourceResult{
			Source: source,
			Comps:  []domain.Comp{},
			Error:  "unknown source",
		}
	}

	req := scraper.Request{
		JobID:        job.ID,
		Query:        job.SearchQuery,
		MaxComps:     job.MaxComps,
		RefSignature: ref,
	}

	var lastErr error
	for attempt := 1; attempt <= maxSourceAttempts; attempt++ {
		actx := logger.WithFields(ctx, logger.Fields{logger.FieldAttempt: attempt})

		result, err := o.attempt(actx, strat, req, rules)
		if err == nil {
			return *result
		}
		lastErr = err

		kind := browser.Classify(err)
		if attempt < maxSourceAttempts && kind.Retryable() {
			logger.CtxWarn(actx, "Source attempt failed with %s, retrying with a fresh session: %v", kind, err)
			continue
		}
		logger.CtxWarn(actx, "Source attempt failed with %s, recording degraded result: %v", kind, err)
		break
	}

	return domain.SourceResult{
		Source: source,
		Comps:  []domain.Comp{},
		Error:  lastErr.Error(),
	}
}

// attempt runs the strategy once. Browser strategies get a fresh session that
// is always released; a strategy panic is recovered into a classified error so
// it degrades like any other attempt failure instead of killing the worker.
func (o *Orchestrator) attempt(ctx context.Context, strat scraper.Strategy, req scraper.Request, rules []domain.PlaybookRule) (result *domain.SourceResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.CtxError(ctx, "Strategy panicked: %v", r)
			result = nil
			perr := fmt.Errorf("strategy panic: %v", r)
			err = &browser.Error{Kind: browser.Classify(perr), Err: perr}
		}
	}()

	env := scraper.Env{
		Capturer: o.capturer,
		Matcher:  o.matcher,
		Rules:    rules,
	}

	if strat.NeedsBrowser() {
		sess, err := o.sessions.NewSession(ctx)
		if err != nil {
			return nil, err
		}
		defer sess.Release()
		env.Session = sess
	}

	return strat.Run(ctx, env, req)
}
