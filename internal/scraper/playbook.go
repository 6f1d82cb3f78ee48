package scraper

import (
	"context"
	"time"

	"github.com/marcote/comphawk/internal/browser"
	"github.com/marcote/comphawk/internal/domain"
	"github.com/marcote/comphawk/internal/logger"
)

// maxRuleWait caps a single wait rule so a misconfigured row cannot stall a
// source attempt.
const maxRuleWait = 10 * time.Second

// ApplyRules runs the playbook rules matching this source and page, in
// priority order. The interpreter is intentionally dumb: every rule is best
// effort, a rule that no longer matches the live page is logged and skipped,
// and nothing here can fail the attempt.
func ApplyRules(ctx context.Context, sess browser.Session, rules []domain.PlaybookRule, source domain.SourceID, pageURL string) {
	for _, rule := range domain.SelectRules(rules, source, pageURL) {
		applyRule(ctx, sess, rule)
	}
}

func applyRule(ctx context.Context, sess browser.Session, rule domain.PlaybookRule) {
	switch rule.Action {
	case domain.ActionClick:
		if rule.Selector == "" {
			return
		}
		if err := sess.Click(rule.Selector); err != nil {
			logger.CtxDebug(ctx, "Playbook click rule %d did not match page: %v", rule.ID, err)
		}
	case domain.ActionWait:
		wait := time.Duration(rule.WaitMs) * time.Millisecond
		if wait <= 0 {
			return
		}
		if wait > maxRuleWait {
			wait = maxRuleWait
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
		}
	default:
		logger.CtxDebug(ctx, "Skipping playbook rule %d with unknown action %q", rule.ID, rule.Action)
	}
}
