package domain

import (
	"sort"
	"strings"
	"time"
)

// PlaybookAction is the kind of best-effort DOM hint a rule applies.
type PlaybookAction string

const (
	ActionClick PlaybookAction = "click"
	ActionWait  PlaybookAction = "wait"
)

// PlaybookRule is an ordered site-specific DOM hint applied before scraping a
// source. Rules change scraper behavior without code changes and must tolerate
// pages they no longer match.
type PlaybookRule struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Source      SourceID       `gorm:"type:text;not null;index" json:"source"`
	Action      PlaybookAction `gorm:"type:text;not null" json:"action"`
	Selector    string         `gorm:"type:text" json:"selector"`
	URLContains string         `gorm:"type:text" json:"url_contains"`
	WaitMs      int            `gorm:"default:0" json:"wait_ms"`
	Priority    int            `gorm:"default:0" json:"priority"`
	Enabled     bool           `gorm:"default:true" json:"enabled"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName returns the database table name for PlaybookRule.
func (PlaybookRule) TableName() string {
	return "playbook_rules"
}

// SelectRules filters rules to those enabled for the source whose URLContains
// condition matches pageURL, ordered by priority descending.
func SelectRules(rules []PlaybookRule, source SourceID, pageURL string) []PlaybookRule {
	selected := make([]PlaybookRule, 0, len(rules))
	for _, r := range rules {
		if !r.Enabled || r.Source != source {
			continue
		}
		if r.URLContains != "" && !strings.Contains(pageURL, r.URLContains) {
			continue
		}
		selected = append(selected, r)
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Priority > selected[j].Priority
	})
	return selected
}
