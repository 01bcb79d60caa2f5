// Package usage tracks how often keywords are mentioned and keeps a small
// analytics summary next to the keyword graph.
package usage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/hurttlocker/kwgraph/internal/keyword"
	"github.com/hurttlocker/kwgraph/internal/store"
)

const (
	// CostPerUse is charged for every tracked mention.
	CostPerUse = 0.25
	// TopN bounds Analytics.TopKeywords.
	TopN = 5
	// DefaultContext labels events tracked without a context.
	DefaultContext = "chat"
)

// Event is one tracked mention.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Context   string    `json:"context"`
	Cost      float64   `json:"cost"`
}

// Log holds usage events keyed by keyword id, so history survives renames.
type Log map[string][]Event

// TopKeyword is a row of the analytics leaderboard.
type TopKeyword struct {
	Name string  `json:"name"`
	Uses int     `json:"uses"`
	Cost float64 `json:"cost"`
}

// Analytics summarises usage across all keywords.
type Analytics struct {
	TotalKeywords int          `json:"total_keywords"`
	TotalUses     int          `json:"total_uses"`
	TotalCost     float64      `json:"total_cost"`
	TopKeywords   []TopKeyword `json:"top_keywords"`
	LastUpdated   time.Time    `json:"last_updated"`
}

// Tracker records usage through a KeywordStore.
type Tracker struct {
	store  *store.KeywordStore
	logger *slog.Logger
	now    func() time.Time

	// mu serializes read-modify-write of the usage log.
	mu sync.Mutex
}

// NewTracker creates a tracker. A nil logger uses slog.Default().
func NewTracker(st *store.KeywordStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{store: st, logger: logger.With("component", "usage"), now: time.Now}
}

// Track records one mention of the keyword named or identified by ref. It
// bumps the keyword's use count, appends an event to the usage log and
// refreshes the analytics summary.
func (t *Tracker) Track(ctx context.Context, ref, usageContext string) (keyword.Keyword, error) {
	if usageContext == "" {
		usageContext = DefaultContext
	}
	now := t.now().UTC()
	k, err := t.store.UpdateKeyword(ctx, ref, func(k *keyword.Keyword) error {
		k.Uses++
		k.LastUsed = &now
		return nil
	})
	if err != nil {
		return keyword.Keyword{}, fmt.Errorf("tracking %q: %w", ref, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.appendEvent(ctx, k.ID, Event{Timestamp: now, Context: usageContext, Cost: CostPerUse}); err != nil {
		return k, err
	}
	if _, err := t.refresh(ctx); err != nil {
		return k, err
	}
	return k, nil
}

// appendEvent adds ev to the stored log. Callers hold mu.
func (t *Tracker) appendEvent(ctx context.Context, id string, ev Event) error {
	log := t.Log(ctx)
	log[id] = append(log[id], ev)
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("encoding usage log: %w", err)
	}
	if err := t.store.PutAux(ctx, store.KeyUsage, data); err != nil {
		return fmt.Errorf("saving usage log: %w", err)
	}
	return nil
}

// TrackText tracks every keyword mentioned in text and returns their names.
func (t *Tracker) TrackText(ctx context.Context, text, usageContext string) ([]string, error) {
	found := ExtractMentions(text, t.store.Keywords(ctx))
	for _, name := range found {
		if _, err := t.Track(ctx, name, usageContext); err != nil {
			return found, err
		}
	}
	return found, nil
}

// Log returns the stored usage log. Missing or unreadable data yields an
// empty log.
func (t *Tracker) Log(ctx context.Context) Log {
	log := Log{}
	data, err := t.store.GetAux(ctx, store.KeyUsage)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			t.logger.Warn("reading usage log", "error", err)
		}
		return log
	}
	if err := json.Unmarshal(data, &log); err != nil {
		t.logger.Warn("usage log unreadable", "error", err)
		return Log{}
	}
	return log
}

// Analytics returns the stored summary, or a fresh one when none is stored.
func (t *Tracker) Analytics(ctx context.Context) Analytics {
	data, err := t.store.GetAux(ctx, store.KeyAnalytics)
	if err == nil {
		var a Analytics
		if err := json.Unmarshal(data, &a); err == nil {
			return a
		}
		t.logger.Warn("analytics unreadable, recomputing")
	}
	a := Summarize(t.store.Keywords(ctx))
	a.LastUpdated = t.now().UTC()
	return a
}

// Refresh recomputes and stores the analytics summary.
func (t *Tracker) Refresh(ctx context.Context) (Analytics, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refresh(ctx)
}

func (t *Tracker) refresh(ctx context.Context) (Analytics, error) {
	a := Summarize(t.store.Keywords(ctx))
	a.LastUpdated = t.now().UTC()
	data, err := json.Marshal(a)
	if err != nil {
		return a, fmt.Errorf("encoding analytics: %w", err)
	}
	if err := t.store.PutAux(ctx, store.KeyAnalytics, data); err != nil {
		return a, fmt.Errorf("saving analytics: %w", err)
	}
	return a, nil
}

// Summarize computes totals and the top keywords by use count.
func Summarize(keywords []keyword.Keyword) Analytics {
	a := Analytics{TotalKeywords: len(keywords), TopKeywords: []TopKeyword{}}
	rows := make([]TopKeyword, 0, len(keywords))
	for _, k := range keywords {
		a.TotalUses += k.Uses
		rows = append(rows, TopKeyword{Name: k.Label(), Uses: k.Uses, Cost: float64(k.Uses) * CostPerUse})
	}
	a.TotalCost = float64(a.TotalUses) * CostPerUse
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Uses > rows[j].Uses })
	if len(rows) > TopN {
		rows = rows[:TopN]
	}
	a.TopKeywords = append(a.TopKeywords, rows...)
	return a
}

// ExtractMentions returns the names of keywords that occur in text as whole
// words, case-insensitively, in keyword order.
func ExtractMentions(text string, keywords []keyword.Keyword) []string {
	var found []string
	for _, k := range keywords {
		name := k.Label()
		if name == "" {
			continue
		}
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
		if err != nil {
			continue
		}
		if re.MatchString(text) {
			found = append(found, name)
		}
	}
	return found
}
