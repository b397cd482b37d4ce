// Package filter suppresses near-duplicate and noisy transcripts before
// they reach downstream coaching analysis.
package filter

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"
)

// Config holds the filter tunables.
type Config struct {
	// SimilarityThreshold rejects a transcript whose normalized Levenshtein
	// similarity against any history entry exceeds it.
	SimilarityThreshold float64
	// HistorySize bounds the recent-accepted history (FIFO eviction).
	HistorySize int
	// MinChars rejects transcripts shorter than this after normalization.
	MinChars int
	// MinWords rejects transcripts with fewer words than this.
	MinWords int
	// Stoplist lists filler/social words; a transcript drawn entirely from
	// it is rejected. Empty means DefaultStoplist.
	Stoplist []string
}

// DefaultStoplist covers common filler and social words that carry no
// coaching-worthy content on their own.
var DefaultStoplist = []string{
	"um", "uh", "uhh", "hmm", "hm", "mhm", "mm",
	"yeah", "yes", "no", "ok", "okay", "right", "sure",
	"so", "like", "well", "oh", "ah",
	"hi", "hey", "hello", "bye", "thanks", "thank", "you",
}

// Rejection reasons reported in Result and statistics.
const (
	ReasonEmpty      = "empty"
	ReasonTooShort   = "too_short"
	ReasonStoplist   = "stoplist"
	ReasonRepetitive = "repetitive"
	ReasonDuplicate  = "duplicate"
)

// Record is one accepted transcript retained for similarity comparison.
type Record struct {
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

// Result is the filter's decision for one transcript.
type Result struct {
	Accepted   bool    `json:"accepted"`
	Reason     string  `json:"reason,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

// Filter scores transcripts against recent history and a relevance
// heuristic. Apart from the bounded history it is stateless: the same
// history and input always produce the same decision.
type Filter struct {
	mu       sync.Mutex
	cfg      Config
	stopset  map[string]struct{}
	history  []Record
	accepted uint64
	rejected map[string]uint64
}

// Stats is a snapshot of filter activity.
type Stats struct {
	HistoryLen int               `json:"history_len"`
	Accepted   uint64            `json:"accepted_total"`
	Rejected   map[string]uint64 `json:"rejected_total"`
}

// New creates a filter.
func New(cfg Config) (*Filter, error) {
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("similarity threshold must be in (0,1], got %f", cfg.SimilarityThreshold)
	}
	if cfg.HistorySize < 1 {
		return nil, fmt.Errorf("history size must be at least 1, got %d", cfg.HistorySize)
	}
	if cfg.MinChars < 0 || cfg.MinWords < 0 {
		return nil, fmt.Errorf("min chars and min words cannot be negative")
	}

	words := cfg.Stoplist
	if len(words) == 0 {
		words = DefaultStoplist
	}
	stopset := make(map[string]struct{}, len(words))
	for _, w := range words {
		stopset[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}

	return &Filter{
		cfg:      cfg,
		stopset:  stopset,
		history:  make([]Record, 0, cfg.HistorySize),
		rejected: make(map[string]uint64),
	}, nil
}

// Check decides whether a transcript passes. Accepted transcripts are
// appended to the history, evicting the oldest entry past the cap.
func (f *Filter) Check(text string, now time.Time) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	norm := normalize(text)

	if norm == "" {
		return f.rejectLocked(ReasonEmpty, 0)
	}
	if len(norm) < f.cfg.MinChars {
		return f.rejectLocked(ReasonTooShort, 0)
	}

	words := strings.Fields(norm)
	if len(words) < f.cfg.MinWords {
		return f.rejectLocked(ReasonTooShort, 0)
	}

	if f.allStopwordsLocked(words) {
		return f.rejectLocked(ReasonStoplist, 0)
	}

	if repetitive(words) {
		return f.rejectLocked(ReasonRepetitive, 0)
	}

	for _, rec := range f.history {
		if sim := similarity(norm, rec.Text); sim > f.cfg.SimilarityThreshold {
			return f.rejectLocked(ReasonDuplicate, sim)
		}
	}

	if len(f.history) == f.cfg.HistorySize {
		copy(f.history, f.history[1:])
		f.history = f.history[:len(f.history)-1]
	}
	f.history = append(f.history, Record{Text: norm, ReceivedAt: now})
	f.accepted++

	return Result{Accepted: true}
}

// UpdateSimilarityThreshold applies a new duplicate threshold, used by
// config hot reload.
func (f *Filter) UpdateSimilarityThreshold(threshold float64) error {
	if threshold <= 0 || threshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0,1], got %f", threshold)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg.SimilarityThreshold = threshold
	return nil
}

// GetStats returns a snapshot of filter statistics.
func (f *Filter) GetStats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	rejected := make(map[string]uint64, len(f.rejected))
	for k, v := range f.rejected {
		rejected[k] = v
	}

	return Stats{
		HistoryLen: len(f.history),
		Accepted:   f.accepted,
		Rejected:   rejected,
	}
}

func (f *Filter) rejectLocked(reason string, sim float64) Result {
	f.rejected[reason]++
	return Result{Accepted: false, Reason: reason, Similarity: sim}
}

func (f *Filter) allStopwordsLocked(words []string) bool {
	for _, w := range words {
		if _, ok := f.stopset[strings.Trim(w, ".,!?;:'\"")]; !ok {
			return false
		}
	}
	return true
}

// normalize lowercases and trims a transcript for comparison.
func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// similarity computes normalized Levenshtein similarity:
// 1 - distance/max(len1, len2). Identical strings score 1.0.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 1
	}
	dist := matchr.Levenshtein(a, b)
	return 1 - float64(dist)/float64(longest)
}

// repetitive reports whether fewer than half of the words are unique.
func repetitive(words []string) bool {
	if len(words) < 2 {
		return false
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	return float64(len(unique))/float64(len(words)) < 0.5
}
