// Package analyzer classifies finalized transcripts into question analyses.
package analyzer

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Category is the coarse technical topic of a question.
type Category string

const (
	CategoryAlgorithm        Category = "algorithm"
	CategoryDataStructure    Category = "data_structure"
	CategorySystemDesign     Category = "system_design"
	CategoryFrontend         Category = "frontend"
	CategoryGeneralTechnical Category = "general_technical"
	CategoryNotQuestion      Category = "not_question"
)

const (
	// HistorySize is the number of recent questions kept for follow-ups.
	HistorySize = 5
	// SnapshotSize is how many of them make up the context snapshot.
	SnapshotSize = 3
)

// Analysis is the immutable classification of one transcript.
type Analysis struct {
	IsQuestion      bool      `json:"is_question"`
	IsTechnical     bool      `json:"is_technical"`
	IsCodingRequest bool      `json:"is_coding_request"`
	IsFollowUp      bool      `json:"is_follow_up"`
	Category        Category  `json:"category"`
	Keywords        []string  `json:"keywords"`
	ContextSnapshot string    `json:"context_snapshot"`
	SourceText      string    `json:"source_text"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

// Confidence is a coarse score for presentation: technical questions are
// more likely to be worth answering.
func (a Analysis) Confidence() float64 {
	if a.IsTechnical {
		return 0.8
	}
	return 0.4
}

// Analyzer is deterministic given the same sequence of inputs. It keeps the
// last HistorySize questions; non-questions are not recorded.
type Analyzer struct {
	mu      sync.Mutex
	history []string
	now     func() time.Time
}

func New() *Analyzer {
	return &Analyzer{now: time.Now}
}

// Analyze classifies a transcript and, if it is a question, records it.
func (a *Analyzer) Analyze(transcript string) Analysis {
	lower := strings.ToLower(transcript)

	if !isQuestion(lower) {
		return Analysis{
			Category:   CategoryNotQuestion,
			Keywords:   []string{},
			SourceText: transcript,
			AnalyzedAt: a.now(),
		}
	}

	keywords := matchAll(lower, technicalKeywords)
	coding := matchAll(lower, codingKeywords)

	return Analysis{
		IsQuestion:      true,
		IsTechnical:     len(keywords) > 0,
		IsCodingRequest: len(coding) > 0,
		IsFollowUp:      len(matchAll(lower, followUpPhrases)) > 0,
		Category:        classify(lower),
		Keywords:        keywords,
		ContextSnapshot: a.record(transcript),
		SourceText:      transcript,
		AnalyzedAt:      a.now(),
	}
}

// Snapshot returns the current context snapshot without recording anything.
func (a *Analyzer) Snapshot() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Reset forgets the recorded questions.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = nil
}

func (a *Analyzer) record(transcript string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history = append(a.history, transcript)
	if len(a.history) > HistorySize {
		a.history = a.history[len(a.history)-HistorySize:]
	}
	return a.snapshotLocked()
}

func (a *Analyzer) snapshotLocked() string {
	start := len(a.history) - SnapshotSize
	if start < 0 {
		start = 0
	}
	return strings.Join(a.history[start:], " ")
}

func isQuestion(lower string) bool {
	if strings.Contains(lower, "?") {
		return true
	}
	trimmed := strings.TrimLeft(lower, " \t\r\n")
	for _, lead := range questionLeads {
		if strings.HasPrefix(trimmed, lead) {
			return true
		}
	}
	return false
}

// matchAll returns the sorted set of terms contained in s.
func matchAll(s string, terms []string) []string {
	found := []string{}
	for _, term := range terms {
		if strings.Contains(s, term) {
			found = append(found, term)
		}
	}
	sort.Strings(found)
	return found
}

// classify applies the category rules in order; the first match wins.
func classify(lower string) Category {
	has := func(terms ...string) bool {
		for _, t := range terms {
			if strings.Contains(lower, t) {
				return true
			}
		}
		return false
	}
	switch {
	case has("algorithm", "complexity"):
		return CategoryAlgorithm
	case has("data structure", "array", "linked list"):
		return CategoryDataStructure
	case has("design") && has("system", "architecture"):
		return CategorySystemDesign
	case has("css", "html", "ui"):
		return CategoryFrontend
	default:
		return CategoryGeneralTechnical
	}
}
