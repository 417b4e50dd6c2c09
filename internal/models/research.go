package models

import "time"

// ResearchStatus is the outcome of a single search.
type ResearchStatus string

const (
	ResearchSuccess ResearchStatus = "success"
	ResearchError   ResearchStatus = "error"
)

// Source is a citation. Sources are identified by URL.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ResearchResult is produced once per search and never modified afterwards.
type ResearchResult struct {
	Status       ResearchStatus `json:"status"`
	Query        string         `json:"query"`
	Content      string         `json:"content,omitempty"`
	Sources      []Source       `json:"sources,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
	Error        string         `json:"error,omitempty"`
	SearchEngine string         `json:"search_engine,omitempty"`
}

func (r ResearchResult) Succeeded() bool {
	return r.Status == ResearchSuccess
}

// Quality gate vocabulary.
type QualityStatus string

const (
	QualitySufficient   QualityStatus = "sufficient"
	QualityPartial      QualityStatus = "partial"
	QualityInsufficient QualityStatus = "insufficient"
)

type Recommendation string

const (
	RecommendFinalize         Recommendation = "finalize_answer"
	RecommendAdditional       Recommendation = "additional_research"
	RecommendNeedMoreResearch Recommendation = "need_more_research"
)

// QualityAssessment is derived from the accumulated results; it is never stored.
type QualityAssessment struct {
	Status           QualityStatus  `json:"status"`
	Confidence       float64        `json:"confidence"`
	Recommendation   Recommendation `json:"recommendation"`
	TotalSources     int            `json:"total_sources"`
	ResearchCount    int            `json:"research_count"`
	AvgContentLength int            `json:"avg_content_length"`
	Reason           string         `json:"reason,omitempty"`
	Gaps             []string       `json:"gaps,omitempty"`
}

// DedupeSources removes repeated URLs keeping the first occurrence and order.
// A positive limit caps the result length.
func DedupeSources(sources []Source, limit int) []Source {
	seen := make(map[string]bool, len(sources))
	out := make([]Source, 0, len(sources))
	for _, s := range sources {
		if seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// CollectSources gathers the sources of successful results in order.
func CollectSources(results []ResearchResult) []Source {
	var out []Source
	for _, r := range results {
		if r.Succeeded() {
			out = append(out, r.Sources...)
		}
	}
	return out
}

// Gap markers produced by the quality gate and consumed by the query planner.
// A failed query is reported as GapRetryPrefix followed by the query.
const (
	GapMoreSources = "more_sources"
	GapMoreDetail  = "more_detail"
	GapRetryPrefix = "retry:"
)

// Answer is the synthesized reply of a research turn.
type Answer struct {
	Status     ResearchStatus `json:"status"`
	Text       string         `json:"answer"`
	Sources    []Source       `json:"sources"`
	Confidence float64        `json:"confidence"`
}

// Reflection is the outcome of one ASSESSING step of the research loop.
// FollowUpQueries is empty when the loop stops.
type Reflection struct {
	Round           int               `json:"round"`
	Assessment      QualityAssessment `json:"assessment"`
	FollowUpQueries []string          `json:"follow_up_queries"`
}
