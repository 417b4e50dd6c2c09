// internal/workers/research/query-planner/planner.go
package queryplanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"research-agent/internal/common/logger"
	"research-agent/internal/common/messages"
	"research-agent/internal/common/reasoning"
	"research-agent/internal/models"
)

const TaskType = "query-planner"

var timeSensitiveMarkers = []string{
	"hôm nay", "hiện tại", "hiện nay", "mới nhất", "gần đây", "bây giờ",
	"tuần này", "tháng này", "năm nay", "giá", "tỷ giá", "thời tiết", "tin tức",
	"today", "latest", "current", "now", "recent", "news", "price", "weather",
	"this week", "this month", "this year", "score",
}

type variants struct {
	timely  []string
	general []string
	sources []string
	detail  []string
	retry   string
}

var (
	vietnamese = variants{
		timely:  []string{"mới nhất", "cập nhật hôm nay", "tin tức"},
		general: []string{"thông tin chi tiết", "tổng quan", "giải thích"},
		sources: []string{"tin tức", "nguồn chính thức"},
		detail:  []string{"chi tiết", "phân tích"},
		retry:   "thông tin",
	}
	english = variants{
		timely:  []string{"latest", "today", "news"},
		general: []string{"overview", "details", "explained"},
		sources: []string{"news", "official source"},
		detail:  []string{"details", "analysis"},
		retry:   "information",
	}
)

// Planner produces search queries. With a reasoner it asks the reasoning
// service first and falls back to keyword expansion on any failure.
type Planner struct {
	reasoner reasoning.Reasoner
	logger   logger.Logger
	now      func() time.Time
}

func NewPlanner(reasoner reasoning.Reasoner, log logger.Logger) *Planner {
	return &Planner{
		reasoner: reasoner,
		logger:   log.WithFields(map[string]interface{}{"taskType": TaskType}),
		now:      time.Now,
	}
}

// InitialQueries returns at most count distinct queries for question,
// always including the question itself first.
func (p *Planner) InitialQueries(ctx context.Context, question string, count int) []string {
	question = normalize(question)
	if question == "" || count <= 0 {
		return []string{}
	}
	if count == 1 {
		return []string{question}
	}

	if p.reasoner != nil {
		prompt := fmt.Sprintf(queryWriterPrompt, count, question, messages.CurrentDate(p.now()))
		if qs, err := p.ask(ctx, prompt); err == nil {
			if out := dedupe(append([]string{question}, qs...), nil, count); len(out) > 1 {
				return out
			}
		} else {
			p.logger.Warn("reasoning query planning failed, using heuristics", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return HeuristicInitial(question, count)
}

// RefinementQueries returns at most maxCount follow-up queries that were not
// already run, derived from the quality gaps.
func (p *Planner) RefinementQueries(ctx context.Context, previous, gaps []string, maxCount int) []string {
	if maxCount <= 0 || len(previous) == 0 {
		return []string{}
	}

	if p.reasoner != nil {
		prompt := fmt.Sprintf(refinementPrompt, maxCount, strings.Join(previous, "\n- "), strings.Join(gaps, ", "), messages.CurrentDate(p.now()))
		if qs, err := p.ask(ctx, prompt); err == nil {
			if out := dedupe(qs, previous, maxCount); len(out) > 0 {
				return out
			}
		} else {
			p.logger.Warn("reasoning refinement failed, using heuristics", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return HeuristicRefinement(previous, gaps, maxCount)
}

type queryList struct {
	Query     []string `json:"query"`
	Rationale string   `json:"rationale"`
}

func (p *Planner) ask(ctx context.Context, prompt string) ([]string, error) {
	resp, err := p.reasoner.Generate(ctx, &reasoning.Request{Prompt: prompt})
	if err != nil {
		return nil, err
	}
	raw := reasoning.StripCodeFence(resp.Text)

	var list queryList
	if err := json.Unmarshal([]byte(raw), &list); err == nil && len(list.Query) > 0 {
		return list.Query, nil
	}
	var arr []string
	if err := json.Unmarshal([]byte(raw), &arr); err != nil {
		return nil, fmt.Errorf("unparseable query list: %w", err)
	}
	return arr, nil
}

// HeuristicInitial expands question with keyword variants.
func HeuristicInitial(question string, count int) []string {
	question = normalize(question)
	if question == "" || count <= 0 {
		return []string{}
	}
	v := pick(question)
	candidates := []string{question}
	suffixes := v.general
	if IsTimeSensitive(question) {
		suffixes = append(append([]string{}, v.timely...), v.general...)
	}
	candidates = append(candidates, withSuffixes(question, suffixes)...)
	return dedupe(candidates, nil, count)
}

// HeuristicRefinement derives follow-up queries from gap markers. Queries that
// already ran are never repeated, so it returns no queries once every variant
// has been searched.
func HeuristicRefinement(previous, gaps []string, maxCount int) []string {
	if maxCount <= 0 {
		return []string{}
	}
	base := ""
	for _, q := range previous {
		if q = normalize(q); q != "" {
			base = q
			break
		}
	}
	if base == "" {
		return []string{}
	}

	v := pick(base)
	var candidates []string
	for _, gap := range gaps {
		switch {
		case gap == models.GapMoreSources:
			candidates = append(candidates, withSuffixes(base, v.sources)...)
		case gap == models.GapMoreDetail:
			candidates = append(candidates, withSuffixes(base, v.detail)...)
		case strings.HasPrefix(gap, models.GapRetryPrefix):
			failed := normalize(strings.TrimPrefix(gap, models.GapRetryPrefix))
			if failed != "" {
				candidates = append(candidates, failed+" "+pick(failed).retry)
			}
		case strings.TrimSpace(gap) != "":
			candidates = append(candidates, base+" "+normalize(gap))
		}
	}
	candidates = append(candidates, withSuffixes(base, v.timely)...)

	return dedupe(candidates, previous, maxCount)
}

// IsTimeSensitive reports whether the question mentions time-dependent content.
func IsTimeSensitive(question string) bool {
	q := strings.ToLower(question)
	for _, m := range timeSensitiveMarkers {
		if containsWord(q, m) {
			return true
		}
	}
	return false
}

func containsWord(s, word string) bool {
	for i := 0; ; {
		idx := strings.Index(s[i:], word)
		if idx < 0 {
			return false
		}
		start, end := i+idx, i+idx+len(word)
		if boundary(s, start-1) && boundary(s, end) {
			return true
		}
		i = start + 1
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return c == ' ' || c == '?' || c == '!' || c == '.' || c == ',' || c == '\t' || c == '\n'
}

func withSuffixes(base string, suffixes []string) []string {
	lower := strings.ToLower(base)
	out := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		if strings.Contains(lower, s) {
			continue
		}
		out = append(out, base+" "+s)
	}
	return out
}

func pick(text string) variants {
	for _, r := range text {
		if r > unicode.MaxASCII && unicode.IsLetter(r) {
			return vietnamese
		}
	}
	return english
}

func normalize(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

// dedupe keeps the first occurrence of each query (case-insensitive),
// skipping anything in exclude, up to limit entries.
func dedupe(candidates, exclude []string, limit int) []string {
	seen := make(map[string]bool, len(candidates)+len(exclude))
	for _, q := range exclude {
		seen[strings.ToLower(normalize(q))] = true
	}
	out := []string{}
	for _, q := range candidates {
		q = normalize(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}
