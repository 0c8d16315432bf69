// Package aggregator rolls a run's reports up into one summary.
package aggregator

import (
	"math"
	"sort"

	"call-analysis-go/internal/processor"
	"call-analysis-go/internal/types"
)

type CategoryScore struct {
	Category   string `json:"category"`
	Score      int    `json:"score"`
	MaxScore   int    `json:"max_score"`
	Percentage int    `json:"percentage"`
	// Evaluations counts complete evaluations in this category.
	Evaluations int `json:"evaluations"`
}

type Summary struct {
	Calls              int                    `json:"calls"`
	AveragePerformance float64                `json:"average_performance"`
	Categories         []CategoryScore        `json:"categories"`
	Priorities         map[types.Priority]int `json:"priorities"`
	Agreements         int                    `json:"agreements"`
	DeclineReasons     map[string]int         `json:"decline_reasons"`
}

// Summarize aggregates reports with a result. Incomplete evaluations are
// left out of category totals the same way they are left out of call totals.
func Summarize(reports []types.AnalysisReport) Summary {
	s := Summary{
		Priorities:     map[types.Priority]int{},
		DeclineReasons: map[string]int{},
	}
	byCat := map[string]*CategoryScore{}
	perf := 0
	for _, r := range reports {
		res := r.Result
		if res == nil {
			continue
		}
		s.Calls++
		perf += res.PerformancePercentage
		for _, e := range res.Evaluations {
			if !e.Complete() {
				continue
			}
			c, ok := byCat[e.Category]
			if !ok {
				c = &CategoryScore{Category: e.Category}
				byCat[e.Category] = c
			}
			c.Score += *e.Score
			c.MaxScore += *e.MaxScore
			c.Evaluations++
		}
		for _, rec := range res.Recommendations {
			s.Priorities[rec.Priority]++
		}
		s.Agreements += len(res.Agreements)
		for _, d := range res.DeclineReasons {
			reason := d.ReasonType
			if reason == "" {
				reason = "unspecified"
			}
			s.DeclineReasons[reason]++
		}
	}
	if s.Calls > 0 {
		s.AveragePerformance = math.Round(float64(perf)/float64(s.Calls)*100) / 100
	}

	s.Categories = make([]CategoryScore, 0, len(byCat))
	for _, c := range byCat {
		c.Percentage = processor.Performance(c.Score, c.MaxScore)
		s.Categories = append(s.Categories, *c)
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		return s.Categories[i].Category < s.Categories[j].Category
	})
	return s
}

// Weakest returns the category with the lowest percentage among those with a
// positive max score. Ties go to the alphabetically first category.
func (s Summary) Weakest() (CategoryScore, bool) {
	var (
		best  CategoryScore
		found bool
	)
	for _, c := range s.Categories {
		if c.MaxScore == 0 {
			continue
		}
		if !found || c.Percentage < best.Percentage {
			best, found = c, true
		}
	}
	return best, found
}
