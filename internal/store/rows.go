package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"call-analysis-go/internal/types"
)

type callRow struct {
	ID           int64
	StartTime    *time.Time
	FinishTime   *time.Time
	OperatorID   *int64
	DepartmentID int
	Phone        *string
	TotalScore   *int
	MaxScore     *int
	Performance  *int
}

type evaluationRow struct {
	Category  string
	Criterion string
	Score     int
	MaxScore  int
	Reason    *string
}

// reportRows is everything one report writes, keyed by the call id.
type reportRows struct {
	Call            callRow
	Transcript      *string
	Evaluations     []evaluationRow
	Recommendations []types.Recommendation
	Agreements      []types.Agreement
	DeclineReasons  []types.DeclineReason
	// Skipped lists evaluations missing a score or max score.
	Skipped []types.Evaluation
}

func buildRows(r types.AnalysisReport, departmentID int) (reportRows, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.Call.SegmentID), 10, 64)
	if err != nil {
		return reportRows{}, fmt.Errorf("call id %q is not numeric", r.Call.SegmentID)
	}
	rows := reportRows{Call: callRow{
		ID:           id,
		StartTime:    timePtr(r.Call.StartDate),
		FinishTime:   timePtr(r.Call.EndDate),
		DepartmentID: departmentID,
		Phone:        strPtr(r.Call.PhoneNumber),
	}}
	if op, err := strconv.ParseInt(r.Call.OperatorID, 10, 64); err == nil {
		rows.Call.OperatorID = &op
	}
	if r.Call.HasTranscript() {
		lines := make([]string, 0, len(r.Call.Phrases))
		for _, p := range r.Call.Phrases {
			lines = append(lines, string(p.Channel)+": "+p.Text)
		}
		text := strings.Join(lines, "\n")
		rows.Transcript = &text
	}

	res := r.Result
	if res == nil {
		return rows, nil
	}
	total, maxScore, perf := res.TotalScore, res.MaxPossibleScore, res.PerformancePercentage
	rows.Call.TotalScore, rows.Call.MaxScore, rows.Call.Performance = &total, &maxScore, &perf

	for _, e := range res.Evaluations {
		if !e.Complete() {
			rows.Skipped = append(rows.Skipped, e)
			continue
		}
		rows.Evaluations = append(rows.Evaluations, evaluationRow{
			Category:  e.Category,
			Criterion: e.Criterion,
			Score:     *e.Score,
			MaxScore:  *e.MaxScore,
			Reason:    strPtr(e.Reason),
		})
	}
	rows.Recommendations = res.Recommendations
	rows.Agreements = res.Agreements
	rows.DeclineReasons = res.DeclineReasons
	return rows, nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
