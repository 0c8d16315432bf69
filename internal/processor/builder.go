package processor

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"call-analysis-go/internal/normalizer"
	"call-analysis-go/internal/types"
)

// Builder turns a decoded model reply into a validated Result.
type Builder struct {
	labels *normalizer.LabelNormalizer
	log    *logrus.Entry
}

// NewBuilder accepts a nil normalizer; labels are then only whitespace-collapsed.
func NewBuilder(labels *normalizer.LabelNormalizer, log *logrus.Entry) *Builder {
	return &Builder{labels: labels, log: log.WithField("component", "result-builder")}
}

// Build never fails: malformed entries are dropped or repaired. A result with
// IsSalesCall false carries nothing else and is meant to be discarded.
// Totals sent by the model are ignored and recomputed.
func (b *Builder) Build(callID string, data map[string]any) *types.Result {
	log := b.log.WithField("call_id", callID)
	res := &types.Result{IsSalesCall: asBool(data["is_sales_call"])}
	if !res.IsSalesCall {
		return res
	}

	res.Evaluations = b.evaluations(log, objects(data["evaluations"]))
	res.Recommendations = b.recommendations(objects(data["recommendations"]))
	res.Agreements = agreements(objects(data["agreements"]))
	res.DeclineReasons = declineReasons(objects(data["decline_reasons"]))

	skipped := 0
	for _, e := range res.Evaluations {
		if !e.Complete() {
			skipped++
			continue
		}
		res.TotalScore += *e.Score
		res.MaxPossibleScore += *e.MaxScore
	}
	res.PerformancePercentage = Performance(res.TotalScore, res.MaxPossibleScore)
	if skipped > 0 {
		log.WithField("incomplete", skipped).Warn("evaluations without score or max score left out of totals")
	}
	return res
}

// Performance is floor(100*total/max), or 0 when max is not positive.
func Performance(total, maxScore int) int {
	if maxScore <= 0 {
		return 0
	}
	return total * 100 / maxScore
}

func (b *Builder) evaluations(log *logrus.Entry, items []map[string]any) []types.Evaluation {
	out := make([]types.Evaluation, 0, len(items))
	for _, item := range items {
		e := types.Evaluation{
			Score:    asInt(item["score_given"]),
			MaxScore: asInt(item["max_score"]),
			Reason:   strings.TrimSpace(asString(item["reason"])),
		}
		e.Category, e.Criterion = b.pair(asString(item["category"]), asString(item["criterion"]))

		entry := log.WithFields(logrus.Fields{"category": e.Category, "criterion": e.Criterion})
		if e.MaxScore != nil && *e.MaxScore < 0 {
			entry.WithField("max_score", *e.MaxScore).Warn("negative max score clamped to 0")
			*e.MaxScore = 0
		}
		if e.Score != nil {
			switch {
			case *e.Score < 0:
				entry.WithField("score", *e.Score).Warn("negative score clamped to 0")
				*e.Score = 0
			case e.MaxScore != nil && *e.Score > *e.MaxScore:
				entry.WithFields(logrus.Fields{"score": *e.Score, "max_score": *e.MaxScore}).
					Warn("score above max clamped")
				*e.Score = *e.MaxScore
			}
		}
		out = append(out, e)
	}
	return out
}

func (b *Builder) pair(category, criterion string) (string, string) {
	if b.labels == nil {
		return normalizer.CollapseWhitespace(category), normalizer.CollapseWhitespace(criterion)
	}
	return b.labels.Normalize(category, criterion)
}

func (b *Builder) category(category string) string {
	if b.labels == nil || strings.TrimSpace(category) == "" {
		return normalizer.CollapseWhitespace(category)
	}
	return b.labels.NormalizeCategory(category)
}

func (b *Builder) recommendations(items []map[string]any) []types.Recommendation {
	out := make([]types.Recommendation, 0, len(items))
	for _, item := range items {
		issue := strings.TrimSpace(asString(item["issue"]))
		text := strings.TrimSpace(asString(item["recommendation"]))
		if issue == "" || text == "" {
			continue
		}
		out = append(out, types.Recommendation{
			Category:       b.category(asString(item["category"])),
			Issue:          issue,
			Recommendation: text,
			Priority:       asPriority(item["priority"]),
		})
	}
	return out
}

func agreements(items []map[string]any) []types.Agreement {
	out := make([]types.Agreement, 0, len(items))
	for _, item := range items {
		text := strings.TrimSpace(asString(item["agreement"]))
		if text == "" {
			continue
		}
		out = append(out, types.Agreement{Amount: asFloat(item["amount"]), Agreement: text})
	}
	return out
}

func declineReasons(items []map[string]any) []types.DeclineReason {
	out := make([]types.DeclineReason, 0, len(items))
	for _, item := range items {
		desc := strings.TrimSpace(asString(item["reason_description"]))
		if desc == "" {
			continue
		}
		d := types.DeclineReason{
			ReasonType:        strings.TrimSpace(asString(item["reason_type"])),
			ReasonDescription: desc,
		}
		if pc := strings.TrimSpace(asString(item["product_category"])); pc != "" {
			d.ProductCategory = &pc
		}
		out = append(out, d)
	}
	return out
}

func asPriority(v any) types.Priority {
	p := types.Priority(strings.ToLower(strings.TrimSpace(asString(v))))
	switch p {
	case types.PriorityHigh, types.PriorityMedium, types.PriorityLow:
		return p
	}
	return types.PriorityMedium
}

// objects keeps the non-empty JSON objects of a list.
func objects(v any) []map[string]any {
	list, _ := v.([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok && len(m) > 0 {
			out = append(out, m)
		}
	}
	return out
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return err == nil && b
	}
	return false
}

// asInt truncates numbers toward zero; nil means absent.
func asInt(v any) *int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = parsed
	case bool:
		if t {
			f = 1
		}
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	n := int(f)
	return &n
}

func asFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), " ", "")
		s = strings.ReplaceAll(s, ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
