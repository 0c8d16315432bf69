package normalizer

import (
	"github.com/sirupsen/logrus"

	"call-analysis-go/internal/types"
)

const DefaultThreshold = 0.85

// Pair is a (category, criterion) label.
type Pair struct {
	Category  string
	Criterion string
}

// CriterionMapping maps normalized labels back to the taxonomy's originals.
// Iteration follows first insertion; a repeated key keeps its position and
// takes the latest originals.
type CriterionMapping struct {
	keys   []Pair
	values map[Pair]Pair
}

func BuildMapping(criteria []types.Criterion) *CriterionMapping {
	m := &CriterionMapping{values: make(map[Pair]Pair, len(criteria))}
	for _, c := range criteria {
		key := Pair{Category: NormalizeText(c.Category), Criterion: NormalizeText(c.Indicator)}
		if _, ok := m.values[key]; !ok {
			m.keys = append(m.keys, key)
		}
		m.values[key] = Pair{Category: c.Category, Criterion: c.Indicator}
	}
	return m
}

func (m *CriterionMapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

type LabelConfig struct {
	Threshold  float64
	Similarity Similarity
}

// LabelNormalizer resolves model-produced labels to canonical taxonomy labels.
// It is read-only after construction and safe for concurrent use.
type LabelNormalizer struct {
	mapping    *CriterionMapping
	threshold  float64
	similarity Similarity
	// deduplicated categories in first-seen order
	catKeys   []string
	catValues map[string]string
	log       *logrus.Entry
}

func NewLabelNormalizer(m *CriterionMapping, cfg LabelConfig, log *logrus.Entry) *LabelNormalizer {
	if m == nil {
		m = BuildMapping(nil)
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Similarity == nil {
		cfg.Similarity = SequenceRatio
	}
	n := &LabelNormalizer{
		mapping:    m,
		threshold:  cfg.Threshold,
		similarity: cfg.Similarity,
		catValues:  map[string]string{},
		log:        log.WithField("component", "label-normalizer"),
	}
	for _, k := range m.keys {
		if _, ok := n.catValues[k.Category]; ok {
			continue
		}
		n.catKeys = append(n.catKeys, k.Category)
		n.catValues[k.Category] = m.values[k].Category
	}
	return n
}

// Match returns the best canonical pair and its score. Exact hits score 1.
// ok is false when nothing reaches the threshold.
func (n *LabelNormalizer) Match(category, criterion string) (best Pair, score float64, ok bool) {
	key := Pair{Category: NormalizeText(category), Criterion: NormalizeText(criterion)}
	if v, hit := n.mapping.values[key]; hit {
		return v, 1, true
	}
	found := false
	for _, k := range n.mapping.keys {
		s := (n.similarity(key.Category, k.Category) + n.similarity(key.Criterion, k.Criterion)) / 2
		if s > score {
			score, best, found = s, n.mapping.values[k], true
		}
	}
	return best, score, found && score >= n.threshold
}

// Normalize returns canonical labels, or the inputs with whitespace collapsed
// when no entry is close enough.
func (n *LabelNormalizer) Normalize(category, criterion string) (string, string) {
	best, score, ok := n.Match(category, criterion)
	if ok {
		if best.Category != category || best.Criterion != criterion {
			n.log.WithFields(logrus.Fields{
				"from_category":  category,
				"from_criterion": criterion,
				"to_category":    best.Category,
				"to_criterion":   best.Criterion,
				"similarity":     round2(score),
			}).Info("label normalized")
		}
		return best.Category, best.Criterion
	}
	n.log.WithFields(logrus.Fields{
		"category":   category,
		"criterion":  criterion,
		"similarity": round2(score),
		"threshold":  n.threshold,
	}).Warn("no taxonomy match for label, keeping model value")
	return CollapseWhitespace(category), CollapseWhitespace(criterion)
}

// NormalizeCategory is Normalize over categories alone.
func (n *LabelNormalizer) NormalizeCategory(category string) string {
	norm := NormalizeText(category)
	if v, hit := n.catValues[norm]; hit {
		return v
	}
	var (
		best  string
		score float64
		found bool
	)
	for _, k := range n.catKeys {
		if s := n.similarity(norm, k); s > score {
			score, best, found = s, n.catValues[k], true
		}
	}
	if found && score >= n.threshold {
		if best != category {
			n.log.WithFields(logrus.Fields{
				"from_category": category,
				"to_category":   best,
				"similarity":    round2(score),
			}).Info("category normalized")
		}
		return best
	}
	n.log.WithFields(logrus.Fields{
		"category":   category,
		"similarity": round2(score),
		"threshold":  n.threshold,
	}).Warn("no taxonomy match for category, keeping model value")
	return CollapseWhitespace(category)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
