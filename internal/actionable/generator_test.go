package actionable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analysis-go/internal/aggregator"
	"call-analysis-go/internal/types"
)

func TestGenerate_WeakCategoryAndHighPriority(t *testing.T) {
	s := aggregator.Summary{
		Calls:      2,
		Categories: []aggregator.CategoryScore{{Category: "Возражения", Score: 1, MaxScore: 4, Percentage: 25}},
		Priorities: map[types.Priority]int{types.PriorityHigh: 1},
	}

	cards := Generate(s)

	require.Len(t, cards, 2)
	assert.Contains(t, cards[0].Insight, "Возражения")
	assert.Contains(t, cards[0].Insight, "25%")
	assert.Contains(t, cards[1].Insight, "1 на 2")
}

func TestGenerate_Healthy(t *testing.T) {
	s := aggregator.Summary{
		Calls:              10,
		AveragePerformance: 88.5,
		Categories:         []aggregator.CategoryScore{{Category: "Приветствие", Score: 9, MaxScore: 10, Percentage: 90}},
		Priorities:         map[types.Priority]int{types.PriorityHigh: 2},
	}

	cards := Generate(s)

	require.Len(t, cards, 1)
	assert.Contains(t, cards[0].Insight, "88.50%")
}

func TestGenerate_NoCalls(t *testing.T) {
	cards := Generate(aggregator.Summary{})

	require.Len(t, cards, 1)
	assert.Contains(t, cards[0].Insight, "Нет")
}
