package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-analysis-go/internal/types"
)

func checklistRows() [][]string {
	return [][]string{
		{"Показатель", "Комментарий", "Балл", "Условия"},
		{"Приветствие"},
		{"Поздоровался", "Назвал имя", "1", "1 если поздоровался"},
		{"Представил компанию", "", " 2 ", ""},
		{"Работа с возражениями", "", "", "  "},
		{"Выявил возражение", "Уточнил причину", "2", "0-2"},
		{},
		{"Хвост"},
		{"Не читается", "", "1", ""},
	}
}

func TestParseCriteria(t *testing.T) {
	// Given a check-list with two categories and a stop row
	rows := checklistRows()

	// When parsed
	got, err := ParseCriteria(rows)

	// Then criteria inherit the current category and parsing stops at the empty row
	require.NoError(t, err)
	assert.Equal(t, []types.Criterion{
		{Category: "Приветствие", Indicator: "Поздоровался", Comment: "Назвал имя", MaxScore: 1, Rule: "1 если поздоровался"},
		{Category: "Приветствие", Indicator: "Представил компанию", MaxScore: 2},
		{Category: "Работа с возражениями", Indicator: "Выявил возражение", Comment: "Уточнил причину", MaxScore: 2, Rule: "0-2"},
	}, got)
}

func TestParseCriteria_BadScore(t *testing.T) {
	_, err := ParseCriteria([][]string{{"h"}, {"Cat"}, {"Ind", "", "много", ""}})

	assert.ErrorContains(t, err, "row 3")
}

func TestParseCriteria_HeaderOnly(t *testing.T) {
	got, err := ParseCriteria([][]string{{"header"}})

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseInstructions(t *testing.T) {
	got := ParseInstructions([][]string{{"Будь строг", "ignored"}, {}, {"  "}, {" Пиши кратко "}})

	assert.Equal(t, []string{"Будь строг", "Пиши кратко"}, got)
}

func TestBuild_NoCriteria(t *testing.T) {
	_, err := build([][]string{{"header"}, {"Категория"}}, nil)

	assert.ErrorIs(t, err, ErrNoCriteria)
}
