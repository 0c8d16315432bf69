// Package actionable turns a run summary into short coaching cards for team
// leads.
package actionable

import (
	"fmt"

	"call-analysis-go/internal/aggregator"
	"call-analysis-go/internal/types"
)

// WeakThreshold is the category percentage below which a card is raised.
const WeakThreshold = 60

type ActionCard struct {
	Insight string `json:"insight"`
	Action  string `json:"action"`
	Impact  string `json:"impact"`
}

func Generate(s aggregator.Summary) []ActionCard {
	if s.Calls == 0 {
		return []ActionCard{{
			Insight: "Нет проанализированных звонков",
			Action:  "Проверить выгрузку звонков и транскрипций",
			Impact:  "Отчёт за день пуст",
		}}
	}
	var cards []ActionCard
	if c, ok := s.Weakest(); ok && c.Percentage < WeakThreshold {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("Слабая категория «%s»: %d%% (%d из %d)", c.Category, c.Percentage, c.Score, c.MaxScore),
			Action:  "Разобрать категорию на планёрке, прослушать два-три звонка",
			Impact:  "Рост общей эффективности команды",
		})
	}
	if n := s.Priorities[types.PriorityHigh]; n > 0 && n*2 >= s.Calls {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("Высокоприоритетных рекомендаций: %d на %d звонков", n, s.Calls),
			Action:  "Назначить индивидуальные разборы операторам с рекомендациями высокого приоритета",
			Impact:  "Меньше повторяющихся ошибок",
		})
	}
	if len(cards) == 0 {
		cards = append(cards, ActionCard{
			Insight: fmt.Sprintf("Средняя эффективность %.2f%%, явных провалов нет", s.AveragePerformance),
			Action:  "Продолжать мониторинг",
			Impact:  "Вмешательство не требуется",
		})
	}
	return cards
}
