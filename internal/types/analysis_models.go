package types

// Evaluation is the model's verdict on a single criterion.
// Score and MaxScore stay nil when the model omitted them.
type Evaluation struct {
	Category  string `json:"category"`
	Criterion string `json:"criterion"`
	Score     *int   `json:"score_given"`
	MaxScore  *int   `json:"max_score"`
	Reason    string `json:"reason"`
}

// Complete reports whether both score fields are present.
func (e Evaluation) Complete() bool {
	return e.Score != nil && e.MaxScore != nil
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Recommendation struct {
	Category       string   `json:"category"`
	Issue          string   `json:"issue"`
	Recommendation string   `json:"recommendation"`
	Priority       Priority `json:"priority"`
}

type Agreement struct {
	Amount    *float64 `json:"amount"`
	Agreement string   `json:"agreement"`
}

type DeclineReason struct {
	ReasonType        string  `json:"reason_type"`
	ReasonDescription string  `json:"reason_description"`
	ProductCategory   *string `json:"product_category"`
}

// Result is the validated analysis of one call.
type Result struct {
	IsSalesCall           bool             `json:"is_sales_call"`
	TotalScore            int              `json:"total_score"`
	MaxPossibleScore      int              `json:"max_possible_score"`
	PerformancePercentage int              `json:"performance_percentage"`
	Evaluations           []Evaluation     `json:"evaluations"`
	Recommendations       []Recommendation `json:"recommendations"`
	Agreements            []Agreement      `json:"agreements"`
	DeclineReasons        []DeclineReason  `json:"decline_reasons"`
}

// AnalysisReport pairs a call with its analysis for persistence.
type AnalysisReport struct {
	Call         CallRecord `json:"call"`
	Result       *Result    `json:"result,omitempty"`
	DepartmentID int        `json:"department_id"`
}
