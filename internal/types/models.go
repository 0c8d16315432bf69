package types

import "time"

type Channel string

const (
	ChannelOperator Channel = "operator"
	ChannelClient   Channel = "client"
)

type Phrase struct {
	Text    string  `json:"text"`
	StartMs int64   `json:"start_ms"`
	Channel Channel `json:"channel"`
}

// CallRecord is one recorded call segment as returned by the telephony vendor.
// Operator fields are rewritten to canonical values during ingestion.
type CallRecord struct {
	SegmentID     string    `json:"segment_id"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	Duration      float64   `json:"duration"`
	OperatorID    string    `json:"operator_id"`
	OperatorLogin string    `json:"operator_login,omitempty"`
	OperatorName  string    `json:"operator_name"`
	PhoneNumber   string    `json:"phone_number,omitempty"`
	Direction     string    `json:"direction,omitempty"`
	Phrases       []Phrase  `json:"phrases,omitempty"`
}

func (c CallRecord) HasTranscript() bool {
	return len(c.Phrases) > 0
}

// Operator is a canonical operator row from the directory.
type Operator struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

// Criterion is one check-list line the model scores a call against.
type Criterion struct {
	Category  string `json:"category" yaml:"category"`
	Indicator string `json:"indicator" yaml:"indicator"`
	Comment   string `json:"comment" yaml:"comment"`
	MaxScore  int    `json:"max_score" yaml:"max_score"`
	Rule      string `json:"rule" yaml:"rule"`
}

type Taxonomy struct {
	Criteria     []Criterion `json:"criteria" yaml:"criteria"`
	Instructions []string    `json:"instructions" yaml:"instructions"`
}
