package questionnaire

import (
	"context"
	"encoding/json"

	"quitflow/internal/ledger"
)

// Coordinate identifies exactly one fetchable question: the strict order
// counter plus the server-chosen variation.
type Coordinate struct {
	OrderID     int `json:"order_id"`
	VariationID int `json:"variation_id"`
}

// AnswerKind values match the wire protocol.
type AnswerKind string

const (
	KindChoice       AnswerKind = "multiple_choice"
	KindNumericRange AnswerKind = "numeric"
	KindTimeSlots    AnswerKind = "time"
	KindDate         AnswerKind = "date"
	KindUnknown      AnswerKind = "unknown"
)

func ParseAnswerKind(v string) AnswerKind {
	switch AnswerKind(v) {
	case KindChoice, KindNumericRange, KindTimeSlots, KindDate:
		return AnswerKind(v)
	default:
		return KindUnknown
	}
}

// SelectionRule describes how many options the user may pick.
type SelectionRule string

const (
	RuleSingle  SelectionRule = "single"
	RuleAll     SelectionRule = "all"
	RuleRange   SelectionRule = "range"
	RuleMax     SelectionRule = "max"
	RuleUnknown SelectionRule = "unknown"
)

func ParseSelectionRule(v string) SelectionRule {
	switch SelectionRule(v) {
	case RuleSingle, RuleAll, RuleRange, RuleMax:
		return SelectionRule(v)
	default:
		return RuleUnknown
	}
}

// AnswerOption is one selectable answer of a question, read-only after
// fetch. NextVariationID carries the branching hint, possibly the terminal
// sentinel.
type AnswerOption struct {
	ID              int64    `json:"id"`
	Label           string   `json:"label"`
	RawValue        string   `json:"value"`
	NextVariationID int      `json:"next_variation_id"`
	DefaultValue    *float64 `json:"default_value,omitempty"`
}

// Question is one fetched question. Never mutated; a coordinate change
// supersedes it with a fresh fetch.
type Question struct {
	ID                 int64          `json:"id"`
	Code               string         `json:"code"`
	Coordinate         Coordinate     `json:"coordinate"`
	Prompt             string         `json:"prompt"`
	Explanation        string         `json:"explanation"`
	AnswerKind         AnswerKind     `json:"answer_kind"`
	SelectionRule      SelectionRule  `json:"selection_rule"`
	Options            []AnswerOption `json:"options"`
	TotalQuestionsHint int            `json:"total_questions_hint,omitempty"`
}

// SelectedOption is the caller-produced choice for the current question.
// It is translated into a ledger entry on submit, never persisted as-is.
type SelectedOption struct {
	OptionID        int64      `json:"option_id"`
	Value           string     `json:"value"`
	AnswerKind      AnswerKind `json:"answer_kind"`
	NextVariationID int        `json:"next_variation_id"`

	SubOptionID *int64     `json:"sub_option_id,omitempty"`
	SubValue    string     `json:"sub_value,omitempty"`
	SubKind     AnswerKind `json:"sub_kind,omitempty"`
}

// Submission is the payload handed to the remote submit boundary.
type Submission struct {
	QuestionID   int64
	QuestionCode string
	OrderID      int
	VariationID  int
	Prompt       string
	Pairs        []ledger.AnswerPair
}

// Completion is the final payload returned by the complete boundary.
type Completion struct {
	Status string
	Raw    json.RawMessage
}

// Service is the set of remote boundaries the session controller consumes.
// FetchQuestion returns (nil, nil) when no question exists at the
// coordinate; with a non-empty ledger that is the end-of-flow signal.
type Service interface {
	FetchQuestion(ctx context.Context, coord Coordinate) (*Question, error)
	SubmitAnswer(ctx context.Context, sub Submission) error
	Complete(ctx context.Context) (*Completion, error)
	GeneratePlan(ctx context.Context) error
}
