package ledger

import (
	"context"
	"errors"
)

var (
	ErrEmptyAnswer = errors.New("answer entry has no pairs")
)

// AnswerPair is one selected option within an entry. The JSON tags are the
// wire names used both for persistence (answer_pairs_json) and for the
// remote submit payload.
type AnswerPair struct {
	OptionID int64  `json:"answer_option_id"`
	Value    string `json:"answer_value"`
	Kind     string `json:"answer_type"`

	SubOptionID *int64 `json:"answer_sub_option_id,omitempty"`
	SubValue    string `json:"answer_sub_option_value,omitempty"`
	SubKind     string `json:"answer_sub_option_type,omitempty"`
}

// Entry is one persisted answer. The ledger holds at most one entry per
// question id; re-submitting replaces the content but keeps the original
// insertion rank.
type Entry struct {
	QuestionID    int64        `json:"question_id"`
	QuestionCode  string       `json:"question_code"`
	OrderID       int          `json:"order_id"`
	VariationID   int          `json:"variation_id"`
	Prompt        string       `json:"question"`
	AnswerKind    string       `json:"answer_type"`
	SelectionRule string       `json:"answer_handling"`
	Pairs         []AnswerPair `json:"answer_pairs"`
}

// Store is the durable answer ledger. All returns entries ordered by their
// original insertion rank, which back-navigation and re-answering do not
// disturb. Implementations must make every mutation atomic.
type Store interface {
	All(ctx context.Context) ([]Entry, error)
	Upsert(ctx context.Context, e Entry) error
	RemoveByQuestionID(ctx context.Context, questionID int64) error
	Clear(ctx context.Context) error
}
