package questionnaire

import (
	"quitflow/internal/ledger"
)

// Progress is the 1-based position against the server's total-questions
// hint.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Snapshot is a point-in-time, caller-safe view of the session. Fields
// only valid in certain phases are nil outside them: Question exists only
// while answering, History only from the review phase on.
type Snapshot struct {
	Phase           Phase            `json:"phase"`
	RetryPhase      Phase            `json:"retry_phase,omitempty"`
	Coordinate      Coordinate       `json:"coordinate"`
	Question        *Question        `json:"question,omitempty"`
	Selection       []SelectedOption `json:"selection,omitempty"`
	History         []ledger.Entry   `json:"history,omitempty"`
	Completion      *Completion      `json:"completion,omitempty"`
	Error           string           `json:"error,omitempty"`
	CanGoBack       bool             `json:"can_go_back"`
	CanResumeReview bool             `json:"can_resume_review"`
	Progress        *Progress        `json:"progress,omitempty"`
}

// Snapshot returns a copy of the observable session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Phase:           s.phase,
		Coordinate:      s.coord,
		CanGoBack:       s.stack.CanGoBack(),
		CanResumeReview: s.phase == PhaseReviewing && s.stack.Len() > 0,
	}
	if s.phase == PhaseErrored {
		snap.RetryPhase = s.retryPhase
	}
	if s.lastErr != nil {
		snap.Error = s.lastErr.Error()
	}
	if s.question != nil {
		q := *s.question
		q.Options = append([]AnswerOption(nil), s.question.Options...)
		snap.Question = &q
		if sel, ok := s.selections[q.ID]; ok {
			snap.Selection = cloneSelection(sel)
		}
	}
	if len(s.history) > 0 {
		snap.History = cloneHistory(s.history)
	}
	if s.completion != nil {
		c := *s.completion
		snap.Completion = &c
	}
	if s.maxQuestionSeen > 0 {
		snap.Progress = &Progress{
			Current: s.coord.OrderID + 1,
			Total:   s.maxQuestionSeen,
		}
	}
	return snap
}

// ReviewHistory returns the accumulated answers in insertion order, for
// the review screen and exports.
func (s *Session) ReviewHistory() []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneHistory(s.history)
}

// Phase returns the current state machine position.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func cloneHistory(entries []ledger.Entry) []ledger.Entry {
	out := make([]ledger.Entry, len(entries))
	copy(out, entries)
	for i := range entries {
		pairs := make([]ledger.AnswerPair, len(entries[i].Pairs))
		copy(pairs, entries[i].Pairs)
		out[i].Pairs = pairs
	}
	return out
}
