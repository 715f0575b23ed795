package questionnaire

// NavigationEntry is one visited question on the undo stack.
type NavigationEntry struct {
	Coordinate Coordinate `json:"coordinate"`
	QuestionID int64      `json:"question_id"`
}

// NavigationStack is the in-memory undo history of visited coordinates.
// The top is always the active or most recently answered question. Not
// safe for concurrent use; the session controller serializes access.
type NavigationStack struct {
	entries []NavigationEntry
}

// PushOrTruncate records a visit. Revisiting a question already on the
// stack truncates everything visited after it instead of duplicating, so
// the stack never holds the same question twice.
func (s *NavigationStack) PushOrTruncate(e NavigationEntry) {
	for i, existing := range s.entries {
		if existing.QuestionID == e.QuestionID {
			s.entries = s.entries[:i+1]
			s.entries[i] = e
			return
		}
	}
	s.entries = append(s.entries, e)
}

// Pop removes and returns the top entry. The first question can never be
// popped away: with one or zero entries Pop is a no-op.
func (s *NavigationStack) Pop() (NavigationEntry, bool) {
	if len(s.entries) <= 1 {
		return NavigationEntry{}, false
	}
	top := s.entries[len(s.entries)-1]
	s.entries = s.entries[:len(s.entries)-1]
	return top, true
}

func (s *NavigationStack) Peek() (NavigationEntry, bool) {
	if len(s.entries) == 0 {
		return NavigationEntry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

func (s *NavigationStack) CanGoBack() bool {
	return len(s.entries) > 1
}

func (s *NavigationStack) Len() int {
	return len(s.entries)
}

func (s *NavigationStack) Reset() {
	s.entries = nil
}

// Entries returns a copy, ordered bottom to top.
func (s *NavigationStack) Entries() []NavigationEntry {
	out := make([]NavigationEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
