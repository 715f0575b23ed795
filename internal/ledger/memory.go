package ledger

import (
	"context"
	"sync"
)

type memoryRow struct {
	entry Entry
	rank  int64
}

// MemoryStore keeps the ledger in process memory. It backs tests and the
// LEDGER_DRIVER=memory configuration.
type MemoryStore struct {
	mu       sync.Mutex
	rows     []memoryRow
	nextRank int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextRank: 1}
}

func (s *MemoryStore) All(ctx context.Context) ([]Entry, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0, len(s.rows))
	for _, r := range s.rows {
		out = append(out, cloneEntry(r.entry))
	}
	return out, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, e Entry) error {
	_ = ctx
	if len(e.Pairs) == 0 {
		return ErrEmptyAnswer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rows {
		if r.entry.QuestionID == e.QuestionID {
			s.rows[i].entry = cloneEntry(e)
			return nil
		}
	}

	s.rows = append(s.rows, memoryRow{entry: cloneEntry(e), rank: s.nextRank})
	s.nextRank++
	return nil
}

func (s *MemoryStore) RemoveByQuestionID(ctx context.Context, questionID int64) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.entry.QuestionID != questionID {
			kept = append(kept, r)
		}
	}
	s.rows = kept
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = nil
	return nil
}

func cloneEntry(e Entry) Entry {
	out := e
	out.Pairs = make([]AnswerPair, len(e.Pairs))
	copy(out.Pairs, e.Pairs)
	for i, p := range e.Pairs {
		if p.SubOptionID != nil {
			id := *p.SubOptionID
			out.Pairs[i].SubOptionID = &id
		}
	}
	return out
}
