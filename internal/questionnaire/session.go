package questionnaire

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"quitflow/internal/ledger"
)

// Phase is the session state machine position.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseLoading    Phase = "loading"
	PhaseAnswering  Phase = "answering"
	PhaseSubmitting Phase = "submitting"
	PhaseReviewing  Phase = "reviewing"
	PhaseCompleting Phase = "completing"
	PhaseDone       Phase = "done"
	PhaseErrored    Phase = "errored"
)

var (
	ErrBusy             = errors.New("another operation is in flight")
	ErrEmptySelection   = errors.New("selection is empty")
	ErrNoActiveQuestion = errors.New("no active question")
	ErrCannotGoBack     = errors.New("cannot go back")
	ErrNotReviewing     = errors.New("session is not reviewing")
	ErrNoQuestion       = errors.New("no question at coordinate")
	ErrSessionFinished  = errors.New("session already finished")
)

// Session drives one questionnaire run: it sequences question fetches,
// answer submissions and the final completion against the remote
// boundaries, keeps the durable answer ledger and the navigation stack in
// step, and exposes the current phase to callers. At most one remote
// operation is in flight at a time; overlapping calls fail with ErrBusy.
type Session struct {
	svc   Service
	store ledger.Store

	mu    sync.Mutex
	busy  bool
	epoch uint64

	phase      Phase
	retryPhase Phase
	lastErr    error

	initial    Coordinate
	coord      Coordinate
	question   *Question
	history    []ledger.Entry
	stack      NavigationStack
	selections map[int64][]SelectedOption
	completion *Completion

	// High-water mark of the server's total-questions hint, kept for
	// progress display while later questions omit it.
	maxQuestionSeen int
}

func NewSession(svc Service, store ledger.Store, initial Coordinate) *Session {
	return &Session{
		svc:        svc,
		store:      store,
		phase:      PhaseIdle,
		initial:    initial,
		coord:      initial,
		selections: make(map[int64][]SelectedOption),
	}
}

// Start issues the first fetch. Also usable after Refresh semantics from
// Idle; calling it twice is harmless but the second call refetches.
func (s *Session) Start(ctx context.Context) error {
	epoch, err := s.beginOp(PhaseLoading, PhaseIdle, PhaseLoading, PhaseAnswering, PhaseErrored)
	if err != nil {
		return err
	}
	return s.fetchAndApply(ctx, epoch)
}

// Refresh retries the current coordinate after a fetch failure, or
// re-reads the ledger when reviewing.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	reviewing := s.phase == PhaseReviewing ||
		(s.phase == PhaseErrored && s.retryPhase == PhaseReviewing)
	s.mu.Unlock()
	if reviewing {
		return s.reloadReview(ctx)
	}

	epoch, err := s.beginOp(PhaseLoading, PhaseIdle, PhaseLoading, PhaseAnswering, PhaseErrored)
	if err != nil {
		return err
	}
	return s.fetchAndApply(ctx, epoch)
}

// SubmitAnswers submits the caller's selection for the active question.
// The ledger is only touched after the server accepts the answer, so a
// failed submit is safe to retry. A non-terminal next hint advances the
// coordinate and fetches the next question before returning.
func (s *Session) SubmitAnswers(ctx context.Context, selected []SelectedOption) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.phase != PhaseAnswering || s.question == nil {
		s.mu.Unlock()
		return ErrNoActiveQuestion
	}
	if len(selected) == 0 {
		s.mu.Unlock()
		return ErrEmptySelection
	}
	s.busy = true
	s.phase = PhaseSubmitting
	s.lastErr = nil
	epoch := s.epoch
	q := s.question
	s.mu.Unlock()

	sub := buildSubmission(q, selected)
	if err := s.svc.SubmitAnswer(ctx, sub); err != nil {
		return s.failOp(epoch, PhaseAnswering, fmt.Errorf("submit answer: %w", err))
	}

	entry := entryFromSelection(q, selected)
	if err := s.store.Upsert(ctx, entry); err != nil {
		return s.failOp(epoch, PhaseAnswering, fmt.Errorf("persist answer: %w", err))
	}

	hints := make([]int, 0, len(selected))
	for _, opt := range selected {
		hints = append(hints, opt.NextVariationID)
	}
	next := ResolveNextVariation(hints, q.Coordinate.VariationID)

	if IsTerminal(next) {
		// The ledger is authoritative for the review screen.
		records, err := s.store.All(ctx)
		if err != nil {
			return s.failOp(epoch, PhaseAnswering, fmt.Errorf("load history: %w", err))
		}
		// Best effort: review proceeds with or without a generated plan.
		if err := s.svc.GeneratePlan(ctx); err != nil {
			log.Printf("questionnaire: plan generation failed: %v", err)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.busy = false
		if epoch != s.epoch {
			return nil
		}
		s.selections[q.ID] = cloneSelection(selected)
		s.enterReviewLocked(records)
		return nil
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.busy = false
		s.mu.Unlock()
		return nil
	}
	s.selections[q.ID] = cloneSelection(selected)
	s.upsertHistoryLocked(entry)
	s.coord = Coordinate{OrderID: q.Coordinate.OrderID + 1, VariationID: next}
	s.phase = PhaseLoading
	s.mu.Unlock()

	return s.fetchAndApply(ctx, epoch)
}

// GoBack pops the navigation stack, discards the popped question's ledger
// entry and re-enters answering at the restored coordinate.
func (s *Session) GoBack(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.phase != PhaseAnswering && s.phase != PhaseReviewing {
		s.mu.Unlock()
		return ErrCannotGoBack
	}
	if !s.stack.CanGoBack() {
		s.mu.Unlock()
		return ErrCannotGoBack
	}

	popped, _ := s.stack.Pop()
	dest, _ := s.stack.Peek()

	delete(s.selections, popped.QuestionID)
	s.removeHistoryLocked(popped.QuestionID)
	s.coord = dest.Coordinate
	s.question = nil
	s.lastErr = nil
	s.epoch++
	epoch := s.epoch
	s.busy = true
	s.phase = PhaseLoading
	s.mu.Unlock()

	// The user is re-answering the popped question; its stale answer must
	// not linger in the ledger. Losing the row is not fatal: a re-answer
	// overwrites it.
	if err := s.store.RemoveByQuestionID(ctx, popped.QuestionID); err != nil {
		log.Printf("questionnaire: discard answer for question %d: %v", popped.QuestionID, err)
	}

	return s.fetchAndApply(ctx, epoch)
}

// ResumeFromReview re-enters answering at the last answered question
// without popping, so earlier history is kept.
func (s *Session) ResumeFromReview(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	if s.phase != PhaseReviewing {
		s.mu.Unlock()
		return ErrNotReviewing
	}
	top, ok := s.stack.Peek()
	if !ok {
		s.mu.Unlock()
		return ErrCannotGoBack
	}
	s.coord = top.Coordinate
	s.question = nil
	s.lastErr = nil
	s.busy = true
	s.phase = PhaseLoading
	epoch := s.epoch
	s.mu.Unlock()

	return s.fetchAndApply(ctx, epoch)
}

// Complete calls the remote completion boundary. Every answer has already
// been submitted question by question, so a completion failure still
// finishes the session locally instead of stranding the user in review;
// the error is returned for logging only.
func (s *Session) Complete(ctx context.Context) (*Completion, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if s.phase != PhaseReviewing {
		s.mu.Unlock()
		return nil, ErrNotReviewing
	}
	s.busy = true
	s.phase = PhaseCompleting
	s.lastErr = nil
	epoch := s.epoch
	s.mu.Unlock()

	comp, err := s.svc.Complete(ctx)
	if clearErr := s.store.Clear(ctx); clearErr != nil {
		log.Printf("questionnaire: clear ledger after completion: %v", clearErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if epoch != s.epoch {
		return nil, nil
	}
	s.phase = PhaseDone
	s.question = nil
	s.completion = comp
	if err != nil {
		s.lastErr = fmt.Errorf("complete questionnaire: %w", err)
		return nil, s.lastErr
	}
	return comp, nil
}

// Restart wipes the ledger and all session state and fetches the initial
// coordinate again.
func (s *Session) Restart(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.epoch++
	epoch := s.epoch
	s.busy = true
	s.phase = PhaseLoading
	s.lastErr = nil
	s.question = nil
	s.history = nil
	s.completion = nil
	s.stack.Reset()
	s.selections = make(map[int64][]SelectedOption)
	s.coord = s.initial
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return s.failOp(epoch, PhaseIdle, fmt.Errorf("clear ledger: %w", err))
	}
	return s.fetchAndApply(ctx, epoch)
}

// beginOp acquires the single-flight guard when the current phase is one
// of allowed, and moves to next.
func (s *Session) beginOp(next Phase, allowed ...Phase) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return 0, ErrBusy
	}
	if s.phase == PhaseDone {
		return 0, ErrSessionFinished
	}
	ok := false
	for _, p := range allowed {
		if s.phase == p {
			ok = true
			break
		}
	}
	if !ok {
		return 0, fmt.Errorf("operation not valid in phase %s", s.phase)
	}
	s.busy = true
	s.phase = next
	s.lastErr = nil
	return s.epoch, nil
}

// fetchAndApply performs the question fetch for the current coordinate and
// applies the result. The busy guard must already be held. A result whose
// epoch no longer matches (the session restarted or navigated meanwhile)
// is discarded.
func (s *Session) fetchAndApply(ctx context.Context, epoch uint64) error {
	s.mu.Lock()
	coord := s.coord
	s.mu.Unlock()

	q, err := s.svc.FetchQuestion(ctx, coord)
	if err != nil {
		return s.failOp(epoch, PhaseLoading, fmt.Errorf("fetch question: %w", err))
	}

	if q == nil {
		records, histErr := s.store.All(ctx)
		if histErr != nil {
			return s.failOp(epoch, PhaseLoading, fmt.Errorf("load history: %w", histErr))
		}
		if len(records) > 0 {
			// Best effort: review proceeds with or without a generated plan.
			if err := s.svc.GeneratePlan(ctx); err != nil {
				log.Printf("questionnaire: plan generation failed: %v", err)
			}
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.busy = false
		if epoch != s.epoch {
			return nil
		}
		if len(records) == 0 {
			// Not-found with nothing answered yet is a plain fetch
			// failure, not end-of-flow; refresh can retry it.
			s.failLocked(PhaseLoading, ErrNoQuestion)
			return s.lastErr
		}
		// looksLikeEndOfFlow: the server has no question here and the
		// ledger is non-empty, i.e. the questionnaire is finished.
		s.enterReviewLocked(records)
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if epoch != s.epoch {
		return nil
	}
	s.question = q
	s.coord = q.Coordinate
	if q.TotalQuestionsHint > s.maxQuestionSeen {
		s.maxQuestionSeen = q.TotalQuestionsHint
	}
	s.stack.PushOrTruncate(NavigationEntry{Coordinate: q.Coordinate, QuestionID: q.ID})
	s.seedSelectionLocked(q)
	s.phase = PhaseAnswering
	return nil
}

// reloadReview refreshes the review history from the ledger.
func (s *Session) reloadReview(ctx context.Context) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.busy = true
	epoch := s.epoch
	s.mu.Unlock()

	records, err := s.store.All(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if epoch != s.epoch {
		return nil
	}
	if err != nil {
		s.failLocked(PhaseReviewing, fmt.Errorf("load history: %w", err))
		return s.lastErr
	}
	s.history = records
	s.phase = PhaseReviewing
	s.lastErr = nil
	return nil
}

func (s *Session) failOp(epoch uint64, retry Phase, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if epoch != s.epoch {
		return nil
	}
	s.failLocked(retry, err)
	return s.lastErr
}

func (s *Session) failLocked(retry Phase, err error) {
	s.phase = PhaseErrored
	s.retryPhase = retry
	s.lastErr = err
}

func (s *Session) enterReviewLocked(records []ledger.Entry) {
	s.phase = PhaseReviewing
	s.question = nil
	s.history = records
}

// seedSelectionLocked pre-populates the active selection from the ledger
// entry of a revisited question, so back navigation shows the prior
// answer. The option list of the fresh question supplies the branching
// hints the ledger does not store.
func (s *Session) seedSelectionLocked(q *Question) {
	if _, ok := s.selections[q.ID]; ok {
		return
	}
	var entry *ledger.Entry
	for i := range s.history {
		if s.history[i].QuestionID == q.ID {
			entry = &s.history[i]
			break
		}
	}
	if entry == nil {
		return
	}

	optionsByID := make(map[int64]AnswerOption, len(q.Options))
	for _, opt := range q.Options {
		optionsByID[opt.ID] = opt
	}

	seeded := make([]SelectedOption, 0, len(entry.Pairs))
	for _, p := range entry.Pairs {
		opt, ok := optionsByID[p.OptionID]
		if !ok {
			continue
		}
		sel := SelectedOption{
			OptionID:        p.OptionID,
			Value:           p.Value,
			AnswerKind:      ParseAnswerKind(p.Kind),
			NextVariationID: opt.NextVariationID,
			SubValue:        p.SubValue,
		}
		if p.SubOptionID != nil {
			id := *p.SubOptionID
			sel.SubOptionID = &id
		}
		if p.SubKind != "" {
			sel.SubKind = ParseAnswerKind(p.SubKind)
		}
		seeded = append(seeded, sel)
	}
	if len(seeded) > 0 {
		s.selections[q.ID] = seeded
	}
}

func (s *Session) upsertHistoryLocked(e ledger.Entry) {
	for i := range s.history {
		if s.history[i].QuestionID == e.QuestionID {
			s.history[i] = e
			return
		}
	}
	s.history = append(s.history, e)
}

func (s *Session) removeHistoryLocked(questionID int64) {
	kept := s.history[:0]
	for _, e := range s.history {
		if e.QuestionID != questionID {
			kept = append(kept, e)
		}
	}
	s.history = kept
}

func buildSubmission(q *Question, selected []SelectedOption) Submission {
	return Submission{
		QuestionID:   q.ID,
		QuestionCode: q.Code,
		OrderID:      q.Coordinate.OrderID,
		VariationID:  q.Coordinate.VariationID,
		Prompt:       q.Prompt,
		Pairs:        pairsFromSelection(selected),
	}
}

func entryFromSelection(q *Question, selected []SelectedOption) ledger.Entry {
	return ledger.Entry{
		QuestionID:    q.ID,
		QuestionCode:  q.Code,
		OrderID:       q.Coordinate.OrderID,
		VariationID:   q.Coordinate.VariationID,
		Prompt:        q.Prompt,
		AnswerKind:    string(q.AnswerKind),
		SelectionRule: string(q.SelectionRule),
		Pairs:         pairsFromSelection(selected),
	}
}

func pairsFromSelection(selected []SelectedOption) []ledger.AnswerPair {
	pairs := make([]ledger.AnswerPair, 0, len(selected))
	for _, opt := range selected {
		p := ledger.AnswerPair{
			OptionID: opt.OptionID,
			Value:    opt.Value,
			Kind:     string(opt.AnswerKind),
			SubValue: opt.SubValue,
		}
		if opt.SubOptionID != nil {
			id := *opt.SubOptionID
			p.SubOptionID = &id
		}
		if opt.SubKind != "" {
			p.SubKind = string(opt.SubKind)
		}
		pairs = append(pairs, p)
	}
	return pairs
}

func cloneSelection(selected []SelectedOption) []SelectedOption {
	out := make([]SelectedOption, len(selected))
	copy(out, selected)
	for i, opt := range selected {
		if opt.SubOptionID != nil {
			id := *opt.SubOptionID
			out[i].SubOptionID = &id
		}
	}
	return out
}
