package app

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"quitflow/internal/ledger"
	"quitflow/internal/questionnaire"
)

// StoreFactory builds the ledger store backing one session. SQL-backed
// factories scope rows by the session id; the memory factory returns a
// fresh store each time.
type StoreFactory func(sessionID string) ledger.Store

type sessionEntry struct {
	sess     *questionnaire.Session
	lastSeen time.Time
}

// SessionRegistry owns the live questionnaire sessions, keyed by a
// server-issued uuid. Sessions idle past the TTL are swept out.
type SessionRegistry struct {
	svc     questionnaire.Service
	stores  StoreFactory
	initial questionnaire.Coordinate
	idleTTL time.Duration

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewSessionRegistry(svc questionnaire.Service, stores StoreFactory, initial questionnaire.Coordinate, idleTTL time.Duration) *SessionRegistry {
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	return &SessionRegistry{
		svc:      svc,
		stores:   stores,
		initial:  initial,
		idleTTL:  idleTTL,
		sessions: make(map[string]*sessionEntry),
	}
}

// Create registers a new session and loads its first question. A failed
// initial fetch still registers the session; its snapshot reports the
// errored, retryable state.
func (r *SessionRegistry) Create(ctx context.Context) (string, *questionnaire.Session, error) {
	id := uuid.NewString()
	sess := questionnaire.NewSession(r.svc, r.stores(id), r.initial)
	if err := sess.Start(ctx); err != nil {
		log.Printf("session %s initial load failed: %v", id, err)
	}

	r.mu.Lock()
	r.sessions[id] = &sessionEntry{sess: sess, lastSeen: time.Now()}
	r.mu.Unlock()

	return id, sess, nil
}

func (r *SessionRegistry) Get(id string) (*questionnaire.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = time.Now()
	return e.sess, true
}

func (r *SessionRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// ReviewHistory exposes a session's answer history in submission order.
func (r *SessionRegistry) ReviewHistory(id string) ([]ledger.Entry, bool) {
	sess, ok := r.Get(id)
	if !ok {
		return nil, false
	}
	return sess.ReviewHistory(), true
}

// Sweep drops sessions idle longer than the TTL and returns how many
// were removed.
func (r *SessionRegistry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.idleTTL {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep periodically until ctx is cancelled.
func (r *SessionRegistry) StartSweeper(ctx context.Context) {
	interval := r.idleTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				if n := r.Sweep(now); n > 0 {
					log.Printf("swept %d idle sessions", n)
				}
			}
		}
	}()
}
