package plan

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Plan is the generated quitting plan derived from the questionnaire
// answers.
type Plan struct {
	Date    time.Time `json:"date"`
	Status  string    `json:"status"`
	Current int       `json:"current"`
	Target  int       `json:"target"`
	Text    string    `json:"text"`
}

// Fetcher reads the plan from the remote boundary.
type Fetcher interface {
	FetchPlan(ctx context.Context) (*Plan, error)
}

// Service caches plan reads. The cache lives on the service instance and
// dies with it, so its lifetime is tied to whoever owns the service
// rather than the process.
type Service struct {
	fetcher Fetcher
	ttl     time.Duration

	mu        sync.Mutex
	cached    *Plan
	fetchedAt time.Time
}

func NewService(fetcher Fetcher, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{fetcher: fetcher, ttl: ttl}
}

// Get returns the cached plan when fresh, otherwise fetches. forceRefresh
// bypasses the cache.
func (s *Service) Get(ctx context.Context, forceRefresh bool) (*Plan, error) {
	s.mu.Lock()
	if !forceRefresh && s.cached != nil && time.Since(s.fetchedAt) < s.ttl {
		p := *s.cached
		s.mu.Unlock()
		return &p, nil
	}
	s.mu.Unlock()

	fetched, err := s.fetcher.FetchPlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch plan: %w", err)
	}

	s.mu.Lock()
	s.cached = fetched
	s.fetchedAt = time.Now()
	p := *fetched
	s.mu.Unlock()
	return &p, nil
}

// Invalidate drops the cached plan, forcing the next Get to fetch.
func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.fetchedAt = time.Time{}
	s.mu.Unlock()
}
