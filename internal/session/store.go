package session

import (
	"sync"
	"sync/atomic"

	"github.com/feedback-insights/backend/internal/insight"
	"github.com/feedback-insights/backend/internal/metrics"
)

type searchContext struct {
	matches  []int
	position int
}

// state is one conversation's navigation state. generation records which
// published batch cursor and search refer to.
type state struct {
	mu         sync.Mutex
	generation uint64
	hasCursor  bool
	cursor     int
	search     *searchContext
}

func (st *state) reset(generation uint64) {
	st.generation = generation
	st.hasCursor = false
	st.cursor = 0
	st.search = nil
}

// Store owns the latest published batch and every session's state.
type Store struct {
	latest atomic.Pointer[insight.Batch]

	publishMu  sync.Mutex
	generation uint64

	mu       sync.Mutex
	sessions map[string]*state
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*state),
	}
}

// Latest returns the published batch, or nil before the first ingestion.
func (s *Store) Latest() *insight.Batch {
	return s.latest.Load()
}

// Publish makes b the latest batch in a single pointer swap and resets every
// session. b must not be modified afterwards.
func (s *Store) Publish(b *insight.Batch) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.generation++
	b.Generation = s.generation
	s.latest.Store(b)

	s.mu.Lock()
	states := make([]*state, 0, len(s.sessions))
	for _, st := range s.sessions {
		states = append(states, st)
	}
	s.mu.Unlock()

	for _, st := range states {
		st.mu.Lock()
		st.reset(b.Generation)
		st.mu.Unlock()
	}

	metrics.PublishedBatchSize.Set(float64(b.Len()))
}

// SessionCount reports how many sessions hold state.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) session(key string) *state {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[key]
	if !ok {
		st = &state{}
		if b := s.latest.Load(); b != nil {
			st.generation = b.Generation
		}
		s.sessions[key] = st
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}
	return st
}

// with runs fn holding the session's lock, against a batch snapshot that the
// session state is guaranteed to belong to.
func (s *Store) with(key string, fn func(st *state, b *insight.Batch) error) error {
	st := s.session(key)

	st.mu.Lock()
	defer st.mu.Unlock()

	b := s.latest.Load()
	var generation uint64
	if b != nil {
		generation = b.Generation
	}
	if st.generation != generation {
		st.reset(generation)
	}

	return fn(st, b)
}
