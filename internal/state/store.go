// Package state holds the single authoritative DashboardState for a
// dashboard session and applies partial updates to it.
//
// The store is the only shared mutable resource of the sync layer. All
// mutations funnel through the merge entry points, which serialize under one
// mutex; consumers only ever see deep-cloned snapshots.
package state

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/scanwatch/internal/domain"
)

// DefaultLiveFeedMax bounds the live feed length when no explicit bound is
// configured. Oldest entries are dropped first.
const DefaultLiveFeedMax = 200

// Subscriber receives a cloned snapshot once per successfully merged update.
type Subscriber func(*domain.DashboardState)

// Store owns the live DashboardState of one dashboard session.
type Store struct {
	mu          sync.RWMutex
	state       *domain.DashboardState
	liveFeedMax int

	subMu   sync.Mutex
	subs    map[uint64]Subscriber
	nextSub uint64
}

// New creates an empty store. liveFeedMax <= 0 selects DefaultLiveFeedMax.
func New(liveFeedMax int) *Store {
	if liveFeedMax <= 0 {
		liveFeedMax = DefaultLiveFeedMax
	}
	return &Store{
		state:       domain.NewDashboardState(),
		liveFeedMax: liveFeedMax,
		subs:        make(map[uint64]Subscriber),
	}
}

// Snapshot returns a deep-cloned, self-consistent view of the current state.
func (s *Store) Snapshot() *domain.DashboardState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// LastUpdated returns the timestamp of the last applied update, nil before
// the first one.
func (s *Store) LastUpdated() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.LastUpdated == nil {
		return nil
	}
	t := *s.state.LastUpdated
	return &t
}

// Replace installs a full snapshot, wholesale. Used for "state" events and
// bootstrap fetch results. The store takes ownership of next.
func (s *Store) Replace(next *domain.DashboardState) {
	if next == nil {
		return
	}
	normalize(next)

	s.mu.Lock()
	s.state = next
	s.truncateLiveFeedLocked()
	s.mu.Unlock()

	s.notify()
}

// Apply merges a partial update per the field rules in merge.go and
// notifies subscribers.
func (s *Store) Apply(u *domain.StateUpdate) {
	if u == nil {
		return
	}

	s.mu.Lock()
	mergeUpdate(s.state, u, time.Now().UTC())
	s.truncateLiveFeedLocked()
	s.mu.Unlock()

	s.notify()
}

// ApplyEvent decodes and applies a raw stream event. Malformed payloads are
// discarded with ErrMalformedPayload; the state is left untouched.
func (s *Store) ApplyEvent(name string, data []byte) error {
	switch name {
	case domain.EventState:
		var next domain.DashboardState
		if err := json.Unmarshal(data, &next); err != nil {
			log.Warn().Err(err).Str("event", name).Msg("discarding malformed state event")
			return fmt.Errorf("state.Store.ApplyEvent: %w: %s", domain.ErrMalformedPayload, err)
		}
		s.Replace(&next)
		return nil

	case domain.EventUpdate:
		var u domain.StateUpdate
		if err := json.Unmarshal(data, &u); err != nil {
			log.Warn().Err(err).Str("event", name).Msg("discarding malformed update event")
			return fmt.Errorf("state.Store.ApplyEvent: %w: %s", domain.ErrMalformedPayload, err)
		}
		s.Apply(&u)
		return nil

	default:
		return fmt.Errorf("state.Store.ApplyEvent: %w: %q", domain.ErrUnknownEvent, name)
	}
}

// Subscribe registers a callback invoked once per successfully merged update
// (bootstrap and stream-delivered alike). The returned func cancels the
// registration and is safe to call more than once.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// notify fans the fresh snapshot out to all subscribers. A panicking
// subscriber is recovered and logged; it never blocks the others or the
// merge path.
func (s *Store) notify() {
	s.subMu.Lock()
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	if len(subs) == 0 {
		return
	}

	snap := s.Snapshot()
	for _, fn := range subs {
		invoke(fn, snap)
	}
}

func invoke(fn Subscriber, snap *domain.DashboardState) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("subscriber panicked")
		}
	}()
	fn(snap)
}

// truncateLiveFeedLocked enforces the live feed bound, most recent entries
// retained. Caller holds s.mu.
func (s *Store) truncateLiveFeedLocked() {
	if n := len(s.state.LiveFeed); n > s.liveFeedMax {
		s.state.LiveFeed = append([]domain.LiveFeedEntry{}, s.state.LiveFeed[n-s.liveFeedMax:]...)
	}
}

// normalize ensures collection fields are non-nil so consumers never see a
// nil map after a sparse full snapshot.
func normalize(st *domain.DashboardState) {
	if st.Agents == nil {
		st.Agents = make(map[string]*domain.Agent)
	}
	if st.ToolExecutions == nil {
		st.ToolExecutions = []*domain.ToolExecution{}
	}
	if st.ChatMessages == nil {
		st.ChatMessages = []domain.ChatMessage{}
	}
	if st.Vulnerabilities == nil {
		st.Vulnerabilities = []domain.Vulnerability{}
	}
	if st.LiveFeed == nil {
		st.LiveFeed = []domain.LiveFeedEntry{}
	}
}
