package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/scanwatch/internal/domain"
	"github.com/gosuda/scanwatch/internal/history"
	"github.com/gosuda/scanwatch/internal/state"
)

// Envelope is one named event on the fan-out path, already serialized.
type Envelope struct {
	Event string
	Data  []byte
}

// Hub owns the ingest path of the relay: every accepted update is merged
// into the store, recorded in the history tracker and fanned out to all
// attached SSE/WebSocket subscribers. Subscribers with a full buffer have
// events dropped rather than blocking the merge path.
type Hub struct {
	store   *state.Store
	tracker *history.Tracker
	buffer  int

	mu   sync.Mutex
	subs map[uuid.UUID]chan Envelope
}

// NewHub creates a hub fanning out to per-subscriber channels of the given
// buffer size.
func NewHub(store *state.Store, tracker *history.Tracker, buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		store:   store,
		tracker: tracker,
		buffer:  buffer,
		subs:    make(map[uuid.UUID]chan Envelope),
	}
}

// Snapshot returns the current dashboard state.
func (h *Hub) Snapshot() *domain.DashboardState {
	return h.store.Snapshot()
}

// Subscribe attaches a new stream consumer. The first envelope on the
// returned channel is always a full "state" snapshot, so the consumer never
// builds its first paint from partial data. The cleanup func detaches the
// consumer and is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Envelope, func(), error) {
	snap, err := json.Marshal(h.store.Snapshot())
	if err != nil {
		return nil, nil, fmt.Errorf("server.Hub.Subscribe: %w", err)
	}

	ch := make(chan Envelope, h.buffer)
	ch <- Envelope{Event: domain.EventState, Data: snap}

	id := uuid.New()
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	streamClients.Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			streamClients.Dec()
		})
	}
	return ch, cleanup, nil
}

// Ingest decodes and applies a raw update payload, e.g. from the Redis
// bridge. Malformed payloads are rejected without touching the state.
func (h *Hub) Ingest(raw []byte) error {
	var u domain.StateUpdate
	if err := json.Unmarshal(raw, &u); err != nil {
		ingestErrors.Inc()
		return fmt.Errorf("server.Hub.Ingest: %w: %s", domain.ErrMalformedPayload, err)
	}
	h.Apply(&u)
	return nil
}

// Apply merges an already-decoded update and broadcasts it as an "update"
// event.
func (h *Hub) Apply(u *domain.StateUpdate) {
	h.store.Apply(u)
	h.record(u)
	updatesIngested.Inc()

	data, err := json.Marshal(u)
	if err != nil {
		log.Error().Err(err).Msg("marshal update for broadcast")
		return
	}
	h.broadcast(Envelope{Event: domain.EventUpdate, Data: data})
}

// ReplaceAll installs a full snapshot and broadcasts it as a "state" event.
// Used when the swarm pushes a complete snapshot proactively.
func (h *Hub) ReplaceAll(next *domain.DashboardState) {
	h.store.Replace(next)

	data, err := json.Marshal(h.store.Snapshot())
	if err != nil {
		log.Error().Err(err).Msg("marshal state for broadcast")
		return
	}
	h.broadcast(Envelope{Event: domain.EventState, Data: data})
}

func (h *Hub) broadcast(env Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- env:
			broadcastsSent.Inc()
		default:
			eventsDropped.Inc()
			log.Debug().Str("subscriber", id.String()).Msg("subscriber buffer full, event dropped")
		}
	}
}

// Clients returns the number of attached subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// record feeds the history tracker from an accepted update.
func (h *Hub) record(u *domain.StateUpdate) {
	now := time.Now().UTC()

	if u.Resources != nil {
		h.tracker.AddPoint(map[string]float64{
			history.MetricTokensInput:  float64(u.Resources.Tokens.Input),
			history.MetricTokensOutput: float64(u.Resources.Tokens.Output),
			history.MetricCost:         u.Resources.Cost,
			history.MetricRequests:     float64(u.Resources.Requests),
		})
	}

	for _, te := range u.ToolExecutions {
		ts := now
		if te.Timestamp != nil {
			ts = *te.Timestamp
		}
		h.tracker.AddEvent("tool_execution", map[string]any{
			"execution_id": te.ID,
			"agent_id":     te.AgentID,
			"tool_name":    te.ToolName,
			"status":       te.Status,
		}, ts)
	}

	for id, a := range u.Agents {
		h.tracker.AddEvent("agent_status", map[string]any{
			"agent_id": id,
			"status":   a.Status,
		}, now)
	}

	for _, v := range u.Vulnerabilities {
		ts := now
		if v.Timestamp != nil {
			ts = *v.Timestamp
		}
		h.tracker.AddEvent("vulnerability", map[string]any{
			"title":    v.Title,
			"severity": v.Severity,
			"agent_id": v.AgentID,
		}, ts)
	}
}
