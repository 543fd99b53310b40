package client_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/scanwatch/internal/client"
	"github.com/gosuda/scanwatch/internal/domain"
	"github.com/gosuda/scanwatch/internal/state"
)

const waitTimeout = 5 * time.Second

// relayStub is a minimal dashboard relay: a canned bootstrap snapshot and a
// scripted event stream per connection attempt.
type relayStub struct {
	t *testing.T

	fetches int64
	streams int64

	// snapshotFor returns the bootstrap body for the nth fetch (1-based).
	snapshotFor func(n int64) *domain.DashboardState

	// streamFor writes events for the nth stream attach (1-based) and
	// returns true to hold the connection open until the client goes away.
	streamFor func(n int64, w http.ResponseWriter) (hold bool)
}

func (s *relayStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&s.fetches, 1)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(s.t, json.NewEncoder(w).Encode(s.snapshotFor(n)))
	})
	mux.HandleFunc("/api/stream", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&s.streams, 1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		if s.streamFor(n, w) {
			<-r.Context().Done()
		}
	})
	return mux
}

func writeEvent(w http.ResponseWriter, name, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	w.(http.Flusher).Flush()
}

func snapshotWithAgent(id string, status domain.AgentStatus) *domain.DashboardState {
	st := domain.NewDashboardState()
	now := time.Now().UTC()
	st.Agents[id] = &domain.Agent{ID: id, Status: status}
	st.LastUpdated = &now
	return st
}

func waitSnapshot(t *testing.T, ch <-chan *domain.DashboardState, ok func(*domain.DashboardState) bool) *domain.DashboardState {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case snap := <-ch:
			if ok(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func waitState(t *testing.T, ch <-chan client.Status, want client.ConnState) client.Status {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case st := <-ch:
			if st.State == want {
				return st
			}
		case <-deadline:
			t.Fatalf("timed out waiting for connection state %q", want)
		}
	}
}

func TestBootstrapAndStreamMerge(t *testing.T) {
	t.Parallel()

	stub := &relayStub{
		t:           t,
		snapshotFor: func(int64) *domain.DashboardState { return snapshotWithAgent("a1", domain.AgentStatusWaiting) },
		streamFor: func(n int64, w http.ResponseWriter) bool {
			writeEvent(w, "update", `{"agents":{"a1":{"id":"a1","status":"running"}},"live_feed":[{"type":"info","message":"scan started"}]}`)
			return true
		},
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	store := state.New(0)
	snapshots := make(chan *domain.DashboardState, 16)
	defer store.Subscribe(func(s *domain.DashboardState) { snapshots <- s })()

	statuses := make(chan client.Status, 16)
	c := client.New(client.Config{
		BaseURL:  srv.URL,
		OnStatus: func(s client.Status) { statuses <- s },
	}, store)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	got := waitState(t, statuses, client.StateConnected)
	assert.True(t, got.Connected)
	assert.Nil(t, got.LastError)

	snap := waitSnapshot(t, snapshots, func(s *domain.DashboardState) bool {
		return len(s.LiveFeed) == 1
	})
	require.Contains(t, snap.Agents, "a1")
	assert.Equal(t, domain.AgentStatusRunning, snap.Agents["a1"].Status)
	assert.Equal(t, "scan started", snap.LiveFeed[0].Message)
}

func TestMalformedStreamEventTolerated(t *testing.T) {
	t.Parallel()

	stub := &relayStub{
		t:           t,
		snapshotFor: func(int64) *domain.DashboardState { return domain.NewDashboardState() },
		streamFor: func(n int64, w http.ResponseWriter) bool {
			writeEvent(w, "update", `{"agents": broken`)
			writeEvent(w, "unknown-event", `{}`)
			writeEvent(w, "update", `{"agents":{"a1":{"id":"a1","status":"running"}}}`)
			return true
		},
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	store := state.New(0)
	snapshots := make(chan *domain.DashboardState, 16)
	defer store.Subscribe(func(s *domain.DashboardState) { snapshots <- s })()

	c := client.New(client.Config{BaseURL: srv.URL}, store)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	snap := waitSnapshot(t, snapshots, func(s *domain.DashboardState) bool {
		return len(s.Agents) == 1
	})
	assert.Equal(t, domain.AgentStatusRunning, snap.Agents["a1"].Status)
}

func TestReconnectResyncsState(t *testing.T) {
	t.Parallel()

	stub := &relayStub{t: t}
	stub.snapshotFor = func(n int64) *domain.DashboardState {
		if n == 1 {
			return snapshotWithAgent("a1", domain.AgentStatusRunning)
		}
		// The swarm progressed while the client was disconnected.
		return snapshotWithAgent("a1", domain.AgentStatusCompleted)
	}
	stub.streamFor = func(n int64, w http.ResponseWriter) bool {
		// First stream drops immediately; the second stays up.
		return n > 1
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	store := state.New(0)
	snapshots := make(chan *domain.DashboardState, 16)
	defer store.Subscribe(func(s *domain.DashboardState) { snapshots <- s })()

	statuses := make(chan client.Status, 32)
	c := client.New(client.Config{
		BaseURL:           srv.URL,
		ReconnectInterval: 10 * time.Millisecond,
		OnStatus:          func(s client.Status) { statuses <- s },
	}, store)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	waitState(t, statuses, client.StateReconnecting)
	waitState(t, statuses, client.StateConnected)

	snap := waitSnapshot(t, snapshots, func(s *domain.DashboardState) bool {
		a, ok := s.Agents["a1"]
		return ok && a.Status == domain.AgentStatusCompleted
	})
	assert.GreaterOrEqual(t, atomic.LoadInt64(&stub.fetches), int64(2), "reconnect must re-bootstrap")
	assert.NotNil(t, snap.LastUpdated)
}

func TestMaxReconnectAttemptsTerminal(t *testing.T) {
	t.Parallel()

	// A relay that is gone: every fetch and attach fails.
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	store := state.New(0)
	statuses := make(chan client.Status, 32)
	c := client.New(client.Config{
		BaseURL:              srv.URL,
		ReconnectInterval:    5 * time.Millisecond,
		MaxReconnectAttempts: 3,
		OnStatus:             func(s client.Status) { statuses <- s },
	}, store)

	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	got := waitState(t, statuses, client.StateFailed)
	require.NotNil(t, got.LastError)
	assert.Equal(t, domain.ErrMaxReconnects.Error(), got.LastError.Message)
	assert.False(t, got.Connected)

	// The loop has exited; the status stays terminal.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, client.StateFailed, c.Status().State)
}

func TestStopIdempotent(t *testing.T) {
	t.Parallel()

	stub := &relayStub{
		t:           t,
		snapshotFor: func(int64) *domain.DashboardState { return domain.NewDashboardState() },
		streamFor:   func(int64, http.ResponseWriter) bool { return true },
	}
	srv := httptest.NewServer(stub.handler())
	defer srv.Close()

	store := state.New(0)
	c := client.New(client.Config{BaseURL: srv.URL}, store)

	// Stop before Start is a no-op.
	c.Stop()

	statuses := make(chan client.Status, 16)
	c2 := client.New(client.Config{
		BaseURL:  srv.URL,
		OnStatus: func(s client.Status) { statuses <- s },
	}, store)
	require.NoError(t, c2.Start(context.Background()))
	require.Error(t, c2.Start(context.Background()), "double start must be rejected")

	waitState(t, statuses, client.StateConnected)

	c2.Stop()
	c2.Stop()
	assert.Equal(t, client.StateDisconnected, c2.Status().State)
}
