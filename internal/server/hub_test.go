package server_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/scanwatch/internal/domain"
	"github.com/gosuda/scanwatch/internal/history"
	"github.com/gosuda/scanwatch/internal/server"
	"github.com/gosuda/scanwatch/internal/state"
)

func newHub(t *testing.T, buffer int) (*server.Hub, *state.Store, *history.Tracker) {
	t.Helper()
	store := state.New(0)
	tracker := history.New(0)
	return server.NewHub(store, tracker, buffer), store, tracker
}

func recvEnvelope(t *testing.T, ch <-chan server.Envelope) server.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return server.Envelope{}
	}
}

func TestSubscribeDeliversInitialState(t *testing.T) {
	t.Parallel()

	hub, store, _ := newHub(t, 8)
	store.Apply(&domain.StateUpdate{
		Agents: map[string]*domain.Agent{"a1": {ID: "a1", Status: domain.AgentStatusRunning}},
	})

	ch, cleanup, err := hub.Subscribe()
	require.NoError(t, err)
	defer cleanup()

	env := recvEnvelope(t, ch)
	assert.Equal(t, domain.EventState, env.Event)

	var snap domain.DashboardState
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	require.Contains(t, snap.Agents, "a1")
	assert.Equal(t, domain.AgentStatusRunning, snap.Agents["a1"].Status)
}

func TestApplyMergesAndBroadcasts(t *testing.T) {
	t.Parallel()

	hub, store, _ := newHub(t, 8)

	ch, cleanup, err := hub.Subscribe()
	require.NoError(t, err)
	defer cleanup()
	recvEnvelope(t, ch) // initial snapshot

	hub.Apply(&domain.StateUpdate{
		Agents: map[string]*domain.Agent{"a1": {ID: "a1", Status: domain.AgentStatusWaiting}},
	})

	env := recvEnvelope(t, ch)
	assert.Equal(t, domain.EventUpdate, env.Event)

	var u domain.StateUpdate
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Contains(t, u.Agents, "a1")

	assert.Contains(t, store.Snapshot().Agents, "a1")
}

func TestIngestMalformedPayload(t *testing.T) {
	t.Parallel()

	hub, store, _ := newHub(t, 8)

	err := hub.Ingest([]byte(`{"agents": nope`))
	require.ErrorIs(t, err, domain.ErrMalformedPayload)
	assert.Empty(t, store.Snapshot().Agents)

	require.NoError(t, hub.Ingest([]byte(`{"agents":{"a1":{"id":"a1","status":"running"}}}`)))
	assert.Contains(t, store.Snapshot().Agents, "a1")
}

func TestReplaceAllBroadcastsState(t *testing.T) {
	t.Parallel()

	hub, _, _ := newHub(t, 8)

	ch, cleanup, err := hub.Subscribe()
	require.NoError(t, err)
	defer cleanup()
	recvEnvelope(t, ch)

	next := domain.NewDashboardState()
	next.Agents["fresh"] = &domain.Agent{ID: "fresh", Status: domain.AgentStatusRunning}
	hub.ReplaceAll(next)

	env := recvEnvelope(t, ch)
	assert.Equal(t, domain.EventState, env.Event)

	var snap domain.DashboardState
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Contains(t, snap.Agents, "fresh")
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	hub, store, _ := newHub(t, 1)

	// Never drained: the initial snapshot fills the one-slot buffer.
	_, cleanup, err := hub.Subscribe()
	require.NoError(t, err)
	defer cleanup()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			hub.Apply(&domain.StateUpdate{CurrentStep: &domain.CurrentStep{Index: i}})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}

	// The merge path was unaffected by the drops.
	require.NotNil(t, store.Snapshot().CurrentStep)
	assert.Equal(t, 9, store.Snapshot().CurrentStep.Index)
}

func TestClientsAndCleanup(t *testing.T) {
	t.Parallel()

	hub, _, _ := newHub(t, 4)
	assert.Zero(t, hub.Clients())

	_, cleanup1, err := hub.Subscribe()
	require.NoError(t, err)
	_, cleanup2, err := hub.Subscribe()
	require.NoError(t, err)
	assert.Equal(t, 2, hub.Clients())

	cleanup1()
	cleanup1() // idempotent
	assert.Equal(t, 1, hub.Clients())

	cleanup2()
	assert.Zero(t, hub.Clients())
}

func TestRecordFeedsHistory(t *testing.T) {
	t.Parallel()

	hub, _, tracker := newHub(t, 4)

	ts := time.Now().UTC()
	hub.Apply(&domain.StateUpdate{
		Resources: &domain.Resources{
			Tokens:   domain.TokenUsage{Input: 120, Output: 30},
			Cost:     0.4,
			Requests: 2,
		},
		ToolExecutions: []*domain.ToolExecution{
			{ID: 5, AgentID: "a1", ToolName: "nmap", Status: domain.ToolStatusRunning, Timestamp: &ts},
		},
		Agents: map[string]*domain.Agent{
			"a1": {ID: "a1", Status: domain.AgentStatusRunning},
		},
		Vulnerabilities: []domain.Vulnerability{
			{Title: "SQLi in /login", Severity: "critical", AgentID: "a1"},
		},
	})

	points := tracker.Metrics("", 0)
	require.Len(t, points, 1)
	assert.InDelta(t, 120, points[0].Values[history.MetricTokensInput], 1e-9)
	assert.InDelta(t, 0.4, points[0].Values[history.MetricCost], 1e-9)

	tools := tracker.Events("tool_execution", 0)
	require.Len(t, tools, 1)
	assert.Equal(t, "nmap", tools[0].Data["tool_name"])

	require.Len(t, tracker.Events("agent_status", 0), 1)

	vulns := tracker.Events("vulnerability", 0)
	require.Len(t, vulns, 1)
	assert.Equal(t, "critical", vulns[0].Data["severity"])
}
