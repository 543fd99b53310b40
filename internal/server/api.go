package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/scanwatch/internal/domain"
	"github.com/gosuda/scanwatch/internal/history"
)

type GetStateOutput struct {
	Body *domain.DashboardState
}

type PostUpdateInput struct {
	Body domain.StateUpdate
}

type PostUpdateOutput struct {
	Body struct {
		Status string `json:"status" doc:"Always \"accepted\""`
	}
}

type HistoryMetricsInput struct {
	Metric string `query:"metric" doc:"Filter to points carrying this metric key"`
	Window int    `query:"window" minimum:"0" doc:"Window in seconds; 0 selects the full retention window"`
}

type HistoryMetricsOutput struct {
	Body []history.MetricPoint
}

type HistoryEventsInput struct {
	Type   string `query:"type" doc:"Filter by event type"`
	Window int    `query:"window" minimum:"0" doc:"Window in seconds; 0 selects the full retention window"`
}

type HistoryEventsOutput struct {
	Body []history.Event
}

type HistorySummaryInput struct {
	Window int `query:"window" minimum:"0" doc:"Window in seconds; 0 selects the full retention window"`
}

type HistorySummaryOutput struct {
	Body history.Summary
}

// RegisterReadRoutes wires the read-only REST surface: the full snapshot and
// the time-series history endpoints.
func RegisterReadRoutes(api huma.API, hub *Hub, tracker *history.Tracker) {
	huma.Register(api, huma.Operation{
		OperationID: "get-state",
		Method:      http.MethodGet,
		Path:        "/state",
		Summary:     "Get the full dashboard state snapshot",
		Tags:        []string{"State"},
	}, func(_ context.Context, _ *struct{}) (*GetStateOutput, error) {
		return &GetStateOutput{Body: hub.Snapshot()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-history-metrics",
		Method:      http.MethodGet,
		Path:        "/history",
		Summary:     "Get time-bucketed metric points",
		Tags:        []string{"History"},
	}, func(_ context.Context, input *HistoryMetricsInput) (*HistoryMetricsOutput, error) {
		points := tracker.Metrics(input.Metric, time.Duration(input.Window)*time.Second)
		return &HistoryMetricsOutput{Body: points}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-history-events",
		Method:      http.MethodGet,
		Path:        "/history/events",
		Summary:     "Get tracked dashboard events",
		Tags:        []string{"History"},
	}, func(_ context.Context, input *HistoryEventsInput) (*HistoryEventsOutput, error) {
		events := tracker.Events(input.Type, time.Duration(input.Window)*time.Second)
		return &HistoryEventsOutput{Body: events}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-history-summary",
		Method:      http.MethodGet,
		Path:        "/history/summary",
		Summary:     "Get aggregate statistics for a window",
		Tags:        []string{"History"},
	}, func(_ context.Context, input *HistorySummaryInput) (*HistorySummaryOutput, error) {
		return &HistorySummaryOutput{Body: tracker.SummaryStats(time.Duration(input.Window) * time.Second)}, nil
	})
}

// RegisterIngestRoutes wires the swarm-facing update ingest endpoint.
func RegisterIngestRoutes(api huma.API, hub *Hub) {
	huma.Register(api, huma.Operation{
		OperationID:   "post-update",
		Method:        http.MethodPost,
		Path:          "/update",
		Summary:       "Ingest a partial state update from the swarm",
		Tags:          []string{"State"},
		DefaultStatus: http.StatusAccepted,
	}, func(_ context.Context, input *PostUpdateInput) (*PostUpdateOutput, error) {
		hub.Apply(&input.Body)
		out := &PostUpdateOutput{}
		out.Body.Status = "accepted"
		return out, nil
	})
}
