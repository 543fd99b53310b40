package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	updatesIngested = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals // process-wide metric
		Name: "scanwatch_updates_ingested_total",
		Help: "Partial state updates merged into the dashboard state.",
	})

	ingestErrors = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals // process-wide metric
		Name: "scanwatch_ingest_errors_total",
		Help: "Update payloads rejected as malformed.",
	})

	broadcastsSent = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals // process-wide metric
		Name: "scanwatch_broadcasts_total",
		Help: "Events fanned out to stream subscribers.",
	})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals // process-wide metric
		Name: "scanwatch_events_dropped_total",
		Help: "Events dropped because a subscriber buffer was full.",
	})

	streamClients = promauto.NewGauge(prometheus.GaugeOpts{ //nolint:gochecknoglobals // process-wide metric
		Name: "scanwatch_stream_clients",
		Help: "Currently attached SSE and WebSocket subscribers.",
	})
)
