package server

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// handleStream serves the /api/stream server-sent event endpoint. Each
// subscriber first receives a full "state" snapshot, then "update" deltas as
// they are ingested, with comment heartbeats in between to keep
// intermediaries from closing the idle connection.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch, cleanup, err := s.hub.Subscribe()
	if err != nil {
		log.Error().Err(err).Msg("stream subscribe")
		http.Error(w, "subscribe failed", http.StatusInternalServerError)
		return
	}
	defer cleanup()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	ctx := r.Context()
	heartbeat := s.newHeartbeat()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case env := <-ch:
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", env.Event, env.Data); err != nil {
				log.Debug().Err(err).Msg("stream write")
				return
			}
			fl.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				log.Debug().Err(err).Msg("stream heartbeat write")
				return
			}
			fl.Flush()
		}
	}
}
