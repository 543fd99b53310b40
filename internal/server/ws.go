package server

import (
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

// wsFrame is the JSON frame written to WebSocket subscribers; it mirrors the
// SSE envelope.
type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// handleWS mirrors the event stream over a WebSocket connection for
// consumers that cannot use server-sent events.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	ch, cleanup, err := s.hub.Subscribe()
	if err != nil {
		log.Error().Err(err).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case env := <-ch:
			frame, marshalErr := json.Marshal(wsFrame{Event: env.Event, Data: env.Data})
			if marshalErr != nil {
				log.Error().Err(marshalErr).Msg("websocket frame marshal")
				continue
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, frame); writeErr != nil {
				log.Debug().Err(writeErr).Msg("websocket write")
				return
			}
		}
	}
}
