package server

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

// handleExport serves /api/export?format=json|csv. JSON exports the full
// snapshot; CSV exports the vulnerability findings. Export failures never
// affect live-state correctness.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	snap := s.hub.Snapshot()

	switch format {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="scanwatch-export.json"`)
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			log.Debug().Err(err).Msg("export write")
		}

	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="scanwatch-vulnerabilities.csv"`)

		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"id", "title", "severity", "agent_id", "timestamp", "description"})
		for i, v := range snap.Vulnerabilities {
			id := v.ID
			if id == "" {
				id = strconv.Itoa(i + 1)
			}
			ts := ""
			if v.Timestamp != nil {
				ts = v.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00")
			}
			_ = cw.Write([]string{id, v.Title, v.Severity, v.AgentID, ts, v.Description})
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			log.Debug().Err(err).Msg("export csv write")
		}

	default:
		http.Error(w, `{"title":"Bad Request","status":400,"detail":"format must be json or csv"}`, http.StatusBadRequest)
	}
}
