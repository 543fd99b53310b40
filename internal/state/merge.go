package state

import (
	"time"

	"github.com/gosuda/scanwatch/internal/domain"
)

// mergeUpdate applies a partial update onto dst. Field rules:
//
//   - agents: per-key upsert; an existing record is replaced entirely,
//     never deep-merged.
//   - tool_executions: upsert by execution id; an existing entry is replaced
//     in place, preserving its position; unseen ids are appended.
//   - chat_messages, vulnerabilities, live_feed: append-only.
//   - collaboration, resources, rate_limiter, time, current_step,
//     server_metrics, scan_config: wholesale replace when present.
//   - last_updated: the update's own timestamp, or now if absent.
//
// Caller holds the store mutex.
func mergeUpdate(dst *domain.DashboardState, u *domain.StateUpdate, now time.Time) {
	for id, a := range u.Agents {
		dst.Agents[id] = a
	}

	for _, te := range u.ToolExecutions {
		upsertToolExecution(dst, te)
	}

	dst.ChatMessages = append(dst.ChatMessages, u.ChatMessages...)
	dst.Vulnerabilities = append(dst.Vulnerabilities, u.Vulnerabilities...)
	dst.LiveFeed = append(dst.LiveFeed, u.LiveFeed...)

	if u.ScanConfig != nil {
		dst.ScanConfig = u.ScanConfig
	}
	if u.Collaboration != nil {
		dst.Collaboration = u.Collaboration
	}
	if u.Resources != nil {
		dst.Resources = u.Resources
	}
	if u.RateLimiter != nil {
		dst.RateLimiter = u.RateLimiter
	}
	if u.Time != nil {
		dst.Time = u.Time
	}
	if u.CurrentStep != nil {
		dst.CurrentStep = u.CurrentStep
	}
	if u.ServerMetrics != nil {
		dst.ServerMetrics = u.ServerMetrics
	}

	ts := now
	if u.Timestamp != nil {
		ts = *u.Timestamp
	}
	dst.LastUpdated = &ts
}

func upsertToolExecution(dst *domain.DashboardState, te *domain.ToolExecution) {
	for i, existing := range dst.ToolExecutions {
		if existing.ID == te.ID {
			dst.ToolExecutions[i] = te
			return
		}
	}
	dst.ToolExecutions = append(dst.ToolExecutions, te)
}
