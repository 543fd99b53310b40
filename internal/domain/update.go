package domain

import "time"

// Stream event names emitted by /api/stream and accepted by the merger.
const (
	EventState  = "state"  // full DashboardState snapshot, wholesale replace
	EventUpdate = "update" // partial StateUpdate, merged field by field
)

// StateUpdate is a partial-state delta. A nil field means "untouched".
//
// Sub-objects (Collaboration, Resources, RateLimiter, Time, CurrentStep,
// ServerMetrics, ScanConfig) are wholesale-replaced, not deep-merged: the
// backend must always send complete sub-objects for any sub-object it
// includes. A partial Resources payload would silently drop the omitted
// fields on the dashboard side.
type StateUpdate struct {
	ScanConfig      ScanConfig         `json:"scan_config,omitempty"`
	Agents          map[string]*Agent  `json:"agents,omitempty"`
	ToolExecutions  []*ToolExecution   `json:"tool_executions,omitempty"`
	ChatMessages    []ChatMessage      `json:"chat_messages,omitempty"`
	Vulnerabilities []Vulnerability    `json:"vulnerabilities,omitempty"`
	Collaboration   *Collaboration     `json:"collaboration,omitempty"`
	Resources       *Resources         `json:"resources,omitempty"`
	RateLimiter     *RateLimiterStatus `json:"rate_limiter,omitempty"`
	Time            *TimeInfo          `json:"time,omitempty"`
	CurrentStep     *CurrentStep       `json:"current_step,omitempty"`
	ServerMetrics   *ServerMetrics     `json:"server_metrics,omitempty"`
	LiveFeed        []LiveFeedEntry    `json:"live_feed,omitempty"`
	Timestamp       *time.Time         `json:"timestamp,omitempty"`
}

// Empty reports whether the update carries no fields at all.
func (u *StateUpdate) Empty() bool {
	return u == nil || (u.ScanConfig == nil &&
		len(u.Agents) == 0 &&
		len(u.ToolExecutions) == 0 &&
		len(u.ChatMessages) == 0 &&
		len(u.Vulnerabilities) == 0 &&
		u.Collaboration == nil &&
		u.Resources == nil &&
		u.RateLimiter == nil &&
		u.Time == nil &&
		u.CurrentStep == nil &&
		u.ServerMetrics == nil &&
		len(u.LiveFeed) == 0)
}
