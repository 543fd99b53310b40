package domain

import (
	"time"
)

type ToolExecutionStatus string

const (
	ToolStatusRunning   ToolExecutionStatus = "running"
	ToolStatusCompleted ToolExecutionStatus = "completed"
	ToolStatusFailed    ToolExecutionStatus = "failed"
)

// ToolExecution is a single tool invocation by an agent. Later events that
// carry the same execution id replace the record in place; the entry keeps
// its original position in the sequence.
type ToolExecution struct {
	ID        int64               `json:"execution_id"`
	AgentID   string              `json:"agent_id,omitempty"`
	ToolName  string              `json:"tool_name,omitempty"`
	Args      map[string]any      `json:"args,omitempty"`
	Status    ToolExecutionStatus `json:"status"`
	Result    string              `json:"result,omitempty"`
	Timestamp *time.Time          `json:"timestamp,omitempty"`
}

// ChatMessage is an append-only conversation entry; identity is insertion
// order, there is no in-place update.
type ChatMessage struct {
	AgentID   string     `json:"agent_id,omitempty"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Vulnerability is an append-only security finding.
type Vulnerability struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Severity    string     `json:"severity,omitempty"`
	Description string     `json:"description,omitempty"`
	AgentID     string     `json:"agent_id,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// LiveFeedEntry is one line of the terminal-style activity log. The feed is
// append-only and truncated to a bound, most recent entries retained.
type LiveFeedEntry struct {
	Type      string     `json:"type"`
	AgentID   string     `json:"agent_id,omitempty"`
	Message   string     `json:"message"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Claim records an agent claiming a scan target or piece of work.
type Claim struct {
	AgentID   string     `json:"agent_id"`
	Target    string     `json:"target"`
	Kind      string     `json:"kind,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Finding is a shared result posted to the collaboration board.
type Finding struct {
	AgentID   string     `json:"agent_id"`
	Title     string     `json:"title"`
	Severity  string     `json:"severity,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// WorkItem is a queued unit of work agents can claim.
type WorkItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
	ClaimedBy   string `json:"claimed_by,omitempty"`
}

// HelpRequest is a request from one agent for assistance.
type HelpRequest struct {
	AgentID string `json:"agent_id"`
	Topic   string `json:"topic"`
	Status  string `json:"status,omitempty"`
}

// CollabMessage is an inter-agent message on the collaboration channel.
type CollabMessage struct {
	From      string     `json:"from"`
	To        string     `json:"to,omitempty"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// CollabStats is the summary block of the collaboration aggregate. It is
// wholesale-replaced by every update that includes it.
type CollabStats struct {
	TotalClaims        int `json:"total_claims"`
	TotalFindings      int `json:"total_findings"`
	PendingWork        int `json:"pending_work"`
	ActiveHelpRequests int `json:"active_help_requests"`
}

// Collaboration aggregates cross-agent coordination. The element sequences
// are append-only; Stats is wholesale-replaced.
type Collaboration struct {
	Claims       []Claim         `json:"claims,omitempty"`
	Findings     []Finding       `json:"findings,omitempty"`
	WorkQueue    []WorkItem      `json:"work_queue,omitempty"`
	HelpRequests []HelpRequest   `json:"help_requests,omitempty"`
	Messages     []CollabMessage `json:"messages,omitempty"`
	Stats        *CollabStats    `json:"stats,omitempty"`
}

// TokenUsage tracks LLM token counters.
type TokenUsage struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
}

// Resources tracks swarm-wide token and cost consumption. A flat record:
// the latest received value replaces the prior one entirely.
type Resources struct {
	Tokens   TokenUsage `json:"tokens"`
	Cost     float64    `json:"cost"`
	Requests int64      `json:"requests"`
}

// RateLimiterStatus is the backend LLM rate limiter state.
type RateLimiterStatus struct {
	LimitRPM  int        `json:"limit_rpm,omitempty"`
	Remaining int        `json:"remaining,omitempty"`
	Throttled bool       `json:"throttled"`
	ResetAt   *time.Time `json:"reset_at,omitempty"`
}

// TimeInfo is the scan clock: start, elapsed and remaining budget.
type TimeInfo struct {
	StartedAt        *time.Time `json:"started_at,omitempty"`
	ElapsedSeconds   float64    `json:"elapsed_seconds"`
	RemainingSeconds float64    `json:"remaining_seconds,omitempty"`
	Deadline         *time.Time `json:"deadline,omitempty"`
}

// CurrentStep describes the scan phase currently executing.
type CurrentStep struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Index       int    `json:"index,omitempty"`
	Total       int    `json:"total,omitempty"`
}

// PoolStats describes the remote tool server connection pool.
type PoolStats struct {
	PoolSize          int `json:"pool_size"`
	ActiveConnections int `json:"active_connections"`
}

// CircuitBreaker is the remote tool server circuit breaker state.
type CircuitBreaker struct {
	State string `json:"state"`
}

// ServerMetrics reports remote tool server health, pushed by the backend as
// one more wholesale-replaced sub-object.
type ServerMetrics struct {
	UptimeSeconds        float64         `json:"uptime_seconds"`
	RequestRatePerMinute float64         `json:"request_rate_per_minute"`
	ErrorRate            float64         `json:"error_rate"`
	TotalRequests        int64           `json:"total_requests"`
	ToolCount            int             `json:"tool_count,omitempty"`
	ConnectionPool       *PoolStats      `json:"connection_pool,omitempty"`
	CircuitBreaker       *CircuitBreaker `json:"circuit_breaker,omitempty"`
}

// ScanConfig is the opaque scan configuration blob.
type ScanConfig map[string]any

// DashboardState is the root snapshot of one dashboard session. Exactly one
// live instance exists per session; all consumers read through it via
// cloned snapshots, never a retained mutable reference.
type DashboardState struct {
	ScanConfig      ScanConfig         `json:"scan_config,omitempty"`
	Agents          map[string]*Agent  `json:"agents"`
	ToolExecutions  []*ToolExecution   `json:"tool_executions"`
	ChatMessages    []ChatMessage      `json:"chat_messages"`
	Vulnerabilities []Vulnerability    `json:"vulnerabilities"`
	Collaboration   *Collaboration     `json:"collaboration,omitempty"`
	Resources       *Resources         `json:"resources,omitempty"`
	RateLimiter     *RateLimiterStatus `json:"rate_limiter,omitempty"`
	Time            *TimeInfo          `json:"time,omitempty"`
	CurrentStep     *CurrentStep       `json:"current_step,omitempty"`
	ServerMetrics   *ServerMetrics     `json:"server_metrics,omitempty"`
	LiveFeed        []LiveFeedEntry    `json:"live_feed"`
	LastUpdated     *time.Time         `json:"last_updated"`
}

// NewDashboardState returns the empty/unknown state used before the first
// bootstrap completes: all collections empty, LastUpdated nil.
func NewDashboardState() *DashboardState {
	return &DashboardState{
		Agents:          make(map[string]*Agent),
		ToolExecutions:  []*ToolExecution{},
		ChatMessages:    []ChatMessage{},
		Vulnerabilities: []Vulnerability{},
		LiveFeed:        []LiveFeedEntry{},
	}
}
