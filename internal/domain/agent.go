package domain

import (
	"slices"
	"sort"
)

type AgentStatus string

const (
	AgentStatusRunning   AgentStatus = "running"
	AgentStatusWaiting   AgentStatus = "waiting"
	AgentStatusCompleted AgentStatus = "completed"
	AgentStatusFailed    AgentStatus = "failed"
	AgentStatusStopped   AgentStatus = "stopped"
	AgentStatusLLMFailed AgentStatus = "llm_failed"
)

// Agent is one scanning agent in the swarm. Agents form a forest through
// ParentID; roots have an empty ParentID. Agents are never removed from the
// dashboard once seen.
type Agent struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Status        AgentStatus `json:"status"`
	Task          string      `json:"task,omitempty"`
	ParentID      string      `json:"parent_id,omitempty"`
	Iteration     int         `json:"iteration,omitempty"`
	MaxIterations int         `json:"max_iterations,omitempty"`
}

// ValidAgentStatuses is the canonical set of known agent statuses.
var ValidAgentStatuses = []AgentStatus{ //nolint:gochecknoglobals // canonical enum list
	AgentStatusRunning,
	AgentStatusWaiting,
	AgentStatusCompleted,
	AgentStatusFailed,
	AgentStatusStopped,
	AgentStatusLLMFailed,
}

// ValidateAgentStatus returns true if the given status is a known agent status.
func ValidateAgentStatus(s AgentStatus) bool {
	return slices.Contains(ValidAgentStatuses, s)
}

// Terminal reports whether the status marks the end of an agent's lifecycle.
// Transitions out of a terminal status are still accepted by the merger.
func (s AgentStatus) Terminal() bool {
	return s == AgentStatusCompleted || s == AgentStatusFailed || s == AgentStatusStopped
}

// Roots returns the agents without a parent (or whose parent has not been
// seen yet), sorted by ID for stable iteration. The forest is derived by
// linear scan over the flat map; no linked nodes are stored.
func Roots(agents map[string]*Agent) []*Agent {
	var roots []*Agent
	for _, a := range agents {
		if a.ParentID == "" || agents[a.ParentID] == nil {
			roots = append(roots, a)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].ID < roots[j].ID })
	return roots
}

// ChildrenOf returns the direct children of the given agent, sorted by ID.
func ChildrenOf(agents map[string]*Agent, parentID string) []*Agent {
	var children []*Agent
	for _, a := range agents {
		if a.ParentID == parentID && a.ID != parentID {
			children = append(children, a)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].ID < children[j].ID })
	return children
}
