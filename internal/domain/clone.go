package domain

// Clone returns a deep copy of the state. Snapshots handed to consumers are
// clones so that no consumer ever holds a mutable reference into the live
// state across merges.
func (s *DashboardState) Clone() *DashboardState {
	if s == nil {
		return nil
	}

	out := &DashboardState{
		ScanConfig:      cloneScanConfig(s.ScanConfig),
		Agents:          make(map[string]*Agent, len(s.Agents)),
		ToolExecutions:  make([]*ToolExecution, 0, len(s.ToolExecutions)),
		ChatMessages:    append([]ChatMessage{}, s.ChatMessages...),
		Vulnerabilities: append([]Vulnerability{}, s.Vulnerabilities...),
		Collaboration:   s.Collaboration.clone(),
		Resources:       clonePtr(s.Resources),
		RateLimiter:     clonePtr(s.RateLimiter),
		Time:            clonePtr(s.Time),
		CurrentStep:     clonePtr(s.CurrentStep),
		ServerMetrics:   s.ServerMetrics.clone(),
		LiveFeed:        append([]LiveFeedEntry{}, s.LiveFeed...),
		LastUpdated:     clonePtr(s.LastUpdated),
	}

	for id, a := range s.Agents {
		out.Agents[id] = clonePtr(a)
	}
	for _, te := range s.ToolExecutions {
		out.ToolExecutions = append(out.ToolExecutions, te.clone())
	}

	return out
}

func (c *Collaboration) clone() *Collaboration {
	if c == nil {
		return nil
	}
	return &Collaboration{
		Claims:       append([]Claim{}, c.Claims...),
		Findings:     append([]Finding{}, c.Findings...),
		WorkQueue:    append([]WorkItem{}, c.WorkQueue...),
		HelpRequests: append([]HelpRequest{}, c.HelpRequests...),
		Messages:     append([]CollabMessage{}, c.Messages...),
		Stats:        clonePtr(c.Stats),
	}
}

func (te *ToolExecution) clone() *ToolExecution {
	if te == nil {
		return nil
	}
	out := *te
	if te.Args != nil {
		out.Args = make(map[string]any, len(te.Args))
		for k, v := range te.Args {
			out.Args[k] = v
		}
	}
	out.Timestamp = clonePtr(te.Timestamp)
	return &out
}

func (m *ServerMetrics) clone() *ServerMetrics {
	if m == nil {
		return nil
	}
	out := *m
	out.ConnectionPool = clonePtr(m.ConnectionPool)
	out.CircuitBreaker = clonePtr(m.CircuitBreaker)
	return &out
}

func cloneScanConfig(cfg ScanConfig) ScanConfig {
	if cfg == nil {
		return nil
	}
	out := make(ScanConfig, len(cfg))
	for k, v := range cfg {
		out[k] = v
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
