// Package history keeps a rolling time window of dashboard metrics and
// events for the time-series chart endpoints. Data lives in memory only;
// anything older than the window is evicted.
package history

import (
	"sort"
	"sync"
	"time"
)

const (
	// DefaultWindow is the retention period for data points and events.
	DefaultWindow = 2 * time.Hour

	maxPoints = 10000
	maxEvents = 5000
)

// MetricPoint is one time-bucketed sample of numeric metric values.
type MetricPoint struct {
	Timestamp time.Time          `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// Event is a discrete tracked occurrence (tool execution, agent status
// change, ...).
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Summary aggregates a window of metric points.
type Summary struct {
	DataPoints           int     `json:"data_points"`
	WindowSeconds        float64 `json:"window_seconds"`
	TotalTokens          float64 `json:"total_tokens"`
	TotalCost            float64 `json:"total_cost"`
	TotalRequests        float64 `json:"total_requests"`
	AvgTokensPerMinute   float64 `json:"avg_tokens_per_minute"`
	AvgCostPerMinute     float64 `json:"avg_cost_per_minute"`
	AvgRequestsPerMinute float64 `json:"avg_requests_per_minute"`
}

// Well-known metric value keys.
const (
	MetricTokensInput  = "tokens_input"
	MetricTokensOutput = "tokens_output"
	MetricCost         = "cost"
	MetricRequests     = "requests"
)

// Tracker maintains bounded rolling buffers of points and events.
type Tracker struct {
	window time.Duration

	mu     sync.Mutex
	points []MetricPoint
	events []Event

	now func() time.Time // overridable in tests
}

// New creates a tracker. window <= 0 selects DefaultWindow.
func New(window time.Duration) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		window: window,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AddPoint records a sample with the current timestamp.
func (t *Tracker) AddPoint(values map[string]float64) {
	vals := make(map[string]float64, len(values))
	for k, v := range values {
		vals[k] = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.points = append(t.points, MetricPoint{Timestamp: now, Values: vals})
	if len(t.points) > maxPoints {
		t.points = t.points[len(t.points)-maxPoints:]
	}
	t.evictLocked(now)
}

// AddEvent records an event. A zero ts defaults to now.
func (t *Tracker) AddEvent(eventType string, data map[string]any, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ts.IsZero() {
		ts = t.now()
	}
	t.events = append(t.events, Event{Type: eventType, Timestamp: ts, Data: data})
	if len(t.events) > maxEvents {
		t.events = t.events[len(t.events)-maxEvents:]
	}
	t.evictLocked(t.now())
}

// evictLocked drops points and events older than the window. Caller holds
// t.mu.
func (t *Tracker) evictLocked(now time.Time) {
	cutoff := now.Add(-t.window)

	i := 0
	for i < len(t.points) && t.points[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.points = append([]MetricPoint{}, t.points[i:]...)
	}

	j := 0
	for j < len(t.events) && t.events[j].Timestamp.Before(cutoff) {
		j++
	}
	if j > 0 {
		t.events = append([]Event{}, t.events[j:]...)
	}
}

// Metrics returns the points within the window, oldest first. A non-empty
// metric filters to points that carry that value key. window <= 0 selects
// the tracker's window.
func (t *Tracker) Metrics(metric string, window time.Duration) []MetricPoint {
	t.mu.Lock()
	defer t.mu.Unlock()

	if window <= 0 || window > t.window {
		window = t.window
	}
	cutoff := t.now().Add(-window)

	out := make([]MetricPoint, 0, len(t.points))
	for _, p := range t.points {
		if p.Timestamp.Before(cutoff) {
			continue
		}
		if metric != "" {
			if _, ok := p.Values[metric]; !ok {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// Events returns the events within the window, oldest first, optionally
// filtered by type.
func (t *Tracker) Events(eventType string, window time.Duration) []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	if window <= 0 || window > t.window {
		window = t.window
	}
	cutoff := t.now().Add(-window)

	out := make([]Event, 0, len(t.events))
	for _, e := range t.events {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		if eventType != "" && e.Type != eventType {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// SummaryStats aggregates the points within the window.
func (t *Tracker) SummaryStats(window time.Duration) Summary {
	if window <= 0 || window > t.window {
		window = t.window
	}
	points := t.Metrics("", window)

	s := Summary{
		DataPoints:    len(points),
		WindowSeconds: window.Seconds(),
	}
	if len(points) == 0 {
		return s
	}

	for _, p := range points {
		s.TotalTokens += p.Values[MetricTokensInput] + p.Values[MetricTokensOutput]
		s.TotalCost += p.Values[MetricCost]
		s.TotalRequests += p.Values[MetricRequests]
	}

	minutes := window.Minutes()
	if minutes < 1 {
		minutes = 1
	}
	s.AvgTokensPerMinute = s.TotalTokens / minutes
	s.AvgCostPerMinute = s.TotalCost / minutes
	s.AvgRequestsPerMinute = s.TotalRequests / minutes
	return s
}

// Clear drops all recorded data.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.points = nil
	t.events = nil
}

// Size reports how much data is currently buffered.
func (t *Tracker) Size() (points, events int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.points), len(t.events)
}
