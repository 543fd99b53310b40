// Package client implements the dashboard-side state synchronization layer:
// bootstrap fetch, server-sent event stream consumption, reconnect policy
// and the connection status observable.
//
// All merges are applied from a single goroutine, in the order events are
// received from the transport. Consumers read through the store's snapshots
// and its subscription callbacks.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/scanwatch/internal/domain"
	"github.com/gosuda/scanwatch/internal/state"
)

const (
	// DefaultReconnectInterval is the fixed delay between reconnect attempts.
	DefaultReconnectInterval = 3 * time.Second

	// DefaultMaxReconnectAttempts bounds consecutive connection failures
	// before the client gives up with a terminal error.
	DefaultMaxReconnectAttempts = 10

	// DefaultFetchTimeout bounds the bootstrap state fetch.
	DefaultFetchTimeout = 10 * time.Second
)

// Config holds sync client settings.
type Config struct {
	// BaseURL of the dashboard relay, e.g. "http://localhost:8080".
	BaseURL string

	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	FetchTimeout         time.Duration

	// OnStatus, when set, is invoked on every connection status transition.
	OnStatus func(Status)
}

func (c *Config) withDefaults() Config {
	out := *c
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")
	if out.ReconnectInterval <= 0 {
		out.ReconnectInterval = DefaultReconnectInterval
	}
	if out.MaxReconnectAttempts <= 0 {
		out.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if out.FetchTimeout <= 0 {
		out.FetchTimeout = DefaultFetchTimeout
	}
	return out
}

// Client keeps a Store synchronized with a remote dashboard session.
type Client struct {
	cfg   Config
	store *state.Store

	fetchClient  *http.Client // bootstrap; bounded timeout
	streamClient *http.Client // long-lived stream; no client timeout

	mu      sync.Mutex
	status  Status
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// New creates a sync client bound to the given store.
func New(cfg Config, store *state.Store) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:          cfg,
		store:        store,
		fetchClient:  &http.Client{Timeout: cfg.FetchTimeout},
		streamClient: &http.Client{},
		status:       Status{State: StateDisconnected},
	}
}

// Store returns the store this client synchronizes.
func (c *Client) Store() *state.Store { return c.store }

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Start launches the sync loop: bootstrap fetch, then stream attach, with
// the reconnect policy applied on failure. It returns an error if the client
// is already running.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return errors.New("client.Start: already started")
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(runCtx)
	return nil
}

// Stop tears the session down: the open transport is closed and any pending
// reconnect timer is cancelled. Safe to call multiple times and before
// Start.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	failures := 0
	for {
		if ctx.Err() != nil {
			c.transition(StateDisconnected, nil)
			return
		}

		c.transition(StateConnecting, c.Status().LastError)
		c.bootstrap(ctx)

		opened, err := c.consumeStream(ctx)
		if ctx.Err() != nil {
			c.transition(StateDisconnected, nil)
			return
		}
		if opened {
			// A successful attach resets the consecutive-failure counter.
			failures = 0
		}

		failures++
		if failures >= c.cfg.MaxReconnectAttempts {
			log.Error().Err(err).Int("attempts", failures).Msg("giving up on dashboard stream")
			c.transition(StateFailed, &ErrorInfo{
				Message: domain.ErrMaxReconnects.Error(),
				Time:    time.Now().UTC(),
			})
			return
		}

		log.Warn().Err(err).Int("attempt", failures).Msg("dashboard stream lost, reconnecting")
		c.transition(StateReconnecting, errInfo(err))

		select {
		case <-time.After(c.cfg.ReconnectInterval):
		case <-ctx.Done():
			c.transition(StateDisconnected, nil)
			return
		}
	}
}

// bootstrap fetches the full snapshot and installs it unless it raced with
// deltas and lost. Fetch failure is non-fatal: stream updates still apply on
// top of the last good state.
func (c *Client) bootstrap(ctx context.Context) {
	before := c.store.LastUpdated()

	snap, err := c.fetchState(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("bootstrap fetch failed")
		return
	}

	if staleBootstrap(snap.LastUpdated, before, c.store.LastUpdated()) {
		log.Debug().Msg("discarding stale bootstrap result")
		return
	}
	c.store.Replace(snap)
}

// staleBootstrap reports whether a fetched snapshot should be discarded:
// only when deltas were merged while the fetch was in flight and the
// snapshot is strictly older than what they produced.
func staleBootstrap(fetched, before, current *time.Time) bool {
	if timesEqual(before, current) {
		return false
	}
	return fetched != nil && current != nil && fetched.Before(*current)
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (c *Client) fetchState(ctx context.Context) (*domain.DashboardState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/state", nil)
	if err != nil {
		return nil, fmt.Errorf("client.fetchState: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.fetchClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client.fetchState: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("client.fetchState: unexpected status %d", resp.StatusCode)
	}

	var snap domain.DashboardState
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("client.fetchState: decode: %w", err)
	}
	return &snap, nil
}

// consumeStream attaches to /api/stream and applies events until the stream
// breaks or ctx is cancelled. opened reports whether the attach succeeded.
func (c *Client) consumeStream(ctx context.Context) (opened bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/stream", nil)
	if err != nil {
		return false, fmt.Errorf("client.consumeStream: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("client.consumeStream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("client.consumeStream: unexpected status %d", resp.StatusCode)
	}

	c.transition(StateConnected, nil)

	readErr := readEvents(resp.Body, func(name string, data []byte) {
		// Malformed or unknown events are discarded inside ApplyEvent; the
		// stream stays attached and prior state is untouched.
		if applyErr := c.store.ApplyEvent(name, data); applyErr != nil {
			log.Debug().Err(applyErr).Str("event", name).Msg("dropped stream event")
		}
	})
	if readErr != nil {
		return true, readErr
	}
	return true, errors.New("client.consumeStream: stream closed by server")
}

// transition updates the status observable and fires the callback when
// something actually changed.
func (c *Client) transition(st ConnState, lastErr *ErrorInfo) {
	c.mu.Lock()
	prev := c.status
	next := Status{
		State:     st,
		Connected: st == StateConnected,
		LastError: lastErr,
	}
	c.status = next
	cb := c.cfg.OnStatus
	c.mu.Unlock()

	if cb != nil && !statusEqual(prev, next) {
		cb(next)
	}
}

func statusEqual(a, b Status) bool {
	if a.State != b.State || a.Connected != b.Connected {
		return false
	}
	if (a.LastError == nil) != (b.LastError == nil) {
		return false
	}
	return a.LastError == nil || a.LastError.Message == b.LastError.Message
}

func errInfo(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{Message: err.Error(), Time: time.Now().UTC()}
}
