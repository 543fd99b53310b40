// scanwatch-tail attaches to a running dashboard relay and follows the live
// feed and connection status on the terminal. It is a thin consumer of the
// sync client; all state handling happens in the client/store layers.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/scanwatch/internal/client"
	"github.com/gosuda/scanwatch/internal/config"
	"github.com/gosuda/scanwatch/internal/domain"
	"github.com/gosuda/scanwatch/internal/state"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	logLevel := os.Getenv("SCANWATCH_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store := state.New(cfg.Dashboard.LiveFeedMax)

	c := client.New(client.Config{
		BaseURL:              cfg.Client.BaseURL,
		ReconnectInterval:    cfg.Client.ReconnectInterval,
		MaxReconnectAttempts: cfg.Client.MaxReconnectAttempts,
		FetchTimeout:         cfg.Client.FetchTimeout,
		OnStatus: func(st client.Status) {
			ev := log.Info()
			if st.LastError != nil {
				ev = log.Warn().Str("error", st.LastError.Message)
			}
			ev.Str("state", string(st.State)).Msg("connection")
		},
	}, store)

	var cursor feedCursor
	unsubscribe := store.Subscribe(func(snap *domain.DashboardState) {
		for _, entry := range cursor.fresh(snap.LiveFeed) {
			ev := log.Info().Str("type", entry.Type)
			if entry.AgentID != "" {
				ev = ev.Str("agent", entry.AgentID)
			}
			ev.Msg(entry.Message)
		}
	})
	defer unsubscribe()

	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Stop()

	log.Info().Str("url", cfg.Client.BaseURL).Msg("following dashboard")
	<-ctx.Done()
	return nil
}

// feedCursor tracks the last printed live feed entry so each snapshot only
// yields entries not seen before, surviving feed truncation.
type feedCursor struct {
	last   *domain.LiveFeedEntry
	primed bool
}

func (f *feedCursor) fresh(feed []domain.LiveFeedEntry) []domain.LiveFeedEntry {
	if !f.primed {
		f.primed = true
		f.remember(feed)
		return feed
	}
	if f.last == nil {
		f.remember(feed)
		return feed
	}

	// Find the last occurrence of the previously printed entry; everything
	// after it is new. If truncation evicted it, the whole feed is new.
	start := 0
	for i := len(feed) - 1; i >= 0; i-- {
		if sameEntry(feed[i], *f.last) {
			start = i + 1
			break
		}
	}
	out := feed[start:]
	f.remember(feed)
	return out
}

func (f *feedCursor) remember(feed []domain.LiveFeedEntry) {
	if len(feed) == 0 {
		return
	}
	last := feed[len(feed)-1]
	f.last = &last
}

func sameEntry(a, b domain.LiveFeedEntry) bool {
	if a.Message != b.Message || a.Type != b.Type || a.AgentID != b.AgentID {
		return false
	}
	if (a.Timestamp == nil) != (b.Timestamp == nil) {
		return false
	}
	return a.Timestamp == nil || a.Timestamp.Equal(*b.Timestamp)
}
