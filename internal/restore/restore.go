// Package restore implements the bootstrap path: on initial load, a token is
// read out of the page URL, decoded, and fed into the comparison coordinator
// so a shared link reproduces the exact analysis without user interaction.
package restore

import (
	"context"
	"log/slog"
	"time"

	"backboard/internal/domain"
	"backboard/internal/run"
	"backboard/internal/share"
)

// Restorer turns share tokens back into live runs.
type Restorer struct {
	coord *run.Coordinator
	log   *slog.Logger

	// delay lets dependent presentation state settle before runs fire; an
	// implementation convenience, not a timing requirement.
	delay time.Duration
}

// NewRestorer creates a Restorer triggering runs after the given delay.
func NewRestorer(coord *run.Coordinator, delay time.Duration, log *slog.Logger) *Restorer {
	return &Restorer{coord: coord, delay: delay, log: log}
}

// RestoreURL extracts the state token from rawURL and restores it. A URL
// without a token is a normal cold start and returns nil.
func (r *Restorer) RestoreURL(ctx context.Context, rawURL string) *domain.ShareableState {
	token := share.ExtractToken(rawURL)
	if token == "" {
		return nil
	}
	return r.RestoreToken(ctx, token)
}

// RestoreToken decodes token and triggers the runs it describes. It returns
// the decoded state so the caller can populate forms, or nil when there is
// nothing to restore. Nothing in this path is allowed to crash the cold-start
// UI: failures degrade to nil and a log line.
func (r *Restorer) RestoreToken(ctx context.Context, token string) (state *domain.ShareableState) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("restore panicked", "panic", p)
			state = nil
		}
	}()

	state = share.Decode(token)
	if state == nil {
		r.log.Info("share token did not decode, starting cold")
		return nil
	}

	switch state.Mode {
	case domain.ModeSingle:
		r.coord.SetMode(domain.ModeSingle)
		cfg := *state.Config
		r.log.Info("restoring single run from share link")
		go r.afterDelay(ctx, func() {
			r.coord.RunA(ctx, cfg)
		})
	case domain.ModeCompare:
		// Compare mode is set immediately; both runs fire concurrently after
		// the delay. The interactive B-after-A ordering does not apply here
		// since the configs came from a previously valid link.
		r.coord.SetMode(domain.ModeCompare)
		cfgA, cfgB := *state.ConfigA, *state.ConfigB
		r.log.Info("restoring comparison from share link")
		go r.afterDelay(ctx, func() {
			r.coord.RunA(ctx, cfgA)
			r.coord.RunB(ctx, cfgB)
		})
	}

	return state
}

func (r *Restorer) afterDelay(ctx context.Context, fn func()) {
	if r.delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.delay):
		}
	}
	fn()
}
