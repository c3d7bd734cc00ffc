// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run polls immediately, then once per interval until ctx is done.
// One goroutine. No overlap. Protocol errors never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info().
		Dur("interval", p.cfg.Interval).
		Int("ranges", len(p.cfg.Ranges)).
		Int("sensors", len(p.cfg.Sensors)).
		Msg("poller started")

	for {
		p.PollOnce(ctx)

		if !p.sleep(ctx, p.cfg.Interval) {
			p.log.Info().Msg("poller stopped")
			return ctx.Err()
		}
	}
}

// sleep waits for d, feeding the watchdog every feedEvery.
// It reports false when ctx ended first.
func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var feed <-chan time.Time
	if p.feedEvery > 0 {
		ticker := time.NewTicker(p.feedEvery)
		defer ticker.Stop()
		feed = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-feed:
			p.feeder.Feed()
		}
	}
}
