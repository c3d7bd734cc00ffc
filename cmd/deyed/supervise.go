// cmd/deyed/supervise.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/deye-bridge/internal/publisher"
)

// supervise returns an error once the publisher link has been down for
// longer than limit. The service manager restarts the process.
func supervise(ctx context.Context, link publisher.LinkMonitor, limit time.Duration, log zerolog.Logger) error {
	every := limit / 4
	if every < time.Second {
		every = time.Second
	}
	return superviseEvery(ctx, link, limit, every, time.Now, log)
}

func superviseEvery(ctx context.Context, link publisher.LinkMonitor, limit, every time.Duration, now func() time.Time, log zerolog.Logger) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d := link.OfflineFor(now())
			if d > limit {
				return fmt.Errorf("publisher offline for %s (limit %s)", d.Truncate(time.Second), limit)
			}
			if d > 0 {
				log.Warn().Dur("offline", d).Dur("limit", limit).Msg("publisher link down")
			}
		}
	}
}
