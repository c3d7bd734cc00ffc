// internal/watchdog/watchdog.go
package watchdog

import (
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/rs/zerolog"
)

// Feeder is fed whenever the process makes progress.
type Feeder interface {
	Feed()
}

// Nop is used when no watchdog is configured.
type Nop struct{}

func (Nop) Feed() {}

// notifier matches daemon.SdNotify.
type notifier func(unsetEnvironment bool, state string) (bool, error)

// Systemd feeds the service manager watchdog (WATCHDOG=1), at most once
// per half watchdog interval.
type Systemd struct {
	interval time.Duration
	notify   notifier
	now      func() time.Time
	log      zerolog.Logger

	mu       sync.Mutex
	lastFeed time.Time
}

// NewSystemd returns a Systemd feeder, or ok=false when the service
// manager has no watchdog configured for this process.
func NewSystemd(log zerolog.Logger) (*Systemd, bool, error) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return nil, false, err
	}
	if interval <= 0 {
		return nil, false, nil
	}
	return newSystemd(interval, daemon.SdNotify, log), true, nil
}

func newSystemd(interval time.Duration, notify notifier, log zerolog.Logger) *Systemd {
	return &Systemd{
		interval: interval,
		notify:   notify,
		now:      time.Now,
		log:      log.With().Str("component", "watchdog").Logger(),
	}
}

// FeedInterval is how often a sleeping loop should call Feed.
func (s *Systemd) FeedInterval() time.Duration { return s.interval / 2 }

func (s *Systemd) Feed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.lastFeed.IsZero() && now.Sub(s.lastFeed) < s.interval/2 {
		return
	}

	if _, err := s.notify(false, daemon.SdNotifyWatchdog); err != nil {
		s.log.Warn().Err(err).Msg("watchdog notify failed")
		return
	}
	s.lastFeed = now
}

// Ready tells the service manager startup is complete.
func (s *Systemd) Ready() {
	if _, err := s.notify(false, daemon.SdNotifyReady); err != nil {
		s.log.Warn().Err(err).Msg("ready notify failed")
	}
}
