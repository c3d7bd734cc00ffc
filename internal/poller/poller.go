// internal/poller/poller.go
package poller

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/deye-bridge/internal/metrics"
	"github.com/tamzrod/deye-bridge/internal/publisher"
	"github.com/tamzrod/deye-bridge/internal/registers"
	"github.com/tamzrod/deye-bridge/internal/sensor"
	"github.com/tamzrod/deye-bridge/internal/status"
	"github.com/tamzrod/deye-bridge/internal/watchdog"
)

// Client abstracts the register reads needed by the poller.
// The poller depends on geometry only.
type Client interface {
	ReadRegisters(ctx context.Context, first, last uint16) (registers.Map, error)
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	Interval   time.Duration
	Ranges     []Range
	Sensors    []*sensor.Sensor
	FreeMemory bool

	// StaleAfter marks a healthy snapshot stale when no cycle succeeded
	// for this long. Zero means three intervals.
	StaleAfter time.Duration
}

type Option func(*Poller)

func WithStatusWriter(w publisher.StatusWriter) Option {
	return func(p *Poller) { p.statusWriter = w }
}

// WithWatchdog feeds f after every chunk and publish, and every
// feedEvery while sleeping between cycles.
func WithWatchdog(f watchdog.Feeder, feedEvery time.Duration) Option {
	return func(p *Poller) {
		p.feeder = f
		p.feedEvery = feedEvery
	}
}

func WithRecorder(r *metrics.Recorder) Option {
	return func(p *Poller) { p.rec = r }
}

func WithLogger(log zerolog.Logger) Option {
	return func(p *Poller) { p.log = log.With().Str("component", "poller").Logger() }
}

// Poller is a clock-driven reader: read ranges, decode, publish, sleep.
type Poller struct {
	cfg    Config
	client Client
	pub    publisher.Publisher

	statusWriter publisher.StatusWriter
	feeder       watchdog.Feeder
	feedEvery    time.Duration
	rec          *metrics.Recorder
	log          zerolog.Logger

	tracker *status.Tracker
	now     func() time.Time
	reclaim func()

	mu       sync.Mutex
	lastRegs registers.Map
}

// New creates a poller with immutable config.
func New(cfg Config, client Client, pub publisher.Publisher, opts ...Option) (*Poller, error) {
	if client == nil {
		return nil, errors.New("poller: client required")
	}
	if pub == nil {
		return nil, errors.New("poller: publisher required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(cfg.Ranges) == 0 {
		return nil, errors.New("poller: at least one range required")
	}
	for _, r := range cfg.Ranges {
		if err := registers.CheckRange(r.First, r.Last); err != nil {
			return nil, fmt.Errorf("poller: range %s: %w", r, err)
		}
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 3 * cfg.Interval
	}

	p := &Poller{
		cfg:     cfg,
		client:  client,
		pub:     pub,
		feeder:  watchdog.Nop{},
		log:     zerolog.Nop(),
		tracker: status.NewTracker(),
		now:     time.Now,
		reclaim: debug.FreeOSMemory,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// PollOnce performs exactly one poll cycle.
// A failed range aborts the remaining ranges; whatever was merged before
// it is still decoded and published.
func (p *Poller) PollOnce(ctx context.Context) CycleResult {
	start := p.now()
	res := CycleResult{
		At:        start,
		Registers: registers.Map{},
	}

	for _, r := range p.cfg.Ranges {
		if err := ctx.Err(); err != nil {
			res.Err = err
			break
		}

		regs, err := p.client.ReadRegisters(ctx, r.First, r.Last)
		p.afterChunk()

		if err != nil {
			failed := r
			res.FailedRange = &failed
			res.Err = fmt.Errorf("poller: read %s: %w", r, err)
			p.rec.ObserveChunkFailure(r.First, r.Last, err)
			break
		}
		res.Registers.Merge(regs)
	}

	res.Observations = sensor.Observe(p.cfg.Sensors, res.Registers, res.At)

	if len(res.Observations) > 0 {
		if err := p.pub.Publish(res.Observations); err != nil {
			p.rec.ObservePublishError()
			p.log.Error().Err(err).Int("observations", len(res.Observations)).Msg("publish failed")
		}
	}
	p.feeder.Feed()

	p.finish(res, p.now().Sub(start))
	return res
}

func (p *Poller) afterChunk() {
	if p.cfg.FreeMemory {
		p.reclaim()
	}
	p.feeder.Feed()
}

// finish folds the outcome into health, metrics and logs.
func (p *Poller) finish(res CycleResult, took time.Duration) {
	if len(res.Registers) > 0 {
		p.mu.Lock()
		p.lastRegs = res.Registers.Clone()
		p.mu.Unlock()
	}

	snap := p.tracker.Observe(res.Err, res.At)
	p.rec.ObserveCycle(res.At, took, len(res.Observations), res.Err)
	p.rec.SetStatus(snap)

	if p.statusWriter != nil {
		if err := p.statusWriter.WriteStatus(snap); err != nil {
			p.log.Warn().Err(err).Msg("status write failed")
		}
	}

	if res.Err != nil {
		ev := p.log.Warn().Err(res.Err).
			Int("registers", len(res.Registers)).
			Int("observations", len(res.Observations)).
			Uint16("seconds_in_error", snap.SecondsInError)
		if res.FailedRange != nil {
			ev = ev.Stringer("range", res.FailedRange)
		}
		ev.Msg("cannot read from inverter")
		return
	}

	p.log.Info().
		Int("registers", len(res.Registers)).
		Int("observations", len(res.Observations)).
		Dur("took", took).
		Msg("poll cycle complete")
}

// Health implements metrics.Source.
func (p *Poller) Health(now time.Time) status.Snapshot {
	return p.tracker.Snapshot(now, p.cfg.StaleAfter)
}

// LastRegisters implements metrics.Source. The returned map is a copy.
func (p *Poller) LastRegisters() registers.Map {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRegs.Clone()
}
