// internal/publisher/nats.go
package publisher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tamzrod/deye-bridge/internal/sensor"
	"github.com/tamzrod/deye-bridge/internal/status"
)

// NATSConfig is the server and subject layout.
type NATSConfig struct {
	URL           string
	Name          string
	SubjectPrefix string
	FlushTimeout  time.Duration
}

// natsConn is the subset of *nats.Conn the publisher uses.
type natsConn interface {
	Publish(subj string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATS publishes observations to <prefix>.<suffix>, slashes mapped to dots.
type NATS struct {
	cfg  NATSConfig
	conn natsConn
	log  zerolog.Logger
	now  func() time.Time

	mu     sync.Mutex
	lostAt time.Time

	statusMu sync.Mutex
	gate     statusGate
}

// NewNATS connects to the server. Reconnects are unbounded.
func NewNATS(cfg NATSConfig, log zerolog.Logger) (*NATS, error) {
	if cfg.URL == "" {
		return nil, errors.New("publisher nats: url required")
	}

	p := newNATS(cfg, nil, log)

	nc, err := nats.Connect(cfg.URL,
		nats.Name(p.cfg.Name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			p.markLost()
			p.log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			p.markUp()
			p.log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("publisher nats: connect %s: %w", cfg.URL, err)
	}

	p.conn = nc
	p.markUp()
	return p, nil
}

func newNATS(cfg NATSConfig, conn natsConn, log zerolog.Logger) *NATS {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "deye"
	}
	if cfg.Name == "" {
		cfg.Name = "deye-bridge"
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaultPublishTimeout
	}
	return &NATS{
		cfg:  cfg,
		conn: conn,
		log:  log.With().Str("component", "nats").Logger(),
		now:  time.Now,
		gate: newStatusGate(),
	}
}

func (p *NATS) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// Publish sends the batch and flushes once.
func (p *NATS) Publish(obs []sensor.Observation) error {
	var errs []string

	for _, o := range obs {
		if o.Sensor == nil || o.Sensor.TopicSuffix == "" {
			continue
		}
		subj := subject(p.cfg.SubjectPrefix, o.Sensor.TopicSuffix)
		if err := p.conn.Publish(subj, []byte(o.ValueString())); err != nil {
			errs = append(errs, fmt.Sprintf("subject=%s err=%v", subj, err))
		}
	}

	if err := p.conn.FlushTimeout(p.cfg.FlushTimeout); err != nil {
		errs = append(errs, fmt.Sprintf("flush: %v", err))
	}

	if len(errs) > 0 {
		return errors.New("publisher nats: " + strings.Join(errs, " | "))
	}
	return nil
}

// WriteStatus publishes the health document when it changed.
func (p *NATS) WriteStatus(s status.Snapshot) error {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	if !p.gate.due(s) {
		return nil
	}

	b, err := status.Encode(s, p.now())
	if err != nil {
		return fmt.Errorf("publisher nats: encode status: %w", err)
	}

	err = p.conn.Publish(subject(p.cfg.SubjectPrefix, HealthSuffix), b)
	if err == nil {
		err = p.conn.FlushTimeout(p.cfg.FlushTimeout)
	}
	p.gate.done(s, err)
	if err != nil {
		return fmt.Errorf("publisher nats: status write failed: %w", err)
	}
	return nil
}

func (p *NATS) OfflineFor(now time.Time) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lostAt.IsZero() {
		return 0
	}
	return now.Sub(p.lostAt)
}

func (p *NATS) markLost() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lostAt.IsZero() {
		p.lostAt = p.now()
	}
}

func (p *NATS) markUp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lostAt = time.Time{}
}
