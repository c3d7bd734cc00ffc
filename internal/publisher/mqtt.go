// internal/publisher/mqtt.go
package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tamzrod/deye-bridge/internal/sensor"
	"github.com/tamzrod/deye-bridge/internal/status"
)

// DiscoveryConfig controls Home Assistant MQTT discovery.
type DiscoveryConfig struct {
	Enabled bool
	Prefix  string // usually "homeassistant"
	NodeID  string
}

// MQTTConfig is the broker and topic layout.
type MQTTConfig struct {
	Broker      string // tcp://host:port
	Username    string
	Password    string
	ClientID    string
	TopicPrefix string
	KeepAlive   time.Duration
	Retain      bool
	QoS         byte

	Discovery      DiscoveryConfig
	PublishTimeout time.Duration
}

// MQTT publishes observations to <prefix>/<suffix>.
// Availability is announced on <prefix>/status with an LWT.
type MQTT struct {
	cfg     MQTTConfig
	client  mqtt.Client
	sensors []*sensor.Sensor
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	lostAt time.Time // zero while connected

	statusMu sync.Mutex
	gate     statusGate
}

// NewMQTT builds the publisher; call Connect to reach the broker.
// sensors are announced through discovery on every (re)connect.
func NewMQTT(cfg MQTTConfig, sensors []*sensor.Sensor, log zerolog.Logger) (*MQTT, error) {
	if cfg.Broker == "" {
		return nil, errors.New("publisher mqtt: broker required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("publisher mqtt: client id required")
	}

	m := newMQTT(cfg, nil, sensors, log)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(cfg.KeepAlive).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetWill(m.availabilityTopic(), payloadOffline, cfg.QoS, true).
		SetOnConnectHandler(m.onConnect).
		SetConnectionLostHandler(m.onConnectionLost)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	m.client = mqtt.NewClient(opts)
	return m, nil
}

func newMQTT(cfg MQTTConfig, client mqtt.Client, sensors []*sensor.Sensor, log zerolog.Logger) *MQTT {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "deye"
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	if cfg.Discovery.Prefix == "" {
		cfg.Discovery.Prefix = "homeassistant"
	}
	if cfg.Discovery.NodeID == "" {
		cfg.Discovery.NodeID = "deye_" + strings.ReplaceAll(cfg.TopicPrefix, "/", "_")
	}

	m := &MQTT{
		cfg:     cfg,
		client:  client,
		sensors: sensors,
		log:     log.With().Str("component", "mqtt").Logger(),
		now:     time.Now,
		gate:    newStatusGate(),
	}
	m.lostAt = m.now()
	return m
}

// Connect starts the connection and waits up to timeout for it.
// On timeout the client keeps retrying in the background.
func (m *MQTT) Connect(timeout time.Duration) error {
	tok := m.client.Connect()
	if !tok.WaitTimeout(timeout) {
		return fmt.Errorf("publisher mqtt: connect to %s: timed out after %s", m.cfg.Broker, timeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("publisher mqtt: connect to %s: %w", m.cfg.Broker, err)
	}
	return nil
}

// Close announces offline and disconnects.
func (m *MQTT) Close() {
	if m.client.IsConnected() {
		tok := m.client.Publish(m.availabilityTopic(), m.cfg.QoS, true, payloadOffline)
		tok.WaitTimeout(m.cfg.PublishTimeout)
	}
	m.client.Disconnect(250)
}

// Publish sends every observation that has a topic suffix. All sends
// are attempted; failures are joined into one error.
func (m *MQTT) Publish(obs []sensor.Observation) error {
	var errs []string

	for _, o := range obs {
		if o.Sensor == nil || o.Sensor.TopicSuffix == "" {
			continue
		}
		t := topic(m.cfg.TopicPrefix, o.Sensor.TopicSuffix)
		v := o.ValueString()

		m.log.Debug().Str("topic", t).Str("value", v).Msg("publishing")
		if err := m.send(t, m.cfg.Retain, v); err != nil {
			errs = append(errs, fmt.Sprintf("topic=%s err=%v", t, err))
		}
	}

	if len(errs) > 0 {
		return errors.New("publisher mqtt: " + strings.Join(errs, " | "))
	}
	return nil
}

// WriteStatus publishes the health snapshot (retained) when it changed
// or when the previous write failed.
func (m *MQTT) WriteStatus(s status.Snapshot) error {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()

	if !m.gate.due(s) {
		return nil
	}

	b, err := status.Encode(s, m.now())
	if err != nil {
		return fmt.Errorf("publisher mqtt: encode status: %w", err)
	}

	err = m.send(topic(m.cfg.TopicPrefix, HealthSuffix), true, b)
	m.gate.done(s, err)
	if err != nil {
		return fmt.Errorf("publisher mqtt: status write failed: %w", err)
	}
	return nil
}

// OfflineFor reports how long the broker link has been down.
func (m *MQTT) OfflineFor(now time.Time) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lostAt.IsZero() {
		return 0
	}
	return now.Sub(m.lostAt)
}

// ---- connection handlers ----

func (m *MQTT) onConnect(_ mqtt.Client) {
	m.mu.Lock()
	m.lostAt = time.Time{}
	m.mu.Unlock()

	// broker may have lost retained state
	m.statusMu.Lock()
	m.gate.needFull = true
	m.statusMu.Unlock()

	m.log.Info().Str("broker", m.cfg.Broker).Msg("mqtt connected")

	if err := m.send(m.availabilityTopic(), true, payloadOnline); err != nil {
		m.log.Error().Err(err).Msg("availability publish failed")
	}
	if m.cfg.Discovery.Enabled {
		if err := m.announce(); err != nil {
			m.log.Error().Err(err).Msg("discovery publish failed")
		}
	}
}

func (m *MQTT) onConnectionLost(_ mqtt.Client, err error) {
	m.mu.Lock()
	if m.lostAt.IsZero() {
		m.lostAt = m.now()
	}
	m.mu.Unlock()

	m.log.Warn().Err(err).Msg("mqtt connection lost")
}

// ---- home assistant discovery ----

type hassConfig struct {
	DeviceClass       string     `json:"dev_cla,omitempty"`
	UnitOfMeasurement string     `json:"unit_of_meas,omitempty"`
	Name              string     `json:"name"`
	StateTopic        string     `json:"stat_t"`
	AvailabilityTopic string     `json:"avty_t"`
	UniqueID          string     `json:"uniq_id"`
	StateClass        string     `json:"stat_cla,omitempty"`
	Device            hassDevice `json:"dev"`
}

type hassDevice struct {
	IDs          string `json:"ids"`
	Name         string `json:"name"`
	Manufacturer string `json:"mf"`
}

func (m *MQTT) announce() error {
	node := m.cfg.Discovery.NodeID
	dev := hassDevice{IDs: node, Name: node, Manufacturer: "Deye"}

	var errs []string
	for _, s := range m.sensors {
		if s.TopicSuffix == "" {
			continue
		}
		objectID := strings.ReplaceAll(s.TopicSuffix, "/", "_")

		payload, err := json.Marshal(hassConfig{
			DeviceClass:       s.DeviceClass,
			UnitOfMeasurement: s.Unit,
			Name:              s.Name,
			StateTopic:        topic(m.cfg.TopicPrefix, s.TopicSuffix),
			AvailabilityTopic: m.availabilityTopic(),
			UniqueID:          node + "_" + objectID,
			StateClass:        s.StateClass,
			Device:            dev,
		})
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", objectID, err))
			continue
		}

		t := fmt.Sprintf("%s/sensor/%s/%s/config", m.cfg.Discovery.Prefix, node, objectID)
		if err := m.send(t, true, payload); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", objectID, err))
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, " | "))
	}
	return nil
}

// ---- helpers ----

func (m *MQTT) availabilityTopic() string {
	return topic(m.cfg.TopicPrefix, AvailabilitySuffix)
}

func (m *MQTT) send(t string, retain bool, payload interface{}) error {
	tok := m.client.Publish(t, m.cfg.QoS, retain, payload)
	if !tok.WaitTimeout(m.cfg.PublishTimeout) {
		return fmt.Errorf("publish timed out after %s", m.cfg.PublishTimeout)
	}
	return tok.Error()
}
