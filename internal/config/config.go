// internal/config/config.go
package config

import (
	"net"
	"strconv"
	"time"
)

type Config struct {
	Logger       LoggerConfig       `yaml:"logger"`
	Poll         PollConfig         `yaml:"poll"`
	Publisher    PublisherConfig    `yaml:"publisher"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	NATS         NATSConfig         `yaml:"nats"`
	Watchdog     WatchdogConfig     `yaml:"watchdog"`
	Log          LogConfig          `yaml:"log"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Connectivity ConnectivityConfig `yaml:"connectivity"`
}

// ---- LOGGER (the data logger in front of the inverter) ----

type LoggerConfig struct {
	SerialNumber uint32 `yaml:"serial_number"`
	IPAddress    string `yaml:"ip_address"`
	Port         int    `yaml:"port"`
	SlaveID      uint8  `yaml:"slave_id"`
	TimeoutMs    int    `yaml:"timeout_ms"`
	Attempts     int    `yaml:"attempts"`
}

func (l LoggerConfig) Address() string {
	return net.JoinHostPort(l.IPAddress, strconv.Itoa(l.Port))
}

func (l LoggerConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutMs) * time.Millisecond
}

// ---- POLL ----

type PollConfig struct {
	IntervalS    int           `yaml:"interval_s"`
	Ranges       []RangeConfig `yaml:"ranges"`
	MetricGroups []string      `yaml:"metric_groups"`
	FreeMemory   bool          `yaml:"free_memory"`
}

// RangeConfig is an inclusive register range read in one request.
type RangeConfig struct {
	First uint16 `yaml:"first"`
	Last  uint16 `yaml:"last"`
}

func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalS) * time.Second
}

// ---- PUBLISHER ----

const (
	PublisherMQTT = "mqtt"
	PublisherNATS = "nats"
)

type PublisherConfig struct {
	Kind string `yaml:"kind"`
}

type MQTTConfig struct {
	Host        string          `yaml:"host"`
	Port        int             `yaml:"port"`
	Username    string          `yaml:"username"`
	Password    string          `yaml:"password"`
	TopicPrefix string          `yaml:"topic_prefix"`
	ClientID    string          `yaml:"client_id"`
	KeepAliveS  int             `yaml:"keepalive_s"`
	Retain      bool            `yaml:"retain"`
	Discovery   DiscoveryConfig `yaml:"discovery"`
}

type DiscoveryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Prefix  string `yaml:"prefix"`
	NodeID  string `yaml:"node_id"`
}

func (m MQTTConfig) Broker() string {
	return "tcp://" + net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
}

func (m MQTTConfig) KeepAlive() time.Duration {
	return time.Duration(m.KeepAliveS) * time.Second
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// ---- AMBIENT ----

type WatchdogConfig struct {
	Enabled bool `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error, or 10/20/30/40
	Format string `yaml:"format"` // console | json
}

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty disables the endpoint
}

type ConnectivityConfig struct {
	// MaxOfflineS: exit when the publisher link stays down this long.
	// 0 disables supervision.
	MaxOfflineS int `yaml:"max_offline_s"`
}

func (c ConnectivityConfig) MaxOffline() time.Duration {
	return time.Duration(c.MaxOfflineS) * time.Second
}
