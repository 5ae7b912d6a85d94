package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/subnet-socks/subnet-socks/api"
	"github.com/subnet-socks/subnet-socks/jsonhelper"
	"github.com/subnet-socks/subnet-socks/netio"
	"github.com/subnet-socks/subnet-socks/stats"
	"github.com/subnet-socks/subnet-socks/subnet"
)

const (
	DefaultListen           = "0.0.0.0:1080"
	DefaultHandshakeTimeout = time.Second
	DefaultRelayTimeout     = netio.DefaultRelayTimeout
	DefaultDialTimeout      = 10 * time.Second
)

var errEmptyListen = errors.New("listen address is empty")

// Config is the main configuration structure.
// It may be marshaled as or unmarshaled from JSON.
type Config struct {
	// Listen is the TCP address the SOCKS5 server listens on.
	Listen string `json:"listen"`

	// RestrictToSameSubnet limits CONNECT targets to the subnet of the
	// interface that owns the listen address, or to Subnet if set.
	RestrictToSameSubnet bool `json:"restrictToSameSubnet"`

	// Subnet overrides the interface lookup for the restriction policy.
	Subnet *subnet.Prefix `json:"subnet,omitempty"`

	// HandshakeTimeout bounds each read and write during negotiation and the request phase.
	HandshakeTimeout jsonhelper.Duration `json:"handshakeTimeout,omitzero"`

	// RelayTimeout bounds each read and write while relaying.
	RelayTimeout jsonhelper.Duration `json:"relayTimeout,omitzero"`

	// DialTimeout bounds name resolution and the outbound dial.
	DialTimeout jsonhelper.Duration `json:"dialTimeout,omitzero"`

	// MaxConnections caps concurrently handled connections. 0 means unbounded.
	MaxConnections int `json:"maxConnections,omitzero"`

	// ListenerTFO enables TCP Fast Open on the listener.
	ListenerTFO bool `json:"listenerTFO"`

	// DialerTFO enables TCP Fast Open on outbound connections.
	DialerTFO bool `json:"dialerTFO"`

	// DNS is the host:port of a DNS server used to resolve domain targets.
	// If empty, the system resolver is used.
	DNS string `json:"dns,omitempty"`

	Stats stats.Config `json:"stats"`
	API   api.Config   `json:"api"`
}

// LoadConfig reads a JSON configuration file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	d := json.NewDecoder(f)
	d.DisallowUnknownFields()
	if err = d.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %q: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, cfg.Validate()
}

// ApplyDefaults fills unset fields with their default values.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = jsonhelper.Duration(DefaultHandshakeTimeout)
	}
	if c.RelayTimeout <= 0 {
		c.RelayTimeout = jsonhelper.Duration(DefaultRelayTimeout)
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = jsonhelper.Duration(DefaultDialTimeout)
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errEmptyListen
	}
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("bad listen address %q: %w", c.Listen, err)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("maxConnections must not be negative: %d", c.MaxConnections)
	}
	if c.DNS != "" {
		if _, _, err := net.SplitHostPort(c.DNS); err != nil {
			return fmt.Errorf("bad DNS server address %q: %w", c.DNS, err)
		}
	}
	if c.API.Enabled && c.API.Listen == "" {
		return errors.New("API is enabled but has no listen address")
	}
	return nil
}
