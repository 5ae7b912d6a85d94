package service

import (
	"context"
	"fmt"

	subnetsocks "github.com/subnet-socks/subnet-socks"
	"github.com/subnet-socks/subnet-socks/conn"
	"go.uber.org/zap"
)

// Manager initializes the service manager.
//
// Initialization order: stats -> resolver -> SOCKS5 server -> API
func (c *Config) Manager(logger *zap.Logger) (*Manager, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	statsConfig := c.Stats
	if c.API.Enabled {
		statsConfig.Enabled = true
	}
	collector := statsConfig.Collector()

	var resolver conn.Resolver = conn.SystemResolver{}
	if c.DNS != "" {
		resolver = conn.NewDNSResolver(c.DNS, c.DialTimeout.Value())
	}

	server := NewServer(ServerConfig{
		Listen:               c.Listen,
		RestrictToSameSubnet: c.RestrictToSameSubnet,
		Subnet:               c.Subnet,
		HandshakeTimeout:     c.HandshakeTimeout.Value(),
		RelayTimeout:         c.RelayTimeout.Value(),
		DialTimeout:          c.DialTimeout.Value(),
		MaxConnections:       c.MaxConnections,
		ListenerTFO:          c.ListenerTFO,
		DialerTFO:            c.DialerTFO,
		Resolver:             resolver,
		Observer: MultiObserver{
			LoggerObserver{Logger: logger},
			StatsObserver{Collector: collector},
		},
		Logger: logger,
	})

	services := []subnetsocks.Service{server}

	if c.API.Enabled {
		apiServer, err := c.API.NewServer(logger, collector)
		if err != nil {
			return nil, fmt.Errorf("failed to create API server: %w", err)
		}
		services = append(services, apiServer)
	}

	return &Manager{services, server, logger}, nil
}

// Manager manages the services.
type Manager struct {
	services []subnetsocks.Service
	server   *Server
	logger   *zap.Logger
}

// Server returns the managed SOCKS5 server.
func (m *Manager) Server() *Server {
	return m.server
}

// Start starts all configured services.
func (m *Manager) Start(ctx context.Context) error {
	for _, s := range m.services {
		if err := s.Start(ctx); err != nil {
			kv := s.ZapField()
			return fmt.Errorf("failed to start %s=%q: %w", kv.Key, kv.String, err)
		}
	}
	return nil
}

// Stop stops all running services.
func (m *Manager) Stop() {
	for _, s := range m.services {
		kv := s.ZapField()
		if err := s.Stop(); err != nil {
			m.logger.Warn("Failed to stop service", kv, zap.Error(err))
			continue
		}
		m.logger.Info("Stopped service", kv)
	}
}
