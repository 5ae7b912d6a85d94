package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/database64128/tfo-go/v2"
	"github.com/subnet-socks/subnet-socks/conn"
	"github.com/subnet-socks/subnet-socks/netio"
	"github.com/subnet-socks/subnet-socks/subnet"
	"go.uber.org/zap"
)

var (
	// ErrNoSubnet is returned by [Server.Start] when the restriction policy is
	// enabled, no subnet is configured, and no interface owns the listen address.
	ErrNoSubnet = errors.New("no interface subnet found for listen address")

	// ErrTargetNotAllowed is reported when a target is outside the allowed subnet.
	ErrTargetNotAllowed = errors.New("target address is outside the allowed subnet")

	errServerStarted = errors.New("server already started")
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// ServerConfig holds everything a [Server] needs at construction time.
type ServerConfig struct {
	// Listen is the TCP address to listen on.
	Listen string

	// RestrictToSameSubnet enables the same-subnet restriction policy.
	RestrictToSameSubnet bool

	// Subnet, if set, is used by the restriction policy instead of the
	// subnet of the interface that owns the listen address.
	Subnet *subnet.Prefix

	HandshakeTimeout time.Duration
	RelayTimeout     time.Duration
	DialTimeout      time.Duration

	// MaxConnections caps concurrently handled connections. 0 means unbounded.
	MaxConnections int

	ListenerTFO bool
	DialerTFO   bool

	// Resolver resolves domain targets. Nil means [conn.SystemResolver].
	Resolver conn.Resolver

	// Interfaces supplies local interface addresses for the subnet lookup.
	// Nil means [subnet.SystemInterfaces].
	Interfaces subnet.InterfaceSource

	// Observer receives connection events. Nil means a [LoggerObserver] on Logger.
	Observer Observer

	Logger *zap.Logger
}

// Server is a SOCKS5 CONNECT proxy server.
//
// Server implements [subnetsocks.Service].
type Server struct {
	listenAddress    string
	listenConfig     tfo.ListenConfig
	restrict         bool
	subnet           *subnet.Prefix
	handshakeTimeout time.Duration
	relayTimeout     time.Duration
	dialTimeout      time.Duration
	maxConnections   int
	resolver         conn.Resolver
	dialer           *conn.Dialer
	interfaces       subnet.InterfaceSource
	observer         Observer
	logger           *zap.Logger
	bufPool          netio.BufferPool

	connID atomic.Uint64

	mu       sync.Mutex
	started  bool
	listener net.Listener
	prefix   subnet.Prefix
	cancel   context.CancelFunc
	pool     *handlerPool
	acceptWg sync.WaitGroup
}

// NewServer returns a new server. It does not listen until [Server.Start] is called.
func NewServer(cfg ServerConfig) *Server {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.RelayTimeout <= 0 {
		cfg.RelayTimeout = DefaultRelayTimeout
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = conn.SystemResolver{}
	}
	if cfg.Interfaces == nil {
		cfg.Interfaces = subnet.SystemInterfaces{}
	}
	if cfg.Observer == nil {
		cfg.Observer = LoggerObserver{Logger: cfg.Logger}
	}

	return &Server{
		listenAddress:    cfg.Listen,
		listenConfig:     conn.NewListenConfig(cfg.ListenerTFO),
		restrict:         cfg.RestrictToSameSubnet,
		subnet:           cfg.Subnet,
		handshakeTimeout: cfg.HandshakeTimeout,
		relayTimeout:     cfg.RelayTimeout,
		dialTimeout:      cfg.DialTimeout,
		maxConnections:   cfg.MaxConnections,
		resolver:         cfg.Resolver,
		dialer:           conn.NewDialer(cfg.DialerTFO, cfg.DialTimeout),
		interfaces:       cfg.Interfaces,
		observer:         cfg.Observer,
		logger:           cfg.Logger,
	}
}

// ZapField implements [subnetsocks.Service.ZapField].
func (s *Server) ZapField() zap.Field {
	return zap.String("server", s.listenAddress)
}

// Start listens on the configured address and starts accepting connections
// in the background. Canceling ctx has the same effect as [Server.Shutdown].
//
// With the restriction policy on, Start fails with [ErrNoSubnet] if no
// subnet is configured and the listen address belongs to no interface.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errServerStarted
	}

	ln, err := s.listenConfig.Listen(ctx, "tcp", s.listenAddress)
	if err != nil {
		return err
	}
	listenAddrPort := conn.AddrPortOf(ln.Addr())

	if s.restrict {
		prefix, err := s.resolvePrefix(listenAddrPort.Addr())
		if err != nil {
			ln.Close()
			return err
		}
		s.prefix = prefix
	}

	ctx, cancel := context.WithCancel(ctx)
	context.AfterFunc(ctx, func() {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("Failed to close listener", s.ZapField(), zap.Error(err))
		}
	})

	s.started = true
	s.listener = ln
	s.cancel = cancel
	s.pool = newHandlerPool(s.maxConnections, s.logger)

	s.acceptWg.Add(1)
	go func() {
		defer s.acceptWg.Done()
		s.acceptLoop(ctx, ln)
	}()

	fields := []zap.Field{
		s.ZapField(),
		zap.Stringer("listenAddress", listenAddrPort),
		zap.Bool("restrictToSameSubnet", s.restrict),
	}
	if s.restrict {
		fields = append(fields, zap.Stringer("subnet", s.prefix))
	}
	s.logger.Info("Started SOCKS5 server", fields...)
	return nil
}

// resolvePrefix returns the subnet enforced by the restriction policy.
func (s *Server) resolvePrefix(listenAddr netip.Addr) (subnet.Prefix, error) {
	if s.subnet != nil {
		return *s.subnet, nil
	}

	prefix, ifaceName, ok, err := subnet.Lookup(s.interfaces, listenAddr)
	if err != nil {
		return subnet.Prefix{}, fmt.Errorf("failed to look up interface subnet: %w", err)
	}
	if !ok {
		return subnet.Prefix{}, fmt.Errorf("%w: %s", ErrNoSubnet, listenAddr)
	}

	s.logger.Info("Found interface subnet for listen address",
		s.ZapField(),
		zap.String("interface", ifaceName),
		zap.Stringer("listenAddress", listenAddr),
		zap.Stringer("subnet", prefix),
		zap.Stringer("lastAddress", prefix.LastAddr()),
	)
	return prefix, nil
}

// acceptLoop accepts connections until the listener is closed.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	var backoff time.Duration

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}

			if backoff == 0 {
				backoff = minAcceptBackoff
			} else {
				backoff = min(2*backoff, maxAcceptBackoff)
			}
			s.logger.Warn("Failed to accept TCP connection",
				s.ZapField(),
				zap.Duration("retryIn", backoff),
				zap.Error(err),
			)

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		id := s.connID.Add(1)
		clientAddr := conn.RemoteAddrPort(c)

		if err = conn.SetNoDelay(c, true); err != nil {
			s.logger.Debug("Failed to set TCP_NODELAY on client connection",
				s.ZapField(),
				zap.Uint64("connID", id),
				zap.Error(err),
			)
		}

		s.observer.Observe(Event{
			ConnID:     id,
			Kind:       EventAccepted,
			State:      StateAccepted,
			ClientAddr: clientAddr,
		})

		if !s.pool.TryGo(func() { s.handleConn(ctx, id, c) }) {
			c.Close()
			s.observer.Observe(Event{
				ConnID:     id,
				Kind:       EventRejected,
				State:      StateClosed,
				ClientAddr: clientAddr,
			})
		}
	}
}

// Addr returns the listener's address, or nil if the server has not started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Prefix returns the subnet enforced by the restriction policy.
// ok is false if the policy is off or the server has not started.
func (s *Server) Prefix() (prefix subnet.Prefix, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefix, s.started && s.restrict
}

// Shutdown stops accepting connections and interrupts every in-flight
// read, write, and dial. It does not wait for handlers to return.
func (s *Server) Shutdown() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Wait blocks until the accept loop and all connection handlers have returned.
func (s *Server) Wait() {
	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()
	if pool == nil {
		return
	}
	s.acceptWg.Wait()
	pool.Wait()
}

// Stop implements [subnetsocks.Service.Stop].
// It shuts the server down and waits for all handlers to return.
func (s *Server) Stop() error {
	s.Shutdown()
	s.Wait()
	return nil
}
