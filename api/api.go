package api

import (
	"context"
	"errors"
	"path"

	"github.com/database64128/tfo-go/v2"
	"github.com/gofiber/contrib/fiberzap"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/pprof"
	v1 "github.com/subnet-socks/subnet-socks/api/v1"
	"github.com/subnet-socks/subnet-socks/conn"
	"github.com/subnet-socks/subnet-socks/stats"
	"go.uber.org/zap"
)

// Config stores the configuration for the RESTful API.
type Config struct {
	// Enabled controls whether the API server is enabled.
	Enabled bool `json:"enabled"`

	// Listen is the TCP address the API server listens on.
	Listen string `json:"listen"`

	// DebugPprof enables pprof endpoints for debugging and profiling.
	DebugPprof bool `json:"debugPprof"`

	// EnableTrustedProxyCheck enables trusted proxy checks.
	EnableTrustedProxyCheck bool `json:"enableTrustedProxyCheck"`

	// TrustedProxies is the list of trusted proxies.
	// This only takes effect if EnableTrustedProxyCheck is true.
	TrustedProxies []string `json:"trustedProxies,omitempty"`

	// ProxyHeader is the header used to determine the client's IP address.
	// If empty, the remote peer's address is used.
	ProxyHeader string `json:"proxyHeader,omitempty"`

	// SecretPath adds a secret path prefix to API and pprof endpoints.
	// If empty, no secret path is added.
	SecretPath string `json:"secretPath,omitempty"`

	// FastOpen enables TCP Fast Open on the listener.
	FastOpen bool `json:"fastOpen"`
}

// NewServer returns a new API server from the config.
func (c *Config) NewServer(logger *zap.Logger, sc stats.Collector) (*Server, error) {
	if c.Listen == "" {
		return nil, errors.New("API listen address is empty")
	}

	app := fiber.New(fiber.Config{
		ProxyHeader:             c.ProxyHeader,
		DisableStartupMessage:   true,
		Network:                 fiber.NetworkTCP,
		EnableTrustedProxyCheck: c.EnableTrustedProxyCheck,
		TrustedProxies:          c.TrustedProxies,
	})

	app.Use(fiberzap.New(fiberzap.Config{
		Logger: logger,
		Fields: []string{"latency", "status", "method", "url", "ip"},
	}))

	basePath := joinPatternPath("/", c.SecretPath)

	if c.DebugPprof {
		prefix := basePath
		if prefix == "/" {
			prefix = ""
		}
		app.Use(pprof.New(pprof.Config{Prefix: prefix}))
	}

	var router fiber.Router = app
	if basePath != "/" {
		router = app.Group(basePath)
	}
	v1.Routes(router, sc)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(&v1.StandardError{Message: "not found"})
	})

	return &Server{
		logger:       logger,
		app:          app,
		listenConfig: conn.NewListenConfig(c.FastOpen),
		listen:       c.Listen,
	}, nil
}

// joinPatternPath joins path elements into a route path.
// A trailing slash on the last element is kept.
func joinPatternPath(elem ...string) string {
	p := path.Join(elem...)
	if p == "" {
		return ""
	}
	if last := elem[len(elem)-1]; last != "" && last[len(last)-1] == '/' {
		if p[len(p)-1] != '/' {
			return p + "/"
		}
	}
	return p
}

// Server is the RESTful API server.
//
// Server implements [subnetsocks.Service].
type Server struct {
	logger       *zap.Logger
	app          *fiber.App
	listenConfig tfo.ListenConfig
	listen       string
}

// ZapField implements [subnetsocks.Service.ZapField].
func (s *Server) ZapField() zap.Field {
	return zap.String("service", "API server")
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the API server.
func (s *Server) Start(ctx context.Context) error {
	ln, err := s.listenConfig.Listen(ctx, "tcp", s.listen)
	if err != nil {
		return err
	}

	go func() {
		if err := s.app.Listener(ln); err != nil {
			s.logger.Error("Failed to serve API", zap.Error(err))
		}
	}()

	s.logger.Info("Started API server", zap.Stringer("listenAddress", ln.Addr()))
	return nil
}

// Stop stops the API server.
func (s *Server) Stop() error {
	return s.app.Shutdown()
}
