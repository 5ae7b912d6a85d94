package v1

import (
	"github.com/gofiber/fiber/v2"
	subnetsocks "github.com/subnet-socks/subnet-socks"
	"github.com/subnet-socks/subnet-socks/stats"
)

// ServerInfo contains information about the API server.
type ServerInfo struct {
	Name       string `json:"server"`
	Version    string `json:"version"`
	APIVersion string `json:"apiVersion"`
}

var serverInfo = ServerInfo{
	Name:       "subnet-socks",
	Version:    subnetsocks.Version,
	APIVersion: "v1",
}

// GetServerInfo returns information about the API server.
func GetServerInfo(c *fiber.Ctx) error {
	return c.JSON(&serverInfo)
}

// StandardError is the standard error response.
type StandardError struct {
	Message string `json:"error"`
}

// StatsHandler serves the SOCKS5 server's statistics.
type StatsHandler struct {
	sc stats.Collector
}

// GetStats returns server statistics.
// With ?clear=true, the counters are reset after the snapshot is taken.
func (h StatsHandler) GetStats(c *fiber.Ctx) error {
	if c.QueryBool("clear", false) {
		return c.JSON(h.sc.SnapshotAndReset())
	}
	return c.JSON(h.sc.Snapshot())
}

// Routes sets up routes for the /v1 endpoint.
func Routes(router fiber.Router, sc stats.Collector) {
	v1 := router.Group("/v1")
	v1.Get("/", GetServerInfo)

	h := StatsHandler{sc: sc}
	v1.Get("/stats", h.GetStats)
}
