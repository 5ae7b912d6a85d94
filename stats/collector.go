package stats

import (
	"sync/atomic"
)

// NumReplyCodes is the number of SOCKS5 reply codes tracked, 0x00 through 0x08.
const NumReplyCodes = 9

// Traffic stores the traffic statistics.
type Traffic struct {
	DownlinkBytes uint64 `json:"downlinkBytes"`
	UplinkBytes   uint64 `json:"uplinkBytes"`
	Sessions      uint64 `json:"sessions"`
}

// Add adds u to t.
func (t *Traffic) Add(u Traffic) {
	t.DownlinkBytes += u.DownlinkBytes
	t.UplinkBytes += u.UplinkBytes
	t.Sessions += u.Sessions
}

// Server stores the server's connection and traffic statistics.
type Server struct {
	Traffic

	// Accepted is the number of accepted client connections.
	Accepted uint64 `json:"accepted"`

	// Rejected is the number of connections closed because the handler pool was full.
	Rejected uint64 `json:"rejected"`

	// Replies counts the replies sent, indexed by reply code.
	Replies [NumReplyCodes]uint64 `json:"replies"`
}

type trafficCollector struct {
	downlinkBytes atomic.Uint64
	uplinkBytes   atomic.Uint64
	sessions      atomic.Uint64
}

func (tc *trafficCollector) collectSession(downlinkBytes, uplinkBytes uint64) {
	tc.downlinkBytes.Add(downlinkBytes)
	tc.uplinkBytes.Add(uplinkBytes)
	tc.sessions.Add(1)
}

func (tc *trafficCollector) snapshot() Traffic {
	return Traffic{
		DownlinkBytes: tc.downlinkBytes.Load(),
		UplinkBytes:   tc.uplinkBytes.Load(),
		Sessions:      tc.sessions.Load(),
	}
}

func (tc *trafficCollector) snapshotAndReset() Traffic {
	return Traffic{
		DownlinkBytes: tc.downlinkBytes.Swap(0),
		UplinkBytes:   tc.uplinkBytes.Swap(0),
		Sessions:      tc.sessions.Swap(0),
	}
}

type serverCollector struct {
	tc       trafficCollector
	accepted atomic.Uint64
	rejected atomic.Uint64
	replies  [NumReplyCodes]atomic.Uint64
}

// NewServerCollector returns a new collector for collecting server statistics.
func NewServerCollector() Collector {
	return &serverCollector{}
}

// CollectSession implements the Collector CollectSession method.
func (sc *serverCollector) CollectSession(downlinkBytes, uplinkBytes uint64) {
	sc.tc.collectSession(downlinkBytes, uplinkBytes)
}

// CollectAccepted implements the Collector CollectAccepted method.
func (sc *serverCollector) CollectAccepted() {
	sc.accepted.Add(1)
}

// CollectRejected implements the Collector CollectRejected method.
func (sc *serverCollector) CollectRejected() {
	sc.rejected.Add(1)
}

// CollectReply implements the Collector CollectReply method.
func (sc *serverCollector) CollectReply(rep byte) {
	if int(rep) < NumReplyCodes {
		sc.replies[rep].Add(1)
	}
}

// Snapshot implements the Collector Snapshot method.
func (sc *serverCollector) Snapshot() (s Server) {
	s.Traffic = sc.tc.snapshot()
	s.Accepted = sc.accepted.Load()
	s.Rejected = sc.rejected.Load()
	for i := range sc.replies {
		s.Replies[i] = sc.replies[i].Load()
	}
	return
}

// SnapshotAndReset implements the Collector SnapshotAndReset method.
func (sc *serverCollector) SnapshotAndReset() (s Server) {
	s.Traffic = sc.tc.snapshotAndReset()
	s.Accepted = sc.accepted.Swap(0)
	s.Rejected = sc.rejected.Swap(0)
	for i := range sc.replies {
		s.Replies[i] = sc.replies[i].Swap(0)
	}
	return
}

// Collector collects server statistics.
type Collector interface {
	// CollectSession collects a finished relay session's traffic statistics.
	CollectSession(downlinkBytes, uplinkBytes uint64)

	// CollectAccepted counts an accepted client connection.
	CollectAccepted()

	// CollectRejected counts a connection refused by the handler pool.
	CollectRejected()

	// CollectReply counts a reply sent to a client.
	CollectReply(rep byte)

	// Snapshot returns the server's statistics.
	Snapshot() Server

	// SnapshotAndReset returns the server's statistics and resets the statistics.
	SnapshotAndReset() Server
}

// NoopCollector is a no-op collector.
// Its collect methods do nothing and its snapshot method returns empty statistics.
type NoopCollector struct{}

// CollectSession implements the Collector CollectSession method.
func (NoopCollector) CollectSession(downlinkBytes, uplinkBytes uint64) {}

// CollectAccepted implements the Collector CollectAccepted method.
func (NoopCollector) CollectAccepted() {}

// CollectRejected implements the Collector CollectRejected method.
func (NoopCollector) CollectRejected() {}

// CollectReply implements the Collector CollectReply method.
func (NoopCollector) CollectReply(rep byte) {}

// Snapshot implements the Collector Snapshot method.
func (NoopCollector) Snapshot() Server {
	return Server{}
}

// SnapshotAndReset implements the Collector SnapshotAndReset method.
func (NoopCollector) SnapshotAndReset() Server {
	return Server{}
}

// Config stores configuration for the stats collector.
type Config struct {
	Enabled bool `json:"enabled"`
}

// Collector returns a new stats collector from the config.
func (c Config) Collector() Collector {
	if c.Enabled {
		return NewServerCollector()
	}
	return NoopCollector{}
}
