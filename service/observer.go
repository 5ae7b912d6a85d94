package service

import (
	"net/netip"

	"github.com/subnet-socks/subnet-socks/conn"
	"github.com/subnet-socks/subnet-socks/netio"
	"github.com/subnet-socks/subnet-socks/socks5"
	"github.com/subnet-socks/subnet-socks/stats"
	"go.uber.org/zap"
)

// EventKind identifies what happened to a connection.
type EventKind uint8

const (
	// EventAccepted is reported when a client connection is accepted.
	EventAccepted EventKind = iota

	// EventRejected is reported when the handler pool is full and the connection is dropped.
	EventRejected

	// EventHandshakeFailed is reported when method negotiation fails. No reply was sent.
	EventHandshakeFailed

	// EventRequestFailed is reported when a request is refused or cannot be served.
	// Reply holds the reply code if one was sent.
	EventRequestFailed

	// EventConnected is reported once the target is dialed and the success reply is sent.
	EventConnected

	// EventClosed is reported when a relay finishes.
	EventClosed
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventAccepted:
		return "accepted"
	case EventRejected:
		return "rejected"
	case EventHandshakeFailed:
		return "handshake failed"
	case EventRequestFailed:
		return "request failed"
	case EventConnected:
		return "connected"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a structured record of one step in a connection's life.
type Event struct {
	ConnID     uint64
	Kind       EventKind
	State      ConnState
	ClientAddr netip.AddrPort
	TargetAddr conn.Addr
	BoundAddr  netip.AddrPort

	// Reply is the reply code sent to the client. Valid if Replied is true.
	Reply   byte
	Replied bool

	BytesUp   int64
	BytesDown int64
	UpEnd     netio.EndReason
	DownEnd   netio.EndReason

	Err error
}

// Observer receives connection events.
// Observe is called from many goroutines at once and must not block for long.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to [Observer].
type ObserverFunc func(Event)

// Observe implements [Observer].
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

// Observe implements [Observer].
func (m MultiObserver) Observe(e Event) {
	for _, o := range m {
		o.Observe(e)
	}
}

// StatsObserver feeds events into a stats collector.
type StatsObserver struct {
	Collector stats.Collector
}

// Observe implements [Observer].
func (o StatsObserver) Observe(e Event) {
	if e.Replied {
		o.Collector.CollectReply(e.Reply)
	}
	switch e.Kind {
	case EventAccepted:
		o.Collector.CollectAccepted()
	case EventRejected:
		o.Collector.CollectRejected()
	case EventClosed:
		o.Collector.CollectSession(uint64(e.BytesDown), uint64(e.BytesUp))
	}
}

// LoggerObserver writes events to a zap logger.
type LoggerObserver struct {
	Logger *zap.Logger
}

// Observe implements [Observer].
func (o LoggerObserver) Observe(e Event) {
	switch e.Kind {
	case EventAccepted:
		if ce := o.Logger.Check(zap.DebugLevel, "Accepted client connection"); ce != nil {
			ce.Write(
				zap.Uint64("connID", e.ConnID),
				zap.Stringer("clientAddress", e.ClientAddr),
			)
		}

	case EventRejected:
		o.Logger.Warn("Too many connections, dropping client connection",
			zap.Uint64("connID", e.ConnID),
			zap.Stringer("clientAddress", e.ClientAddr),
		)

	case EventHandshakeFailed:
		o.Logger.Warn("Failed to complete handshake with client",
			zap.Uint64("connID", e.ConnID),
			zap.Stringer("clientAddress", e.ClientAddr),
			zap.Stringer("state", e.State),
			zap.Error(e.Err),
		)

	case EventRequestFailed:
		fields := []zap.Field{
			zap.Uint64("connID", e.ConnID),
			zap.Stringer("clientAddress", e.ClientAddr),
			zap.Stringer("state", e.State),
		}
		if e.TargetAddr.IsValid() {
			fields = append(fields, zap.Stringer("targetAddress", e.TargetAddr))
		}
		if e.Replied {
			fields = append(fields, zap.String("reply", socks5.ReplyError(e.Reply).Error()))
		}
		fields = append(fields, zap.Error(e.Err))
		o.Logger.Warn("Failed to serve client request", fields...)

	case EventConnected:
		o.Logger.Info("Two-way relay started",
			zap.Uint64("connID", e.ConnID),
			zap.Stringer("clientAddress", e.ClientAddr),
			zap.Stringer("targetAddress", e.TargetAddr),
			zap.Stringer("boundAddress", e.BoundAddr),
		)

	case EventClosed:
		fields := []zap.Field{
			zap.Uint64("connID", e.ConnID),
			zap.Stringer("clientAddress", e.ClientAddr),
			zap.Stringer("targetAddress", e.TargetAddr),
			zap.Int64("nl2r", e.BytesUp),
			zap.Int64("nr2l", e.BytesDown),
			zap.Stringer("l2rEnd", e.UpEnd),
			zap.Stringer("r2lEnd", e.DownEnd),
		}
		if e.Err != nil {
			o.Logger.Warn("Two-way relay failed", append(fields, zap.Error(e.Err))...)
			return
		}
		o.Logger.Info("Two-way relay completed", fields...)
	}
}
