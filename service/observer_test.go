package service

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/subnet-socks/subnet-socks/conn"
	"github.com/subnet-socks/subnet-socks/netio"
	"github.com/subnet-socks/subnet-socks/socks5"
	"github.com/subnet-socks/subnet-socks/stats"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	zapobserver "go.uber.org/zap/zaptest/observer"
)

var (
	testClientAddr = netip.MustParseAddrPort("192.0.2.1:50000")
	testTargetAddr = conn.AddrFromIPPort(netip.MustParseAddrPort("198.51.100.7:443"))
)

func TestStatsObserver(t *testing.T) {
	sc := stats.NewServerCollector()
	o := StatsObserver{Collector: sc}

	for _, e := range []Event{
		{Kind: EventAccepted},
		{Kind: EventAccepted},
		{Kind: EventAccepted},
		{Kind: EventRejected},
		{Kind: EventHandshakeFailed},
		{Kind: EventRequestFailed, Reply: socks5.ReplyConnectionNotAllowedByRuleset, Replied: true},
		{Kind: EventConnected, Reply: socks5.ReplySucceeded, Replied: true},
		{Kind: EventClosed, BytesUp: 100, BytesDown: 1000},
	} {
		o.Observe(e)
	}

	s := sc.Snapshot()
	if s.Accepted != 3 || s.Rejected != 1 {
		t.Errorf("accepted/rejected = %d/%d, want 3/1", s.Accepted, s.Rejected)
	}
	if s.Sessions != 1 || s.UplinkBytes != 100 || s.DownlinkBytes != 1000 {
		t.Errorf("unexpected traffic: %+v", s.Traffic)
	}
	want := [stats.NumReplyCodes]uint64{
		socks5.ReplySucceeded:                     1,
		socks5.ReplyConnectionNotAllowedByRuleset: 1,
	}
	if s.Replies != want {
		t.Errorf("replies = %v, want %v", s.Replies, want)
	}
}

func TestMultiObserver(t *testing.T) {
	var a, b []EventKind
	m := MultiObserver{
		ObserverFunc(func(e Event) { a = append(a, e.Kind) }),
		ObserverFunc(func(e Event) { b = append(b, e.Kind) }),
	}
	m.Observe(Event{Kind: EventAccepted})
	m.Observe(Event{Kind: EventClosed})

	if len(a) != 2 || len(b) != 2 || a[1] != EventClosed || b[0] != EventAccepted {
		t.Errorf("observers saw %v and %v", a, b)
	}
}

func TestLoggerObserver(t *testing.T) {
	core, logs := zapobserver.New(zap.DebugLevel)
	o := LoggerObserver{Logger: zap.New(core)}

	for _, c := range []struct {
		event   Event
		level   zapcore.Level
		message string
	}{
		{
			event:   Event{ConnID: 1, Kind: EventAccepted, ClientAddr: testClientAddr},
			level:   zap.DebugLevel,
			message: "Accepted client connection",
		},
		{
			event:   Event{ConnID: 2, Kind: EventRejected, ClientAddr: testClientAddr},
			level:   zap.WarnLevel,
			message: "Too many connections, dropping client connection",
		},
		{
			event:   Event{ConnID: 3, Kind: EventHandshakeFailed, State: StateNegotiating, Err: socks5.ErrNoAcceptableAuthMethod},
			level:   zap.WarnLevel,
			message: "Failed to complete handshake with client",
		},
		{
			event: Event{
				ConnID:     4,
				Kind:       EventRequestFailed,
				State:      StateConnecting,
				TargetAddr: testTargetAddr,
				Reply:      socks5.ReplyHostUnreachable,
				Replied:    true,
				Err:        conn.ErrNoARecord,
			},
			level:   zap.WarnLevel,
			message: "Failed to serve client request",
		},
		{
			event:   Event{ConnID: 5, Kind: EventConnected, TargetAddr: testTargetAddr},
			level:   zap.InfoLevel,
			message: "Two-way relay started",
		},
		{
			event: Event{
				ConnID:     6,
				Kind:       EventClosed,
				TargetAddr: testTargetAddr,
				BytesUp:    10,
				BytesDown:  20,
				UpEnd:      netio.EndEOF,
				DownEnd:    netio.EndPeerDone,
			},
			level:   zap.InfoLevel,
			message: "Two-way relay completed",
		},
		{
			event: Event{
				ConnID:  7,
				Kind:    EventClosed,
				UpEnd:   netio.EndError,
				DownEnd: netio.EndPeerDone,
				Err:     errors.New("boom"),
			},
			level:   zap.WarnLevel,
			message: "Two-way relay failed",
		},
	} {
		o.Observe(c.event)

		entries := logs.TakeAll()
		if len(entries) != 1 {
			t.Fatalf("%s: got %d log entries, want 1", c.event.Kind, len(entries))
		}
		entry := entries[0]
		if entry.Message != c.message {
			t.Errorf("%s: message = %q, want %q", c.event.Kind, entry.Message, c.message)
		}
		if entry.Level != c.level {
			t.Errorf("%s: level = %s, want %s", c.event.Kind, entry.Level, c.level)
		}
		if id, ok := entry.ContextMap()["connID"]; !ok || id != c.event.ConnID {
			t.Errorf("%s: connID field = %v, want %d", c.event.Kind, id, c.event.ConnID)
		}
	}
}

func TestEventKindString(t *testing.T) {
	for _, c := range []struct {
		kind EventKind
		want string
	}{
		{EventAccepted, "accepted"},
		{EventRejected, "rejected"},
		{EventHandshakeFailed, "handshake failed"},
		{EventRequestFailed, "request failed"},
		{EventConnected, "connected"},
		{EventClosed, "closed"},
		{EventKind(100), "unknown"},
	} {
		if got := c.kind.String(); got != c.want {
			t.Errorf("EventKind(%d).String() = %q, want %q", c.kind, got, c.want)
		}
	}
}
