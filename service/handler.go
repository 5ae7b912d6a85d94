package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/subnet-socks/subnet-socks/conn"
	"github.com/subnet-socks/subnet-socks/netio"
	"github.com/subnet-socks/subnet-socks/socks5"
	"go.uber.org/zap"
)

// session tracks one client connection through its states.
type session struct {
	id         uint64
	state      ConnState
	clientConn net.Conn
	clientAddr netip.AddrPort
	targetAddr conn.Addr
}

func (ss *session) event(kind EventKind) Event {
	return Event{
		ConnID:     ss.id,
		Kind:       kind,
		State:      ss.state,
		ClientAddr: ss.clientAddr,
		TargetAddr: ss.targetAddr,
	}
}

// handleConn serves one accepted client connection and closes it.
func (s *Server) handleConn(ctx context.Context, id uint64, clientConn net.Conn) {
	defer clientConn.Close()

	stop := conn.InterruptOnDone(ctx, clientConn)
	defer stop()

	ss := session{
		id:         id,
		state:      StateNegotiating,
		clientConn: clientConn,
		clientAddr: conn.RemoteAddrPort(clientConn),
	}

	// Negotiate.
	clientConn.SetDeadline(time.Now().Add(s.handshakeTimeout))
	if err := socks5.ServerNegotiate(clientConn); err != nil {
		if ctx.Err() != nil {
			return
		}
		e := ss.event(EventHandshakeFailed)
		e.Err = err
		s.observer.Observe(e)
		return
	}

	// Read request.
	ss.state = StateAwaitingCommand
	clientConn.SetDeadline(time.Now().Add(s.handshakeTimeout))
	req, err := socks5.ReadRequest(clientConn)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		rep, ok := socks5.ReplyFromRequestError(err)
		if ok && !req.Addr.IsValid() {
			discardPending(clientConn)
		}
		s.fail(&ss, rep, ok, err)
		return
	}
	ss.targetAddr = req.Addr

	// Resolve, check, and dial.
	ss.state = StateConnecting
	targetConn, rep, err := s.connect(ctx, &ss)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}
		s.fail(&ss, rep, true, err)
		return
	}
	defer targetConn.Close()

	boundAddr := conn.LocalAddrPort(targetConn)
	if err = socks5.WriteReply(clientConn, socks5.ReplySucceeded, boundAddr.Port()); err != nil {
		e := ss.event(EventRequestFailed)
		e.Err = fmt.Errorf("failed to write reply: %w", err)
		s.observer.Observe(e)
		return
	}
	clientConn.SetDeadline(time.Time{})

	// Relay.
	ss.state = StateRelaying
	e := ss.event(EventConnected)
	e.BoundAddr = boundAddr
	e.Reply = socks5.ReplySucceeded
	e.Replied = true
	s.observer.Observe(e)

	res := netio.Relay(ctx, clientConn, targetConn, netio.RelayConfig{
		Timeout: s.relayTimeout,
		Pool:    &s.bufPool,
		Logger:  s.logger,
	})

	ss.state = StateClosed
	e = ss.event(EventClosed)
	e.BoundAddr = boundAddr
	e.BytesUp = res.AToB.Bytes
	e.BytesDown = res.BToA.Bytes
	e.UpEnd = res.AToB.Reason
	e.DownEnd = res.BToA.Reason
	e.Err = res.Err()
	s.observer.Observe(e)
}

// connect resolves the session's target, applies the restriction policy,
// and dials the target. On failure it returns the reply code to send.
func (s *Server) connect(ctx context.Context, ss *session) (net.Conn, byte, error) {
	targetAddrPort, err := s.resolve(ctx, ss.targetAddr)
	if err != nil {
		return nil, socks5.ReplyFromDialResult(conn.DialResultFromError(err)), err
	}

	if rep, err := s.checkTarget(targetAddrPort.Addr()); err != nil {
		return nil, rep, err
	}

	if ce := s.logger.Check(zap.DebugLevel, "Dialing target"); ce != nil {
		ce.Write(
			zap.Uint64("connID", ss.id),
			zap.Stringer("clientAddress", ss.clientAddr),
			zap.Stringer("targetAddress", ss.targetAddr),
			zap.Stringer("resolvedAddress", targetAddrPort),
		)
	}

	targetConn, err := s.dialer.DialContext(ctx, targetAddrPort)
	if err != nil {
		dr := conn.DialResultFromError(err)
		return nil, socks5.ReplyFromDialResult(dr), fmt.Errorf("failed to dial %s: %w", targetAddrPort, err)
	}
	return targetConn, socks5.ReplySucceeded, nil
}

// resolve returns the IP address and port of the target.
// Domain names are resolved to their first A record.
func (s *Server) resolve(ctx context.Context, addr conn.Addr) (netip.AddrPort, error) {
	if addr.IsIP() {
		return addr.IPPort(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.dialTimeout)
	defer cancel()

	ip, err := s.resolver.LookupA(ctx, addr.Domain())
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("failed to resolve %q: %w", addr.Domain(), err)
	}
	return netip.AddrPortFrom(ip, addr.Port()), nil
}

// checkTarget applies the restriction policy to a resolved target address.
// IPv6 targets cannot be evaluated and are refused with address type not supported.
func (s *Server) checkTarget(ip netip.Addr) (byte, error) {
	if !s.restrict {
		return socks5.ReplySucceeded, nil
	}
	ok, err := s.prefix.ContainsChecked(ip)
	if err != nil {
		return socks5.ReplyAddressTypeNotSupported, err
	}
	if !ok {
		return socks5.ReplyConnectionNotAllowedByRuleset, fmt.Errorf("%w: %s not in %s", ErrTargetNotAllowed, ip, s.prefix)
	}
	return socks5.ReplySucceeded, nil
}

// fail sends the reply, if any, and reports the failed request.
func (s *Server) fail(ss *session, rep byte, reply bool, err error) {
	e := ss.event(EventRequestFailed)
	e.Err = err
	if reply {
		if werr := socks5.WriteReply(ss.clientConn, rep, 0); werr != nil {
			e.Err = errors.Join(err, fmt.Errorf("failed to write reply: %w", werr))
		} else {
			e.Reply = rep
			e.Replied = true
		}
	}
	s.observer.Observe(e)
}

// pendingReadTimeout bounds the read in [discardPending].
const pendingReadTimeout = 50 * time.Millisecond

// discardPending reads and drops the rest of a rejected request whose length
// is unknown, so that closing c after the reply does not reset the connection.
func discardPending(c net.Conn) {
	var b [socks5.MaxAddrLen]byte
	c.SetReadDeadline(time.Now().Add(pendingReadTimeout))
	c.Read(b[:])
}
