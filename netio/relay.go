package netio

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/subnet-socks/subnet-socks/conn"
	"go.uber.org/zap"
)

// DefaultRelayTimeout is the per-operation read and write timeout used when none is configured.
const DefaultRelayTimeout = 5 * time.Second

// EndReason tells why one direction of a relay stopped.
type EndReason uint8

const (
	// EndEOF means the source closed its sending side.
	EndEOF EndReason = iota

	// EndReset means the connection was reset or aborted by a peer.
	EndReset

	// EndTimeout means a read or write on this direction exceeded the relay timeout.
	EndTimeout

	// EndCanceled means the relay's parent context was canceled.
	EndCanceled

	// EndPeerDone means the opposite direction ended first.
	EndPeerDone

	// EndError means an unexpected I/O error.
	EndError
)

// String returns the string representation of the end reason.
func (r EndReason) String() string {
	switch r {
	case EndEOF:
		return "eof"
	case EndReset:
		return "reset"
	case EndTimeout:
		return "timeout"
	case EndCanceled:
		return "canceled"
	case EndPeerDone:
		return "peer done"
	case EndError:
		return "error"
	default:
		return "unknown"
	}
}

// Graceful returns whether the direction ended without a fault.
func (r EndReason) Graceful() bool {
	switch r {
	case EndEOF, EndCanceled, EndPeerDone:
		return true
	default:
		return false
	}
}

// DirectionResult describes one finished direction of a relay.
type DirectionResult struct {
	// Bytes is the number of bytes written to the destination.
	Bytes int64

	// Reason is why the direction stopped.
	Reason EndReason

	// Err is the I/O error that stopped the direction, if any.
	Err error
}

// RelayResult is the outcome of [Relay].
type RelayResult struct {
	// AToB is the direction from the first connection to the second.
	AToB DirectionResult

	// BToA is the direction from the second connection to the first.
	BToA DirectionResult
}

// Err returns the unexpected errors of both directions joined together.
// Graceful ends, resets and timeouts are not reported.
func (r RelayResult) Err() error {
	var errs []error
	if r.AToB.Reason == EndError {
		errs = append(errs, r.AToB.Err)
	}
	if r.BToA.Reason == EndError {
		errs = append(errs, r.BToA.Err)
	}
	return errors.Join(errs...)
}

// RelayConfig configures [Relay].
type RelayConfig struct {
	// Timeout bounds every individual read and write.
	// Zero means [DefaultRelayTimeout].
	Timeout time.Duration

	// Pool supplies relay buffers. Nil allocates a buffer per direction.
	Pool *BufferPool

	// Logger receives debug logs. Nil disables logging.
	Logger *zap.Logger
}

// errPeerDone is the cancellation cause set by the direction that ends first.
var errPeerDone = errors.New("opposite relay direction ended")

// Relay copies bytes between a and b in both directions until either
// direction ends, then stops the other one.
//
// Both directions first prepare their sockets and wait for each other,
// so no bytes move until both are ready. When a direction ends for any
// reason, both connections' deadlines are moved into the past, which
// unblocks the other direction at its pending read or write. Canceling
// ctx does the same for both.
//
// Relay returns after both directions have returned. It never closes a or b.
func Relay(ctx context.Context, a, b net.Conn, cfg RelayConfig) RelayResult {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRelayTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	relayCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stopA := conn.InterruptOnDone(relayCtx, a)
	defer stopA()
	stopB := conn.InterruptOnDone(relayCtx, b)
	defer stopB()

	var (
		ready  sync.WaitGroup
		done   sync.WaitGroup
		result RelayResult
	)
	ready.Add(2)
	done.Add(1)

	go func() {
		defer done.Done()
		result.AToB = pump(relayCtx, cancel, a, b, &ready, &cfg)
	}()
	result.BToA = pump(relayCtx, cancel, b, a, &ready, &cfg)
	done.Wait()

	return result
}

// pump copies from src to dst until the first error or cancellation.
func pump(ctx context.Context, cancel context.CancelCauseFunc, src, dst net.Conn, ready *sync.WaitGroup, cfg *RelayConfig) (r DirectionResult) {
	defer cancel(errPeerDone)

	if err := conn.SetNoDelay(dst, true); err != nil {
		cfg.Logger.Debug("Failed to set TCP_NODELAY",
			zap.Stringer("destination", dst.RemoteAddr()),
			zap.Error(err),
		)
	}
	bufp := cfg.Pool.Get(conn.ReceiveBufferSize(src))
	defer cfg.Pool.Put(bufp)
	buf := *bufp

	// Two-party rendezvous.
	ready.Done()
	ready.Wait()

	for {
		// Deadlines are refreshed before the context check: a cancellation
		// that lands after the check moves them into the past again.
		if err := src.SetReadDeadline(time.Now().Add(cfg.Timeout)); err != nil {
			return endWith(ctx, r, err)
		}
		if ctx.Err() != nil {
			r.Reason = canceledReason(ctx)
			return r
		}
		n, err := src.Read(buf)
		if n > 0 {
			if werr := dst.SetWriteDeadline(time.Now().Add(cfg.Timeout)); werr != nil {
				return endWith(ctx, r, werr)
			}
			if ctx.Err() != nil {
				r.Reason = canceledReason(ctx)
				return r
			}
			wn, werr := dst.Write(buf[:n])
			r.Bytes += int64(wn)
			if werr != nil {
				return endWith(ctx, r, werr)
			}
		}
		if err != nil {
			return endWith(ctx, r, err)
		}
	}
}

// endWith classifies err into r.
func endWith(ctx context.Context, r DirectionResult, err error) DirectionResult {
	switch {
	case err == io.EOF:
		r.Reason = EndEOF
	case ctx.Err() != nil && (conn.IsTimeout(err) || conn.IsClosed(err)):
		r.Reason = canceledReason(ctx)
	case conn.IsReset(err):
		r.Reason, r.Err = EndReset, err
	case conn.IsTimeout(err):
		r.Reason, r.Err = EndTimeout, err
	default:
		r.Reason, r.Err = EndError, err
	}
	return r
}

func canceledReason(ctx context.Context) EndReason {
	if errors.Is(context.Cause(ctx), errPeerDone) {
		return EndPeerDone
	}
	return EndCanceled
}
