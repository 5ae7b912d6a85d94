package service

import (
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// handlerPool runs connection handlers with an optional concurrency cap.
//
// Handlers are never queued. When the pool is full, TryGo reports false
// and the caller drops the connection.
type handlerPool struct {
	group  errgroup.Group
	errCh  chan error
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

// newHandlerPool returns a pool that runs at most limit handlers at once.
// A limit of 0 or less means no limit.
func newHandlerPool(limit int, logger *zap.Logger) *handlerPool {
	p := &handlerPool{
		errCh:  make(chan error, 16),
		done:   make(chan struct{}),
		logger: logger,
	}
	if limit <= 0 {
		limit = -1
	}
	p.group.SetLimit(limit)

	go func() {
		defer close(p.done)
		for err := range p.errCh {
			p.logger.Error("Connection handler panicked", zap.Error(err))
		}
	}()

	return p
}

// TryGo starts f in a new goroutine if the pool has room.
func (p *handlerPool) TryGo(f func()) bool {
	return p.group.TryGo(func() error {
		defer func() {
			if r := recover(); r != nil {
				p.errCh <- fmt.Errorf("%v\n%s", r, debug.Stack())
			}
		}()
		f()
		return nil
	})
}

// Wait blocks until all running handlers have returned.
// TryGo must not be called after Wait.
func (p *handlerPool) Wait() {
	_ = p.group.Wait()
	p.once.Do(func() { close(p.errCh) })
	<-p.done
}
