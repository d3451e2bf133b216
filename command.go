package memcache

import (
	"context"
	"sync"

	"github.com/pipelined/memcache/meta"
)

// command is a pending-FIFO entry: one in-flight request and the
// completion handle its caller is waiting on.
type command struct {
	req *meta.Request

	once  sync.Once
	resp  *meta.Response
	err   error
	ready chan struct{}
}

func newCommand(req *meta.Request) *command {
	return &command{
		req:   req,
		ready: make(chan struct{}),
	}
}

// complete records the outcome and releases the waiter. It is idempotent:
// the run loop, the terminate path and a racing sender may all try to
// complete the same command; the first outcome wins.
func (c *command) complete(resp *meta.Response, err error) {
	c.once.Do(func() {
		c.resp = resp
		c.err = err
		close(c.ready)
	})
}

// wait blocks until the command completes or ctx is done. A caller that
// gives up does not retract the request: it completes on the wire and the
// unobserved response is dropped.
func (c *command) wait(ctx context.Context) (*meta.Response, error) {
	select {
	case <-c.ready:
		return c.resp, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
