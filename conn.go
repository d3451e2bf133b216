package memcache

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pipelined/memcache/internal/bufpool"
	"github.com/pipelined/memcache/meta"
)

// DefaultQueueSize is the request queue capacity used when ConnConfig
// leaves QueueSize at zero. Producers block once this many requests are
// waiting for the engine.
const DefaultQueueSize = 256

const (
	stateInitial int32 = iota
	stateRunning
	stateTerminated
)

// ConnConfig tunes a single connection.
type ConnConfig struct {
	// QueueSize bounds the inbound request queue. Default DefaultQueueSize.
	QueueSize int

	// MaxValueSize caps ms data blocks. Default meta.MaxValueSize (1 MiB).
	MaxValueSize int

	// Logger receives lifecycle events. Default zap.NewNop().
	Logger *zap.Logger
}

// Conn is a single pipelined connection to a memcached server.
//
// One goroutine (Run) owns the transport, the outbound buffer, the
// inbound parse buffer and the pending FIFO. Producers submit requests
// through a bounded queue with Do and block until the paired response
// arrives. Responses are matched to requests purely by arrival order:
// memcached answers a TCP stream strictly in send order, so the FIFO
// head always belongs to the oldest unanswered request.
//
// A Conn has no reconnect logic. Once Run returns the connection is
// dead: every waiting and future caller receives a *ShutdownError.
type Conn struct {
	transport    Transport
	logger       *zap.Logger
	maxValueSize int

	requests chan *command
	done     chan struct{}

	state atomic.Int32

	mu      sync.Mutex
	termErr error
}

// NewConn creates a connection engine over the given transport. The
// engine does nothing until Run is called.
func NewConn(transport Transport, cfg ConnConfig) *Conn {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.MaxValueSize <= 0 {
		cfg.MaxValueSize = meta.MaxValueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Conn{
		transport:    transport,
		logger:       cfg.Logger,
		maxValueSize: cfg.MaxValueSize,
		requests:     make(chan *command, cfg.QueueSize),
		done:         make(chan struct{}),
	}
}

// Done is closed when the connection terminates.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that terminated the connection, or nil while it
// is still alive.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.termErr
}

func (c *Conn) shutdownError() *ShutdownError {
	return &ShutdownError{Cause: c.Err()}
}

// Do submits a request and blocks until its response arrives, the
// connection terminates, or ctx is done.
//
// Validation failures (*meta.InvalidKeyError, *meta.ValueTooLargeError)
// are returned synchronously; nothing reaches the wire. A response
// carrying a server error line is returned with a nil error: inspect
// Response.Error.
//
// Cancelling ctx abandons the wait only. The request is not retracted
// from the wire and its eventual response is consumed and dropped by the
// engine, keeping the stream aligned.
func (c *Conn) Do(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	cmd := newCommand(req)
	if err := c.send(ctx, cmd); err != nil {
		return nil, err
	}
	return cmd.wait(ctx)
}

func (c *Conn) validate(req *meta.Request) error {
	if err := meta.ValidateKey(req.Key); err != nil {
		return err
	}
	if req.Command == meta.CmdSet && len(req.Data) > c.maxValueSize {
		return &meta.ValueTooLargeError{Size: len(req.Data), Limit: c.maxValueSize}
	}
	return nil
}

func (c *Conn) send(ctx context.Context, cmd *command) error {
	if err := c.validate(cmd.req); err != nil {
		return err
	}

	select {
	case <-c.done:
		return c.shutdownError()
	default:
	}

	select {
	case c.requests <- cmd:
	case <-c.done:
		return c.shutdownError()
	case <-ctx.Done():
		return ctx.Err()
	}

	// The engine may have terminated between the enqueue and its queue
	// drain. If the command was enqueued before done closed, the drain
	// sees it; otherwise this completes it. Either way exactly one
	// outcome wins.
	select {
	case <-c.done:
		cmd.complete(nil, c.shutdownError())
	default:
	}

	return nil
}

// Run drives the connection until ctx is cancelled, the transport fails,
// or a malformed frame arrives. It may be called exactly once; further
// calls return ErrAlreadyRunning.
//
// Run returns nil when terminated by ctx, and the fatal error otherwise.
func (c *Conn) Run(ctx context.Context) error {
	if !c.state.CompareAndSwap(stateInitial, stateRunning) {
		return ErrAlreadyRunning
	}

	reads := make(chan []byte)
	readErr := make(chan error, 1)
	go c.readLoop(reads, readErr)

	var (
		out     []byte     // outbound buffer, reused across requests
		in      []byte     // inbound parse buffer
		pending []*command // FIFO of unanswered requests
	)

	for {
		select {
		case <-ctx.Done():
			c.terminate(ctx.Err(), pending)
			return nil

		case cmd := <-c.requests:
			var err error
			out, err = meta.AppendRequest(out[:0], cmd.req)
			if err != nil {
				// Send-side validation makes this unreachable for
				// well-formed callers; fail the one caller and move on.
				cmd.complete(nil, err)
				continue
			}
			if _, err := c.transport.Write(out); err != nil {
				cause := &meta.ConnectionError{Op: "write", Err: err}
				cmd.complete(nil, &ShutdownError{Cause: cause})
				c.terminate(cause, pending)
				return cause
			}
			if err := c.transport.Flush(); err != nil {
				cause := &meta.ConnectionError{Op: "flush", Err: err}
				cmd.complete(nil, &ShutdownError{Cause: cause})
				c.terminate(cause, pending)
				return cause
			}
			pending = append(pending, cmd)

		case chunk := <-reads:
			in = append(in, chunk...)
			bufpool.Put(chunk)

			var off int
			for off < len(in) {
				resp, n, err := meta.Parse(in[off:])
				if errors.Is(err, meta.ErrNeedMore) {
					break
				}
				if err != nil {
					c.logger.Error("malformed response frame", zap.Error(err))
					c.terminate(err, pending)
					return err
				}
				off += n

				if len(pending) == 0 {
					err := &meta.ParseError{Message: "response with no request in flight"}
					c.logger.Error("protocol desync", zap.Error(err))
					c.terminate(err, pending)
					return err
				}
				head := pending[0]
				pending[0] = nil
				pending = pending[1:]
				head.complete(resp, nil)
			}
			if off > 0 {
				in = append(in[:0], in[off:]...)
			}

		case err := <-readErr:
			c.terminate(err, pending)
			return err
		}
	}
}

// readLoop feeds transport chunks to the run loop. It exits when the
// transport read fails, which terminate forces by closing the transport.
func (c *Conn) readLoop(reads chan<- []byte, readErr chan<- error) {
	for {
		buf := bufpool.Get()
		n, err := c.transport.Read(buf)
		if n > 0 {
			select {
			case reads <- buf[:n]:
			case <-c.done:
				bufpool.Put(buf)
				return
			}
		} else {
			bufpool.Put(buf)
		}
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			select {
			case readErr <- &meta.ConnectionError{Op: "read", Err: err}:
			case <-c.done:
			}
			return
		}
	}
}

// terminate moves the connection to its final state: closes the
// transport, fails every pending and queued command exactly once, and
// leaves the done channel closed so future sends are rejected.
func (c *Conn) terminate(cause error, pending []*command) {
	c.state.Store(stateTerminated)

	c.mu.Lock()
	c.termErr = cause
	c.mu.Unlock()

	close(c.done)

	if err := c.transport.Close(); err != nil {
		c.logger.Debug("transport close", zap.Error(err))
	}

	shutdown := &ShutdownError{Cause: cause}
	for _, cmd := range pending {
		cmd.complete(nil, shutdown)
	}

	// Queued but never written requests fail the same way. Anything
	// racing into the queue right now is handled by the sender's
	// post-enqueue done check.
	for {
		select {
		case cmd := <-c.requests:
			cmd.complete(nil, shutdown)
		default:
			c.logger.Info("connection terminated", zap.Error(cause))
			return
		}
	}
}
