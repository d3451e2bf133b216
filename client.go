package memcache

import (
	"context"
	"net"
	"strconv"

	"go.uber.org/zap"

	"github.com/pipelined/memcache/meta"
)

// Config holds configuration for a Client.
type Config struct {
	// Addr is the server address, host:port.
	Addr string

	// QueueSize bounds the request queue. Default DefaultQueueSize.
	QueueSize int

	// MaxValueSize caps stored values. Default meta.MaxValueSize (1 MiB).
	MaxValueSize int

	// Dialer is the net.Dialer used to create the connection.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// Logger receives connection lifecycle events. Default zap.NewNop().
	Logger *zap.Logger

	// NewCircuitBreaker creates a circuit breaker wrapping every request.
	// If nil, no circuit breaker is used.
	NewCircuitBreaker func() *CircuitBreaker
}

// Client is the typed facade over a single pipelined connection.
//
// Operations block until the paired response arrives, the caller's
// context is done, or the connection terminates. There is no reconnect:
// once the connection dies every operation returns *ShutdownError and
// the Client should be discarded. Retry and reconnection policy belong
// to the caller.
type Client struct {
	conn    *Conn
	cancel  context.CancelFunc
	runExit chan struct{}
	breaker *CircuitBreaker
	stats   *clientStatsCollector
}

// NewClient dials cfg.Addr over TCP and starts the connection engine in
// a background goroutine.
func NewClient(cfg Config) (*Client, error) {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	conn, err := dialer.Dial("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}

	return NewClientWithTransport(NewNetTransport(conn), cfg), nil
}

// NewClientWithTransport runs a Client over an injected Transport. Used
// for tests and custom event-loop substrates.
func NewClientWithTransport(transport Transport, cfg Config) *Client {
	conn := NewConn(transport, ConnConfig{
		QueueSize:    cfg.QueueSize,
		MaxValueSize: cfg.MaxValueSize,
		Logger:       cfg.Logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:    conn,
		cancel:  cancel,
		runExit: make(chan struct{}),
		stats:   newClientStatsCollector(),
	}
	if cfg.NewCircuitBreaker != nil {
		c.breaker = cfg.NewCircuitBreaker()
	}

	go func() {
		defer close(c.runExit)
		_ = conn.Run(ctx)
	}()

	return c
}

// Close terminates the connection and waits for the engine to exit.
// All in-flight operations complete with *ShutdownError.
func (c *Client) Close() error {
	c.cancel()
	<-c.runExit
	return nil
}

// Stats returns a snapshot of client operation counters.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

// Do submits a raw meta request, for flags the typed facade does not
// surface (vivify, opaque tokens). Responses are paired by FIFO position,
// so every request must draw exactly one response; quiet mode, which
// suppresses nominal responses, breaks that pairing.
func (c *Client) Do(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	if c.breaker != nil {
		return c.breaker.Execute(func() (*meta.Response, error) {
			return c.conn.Do(ctx, req)
		})
	}
	return c.conn.Do(ctx, req)
}

// Set stores value under key, overwriting any existing item.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl TTL) error {
	req := meta.NewRequest(meta.CmdSet, key, value).WithTTL(ttl)
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if resp.Status != meta.StatusHD {
		return c.fail(&UnexpectedStatusError{Op: "set", Status: resp.Status})
	}
	c.stats.recordSet()
	return nil
}

// Get retrieves the value stored under key. found is false on a miss.
func (c *Client) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	req := meta.NewRequest(meta.CmdGet, key, nil).AddReturnValue()
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, false, err
	}
	switch resp.Status {
	case meta.StatusVA:
		c.stats.recordGet(true)
		return resp.Data, true, nil
	case meta.StatusHD, meta.StatusEN:
		// HD without a value block is a miss on the read path.
		c.stats.recordGet(false)
		return nil, false, nil
	default:
		return nil, false, c.fail(&UnexpectedStatusError{Op: "get", Status: resp.Status})
	}
}

// Add stores value under key only if the key does not exist.
// Returns ErrKeyExists if it does.
func (c *Client) Add(ctx context.Context, key string, value []byte, ttl TTL) error {
	req := meta.NewRequest(meta.CmdSet, key, value).AddModeAdd().WithTTL(ttl)
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	switch resp.Status {
	case meta.StatusHD:
		c.stats.recordAdd()
		return nil
	case meta.StatusNS:
		return c.fail(ErrKeyExists)
	default:
		return c.fail(&UnexpectedStatusError{Op: "add", Status: resp.Status})
	}
}

// Replace stores value under key only if the key already exists.
// Returns ErrKeyNotFound if it does not.
func (c *Client) Replace(ctx context.Context, key string, value []byte, ttl TTL) error {
	req := meta.NewRequest(meta.CmdSet, key, value).AddModeReplace().WithTTL(ttl)
	return c.mutateExisting(ctx, "replace", req)
}

// Append appends value to the item stored under key.
// Returns ErrKeyNotFound if the key does not exist.
func (c *Client) Append(ctx context.Context, key string, value []byte) error {
	req := meta.NewRequest(meta.CmdSet, key, value).AddModeAppend()
	return c.mutateExisting(ctx, "append", req)
}

// Prepend prepends value to the item stored under key.
// Returns ErrKeyNotFound if the key does not exist.
func (c *Client) Prepend(ctx context.Context, key string, value []byte) error {
	req := meta.NewRequest(meta.CmdSet, key, value).AddModePrepend()
	return c.mutateExisting(ctx, "prepend", req)
}

// mutateExisting handles the set-family variants that require an
// existing item: replace, append, prepend.
func (c *Client) mutateExisting(ctx context.Context, op string, req *meta.Request) error {
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	switch resp.Status {
	case meta.StatusHD:
		c.stats.recordSet()
		return nil
	case meta.StatusNS, meta.StatusNF:
		return c.fail(ErrKeyNotFound)
	default:
		return c.fail(&UnexpectedStatusError{Op: op, Status: resp.Status})
	}
}

// Delete removes the item stored under key.
// Returns ErrKeyNotFound if the key does not exist.
func (c *Client) Delete(ctx context.Context, key string) error {
	req := meta.NewRequest(meta.CmdDelete, key, nil)
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	switch resp.Status {
	case meta.StatusHD:
		c.stats.recordDelete()
		return nil
	case meta.StatusNF:
		return c.fail(ErrKeyNotFound)
	default:
		return c.fail(&UnexpectedStatusError{Op: "delete", Status: resp.Status})
	}
}

// Touch updates the TTL of the item stored under key without fetching
// its value. On the wire this is an mg carrying a T flag and no v flag:
// HD reports the key exists and its TTL was updated, EN is a miss.
// Returns ErrKeyNotFound if the key does not exist.
func (c *Client) Touch(ctx context.Context, key string, ttl TTL) error {
	req := meta.NewRequest(meta.CmdGet, key, nil).WithTTL(ttl)
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	switch resp.Status {
	case meta.StatusHD:
		c.stats.recordTouch()
		return nil
	case meta.StatusEN:
		return c.fail(ErrKeyNotFound)
	default:
		return c.fail(&UnexpectedStatusError{Op: "touch", Status: resp.Status})
	}
}

// Increment adds delta to the numeric item stored under key and returns
// the new value. Returns ErrKeyNotFound if the key does not exist; there
// is no auto-create on this path (use Do with FlagVivify for that).
func (c *Client) Increment(ctx context.Context, key string, delta uint64) (uint64, error) {
	req := meta.NewRequest(meta.CmdArithmetic, key, nil).
		AddReturnValue().
		AddModeIncrement().
		AddDelta(delta)
	return c.arithmetic(ctx, "increment", req)
}

// Decrement subtracts delta from the numeric item stored under key and
// returns the new value; the server floors at 0. Returns ErrKeyNotFound
// if the key does not exist.
func (c *Client) Decrement(ctx context.Context, key string, delta uint64) (uint64, error) {
	req := meta.NewRequest(meta.CmdArithmetic, key, nil).
		AddReturnValue().
		AddModeDecrement().
		AddDelta(delta)
	return c.arithmetic(ctx, "decrement", req)
}

func (c *Client) arithmetic(ctx context.Context, op string, req *meta.Request) (uint64, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return 0, err
	}
	switch resp.Status {
	case meta.StatusVA:
		value, err := strconv.ParseUint(string(resp.Data), 10, 64)
		if err != nil {
			return 0, c.fail(&DecodeError{Err: err})
		}
		c.stats.recordArithmetic()
		return value, nil
	case meta.StatusNS, meta.StatusNF, meta.StatusEN:
		return 0, c.fail(ErrKeyNotFound)
	default:
		return 0, c.fail(&UnexpectedStatusError{Op: op, Status: resp.Status})
	}
}

// do executes a request and surfaces server error lines as errors.
func (c *Client) do(ctx context.Context, req *meta.Request) (*meta.Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		c.stats.recordError()
		return nil, err
	}
	if resp.HasError() {
		return nil, c.fail(resp.Error)
	}
	return resp, nil
}

func (c *Client) fail(err error) error {
	c.stats.recordError()
	return err
}
