package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/guseggert/lambchops/closure"
	"github.com/guseggert/lambchops/wire"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// DefaultPort is the port a lambchops server listens on unless told otherwise.
const DefaultPort = wire.DefaultPort

// ErrClosed is returned by every operation on a closed Client.
var ErrClosed = errors.New("client: closed")

// Client sends closures to a lambchops server over a single connection.
// Request cycles are serialized: a second Call blocks until the first has read its reply.
// A request that fails after it started writing, or while waiting for its reply, leaves the stream in an unknown
// position, so the Client closes itself and every later operation returns ErrClosed.
type Client struct {
	Logger *zap.SugaredLogger

	catalog *closure.Catalog
	rwc     io.ReadWriteCloser
	conn    *wire.Conn

	// mu serializes request cycles and guards conn and sent.
	mu   sync.Mutex
	sent sentSet

	stateMu sync.Mutex
	closed  bool
	cause   error
}

type Option func(c *Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.Logger = l.Named("lambchops_client").Sugar()
	}
}

// WithCatalog sets the catalog closures are looked up in. It defaults to closure.Default.
func WithCatalog(cat *closure.Catalog) Option {
	return func(c *Client) {
		c.catalog = cat
	}
}

// New wraps an established stream.
func New(rwc io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		Logger:  zap.NewNop().Sugar(),
		catalog: closure.Default,
		rwc:     rwc,
		conn:    wire.NewConn(rwc),
		sent:    sentSet{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Dial connects to a server over TCP. If addr has no port, DefaultPort is used.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(DefaultPort))
	}
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return New(conn, opts...), nil
}

// DialWebSocket connects to a server's WebSocket endpoint, e.g. "ws://host:8080/connect".
func DialWebSocket(ctx context.Context, url string, opts ...Option) (*Client, error) {
	wsConn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing WebSocket conn: %w", err)
	}
	// the conn outlives the dial context
	return New(websocket.NetConn(context.Background(), wsConn, websocket.MessageBinary), opts...), nil
}

// Call sends fn to the server, which runs it and replies with its result.
// Replies of registered types are decoded into those types, anything else decodes generically.
func (c *Client) Call(ctx context.Context, fn closure.Callable) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.roundTrip(ctx, fn)
	if err != nil {
		return nil, err
	}
	return wire.DecodeObject(f, catalogResolver{c.catalog})
}

// CallAs is Call with the reply decoded into V. A reply that does not fit V is a *wire.ResolutionError.
func CallAs[V any](ctx context.Context, c *Client, fn closure.Callable) (V, error) {
	var v V
	c.mu.Lock()
	defer c.mu.Unlock()
	f, err := c.roundTrip(ctx, fn)
	if err != nil {
		return v, err
	}
	if err := wire.DecodeInto(f, &v); err != nil {
		return v, err
	}
	return v, nil
}

func (c *Client) roundTrip(ctx context.Context, fn closure.Callable) (wire.Frame, error) {
	if err := c.begin(ctx); err != nil {
		return wire.Frame{}, err
	}
	defer c.watch(ctx)()

	if err := c.submit(ctx, wire.KindValueRequest, fn); err != nil {
		return wire.Frame{}, err
	}
	f, err := c.conn.ReadFrame()
	if err != nil {
		return wire.Frame{}, c.broken(ctx, "reading reply", err)
	}
	if f.Kind != wire.KindReply {
		return wire.Frame{}, c.fail(fmt.Errorf("reading reply: unexpected %s frame", f.Kind))
	}
	return f, nil
}

// Fire sends fn to the server, which runs it. There is no acknowledgment that it ran, or that it succeeded.
func (c *Client) Fire(ctx context.Context, fn closure.Runnable) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx); err != nil {
		return err
	}
	defer c.watch(ctx)()
	return c.submit(ctx, wire.KindFireRequest, fn)
}

// SendObject sends v without any capability. Servers log and discard such messages.
func (c *Client) SendObject(ctx context.Context, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx); err != nil {
		return err
	}
	defer c.watch(ctx)()
	return c.submit(ctx, wire.KindObject, v)
}

func (c *Client) begin(ctx context.Context) error {
	if err := c.closedErr(); err != nil {
		return err
	}
	return ctx.Err()
}

// watch closes the stream if ctx ends before the returned func is called.
// Closing is the only way to unblock a pending read or write.
func (c *Client) watch(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.fail(ctx.Err())
	})
	return func() { stop() }
}

// broken closes the client after an I/O failure partway through a request and returns the error to report.
// The context's error, or ErrClosed if Close interrupted the request, is reported in place of the resulting
// I/O error.
func (c *Client) broken(ctx context.Context, op string, err error) error {
	switch {
	case ctx.Err() != nil:
		err = ctx.Err()
	case c.isClosed():
		err = ErrClosed
	case err == io.EOF:
		err = fmt.Errorf("connection closed by server: %w", io.ErrUnexpectedEOF)
	}
	return c.fail(fmt.Errorf("%s: %w", op, err))
}

// fail closes the stream without the orderly shutdown of Close, recording err as the reason, and returns err.
func (c *Client) fail(err error) error {
	if c.markClosed(err) {
		c.Logger.Debugf("closing connection: %s", err)
		_ = c.rwc.Close()
	}
	return err
}

// markClosed reports whether this call is the one that closed the client.
func (c *Client) markClosed(cause error) bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	c.cause = cause
	return true
}

func (c *Client) isClosed() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.closed
}

func (c *Client) closedErr() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if !c.closed {
		return nil
	}
	if c.cause != nil {
		return fmt.Errorf("%w after an earlier failure: %v", ErrClosed, c.cause)
	}
	return ErrClosed
}

// Close flushes and closes the output side, then closes the input side, then the connection.
// Every step is attempted even if an earlier one fails.
// If a request is in flight, Close closes the connection at once instead, which fails the request with ErrClosed.
func (c *Client) Close() error {
	if !c.markClosed(nil) {
		return nil
	}
	if !c.mu.TryLock() {
		return c.rwc.Close()
	}
	defer c.mu.Unlock()

	var err error
	err = multierr.Append(err, c.conn.Flush())
	if cw, ok := c.rwc.(interface{ CloseWrite() error }); ok {
		err = multierr.Append(err, cw.CloseWrite())
	}
	if cr, ok := c.rwc.(interface{ CloseRead() error }); ok {
		err = multierr.Append(err, cr.CloseRead())
	}
	err = multierr.Append(err, c.rwc.Close())
	return err
}

type catalogResolver struct {
	catalog *closure.Catalog
}

func (r catalogResolver) Resolve(name string) (reflect.Type, error) {
	e, ok := r.catalog.LookupName(name)
	if !ok {
		return nil, &wire.ResolutionError{Type: name}
	}
	return e.Type, nil
}
