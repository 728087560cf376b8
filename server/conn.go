package server

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/guseggert/lambchops/closure"
	"github.com/guseggert/lambchops/status"
	"github.com/guseggert/lambchops/wire"
	"go.uber.org/zap"
)

// session is the state of one connection. Only the goroutine running serve touches conn and runs closures.
type session struct {
	id     uuid.UUID
	remote string
	since  time.Time
	log    *zap.SugaredLogger

	catalog  *closure.Catalog
	rwc      io.ReadWriteCloser
	conn     *wire.Conn
	registry *Registry

	requests atomic.Int64
}

func (c *session) snapshot() status.Connection {
	return status.Connection{
		ID:       c.id.String(),
		Remote:   c.remote,
		Since:    c.since,
		Units:    c.registry.Units(),
		Requests: c.requests.Load(),
	}
}

// serve reads and dispatches frames until the peer closes the stream, which returns nil, or anything fails.
func (c *session) serve(ctx context.Context) error {
	c.log.Infof("hello client %s", c.remote)
	for {
		f, err := c.conn.ReadFrame()
		if err == io.EOF {
			c.log.Infof("goodbye client %s", c.remote)
			return nil
		}
		if err == nil {
			err = c.dispatch(ctx, f)
		}
		if err != nil {
			c.log.Warnf("client %s died with %s", c.remote, err)
			return err
		}
	}
}

func (c *session) dispatch(ctx context.Context, f wire.Frame) error {
	switch f.Kind {
	case wire.KindCodeUnit:
		u, err := wire.DecodeCodeUnit(f)
		if err != nil {
			return err
		}
		if err := c.registry.Register(u); err != nil {
			return fmt.Errorf("registering unit %q: %w", u.Name(), err)
		}
		c.log.Debugw("registered code unit", "Unit", u.Name(), "Bytes", u.Len())
		return nil

	case wire.KindValueRequest:
		obj, err := wire.DecodeObject(f, c.registry)
		if err != nil {
			return err
		}
		fn, ok := obj.(closure.Callable)
		if !ok {
			c.unknown(f)
			return nil
		}
		c.requests.Add(1)
		result, err := call(ctx, fn)
		if err != nil {
			return fmt.Errorf("calling %s: %w", f.Type, err)
		}
		reply, err := wire.ObjectFrame(wire.KindReply, c.typeName(result), result)
		if err != nil {
			return err
		}
		return c.conn.Send(reply)

	case wire.KindFireRequest:
		obj, err := wire.DecodeObject(f, c.registry)
		if err != nil {
			return err
		}
		fn, ok := obj.(closure.Runnable)
		if !ok {
			c.unknown(f)
			return nil
		}
		c.requests.Add(1)
		if err := run(ctx, fn); err != nil {
			return fmt.Errorf("running %s: %w", f.Type, err)
		}
		return nil

	default:
		c.unknown(f)
		return nil
	}
}

func (c *session) unknown(f wire.Frame) {
	c.log.Warnw("unknown message", "Kind", f.Kind, "Type", f.Type, "Bytes", len(f.Body))
}

// typeName names reply values of registered types so the client can decode them into the same type.
func (c *session) typeName(v any) string {
	if v == nil {
		return ""
	}
	if e, ok := c.catalog.Lookup(reflect.TypeOf(v)); ok {
		return e.Name
	}
	return ""
}

func call(ctx context.Context, fn closure.Callable) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn.Call(ctx)
}

func run(ctx context.Context, fn closure.Runnable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn.Run(ctx)
}
