package wire

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// DefaultPort is the well-known TCP port of a lambchops server.
const DefaultPort = 14879

// Conn reads and writes frames on a byte stream.
// Writes are buffered until Flush. Conn is not goroutine-safe, callers serialize reads and writes themselves.
type Conn struct {
	rwc io.ReadWriteCloser
	bw  *bufio.Writer
	enc *cbor.Encoder
	dec *cbor.Decoder
}

func NewConn(rwc io.ReadWriteCloser) *Conn {
	bw := bufio.NewWriter(rwc)
	return &Conn{
		rwc: rwc,
		bw:  bw,
		enc: encMode.NewEncoder(bw),
		dec: cbor.NewDecoder(rwc),
	}
}

// WriteFrame buffers f. It is not sent until Flush is called.
func (c *Conn) WriteFrame(f Frame) error {
	if err := c.enc.Encode(f); err != nil {
		return fmt.Errorf("writing %s frame: %w", f.Kind, err)
	}
	return nil
}

func (c *Conn) Flush() error {
	if err := c.bw.Flush(); err != nil {
		return fmt.Errorf("flushing frames: %w", err)
	}
	return nil
}

// ReadFrame blocks until a whole frame is read. It returns io.EOF, unwrapped, when the peer closed the stream
// cleanly between frames.
func (c *Conn) ReadFrame() (Frame, error) {
	var f Frame
	err := c.dec.Decode(&f)
	if err == io.EOF {
		return Frame{}, io.EOF
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Frame{}, fmt.Errorf("reading frame: %w", err)
	}
	return f, nil
}

// Send writes f and flushes it.
func (c *Conn) Send(f Frame) error {
	if err := c.WriteFrame(f); err != nil {
		return err
	}
	return c.Flush()
}

// Close closes the underlying stream without flushing.
func (c *Conn) Close() error {
	return c.rwc.Close()
}
