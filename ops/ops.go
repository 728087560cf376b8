// Package ops holds the stock closures the lambchops command line sends. Importing it registers them in
// closure.Default, so clients and servers that import it can exchange them.
package ops

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/guseggert/lambchops/closure"
)

func init() {
	closure.Register(Echo{}, Hostname{}, Sum{}, Print{}, Sleep{})
	closure.RegisterBuiltin(HostInfo{})
}

// Stdout is where Print writes.
var Stdout io.Writer = os.Stdout

// Echo replies with its text.
type Echo struct {
	Text string
}

func (e Echo) Call(ctx context.Context) (any, error) { return e.Text, nil }

// HostInfo is the reply to Hostname.
type HostInfo struct {
	Hostname string
	PID      int
}

// Hostname replies with the hostname and PID of the process running it.
type Hostname struct{}

func (Hostname) Call(ctx context.Context) (any, error) {
	h, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("getting hostname: %w", err)
	}
	return HostInfo{Hostname: h, PID: os.Getpid()}, nil
}

// Sum replies with the sum of its values.
type Sum struct {
	Values []int64
}

func (s Sum) Call(ctx context.Context) (any, error) {
	var total int64
	for _, v := range s.Values {
		total += v
	}
	return total, nil
}

// Print writes its message to Stdout of the process running it.
type Print struct {
	Message string
}

func (p Print) Run(ctx context.Context) error {
	_, err := fmt.Fprintln(Stdout, p.Message)
	return err
}

// Sleep blocks the connection it runs on for Duration.
type Sleep struct {
	Duration time.Duration
}

func (s Sleep) Run(ctx context.Context) error {
	t := time.NewTimer(s.Duration)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
