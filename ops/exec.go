package ops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/guseggert/lambchops/closure"
)

func init() {
	closure.Register(Exec{})
	closure.RegisterBuiltin(ExecResult{})
}

// Exec runs a command on the server and replies with its output once it exits.
// A non-zero exit code is reported in the result, not as an error.
type Exec struct {
	Command string
	Args    []string
	// Env is added to the server's environment.
	Env []string
	WD  string
}

type ExecResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	TimeMS   int64
}

func (e Exec) Call(ctx context.Context) (any, error) {
	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	cmd.Dir = e.WD
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	err := cmd.Run()
	timeMS := time.Since(startTime).Milliseconds()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("running %s: %w", e.Command, err)
		}
	}
	return ExecResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: cmd.ProcessState.ExitCode(),
		TimeMS:   timeMS,
	}, nil
}
