package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/guseggert/lambchops/client"
	"github.com/guseggert/lambchops/closure"
	"github.com/guseggert/lambchops/config"
	"github.com/guseggert/lambchops/ops"
	"github.com/urfave/cli/v2"
)

var addrFlag = &cli.StringFlag{
	Name:  "addr",
	Usage: "The server to send to, as host[:port].",
}

var callCommand = &cli.Command{
	Name:      "call",
	Usage:     "run a closure on a server and print its result",
	ArgsUsage: "echo TEXT... | hostname | sum N... | exec COMMAND [ARG...]",
	Flags:     []cli.Flag{addrFlag},
	Action: func(ctx *cli.Context) error {
		fn, err := parseCallable(ctx.Args().Slice())
		if err != nil {
			return err
		}
		return withClient(ctx, func(c context.Context, cl *client.Client) error {
			result, err := cl.Call(c, fn)
			if err != nil {
				return err
			}
			if res, ok := result.(ops.ExecResult); ok {
				ctx.App.Writer.Write(res.Stdout)
				ctx.App.ErrWriter.Write(res.Stderr)
				if res.ExitCode != 0 {
					return cli.Exit("", res.ExitCode)
				}
				return nil
			}
			fmt.Fprintf(ctx.App.Writer, "%+v\n", result)
			return nil
		})
	},
}

var fireCommand = &cli.Command{
	Name:      "fire",
	Usage:     "run a closure on a server without waiting for it",
	ArgsUsage: "print MESSAGE... | sleep DURATION",
	Flags:     []cli.Flag{addrFlag},
	Action: func(ctx *cli.Context) error {
		fn, err := parseRunnable(ctx.Args().Slice())
		if err != nil {
			return err
		}
		return withClient(ctx, func(c context.Context, cl *client.Client) error {
			return cl.Fire(c, fn)
		})
	},
}

func parseCallable(args []string) (closure.Callable, error) {
	if len(args) == 0 {
		return nil, errors.New("missing closure name")
	}
	switch args[0] {
	case "echo":
		return ops.Echo{Text: strings.Join(args[1:], " ")}, nil
	case "hostname":
		return ops.Hostname{}, nil
	case "sum":
		values := make([]int64, 0, len(args)-1)
		for _, a := range args[1:] {
			v, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parsing %q: %w", a, err)
			}
			values = append(values, v)
		}
		return ops.Sum{Values: values}, nil
	case "exec":
		if len(args) < 2 {
			return nil, errors.New("exec takes a command")
		}
		return ops.Exec{Command: args[1], Args: args[2:]}, nil
	default:
		return nil, fmt.Errorf("unknown closure %q", args[0])
	}
}

func parseRunnable(args []string) (closure.Runnable, error) {
	if len(args) == 0 {
		return nil, errors.New("missing closure name")
	}
	switch args[0] {
	case "print":
		return ops.Print{Message: strings.Join(args[1:], " ")}, nil
	case "sleep":
		if len(args) != 2 {
			return nil, errors.New("sleep takes exactly one duration")
		}
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return nil, fmt.Errorf("parsing duration: %w", err)
		}
		return ops.Sleep{Duration: d}, nil
	default:
		return nil, fmt.Errorf("unknown closure %q", args[0])
	}
}

func withClient(ctx *cli.Context, f func(context.Context, *client.Client) error) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	logger, err := newLogger(stringOr(ctx, "log-level", "warn"))
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	c, cancel, err := clientContext(ctx.Context, cfg)
	if err != nil {
		return err
	}
	defer cancel()

	cl, err := client.Dial(c, stringOr(ctx, "addr", cfg.Client.Addr), client.WithLogger(logger))
	if err != nil {
		return err
	}
	err = f(c, cl)
	if closeErr := cl.Close(); err == nil {
		err = closeErr
	}
	return err
}

func clientContext(ctx context.Context, cfg *config.Config) (context.Context, context.CancelFunc, error) {
	timeout, err := cfg.Client.TimeoutDuration()
	if err != nil {
		return nil, nil, err
	}
	if timeout == 0 {
		c, cancel := context.WithCancel(ctx)
		return c, cancel, nil
	}
	c, cancel := context.WithTimeout(ctx, timeout)
	return c, cancel, nil
}
