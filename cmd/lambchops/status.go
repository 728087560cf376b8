package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guseggert/lambchops/status"
	"github.com/urfave/cli/v2"
)

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "list a server's live connections",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "http-addr",
			Usage: "The address of the server's HTTP side-channel.",
		},
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		addr := stringOr(ctx, "http-addr", cfg.Client.HTTPAddr)
		if addr == "" {
			return errors.New("no HTTP address, set --http-addr or client.http-addr")
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

		sc := status.NewClient(logger.Sugar(), addr)
		hb, err := sc.SendHeartbeat(c)
		if err != nil {
			return err
		}
		conns, err := sc.Connections(c)
		if err != nil {
			return err
		}

		fmt.Fprintf(ctx.App.Writer, "previous heartbeat: %s\n", hb.LastHeartbeat)
		w := tabwriter.NewWriter(ctx.App.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tREMOTE\tAGE\tREQUESTS\tUNITS")
		for _, conn := range conns {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
				conn.ID, conn.Remote, time.Since(conn.Since).Round(time.Second), conn.Requests, strings.Join(conn.Units, ","))
		}
		return w.Flush()
	},
}
