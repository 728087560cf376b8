package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/guseggert/lambchops/server"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:  "serve",
	Usage: "run a server that accepts closures",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen-addr",
			Usage: "The address to accept closure connections on.",
		},
		&cli.StringFlag{
			Name:  "http-addr",
			Usage: "The address for the HTTP side-channel to listen on. Disabled if empty.",
		},
	},
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		logger, err := newLogger(stringOr(ctx, "log-level", cfg.Server.LogLevel))
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		srv, err := server.NewServer(
			server.WithLogger(logger),
			server.WithListenAddr(stringOr(ctx, "listen-addr", cfg.Server.ListenAddr)),
			server.WithHTTPAddr(stringOr(ctx, "http-addr", cfg.Server.HTTPAddr)),
		)
		if err != nil {
			return err
		}
		if err := srv.Listen(); err != nil {
			return err
		}

		sigCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-sigCtx.Done()
			logger.Sugar().Info("shutting down")
			_ = srv.Stop()
		}()
		return srv.Serve()
	},
}
