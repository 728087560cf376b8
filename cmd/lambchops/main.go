package main

import (
	"fmt"
	"log"
	"os"

	"github.com/guseggert/lambchops/config"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	app := &cli.App{
		Name:  "lambchops",
		Usage: "send closures to a remote process and run them there",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a TOML config file. Defaults to the nearest " + config.FileName + " above the working directory.",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "One of [debug,info,warn,error].",
			},
		},
		Commands: []*cli.Command{
			serveCommand,
			callCommand,
			fireCommand,
			statusCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	if p := ctx.String("config"); p != "" {
		return config.Load(p)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working dir: %w", err)
	}
	return config.FindAndLoad(wd)
}

// stringOr returns the flag's value if it was set on the command line, and def otherwise.
func stringOr(ctx *cli.Context, name, def string) string {
	if ctx.IsSet(name) {
		return ctx.String(name)
	}
	return def
}

func newLogger(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return l, nil
}
