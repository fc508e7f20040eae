// Package main is the wander command. It assembles a machine from a config file and wanders it
// until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"

	_ "go.viam.com/safewander/components/register"
	"go.viam.com/safewander/config"
	"go.viam.com/safewander/logging"
	"go.viam.com/safewander/robot"
	_ "go.viam.com/safewander/services/register"
	"go.viam.com/safewander/services/wander"
)

const (
	// Flags.
	flagConfig          = "config"
	flagDebug           = "debug"
	flagLogFile         = "log-file"
	flagDuration        = "duration"
	flagShutdownTimeout = "shutdown-timeout"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logging.Global().Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "wander",
		Usage: "wander a base around, backing away from bumps and cliffs",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "build the machine in a config file and start every wander service in it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagConfig,
						Aliases:  []string{"c"},
						Required: true,
						Usage:    "load configuration from `FILE`",
					},
					&cli.BoolFlag{
						Name:  flagDebug,
						Usage: "enable debug logging",
					},
					&cli.StringFlag{
						Name:  flagLogFile,
						Usage: "also write logs to `FILE`, rotating it as it grows",
					},
					&cli.DurationFlag{
						Name:  flagDuration,
						Usage: "stop after this long; zero runs until interrupted",
					},
					&cli.DurationFlag{
						Name:  flagShutdownTimeout,
						Value: 30 * time.Second,
						Usage: "how long to wait for wandering to wind down on exit",
					},
				},
				Action: runAction,
			},
		},
	}
}

func runAction(c *cli.Context) error {
	logger := logging.NewLogger("wander")
	if c.Bool(flagDebug) {
		logger = logging.NewDebugLogger("wander")
	}
	logging.ReplaceGlobal(logger)
	if path := c.String(flagLogFile); path != "" {
		logFile := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 3,
			Compress:   true,
		}
		//nolint:errcheck
		defer logFile.Close()
		logger.AddAppender(logging.NewWriterAppender(logFile))
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if d := c.Duration(flagDuration); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	cfg, err := config.Read(ctx, c.String(flagConfig), logger)
	if err != nil {
		return errors.Wrap(err, "error reading config")
	}
	machine, err := robot.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), c.Duration(flagShutdownTimeout))
		defer cancel()
		if err := machine.Close(closeCtx); err != nil {
			logger.Errorw("error closing machine", "error", err)
		}
	}()

	watcher, err := config.NewWatcher(ctx, cfg, config.DefaultSettleTime, logger)
	if err != nil {
		return err
	}
	//nolint:errcheck
	defer watcher.Close()

	startWandering(ctx, machine, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case newConfig := <-watcher.Config():
			rebuilt, err := machine.Reconfigure(ctx, newConfig)
			if err != nil {
				logger.CErrorw(ctx, "error applying new config", "error", err)
				continue
			}
			if rebuilt {
				startWandering(ctx, machine, logger)
			}
		}
	}
}

// startWandering starts every wander service that is not already running.
func startWandering(ctx context.Context, machine *robot.Robot, logger logging.Logger) {
	for _, name := range machine.ResourceNames() {
		if name.API != wander.API {
			continue
		}
		res, err := machine.ResourceByName(name)
		if err != nil {
			logger.CErrorw(ctx, "wander service disappeared", "name", name, "error", err)
			continue
		}
		svc, ok := res.(wander.Service)
		if !ok {
			continue
		}
		if err := svc.Start(ctx); err != nil && !errors.Is(err, wander.ErrAlreadyRunning) {
			logger.CErrorw(ctx, "error starting wander service", "name", name, "error", err)
		}
	}
}
