//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	btserial "github.com/luhtfiimanal/go-linux-btserial"
	"github.com/luhtfiimanal/go-linux-btserial/internal/config"
)

type connectFlags struct {
	service     string
	metricsAddr string
}

func newConnectCmd(configPath *string) *cobra.Command {
	var flags connectFlags
	cmd := &cobra.Command{
		Use:   "connect <address>",
		Short: "Connect to a peer and copy stdin to it and its output to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if flags.metricsAddr != "" {
				cfg.Metrics.Listen = flags.metricsAddr
			}
			tgt := target{Address: args[0], ServiceID: cfg.DefaultServiceID()}
			if flags.service != "" {
				if tgt.ServiceID, err = uuid.Parse(flags.service); err != nil {
					return fmt.Errorf("invalid --service: %w", err)
				}
			}
			return runConnect(cmd.Context(), cfg, tgt, cmd.InOrStdin())
		},
	}
	cmd.Flags().StringVarP(&flags.service, "service", "s", "", "service UUID (default: Serial Port Profile)")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func runConnect(ctx context.Context, cfg *config.Config, tgt target, stdin io.Reader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var b *bridge
	var log *zap.Logger
	app := fx.New(
		fx.Supply(cfg, tgt),
		fx.Provide(
			newLogger,
			newRegistry,
			newMetrics,
			newAdapter,
			newBridge,
		),
		fx.Invoke(registerMetricsEndpoint),
		fx.Populate(&b, &log),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: log.Named("fx")}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		// Bluetooth page + SDP can take a while.
		fx.StartTimeout(time.Minute),
	)
	if err := app.Start(ctx); err != nil {
		return err
	}

	stdinDone := make(chan error, 1)
	go func() { stdinDone <- b.pump(stdin) }()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("interrupted")
	case err := <-stdinDone:
		// A write racing the remote hangup is not a failure of ours.
		if err != nil && !errors.Is(err, btserial.ErrNotConnected) {
			runErr = err
		}
	case <-b.done:
		log.Info("connection closed by remote")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	_ = log.Sync()
	return runErr
}
