//go:build linux

package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	btserial "github.com/luhtfiimanal/go-linux-btserial"
	"github.com/luhtfiimanal/go-linux-btserial/internal/config"
	"github.com/luhtfiimanal/go-linux-btserial/internal/logging"
	"github.com/luhtfiimanal/go-linux-btserial/rfcomm"
)

// target is the peer and service named on the command line.
type target struct {
	Address   string
	ServiceID uuid.UUID
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.Setup(cfg.Log)
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}

func newMetrics(reg *prometheus.Registry) *btserial.Metrics {
	return btserial.NewMetrics(reg)
}

func newAdapter(cfg *config.Config, log *zap.Logger) btserial.Adapter {
	return rfcomm.NewAdapter(rfcomm.Config{
		HCI:              cfg.Adapter.HCI,
		BaudRate:         cfg.Adapter.BaudRate,
		Bindings:         cfg.Adapter.Bindings,
		Services:         cfg.ServiceChannels(),
		DisableDBus:      cfg.Adapter.DisableDBus,
		RequireKnownPeer: cfg.Adapter.RequireKnownPeer,
	}, log)
}

func registerMetricsEndpoint(lc fx.Lifecycle, cfg *config.Config, reg *prometheus.Registry, log *zap.Logger) {
	if cfg.Metrics.Listen == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}

// bridge copies between a Conn and the process's stdio.
type bridge struct {
	conn *btserial.Conn
	log  *zap.Logger

	done     chan struct{}
	doneOnce sync.Once
}

type bridgeParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    *config.Config
	Target    target
	Adapter   btserial.Adapter
	Metrics   *btserial.Metrics
	Logger    *zap.Logger
}

func newBridge(p bridgeParams) *bridge {
	b := &bridge{log: p.Logger, done: make(chan struct{})}
	b.conn = btserial.New(p.Adapter,
		btserial.WithLogger(p.Logger),
		btserial.WithMetrics(p.Metrics),
		btserial.WithGracePeriod(p.Config.Connection.GracePeriod),
		btserial.WithReadBufferSize(p.Config.Connection.ReadBufferSize),
		btserial.WithLegacyChannel(p.Config.Connection.LegacyChannel),
		btserial.OnRead(func(data []byte) {
			if _, err := os.Stdout.Write(data); err != nil {
				b.log.Warn("stdout write failed", zap.Error(err))
			}
		}),
		btserial.OnDisconnected(func(byRemote bool) {
			b.doneOnce.Do(func() { close(b.done) })
		}),
	)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return b.conn.Connect(ctx, p.Target.Address, p.Target.ServiceID)
		},
		OnStop: func(context.Context) error {
			return b.conn.Close()
		},
	})
	return b
}

// pump writes everything read from r to the connection. It returns nil at EOF.
func (b *bridge) pump(r io.Reader) error {
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if werr := b.conn.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
