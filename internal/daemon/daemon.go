package daemon

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/merci1994dz/appdreamer-creator/internal/auth"
	"github.com/merci1994dz/appdreamer-creator/internal/config"
	"github.com/merci1994dz/appdreamer-creator/internal/fswatch"
	"github.com/merci1994dz/appdreamer-creator/internal/ipc"
	"github.com/merci1994dz/appdreamer-creator/internal/metrics"
	"github.com/merci1994dz/appdreamer-creator/internal/storage"
	syncer "github.com/merci1994dz/appdreamer-creator/internal/sync"
)

// Daemon wires together core services.
type Daemon struct {
	Logger   *zap.Logger
	Config   *config.Config
	Storage  *storage.Storage
	Auth     *auth.Service
	Sync     *syncer.Engine
	Queue    *syncer.Queue
	Prober   *syncer.HTTPProber
	Watcher  *fswatch.Watcher
	IPC      *ipc.Server
	Registry *prometheus.Registry
}

// NewDaemon constructs a daemon.
func NewDaemon(
	logger *zap.Logger,
	cfg *config.Config,
	store *storage.Storage,
	authSvc *auth.Service,
	syncEngine *syncer.Engine,
	queue *syncer.Queue,
	prober *syncer.HTTPProber,
	watcher *fswatch.Watcher,
	ipcServer *ipc.Server,
	reg *prometheus.Registry,
) (*Daemon, error) {
	if len(cfg.Sources) == 0 {
		logger.Warn("no catalog sources configured; only local data will be served")
	}
	logger.Info("daemon initialized", zap.Int("sources", len(cfg.Sources)))
	return &Daemon{
		Logger:   logger,
		Config:   cfg,
		Storage:  store,
		Auth:     authSvc,
		Sync:     syncEngine,
		Queue:    queue,
		Prober:   prober,
		Watcher:  watcher,
		IPC:      ipcServer,
		Registry: reg,
	}, nil
}

// Run starts the daemon services and blocks until shutdown or the first failure.
func (d *Daemon) Run(ctx context.Context) error {
	d.Logger.Info("daemon running")

	eg, egCtx := errgroup.WithContext(ctx)

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	eg.Go(func() error {
		for {
			select {
			case <-egCtx.Done():
				return nil
			case <-hup:
				d.Logger.Info("SIGHUP received; queueing forced sync")
				d.RequestRefresh()
			}
		}
	})

	if d.Watcher != nil {
		if err := d.Watcher.Start(egCtx); err != nil {
			d.Logger.Warn("fswatch start failed", zap.Error(err))
		}
	}
	if d.Sync != nil {
		eg.Go(func() error {
			return d.Sync.Run(egCtx)
		})
	}
	if d.IPC != nil {
		eg.Go(func() error {
			return d.IPC.Start(egCtx)
		})
	}
	if d.Config.MetricsAddr != "" && d.Registry != nil {
		eg.Go(func() error {
			return metrics.Serve(egCtx, d.Config.MetricsAddr, d.Registry, d.Logger)
		})
	}

	err := eg.Wait()
	if d.IPC != nil {
		d.IPC.Stop()
	}
	d.Logger.Info("daemon shutting down")
	if closeErr := d.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	return err
}

// RequestRefresh queues a forced sync for the engine loop. It reports false
// when no queue is wired or the queue is full.
func (d *Daemon) RequestRefresh() bool {
	if d.Queue == nil {
		return false
	}
	return d.Queue.Enqueue(syncer.Trigger{Reason: syncer.ReasonManual, Force: true})
}

// Close releases resources owned by the daemon.
func (d *Daemon) Close() error {
	if d.Watcher != nil {
		_ = d.Watcher.Close()
	}
	if d.Prober != nil {
		d.Prober.Close()
	}
	if d.Storage != nil {
		return d.Storage.Close()
	}
	return nil
}
