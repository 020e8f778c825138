package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/merci1994dz/appdreamer-creator/internal/auth"
	"github.com/merci1994dz/appdreamer-creator/internal/config"
	"github.com/merci1994dz/appdreamer-creator/internal/fswatch"
	"github.com/merci1994dz/appdreamer-creator/internal/ipc"
	"github.com/merci1994dz/appdreamer-creator/internal/metrics"
	"github.com/merci1994dz/appdreamer-creator/internal/status"
	"github.com/merci1994dz/appdreamer-creator/internal/storage"
	syncer "github.com/merci1994dz/appdreamer-creator/internal/sync"
)

// tokenApp is the subset of the daemon needed to manage source credentials.
type tokenApp struct {
	Logger  *zap.Logger
	Storage *storage.Storage
	Auth    *auth.Service
}

func newTokenApp(logger *zap.Logger, store *storage.Storage, authSvc *auth.Service) *tokenApp {
	return &tokenApp{Logger: logger, Storage: store, Auth: authSvc}
}

func newStatusStore(cfg *config.Config) *status.Store {
	store := status.NewStore()
	store.SetMaxEvents(cfg.EventLogSize)
	return store
}

func newSyncQueue(logger *zap.Logger, cfg *config.Config) *syncer.Queue {
	return syncer.NewQueue(logger, cfg.TriggerQueueSize)
}

func newAuthService(logger *zap.Logger, cfg *config.Config, store *storage.Storage) (*auth.Service, error) {
	return auth.NewService(logger, cfg, store)
}

func newSkewTracker(cfg *config.Config) *syncer.SkewTracker {
	return syncer.NewSkewTracker(cfg.SkewThreshold)
}

func newProber(logger *zap.Logger, cfg *config.Config, skew *syncer.SkewTracker, authSvc *auth.Service) (*syncer.HTTPProber, error) {
	return syncer.NewHTTPProber(logger, cfg.Sources, syncer.ProberOptions{
		Timeout:  cfg.ProbeTimeout,
		CacheTTL: cfg.ProbeCacheTTL,
		Skew:     skew,
		Tokens:   authSvc,
	})
}

func newExecutor(logger *zap.Logger, cfg *config.Config, store *storage.Storage, authSvc *auth.Service) (*syncer.HTTPExecutor, error) {
	return syncer.NewHTTPExecutor(logger, cfg.Sources, store, syncer.ExecutorOptions{
		SnapshotPath: cfg.SnapshotPath,
		Retries:      cfg.FetchRetries,
		Tokens:       authSvc,
	})
}

func newLocalSync(logger *zap.Logger, cfg *config.Config, store *storage.Storage) (*syncer.SnapshotSynchronizer, error) {
	return syncer.NewSnapshotSynchronizer(logger, store, cfg.SnapshotPath)
}

func newSyncEngine(
	logger *zap.Logger,
	cfg *config.Config,
	st *status.Store,
	prober *syncer.HTTPProber,
	exec *syncer.HTTPExecutor,
	local *syncer.SnapshotSynchronizer,
	skew *syncer.SkewTracker,
	queue *syncer.Queue,
) (*syncer.Engine, error) {
	return syncer.NewEngine(logger, st, syncer.EngineOptions{
		Prober:           prober,
		Executor:         exec,
		Local:            local,
		Importer:         local,
		Params:           skew,
		Queue:            queue,
		Timeout:          cfg.SyncTimeout,
		AutoSyncInterval: cfg.AutoSyncInterval,
	})
}

func newWatcher(logger *zap.Logger, cfg *config.Config, st *status.Store, queue *syncer.Queue) (*fswatch.Watcher, error) {
	return fswatch.NewWatcher(logger, cfg, st, queue)
}

func newIPCServer(cfg *config.Config, logger *zap.Logger, st *status.Store, engine *syncer.Engine, store *storage.Storage) (*ipc.Server, error) {
	return ipc.NewServer(cfg, logger, st, engine, store)
}

func newMetricsRegistry() *prometheus.Registry {
	reg := metrics.NewRegistry()
	metrics.RegisterSyncMetrics(reg)
	return reg
}
