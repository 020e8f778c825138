//go:build wireinject
// +build wireinject

//go:generate go run github.com/google/wire/cmd/wire

package main

import (
	"github.com/google/wire"

	"github.com/merci1994dz/appdreamer-creator/internal/config"
	"github.com/merci1994dz/appdreamer-creator/internal/daemon"
	"github.com/merci1994dz/appdreamer-creator/internal/logging"
	"github.com/merci1994dz/appdreamer-creator/internal/storage"
)

func InitializeDaemon(opts config.Options) (*daemon.Daemon, error) {
	wire.Build(
		config.NewConfigWithOptions,
		logging.NewLogger,
		storage.NewStorage,
		newStatusStore,
		newAuthService,
		newSkewTracker,
		newProber,
		newExecutor,
		newLocalSync,
		newSyncQueue,
		newSyncEngine,
		newWatcher,
		newIPCServer,
		newMetricsRegistry,
		daemon.NewDaemon,
	)
	return &daemon.Daemon{}, nil
}

func InitializeTokens(opts config.Options) (*tokenApp, error) {
	wire.Build(
		config.NewConfigWithOptions,
		logging.NewLogger,
		storage.NewStorage,
		newAuthService,
		newTokenApp,
	)
	return &tokenApp{}, nil
}
