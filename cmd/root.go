package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bz888/sagan/internal/api"
	"github.com/bz888/sagan/internal/api/server"
	"github.com/bz888/sagan/internal/backend"
	"github.com/bz888/sagan/internal/config"
	"github.com/bz888/sagan/internal/logger"
	"github.com/bz888/sagan/internal/ui"
	"golang.org/x/sync/errgroup"
)

func Execute() {
	cfg, err := config.Init()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	var shell *ui.Shell
	if cfg.RunsClient() {
		client, err := api.NewClient(cfg.ProxyURL)
		if err != nil {
			return err
		}
		shell = ui.New(ui.Options{Client: client, Model: cfg.Model, Dev: cfg.Dev})
	}

	logOpts := logger.Options{Dev: cfg.Dev, LogPath: cfg.LogPath}
	if shell != nil {
		logOpts.View = shell.DebugConsole()
	}
	if err := logger.InitLogger(logOpts); err != nil {
		return err
	}
	defer logger.Close()
	localLogger := logger.NewLogger("main")

	var backendSrv *backend.Server
	if cfg.RunsBackend() {
		catalog, err := backend.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		backendSrv, err = backend.New(backend.Options{
			Addr:    cfg.BackendAddr,
			Catalog: catalog,
			Dev:     cfg.Dev,
		})
		if err != nil {
			return err
		}
	}

	var proxy *server.Server
	if cfg.RunsProxy() {
		proxy = server.New(server.Options{
			Addr:           cfg.ProxyAddr,
			BackendURL:     cfg.BackendURL,
			BackendTimeout: cfg.BackendTimeout,
			Dev:            cfg.Dev,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	localLogger.Info("Starting in mode", cfg.Mode)
	if backendSrv != nil {
		g.Go(func() error { return backendSrv.Run(ctx) })
	}
	if proxy != nil {
		g.Go(func() error { return proxy.Run(ctx) })
	}
	if shell != nil {
		g.Go(func() error {
			// leaving the shell ends the process
			defer stop()
			return shell.Run(ctx)
		})
	}

	err := g.Wait()
	if err != nil {
		localLogger.Error("Stopped:", err)
	} else {
		localLogger.Info("Shutting down gracefully.")
	}
	return err
}
