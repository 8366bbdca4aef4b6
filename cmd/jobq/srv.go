package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"jobq/internal/config"
	"jobq/internal/queue"
	"jobq/internal/server"
	"jobq/internal/store"
)

func newSrvCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "srv",
		Short: "Run the jobq API server and lease reclaimer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg == nil {
				return fmt.Errorf("config not initialized")
			}
			if cfg.DBPath == "" {
				return fmt.Errorf("db path is required")
			}

			logger := slog.Default().With("component", "server")

			addr, err := server.ListenAddr(cfg.APIURL)
			if err != nil {
				return err
			}

			unlock, err := lockDatabase(cfg.DBPath)
			if err != nil {
				return err
			}
			defer unlock()

			logger.Info("opening database", "path", cfg.DBPath)
			st, err := store.Open(storeOptions(cfg))
			if err != nil {
				return err
			}
			defer st.Close()

			registry := prometheus.NewRegistry()
			registry.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			manager := queue.NewManager(st, queueConfig(cfg),
				queue.WithLogger(slog.Default()),
				queue.WithMetrics(queue.NewMetrics(registry)),
			)
			srv := server.New(server.Options{
				Addr:            addr,
				DBPath:          cfg.DBPath,
				Queue:           manager,
				Logger:          logger,
				Registry:        registry,
				SubmitRate:      cfg.Limits.SubmitRate,
				SubmitBurst:     cfg.Limits.SubmitBurst,
				MaxMessageBytes: cfg.Limits.MaxMessageBytes,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.ListenAndServe(gctx) })
			g.Go(func() error { return manager.RunReclaimer(gctx) })
			return g.Wait()
		},
	}
}

// lockDatabase makes the server the only one serving dbPath. Session
// teardown coordinates with in-flight leases in memory, so a second server on
// the same file would break it.
func lockDatabase(dbPath string) (func(), error) {
	lock := flock.New(dbPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("another jobq server is already using %s", dbPath)
	}
	return func() { _ = lock.Unlock() }, nil
}

func storeOptions(cfg *config.Config) store.Options {
	return store.Options{
		Path:         cfg.DBPath,
		BusyTimeout:  time.Duration(cfg.Store.BusyTimeoutMS) * time.Millisecond,
		MaxOpenConns: cfg.Store.MaxOpenConns,
	}
}

func queueConfig(cfg *config.Config) queue.Config {
	return queue.Config{
		LeaseTTL:        cfg.Queue.LeaseTTL,
		ReclaimInterval: cfg.Queue.ReclaimInterval,
		DrainTimeout:    cfg.Reaper.DrainTimeout,
		PollInterval:    cfg.Reaper.PollInterval,
		ForceExpire:     cfg.Reaper.ForceExpire,
	}
}
