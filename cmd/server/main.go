package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/localfix/internal/admin"
	"github.com/sudo-init-do/localfix/internal/alerts"
	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/baas"
	"github.com/sudo-init-do/localfix/internal/bookings"
	"github.com/sudo-init-do/localfix/internal/config"
	"github.com/sudo-init-do/localfix/internal/db"
	"github.com/sudo-init-do/localfix/internal/jobs"
	"github.com/sudo-init-do/localfix/internal/logger"
	"github.com/sudo-init-do/localfix/internal/realtime"
	"github.com/sudo-init-do/localfix/internal/reviews"
	"github.com/sudo-init-do/localfix/internal/server"
	"github.com/sudo-init-do/localfix/internal/store"
	"github.com/sudo-init-do/localfix/internal/user"
)

const shutdownTimeout = 10 * time.Second

// notifier is every notification the handlers send.
type notifier interface {
	auth.WelcomeNotifier
	jobs.Notifier
	bookings.Notifier
	reviews.Notifier
}

func main() {
	root := &cobra.Command{
		Use:          "localfix",
		Short:        "LocalFix marketplace API",
		SilenceUsage: true,
		RunE:         func(cmd *cobra.Command, _ []string) error { return serve(cmd.Context()) },
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API, change listener and notification worker",
			RunE:  func(cmd *cobra.Command, _ []string) error { return serve(cmd.Context()) },
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Ensure the database schema and exit",
			RunE:  func(cmd *cobra.Command, _ []string) error { return migrate(cmd.Context()) },
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return cfg, nil, fmt.Errorf("logger: %w", err)
	}
	return cfg, log, nil
}

func migrate(ctx context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	pool, err := db.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Error("database", zap.Error(err))
		return err
	}
	defer pool.Close()

	db.EnsureSchema(ctx, pool, log)
	log.Info("schema ensured")
	return nil
}

func serve(ctx context.Context) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	pool, err := db.Open(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Error("database", zap.Error(err))
		return err
	}
	defer pool.Close()

	if cfg.EnsureSchema {
		db.EnsureSchema(ctx, pool, log)
	}

	st := store.New(pool)
	hub := realtime.NewHub(log)
	g, gctx := errgroup.WithContext(ctx)

	// runLogged keeps a background loop's failure from taking the API down.
	runLogged := func(name string, run func(context.Context) error) {
		g.Go(func() error {
			if err := run(gctx); err != nil {
				log.Error(name+" stopped", zap.Error(err))
			}
			return nil
		})
	}

	var notify notifier
	if cfg.RedisAddr != "" {
		opts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		client := asynq.NewClient(opts)
		defer client.Close()
		notify = alerts.NewNotifier(client)

		worker := alerts.NewServer(cfg.RedisAddr, log)
		proc := alerts.NewProcessor(st, alerts.NewMailer(cfg.SMTP), cfg.AppURL, log)
		if err := worker.Start(proc.Mux()); err != nil {
			return fmt.Errorf("notification worker: %w", err)
		}
		defer worker.Shutdown()

		rdb := realtime.NewRedis(cfg.RedisAddr, log)
		defer rdb.Close()
		// One instance listens and publishes; every instance's bridge feeds its hub.
		runLogged("change listener", realtime.NewListener(pool, st, realtime.NewRedisPublisher(rdb), log).Exclusive().Run)
		runLogged("realtime bridge", realtime.NewBridge(rdb, hub, log).Run)
	} else {
		notify = alerts.NewNop(log)
		runLogged("change listener", realtime.NewListener(pool, st, hub, log).Run)
	}

	verifier := baas.NewVerifier(cfg.BaasJWTSecret)
	authn := auth.NewAuthenticator(verifier, st, cfg.SessionCookie, log)
	bookingSvc := bookings.NewService(st, notify, log)

	e := server.New(cfg, log, authn, server.Handlers{
		Auth:     auth.NewHandler(baas.NewClient(cfg.BaasURL, cfg.BaasAnonKey, cfg.BaasServiceKey), st, notify, log),
		Jobs:     jobs.NewHandler(jobs.NewService(st, notify, log), log),
		Bookings: bookings.NewHandler(bookingSvc, log),
		Reviews:  reviews.NewHandler(st, authn, notify, log),
		Admin:    admin.NewHandler(st, bookingSvc, log),
		Alerts:   alerts.NewHandler(st, log),
		Realtime: realtime.NewFeed(st, hub, log),
		Users:    user.NewHandler(st, log),
	}, st)

	g.Go(func() error {
		log.Info("server listening", zap.String("port", cfg.Port))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return e.Shutdown(sctx)
	})

	return g.Wait()
}
