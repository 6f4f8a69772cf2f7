// Package app wires the smartyedu client: local storage, the remote document
// store, connectivity tracking, the sync scheduler and the interactive CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/smartyedu/internal/client/cli"
	"github.com/dmitrijs2005/smartyedu/internal/client/config"
	"github.com/dmitrijs2005/smartyedu/internal/client/connectivity"
	"github.com/dmitrijs2005/smartyedu/internal/client/handoff"
	"github.com/dmitrijs2005/smartyedu/internal/client/remote"
	"github.com/dmitrijs2005/smartyedu/internal/client/repositories/prefs"
	"github.com/dmitrijs2005/smartyedu/internal/client/repositories/referrals"
	patterns "github.com/dmitrijs2005/smartyedu/internal/client/repositories/tutor"
	"github.com/dmitrijs2005/smartyedu/internal/client/repositories/users"
	"github.com/dmitrijs2005/smartyedu/internal/client/scheduler"
	"github.com/dmitrijs2005/smartyedu/internal/client/services"
	"github.com/dmitrijs2005/smartyedu/internal/client/storage"
	"github.com/dmitrijs2005/smartyedu/internal/client/tutor"
	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	store   remote.Store
	monitor *connectivity.Monitor
	auth    *services.AuthService
	worker  *scheduler.Worker
	cli     *cli.App
}

// newRemoteStore is a seam so tests can avoid the network.
var newRemoteStore = func(ctx context.Context, c *config.Config) (remote.Store, error) {
	switch c.RemoteBackend {
	case config.BackendGRPC:
		tokens := remote.NewTokenSource(c.DeviceID, []byte(c.DeviceSecret), c.DeviceTokenTTL)
		return remote.NewGRPCStore(c.ServerEndpointAddr, tokens)
	case config.BackendS3:
		return remote.NewS3Store(ctx, remote.S3Config{
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Bucket:       c.S3Bucket,
		})
	default:
		return nil, fmt.Errorf("unknown remote backend %q", c.RemoteBackend)
	}
}

// NewApp opens local storage and builds every component. logOut receives
// structured logs; keep it away from the REPL's stdout.
func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger, err := logging.New(c.LogFormat, logOut)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(ctx, c.DatabasePath, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	key, err := prefs.LoadDeviceKey(c.DeviceKeyPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("device key: %w", err)
	}

	opener, err := handoff.NewOpener(c.HandoffMode, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	store, err := newRemoteStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("remote store: %w", err)
	}

	sessions := prefs.NewSessionStore(prefs.NewSealedRepository(prefs.NewSQLiteRepository(db), key))
	userRepo := users.NewSQLiteRepository(db)
	monitor := connectivity.NewMonitor(store, c.OnlineCheckInterval, logger)

	auth := services.NewAuthService(userRepo, sessions, monitor, c.TrialPeriod, logger)
	syncer := services.NewSyncService(userRepo, store, monitor, logger)
	cleanup := services.NewCleanupService(userRepo, sessions, c.CleanupGrace, logger)
	refs := services.NewReferralService(referrals.NewSQLiteRepository(db), monitor, opener, c.SupportPhone, logger)
	responder := tutor.NewPatternResponder(patterns.NewSQLiteRepository(db), c.TutorSubject, logger)

	worker := scheduler.NewWorker(syncer, monitor, scheduler.Config{Interval: c.SyncInterval}, logger,
		scheduler.Hook{Name: "promote-session", Fn: func(ctx context.Context) error {
			_, err := auth.PromoteSession(ctx)
			return err
		}},
		scheduler.Hook{Name: "cleanup", When: scheduler.AfterSettled, Fn: func(ctx context.Context) error {
			_, err := cleanup.Run(ctx)
			return err
		}},
		scheduler.Hook{Name: "pull-role", When: scheduler.AfterSettled, Fn: func(ctx context.Context) error {
			u, err := auth.CurrentUser(ctx)
			if err != nil {
				if errors.Is(err, services.ErrNoSession) || errors.Is(err, common.ErrorNotFound) {
					return nil
				}
				return err
			}
			_, err = syncer.PullRole(ctx, u.LocalID)
			return err
		}},
		scheduler.Hook{Name: "refresh-access", When: scheduler.AfterSettled, Fn: func(ctx context.Context) error {
			auth.Refresh(ctx)
			return nil
		}},
	)

	return &App{
		config:  c,
		logger:  logger,
		db:      db,
		store:   store,
		monitor: monitor,
		auth:    auth,
		worker:  worker,
		cli:     cli.NewApp(auth, worker, refs, responder, monitor),
	}, nil
}

// Run blocks until the REPL exits or ctx is cancelled. A REPL blocked on
// stdin is abandoned on cancellation.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.auth.Refresh(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.monitor.Run(gctx)
		return nil
	})
	g.Go(func() error {
		a.worker.Start(gctx)
		return nil
	})
	g.Go(func() error {
		a.reconcileOnReconnect(gctx)
		return nil
	})

	replDone := make(chan struct{})
	go func() {
		defer close(replDone)
		a.cli.Run(gctx)
	}()

	select {
	case <-replDone:
	case <-ctx.Done():
	}
	cancel()

	a.logger.Info(ctx, "shutting down")
	return g.Wait()
}

// reconcileOnReconnect triggers a sync each time connectivity comes back.
func (a *App) reconcileOnReconnect(ctx context.Context) {
	states, unsubscribe := a.monitor.Watch()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-states:
			if !ok {
				return
			}
			a.auth.Refresh(ctx)
			if online {
				a.worker.TriggerNow()
			}
		}
	}
}

// Close releases the remote connection and the database.
func (a *App) Close() error {
	return errors.Join(a.store.Close(), a.db.Close())
}
