// Package server wires and runs the remote document store: PostgreSQL
// storage, the gRPC document API and the operational HTTP endpoints.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/dmitrijs2005/smartyedu/internal/server/config"
	"github.com/dmitrijs2005/smartyedu/internal/server/httpapi"
	"github.com/dmitrijs2005/smartyedu/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/smartyedu/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/smartyedu/internal/server/grpc"
)

// Seams so tests can run without PostgreSQL.
var (
	openDB               = repomanager.Open
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	registry *prometheus.Registry
	grpc     *gs.GRPCServer
	http     *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {
	logger, err := logging.New(c.LogFormat, logOut)
	if err != nil {
		return nil, err
	}

	db, err := openDB(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := newRepositoryManager(logger)
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewDBStatsCollector(db, "smartyedu"))

	ds := services.NewDocumentService(db, m, logger, common.UsersCollection)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		registry: reg,
		grpc:     gs.NewGRPCServer(c.EndpointAddrGRPC, logger, ds, c.SecretKey, gs.NewMetrics(reg)),
		http:     httpapi.NewServer(c.EndpointAddrHTTP, httpapi.NewRouter(db, reg, logger), c.ShutdownTimeout, logger),
	}, nil
}

// Run serves gRPC and HTTP until ctx is done or either server fails.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.grpc.Run(ctx) })
	g.Go(func() error { return app.http.Run(ctx) })

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

func (app *App) Close() error {
	return app.db.Close()
}
