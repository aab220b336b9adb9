// Package app initializes and runs the journal user service.
// It configures logging, storage, authentication, the HTTP router and the
// gRPC server, and handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/patric-chuzhbe/journalapp/internal/auth"
	"github.com/patric-chuzhbe/journalapp/internal/config"
	"github.com/patric-chuzhbe/journalapp/internal/db/jsondb"
	"github.com/patric-chuzhbe/journalapp/internal/db/memorystorage"
	"github.com/patric-chuzhbe/journalapp/internal/db/mongodb"
	"github.com/patric-chuzhbe/journalapp/internal/db/postgresdb"
	"github.com/patric-chuzhbe/journalapp/internal/db/redisdb"
	"github.com/patric-chuzhbe/journalapp/internal/db/sqlitedb"
	"github.com/patric-chuzhbe/journalapp/internal/db/storage"
	"github.com/patric-chuzhbe/journalapp/internal/grpcserver"
	"github.com/patric-chuzhbe/journalapp/internal/ipchecker"
	"github.com/patric-chuzhbe/journalapp/internal/logger"
	"github.com/patric-chuzhbe/journalapp/internal/models"
	"github.com/patric-chuzhbe/journalapp/internal/password"
	"github.com/patric-chuzhbe/journalapp/internal/router"
	"github.com/patric-chuzhbe/journalapp/internal/service"
)

const shutdownTimeout = 10 * time.Second

// App encapsulates the configuration, storage backend and the HTTP and gRPC
// servers of the journal user service.
type App struct {
	cfg         *config.Config
	db          storage.Storage
	httpHandler http.Handler
	grpcServer  *grpc.Server
	grpcLis     net.Listener
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - setting up authentication, the router and the gRPC server
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	signingKey, err := app.cfg.SigningKey()
	if err != nil {
		return nil, err
	}

	hasher, err := password.New(app.cfg.PasswordHasher)
	if err != nil {
		return nil, err
	}

	checker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	svc := service.New(app.db, hasher)
	authenticator := auth.New(
		app.db,
		app.cfg.AuthCookieName,
		signingKey,
		app.cfg.AuthTokenTTL,
		auth.WithRehash(hasher),
	)

	app.httpHandler = router.New(svc, authenticator, checker, app.cfg.CORSAllowedOrigins)

	if app.cfg.GRPCRunAddr != "" {
		app.grpcServer, app.grpcLis, err = grpcserver.NewGRPCServer(
			app.cfg.GRPCRunAddr,
			grpcserver.NewUserHandler(svc),
			authenticator,
		)
		if err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Run starts the HTTP server, and the gRPC server when configured, with
// graceful shutdown support. It listens for system signals and cleans up
// resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 2)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	if a.grpcServer != nil {
		logger.Log.Infoln("gRPC server running", "GRPCRunAddr", a.grpcLis.Addr().String())
		go func() {
			serverErrCh <- a.grpcServer.Serve(a.grpcLis)
		}()
	}

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Closing storage and exiting...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if a.grpcServer != nil {
			a.grpcServer.GracefulStop()
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		return a.db.Close()

	case err := <-serverErrCh:
		if a.grpcServer != nil {
			a.grpcServer.Stop()
		}
		if closeErr := a.db.Close(); closeErr != nil {
			logger.Log.Debugln("Error calling the `a.db.Close()`: ", zap.Error(closeErr))
		}
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	switch {
	case cfg.DatabaseDSN != "":
		return models.StorageTypePostgresql
	case cfg.MongoURI != "":
		return models.StorageTypeMongo
	case cfg.RedisAddress != "":
		return models.StorageTypeRedis
	case cfg.SQLitePath != "":
		return models.StorageTypeSQLite
	case cfg.DBFileName != "":
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	ctx := context.Background()

	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			ctx,
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeMongo:
		return mongodb.New(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.DBConnectionTimeout)

	case models.StorageTypeRedis:
		return redisdb.New(ctx, cfg.RedisAddress, cfg.RedisPassword)

	case models.StorageTypeSQLite:
		return sqlitedb.New(ctx, cfg.SQLitePath)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
