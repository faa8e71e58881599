package bootstrap

import (
	"context"
	"fmt"

	"github.com/eidos-ontology/eidos/internal/api"
	"github.com/eidos-ontology/eidos/internal/api/handler"
	"github.com/eidos-ontology/eidos/internal/pkg/config"
	"github.com/eidos-ontology/eidos/internal/pkg/logger"
	"github.com/eidos-ontology/eidos/internal/pkg/postgres"
	"github.com/eidos-ontology/eidos/internal/repository"
	"github.com/eidos-ontology/eidos/internal/service"
)

type Application struct {
	Config   *config.Config
	Logger   *logger.Logger
	Postgres *postgres.Connection
	Migrator *postgres.Migrator

	OntologyRepo     *repository.OntologyRepo
	MergeRequestRepo repository.MergeRequestRepository
	ChangeRepo       repository.ChangeRepository
	CommentRepo      repository.CommentRepository
	PermissionRepo   repository.PermissionRepository

	OntologyService     *service.OntologyService
	MergeRequestService *service.MergeRequestService

	OntologyHandler     *handler.OntologyHandler
	MergeRequestHandler *handler.MergeRequestHandler

	HTTPServer *api.HTTPServer
}

func New() (*Application, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		AddSource: cfg.LogAddSource,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	pg, err := postgres.New(log, &postgres.Config{
		Host:              cfg.DatabaseHost,
		Port:              cfg.DatabasePort,
		Username:          cfg.DatabaseUser,
		Password:          cfg.DatabasePassword,
		Database:          cfg.DatabaseName,
		Schema:            cfg.DatabaseSchema,
		SSLMode:           cfg.DatabaseSSLMode,
		MaxConns:          cfg.DatabaseMaxConns,
		MinConns:          cfg.DatabaseMinConns,
		MaxConnLifetime:   cfg.DatabaseMaxConnLifetime,
		MaxConnIdleTime:   cfg.DatabaseMaxConnIdleTime,
		HealthCheckPeriod: cfg.DatabaseHealthCheckPeriod,
		ConnectTimeout:    cfg.DatabaseConnectTimeout,
		AcquireTimeout:    cfg.DatabaseAcquireTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres connection: %w", err)
	}

	return &Application{
		Config:   cfg,
		Logger:   log,
		Postgres: pg,
	}, nil
}

func (app *Application) Init(ctx context.Context) error {
	app.Logger.Info("initializing application")

	if err := app.Postgres.Connect(ctx); err != nil {
		return fmt.Errorf("postgres connection failed: %w", err)
	}

	app.Migrator = postgres.NewMigrator(app.Postgres.Pool(), &postgres.MigrationConfig{
		Timeout:   app.Config.DatabaseMigrationTimeout,
		TableName: app.Config.DatabaseMigrationTable,
		Enabled:   app.Config.DatabaseMigrationEnabled,
	}, app.Logger)

	if err := app.Migrator.RunMigrations(ctx); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	pool := app.Postgres.Pool()
	app.OntologyRepo = repository.NewOntologyRepo(pool, app.Logger)
	app.MergeRequestRepo = repository.NewMergeRequestRepo(pool, app.Logger)
	app.ChangeRepo = repository.NewChangeRepo(pool, app.Logger)
	app.CommentRepo = repository.NewCommentRepo(pool, app.Logger)
	app.PermissionRepo = repository.NewPermissionRepo(pool, app.Logger)

	app.OntologyService = service.NewOntologyService(app.OntologyRepo, app.PermissionRepo, app.Logger)
	app.MergeRequestService = service.NewMergeRequestService(
		app.MergeRequestRepo,
		app.ChangeRepo,
		app.CommentRepo,
		app.OntologyRepo,
		app.OntologyRepo, // also serves live entity state reads
		app.PermissionRepo,
		app.Logger,
	)

	app.OntologyHandler = handler.NewOntologyHandler(app.OntologyService, app.MergeRequestService, app.Logger)
	app.MergeRequestHandler = handler.NewMergeRequestHandler(app.MergeRequestService, app.Logger)

	serverConfig := &api.ServerConfig{
		Host:         app.Config.ServerHost,
		Port:         app.Config.ServerPort,
		ReadTimeout:  app.Config.ServerReadTimeout,
		WriteTimeout: app.Config.ServerWriteTimeout,
		IdleTimeout:  app.Config.ServerIdleTimeout,
	}

	app.HTTPServer = api.NewHTTPServer(
		serverConfig,
		app.OntologyHandler,
		app.MergeRequestHandler,
		app.Logger,
	)

	if err := app.HTTPServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	app.Logger.Info("application initialized successfully")
	return nil
}

func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("shutting down application")

	if app.HTTPServer != nil {
		if err := app.HTTPServer.Stop(ctx); err != nil {
			app.Logger.Error("error stopping http server", "error", err)
		}
	}

	app.Postgres.Close()

	app.Logger.Info("application shutdown completed")
	return nil
}

func (app *Application) Health(ctx context.Context) error {
	if err := app.Postgres.Health(ctx); err != nil {
		return fmt.Errorf("postgres health check failed: %w", err)
	}
	if err := app.Migrator.Health(ctx); err != nil {
		return fmt.Errorf("migrator health check failed: %w", err)
	}
	return nil
}
