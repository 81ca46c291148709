package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"resource-manager/internal/activity"
	"resource-manager/internal/assignment"
	"resource-manager/internal/availability"
	"resource-manager/internal/config"
	"resource-manager/internal/dashboard"
	"resource-manager/internal/db"
	"resource-manager/internal/health"
	"resource-manager/internal/kafka"
	"resource-manager/internal/lock"
	"resource-manager/internal/logger"
	"resource-manager/internal/messaging"
	"resource-manager/internal/metrics"
	"resource-manager/internal/middleware"
	"resource-manager/internal/project"
	"resource-manager/internal/resource"
	"resource-manager/internal/schedule"
	"resource-manager/internal/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Models lists every table the service owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		(*resource.Resource)(nil),
		(*project.Project)(nil),
		(*assignment.Assignment)(nil),
		(*activity.Event)(nil),
	}
}

type App struct {
	config        *config.Config
	router        chi.Router
	server        *http.Server
	grpcServer    *grpc.Server
	healthServer  *grpchealth.Server
	db            *bun.DB
	health        *health.Handler
	meterProvider *sdkmetric.MeterProvider
	closers       []io.Closer
	logger        *slog.Logger
}

func New(cfg *config.Config) (*App, error) {
	slogLogger := logger.NewWithServiceContext(ServiceName, Version, logger.Options{
		Env:   cfg.Env,
		Level: cfg.LogLevel,
	})

	// Set as default logger so slog.Info() uses the same handler
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application", "env", cfg.Env, "commit", GitCommit, "build_time", BuildTime)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	ctx := context.Background()

	if cfg.Telemetry.Enabled {
		mp, err := telemetry.InitMeterProvider(ctx, cfg.Telemetry.OTLPEndpoint, ServiceName, Version, slogLogger)
		if err != nil {
			slogLogger.Warn("failed to initialize OTel metrics, continuing without export", "error", err)
		} else {
			app.meterProvider = mp
		}
	}

	meter := otel.Meter(ServiceName)
	appMetrics, err := metrics.New(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.db = database

	if err := db.RunMigrations(ctx, database, Models()...); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := appMetrics.DB().RegisterDB(database.DB, meter); err != nil {
		slogLogger.Warn("failed to register connection pool metrics", "error", err)
	}

	healthMetrics, err := metrics.NewHealthMetrics(meter)
	if err != nil {
		slogLogger.Warn("failed to create health metrics", "error", err)
	} else if err := healthMetrics.RegisterServiceInfo(meter, ServiceName, Version, cfg.Env); err != nil {
		slogLogger.Warn("failed to register service info", "error", err)
	}

	app.health = health.NewHandler(slogLogger).WithMetrics(healthMetrics).Add("database", func(ctx context.Context) error {
		return database.PingContext(ctx)
	})

	locker, err := app.newLocker(ctx)
	if err != nil {
		app.closeAll()
		return nil, err
	}

	publishers := app.newPublishers()

	store := activity.NewStore(database, appMetrics)
	emitter := activity.NewEmitter(slogLogger, appMetrics, publishers...)

	resourceRepo := resource.NewRepository(database, appMetrics)
	assignmentRepo := assignment.NewRepository(database, appMetrics)
	projectRepo := project.NewRepository(database, appMetrics)

	resourceService := resource.NewService(database, resourceRepo, store, emitter, time.Now, slogLogger)
	assignmentService := assignment.NewService(database, assignmentRepo, store, emitter, time.Now, appMetrics, slogLogger)
	projectService := project.NewService(project.Deps{
		DB:          database,
		Projects:    projectRepo,
		Assignments: assignmentRepo,
		Resources:   resourceRepo,
		Registry:    availability.NewRegistry(assignmentRepo, resourceRepo, appMetrics),
		Engine:      schedule.New(cfg.Scheduling.HoursPerDay),
		Locker:      locker,
		Store:       store,
		Emitter:     emitter,
		Clock:       time.Now,
		Metrics:     appMetrics,
		Logger:      slogLogger,
	})
	dashboardService := dashboard.NewService(resourceRepo, assignmentRepo, projectRepo, slogLogger)

	// gRPC health protocol for orchestrators; statuses follow the dependency checks
	app.grpcServer = grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	app.healthServer = grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(app.grpcServer, app.healthServer)
	app.health.Mirror(ctx, app.healthServer)

	app.router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	app.router.Use(middleware.Actor)

	app.health.RegisterRoutes(app.router)
	resource.NewHandler(resourceService, slogLogger).RegisterRoutes(app.router)
	project.NewHandler(projectService, slogLogger).RegisterRoutes(app.router)
	assignment.NewHandler(assignmentService, slogLogger).RegisterRoutes(app.router)
	dashboard.NewHandler(dashboardService, slogLogger).RegisterRoutes(app.router)
	activity.NewHandler(store, slogLogger).RegisterRoutes(app.router)

	slogLogger.Info("application initialized successfully")

	return app, nil
}

func (a *App) newLocker(ctx context.Context) (lock.Locker, error) {
	switch a.config.Lock.Driver {
	case "", "local":
		a.logger.Info("using in-process resource locks")
		return lock.NewLocal(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     a.config.Lock.Redis.Addr,
			Password: a.config.Lock.Redis.Password,
			DB:       a.config.Lock.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, client)
		a.health.Add("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		a.logger.Info("using redis resource locks", "addr", a.config.Lock.Redis.Addr, "ttl", a.config.Lock.TTL)
		return lock.NewRedis(client, a.config.Lock.TTL), nil
	default:
		return nil, fmt.Errorf("unknown lock driver %q", a.config.Lock.Driver)
	}
}

// newPublishers connects the configured audit sink. A sink that cannot be reached is
// logged and skipped; events are still stored in activity_logs.
func (a *App) newPublishers() []activity.Publisher {
	audit := a.config.Audit

	switch audit.Sink {
	case "nats":
		publisher, err := messaging.NewPublisher(audit.NATS.URL, audit.NATS.SubjectPrefix, a.logger)
		if err != nil {
			a.logger.Warn("failed to initialize NATS publisher", "error", err)
			return nil
		}
		a.closers = append(a.closers, publisher)
		a.health.Add("nats", func(context.Context) error {
			return publisher.HealthCheck()
		})
		return []activity.Publisher{publisher}
	case "kafka":
		producer, err := kafka.NewProducer(audit.Kafka.Brokers, audit.Kafka.Topic, a.logger)
		if err != nil {
			a.logger.Warn("failed to initialize Kafka producer", "error", err)
			return nil
		}
		a.closers = append(a.closers, producer)
		return []activity.Publisher{producer}
	case "", "none":
		return nil
	default:
		a.logger.Warn("unknown audit sink, events are only stored", "sink", audit.Sink)
		return nil
	}
}

// Handler exposes the router, used by tests.
func (a *App) Handler() http.Handler {
	return a.router
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%s", a.config.Grpc.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	go func() {
		a.logger.Info("gRPC health server starting", "port", a.config.Grpc.Port)
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			a.logger.Error("gRPC server error", "error", err)
		}
	}()

	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartHealthChecks re-runs the dependency checks every interval until ctx is done, updating the
// gRPC health statuses and logging failures.
func (a *App) StartHealthChecks(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if healthy := a.health.Mirror(checkCtx, a.healthServer); !healthy {
				a.logger.Warn("dependency health check failed")
			}
			cancel()
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var errs []error
	if a.healthServer != nil {
		a.healthServer.Shutdown()
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	a.closeAll()

	if err := telemetry.Shutdown(ctx, a.meterProvider, a.logger); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (a *App) closeAll() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("failed to close dependency", "error", err)
		}
	}
	a.closers = nil
	if a.db != nil {
		db.Close(a.db)
		a.db = nil
	}
}
