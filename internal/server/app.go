// Package server wires the token core together: database and blacklist
// backends, the token service, the HTTP and gRPC listeners, and the periodic
// cleanup and audit flush jobs.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/campusgate/internal/logging"
	"github.com/dmitrijs2005/campusgate/internal/server/audit"
	"github.com/dmitrijs2005/campusgate/internal/server/auth"
	"github.com/dmitrijs2005/campusgate/internal/server/config"
	"github.com/dmitrijs2005/campusgate/internal/server/repositories/blacklist"
	"github.com/dmitrijs2005/campusgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/campusgate/internal/server/scheduler"
	"github.com/dmitrijs2005/campusgate/internal/server/services"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	gs "github.com/dmitrijs2005/campusgate/internal/server/grpc"
	hs "github.com/dmitrijs2005/campusgate/internal/server/http"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	redis     *redis.Client
	archive   *audit.S3Archive
	tokens    *services.TokenService
	scheduler *scheduler.Scheduler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.SlogLevel())

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	var opts []repomanager.Option
	if c.BlacklistBackend == config.BackendRedis {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			app.close()
			return nil, fmt.Errorf("redis ping error: %w", err)
		}
		opts = append(opts, repomanager.WithBlacklist(blacklist.NewRedisRepository(app.redis)))
	}
	rm := repomanager.NewPostgresRepositoryManager(opts...)

	if err := rm.RunMigrations(ctx, db); err != nil {
		app.close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	sinks := audit.Tee{audit.NewLogSink(logger)}
	if c.S3AuditBucket != "" {
		app.archive, err = audit.NewS3Archive(ctx, c)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("audit archive init error: %w", err)
		}
		sinks = append(sinks, app.archive)
	}

	codec := auth.NewCodec([]byte(c.SecretKey))
	app.tokens = services.NewTokenService(db, rm, codec, c, sinks, logger)

	sweeper := services.NewSweeper(db, rm, codec.Now, logger)
	tasks := []scheduler.Task{{Name: "token-cleanup", Interval: c.CleanupInterval, Run: sweeper.Run}}
	if app.archive != nil {
		tasks = append(tasks, scheduler.Task{Name: "audit-flush", Interval: c.AuditFlushInterval, Run: app.archive.Flush})
	}
	app.scheduler = scheduler.New(logger, tasks...)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a signal arrives or one of the listeners fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	httpServer := hs.NewServer(app.config.EndpointAddrHTTP, app.tokens, hs.Options{
		RefreshLimit: rate.Limit(app.config.RefreshRateLimit),
		RefreshBurst: app.config.RefreshRateBurst,
		CookieSecure: app.config.CookieSecure,
	}, app.logger)
	grpcServer := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.tokens)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpServer.Run(ctx) })
	g.Go(func() error { return grpcServer.Run(ctx) })
	g.Go(func() error { return app.scheduler.Start(ctx) })

	err := g.Wait()
	if err != nil {
		app.logger.Error(ctx, "server stopped with error", "error", err)
	}

	app.close()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

func (app *App) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if app.archive != nil {
		if err := app.archive.Flush(ctx); err != nil {
			app.logger.Error(ctx, "final audit flush failed", "error", err, "pending", app.archive.Pending())
		}
	}
	if app.redis != nil {
		_ = app.redis.Close()
	}
	if app.db != nil {
		_ = app.db.Close()
	}
}
