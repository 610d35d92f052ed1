// README: Composition root; builds stores, pool, ledger, notifier, lifecycle and dispatcher from config.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"ridehail/internal/config"
	httptransport "ridehail/internal/http"
	"ridehail/internal/infra"
	"ridehail/internal/logger"
	"ridehail/internal/maps"
	"ridehail/internal/modules/availability"
	"ridehail/internal/modules/dispatch"
	"ridehail/internal/modules/driver"
	"ridehail/internal/modules/notification"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/modules/ride"
	"ridehail/internal/modules/route"
	"ridehail/internal/modules/worktime"
)

// App is the wired engine. Close it to drain notifications and release
// connections.
type App struct {
	Rides         *ride.Service
	Lifecycle     *ride.Lifecycle
	RideStore     ride.Store
	Dispatcher    *dispatch.Dispatcher
	Scheduler     *dispatch.Scheduler
	Drivers       *driver.Service
	Ledger        *worktime.Ledger
	Routes        *route.Service
	Notifications *notification.Service
	Fanout        *notification.Fanout
	Pool          availability.Pool
	Server        *httptransport.Server

	db    *pgxpool.Pool
	redis *redis.Client
	log   logger.ILogger
}

type stores struct {
	rides         ride.Store
	routes        routeStore
	drivers       driver.Store
	worktime      worktime.Store
	notifications notification.Store
	rates         pricing.RateSource
	tx            ride.TxManager
}

// routeStore covers both the ride service's and the favorites' needs.
type routeStore interface {
	route.Store
	ride.RouteStore
}

// Compose connects to Postgres and Redis when they are configured and falls
// back to in-memory implementations for whichever is not.
func Compose(ctx context.Context, cfg config.Config, log logger.ILogger) (*App, error) {
	app := &App{log: log}

	st, err := app.openStores(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	var publisher notification.Publisher = notification.NewLogPublisher(log.Named("publisher"))
	if cfg.Redis.Addr != "" {
		app.redis, err = infra.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.Pool = availability.NewRedisPool(app.redis)
		publisher = notification.NewRedisPublisher(app.redis)
	} else {
		app.Pool = availability.NewMemoryPool()
	}

	router, err := newRouter(cfg, log)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Ledger = worktime.NewLedger(st.worktime, cfg.Dispatch.MaxDailyWork, cfg.Location, log.Named("worktime"))
	app.Fanout = notification.NewFanout(st.notifications, publisher, notification.Options{
		Shards:  cfg.Notify.Shards,
		Buffer:  cfg.Notify.Buffer,
		Retries: cfg.Notify.Retries,
		Backoff: cfg.Notify.Backoff,
	}, log.Named("notification"))
	app.Notifications = notification.NewService(st.notifications)

	app.RideStore = st.rides
	app.Lifecycle = ride.NewLifecycle(st.rides, st.tx, app.Pool, app.Ledger, app.Fanout, log.Named("lifecycle"))
	app.Dispatcher = dispatch.NewDispatcher(app.Pool, st.drivers, app.Ledger, app.Lifecycle, log.Named("dispatch"))
	app.Scheduler = dispatch.NewScheduler(st.rides, app.Dispatcher,
		time.Duration(cfg.Dispatch.TickSeconds)*time.Second, cfg.Dispatch.ScheduledBatch, log.Named("scheduler"))
	app.Rides = ride.NewService(ride.ServiceDeps{
		Store:      st.rides,
		Routes:     st.routes,
		Tx:         st.tx,
		Router:     router,
		Pricer:     pricing.NewService(st.rates),
		Dispatcher: app.Dispatcher,
		Notifier:   app.Fanout,
		Log:        log.Named("ride"),
	})
	app.Drivers = driver.NewService(st.drivers, app.Pool, st.rides)
	app.Routes = route.NewService(st.routes)

	app.Server = httptransport.NewServer(httptransport.ServerDeps{
		Rides:         app.Rides,
		Lifecycle:     app.Lifecycle,
		Drivers:       app.Drivers,
		Ledger:        app.Ledger,
		Routes:        app.Routes,
		Notifications: app.Notifications,
		Log:           log.Named("http"),
	})
	return app, nil
}

func (a *App) openStores(ctx context.Context, cfg config.Config) (stores, error) {
	if cfg.DB.DSN == "" {
		a.log.Warning("ARK_DB_DSN not set, using in-memory stores")
		return stores{
			rides:         ride.NewMemoryStore(),
			routes:        route.NewMemoryStore(),
			drivers:       driver.NewMemoryStore(),
			worktime:      worktime.NewMemoryStore(),
			notifications: notification.NewMemoryStore(),
			tx:            infra.NoTx{},
		}, nil
	}

	if cfg.DB.Migrate {
		if err := infra.Migrate(cfg.DB.DSN, a.log.Named("migrate")); err != nil {
			return stores{}, fmt.Errorf("migrate: %w", err)
		}
	}
	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return stores{}, fmt.Errorf("postgres: %w", err)
	}
	a.db = db
	return stores{
		rides:         ride.NewPgStore(db),
		routes:        route.NewPgStore(db),
		drivers:       driver.NewPgStore(db),
		worktime:      worktime.NewPgStore(db),
		notifications: notification.NewPgStore(db),
		rates:         pricing.NewStore(db),
		tx:            infra.NewPgTxManager(db),
	}, nil
}

func newRouter(cfg config.Config, log logger.ILogger) (ride.Router, error) {
	if cfg.Maps.APIKey == "" {
		log.Warning("ARK_MAPS_API_KEY not set, routing with straight lines")
		return maps.StraightLineRouter{}, nil
	}
	rs, err := maps.NewRouteService(cfg.Maps.APIKey)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// ReconcileOrphans credits and closes ledger rows left active by a previous
// process for drivers that are no longer on a ride.
func (a *App) ReconcileOrphans(ctx context.Context) error {
	n, err := a.Ledger.ReconcileOrphans(ctx, a.RideStore.HasOngoingForDriver)
	if err != nil {
		return err
	}
	if n > 0 {
		a.log.Info("closed orphaned working-time intervals", logger.Int("count", n))
	}
	return nil
}

// Close drains the notification fanout, then closes the connections.
func (a *App) Close() {
	if a.Fanout != nil {
		a.Fanout.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
