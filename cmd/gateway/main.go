// Command gateway wires together the FIX 4.2 order-replication
// components: configuration, the reference cache, the event store, the
// Replication and Locate engines, the Execution-Report Dispatcher, and
// the health/metrics HTTP surface. It does not implement a FIX session
// transport (spec.md §4.1/§6 leave that to an external collaborator) —
// inbound ExecutionReports are fed to the Dispatcher by whatever
// transport a deployment wires in, and outbound messages are sent
// through a fixtransport.LoggingSender unless a real one is provided.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/epic1st/shadowfix/internal/alerting"
	"github.com/epic1st/shadowfix/internal/config"
	"github.com/epic1st/shadowfix/internal/dispatch"
	"github.com/epic1st/shadowfix/internal/fixtransport"
	"github.com/epic1st/shadowfix/internal/health"
	"github.com/epic1st/shadowfix/internal/locate"
	"github.com/epic1st/shadowfix/internal/logging"
	"github.com/epic1st/shadowfix/internal/refcache"
	"github.com/epic1st/shadowfix/internal/replicate"
	"github.com/epic1st/shadowfix/internal/session"
	"github.com/epic1st/shadowfix/internal/store"
	"github.com/epic1st/shadowfix/internal/workerpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	logger := logging.New(os.Stderr, cfg.Environment)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cache := refcache.New(cfg.ReferenceDataSeedPath, logger)
	if err := cache.Refresh(ctx); err != nil {
		log.Fatalf("loading reference cache: %v", err)
	}

	eventStore, closeStore := buildEventStore(ctx, cfg, logger)
	defer closeStore()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	go refcache.Subscribe(ctx, rdb, cache, logger)

	sender := fixtransport.NewLoggingSender(logger)
	alerts := alerting.New(cfg.OpsAlertTelegramBotToken, cfg.OpsAlertTelegramChatID, logger)

	locateEngine := locate.New(locate.Deps{
		Store:               eventStore,
		Cache:               cache,
		Sender:              sender,
		Logger:              logger,
		Decision:            locate.NewLocateDecisionService(cfg.LocateRiskWebhookURL, logger),
		Alerts:              alerts,
		OrderEntrySessionID: primaryShadowSession(cfg),
		LocateTimeout:       time.Duration(cfg.LocateTimeoutSeconds) * time.Second,
	})
	go locateEngine.RunTimeoutMonitor(ctx)

	replicationEngine := replicate.New(replicate.Deps{
		Store:               eventStore,
		Cache:               cache,
		Sender:              sender,
		Logger:              logger,
		Locate:              locateEngine,
		OrderEntrySessionID: primaryShadowSession(cfg),
	})

	pool := workerpool.New(cfg.WorkerPoolSize)
	dispatcher := dispatch.New(dispatch.Deps{
		Replication: replicationEngine,
		Locate:      locateEngine,
		Lookup:      cache.AccountByNumber,
		Pool:        pool,
		Logger:      logger,
	})

	registry := session.NewFixSessionRegistry()
	registry.Register(cfg.PrimarySession, session.RoleDropCopy)
	for _, policy := range cfg.ShadowPolicies {
		if policy.SessionID != "" {
			registry.Register(policy.SessionID, session.RoleOrderEntry)
		}
	}
	sessionRouter := session.New(session.Deps{Registry: registry, Alerts: alerts, Logger: logger})

	// The FIX session transport (wire framing, sequence numbers,
	// gap-fill) is an external collaborator per spec.md §4.1/§6: a
	// deployment's transport adapter calls dispatcher.DispatchExecutionReport
	// and dispatcher.DispatchQuoteResponse for inbound traffic, and
	// sessionRouter.HandleLogon/HandleLogout for admin messages, once it
	// decodes frames off the wire. Neither is driven by this process on
	// its own.
	logger.Info("dispatcher and session router ready for a transport adapter",
		logging.Bool("dropCopyRegistered", cfg.PrimarySession != ""))

	healthServer := health.New(map[string]health.Checker{
		"referenceCache": func(context.Context) error { return readyCheck(cache.Ready()) },
		"eventStore":     eventStore.Ping,
		"workerPool":     func(context.Context) error { return readyCheck(!pool.Stats().Draining) },
	})
	httpServer := &http.Server{Addr: cfg.MetricsAddr, Handler: healthServer.Mux()}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health/metrics server stopped", logging.Err(err))
		}
	}()

	logger.Info("shadowfix gateway started", logging.String("metricsAddr", cfg.MetricsAddr))
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	pool.Drain(30 * time.Second)
}

func primaryShadowSession(cfg *config.Config) string {
	for _, policy := range cfg.ShadowPolicies {
		if policy.SessionID != "" {
			return policy.SessionID
		}
	}
	return ""
}

func buildEventStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (store.EventStore, func()) {
	if cfg.PostgresDSN == "" {
		logger.Info("no POSTGRES_DSN configured, using in-memory event store")
		return store.NewMemoryStore(), func() {}
	}

	migrationPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connecting to postgres: %v", err)
	}
	migrator := store.NewMigrator(migrationPool)
	if err := migrator.Initialize(ctx); err != nil {
		log.Fatalf("initializing schema_migrations: %v", err)
	}
	if err := migrator.Up(ctx); err != nil {
		log.Fatalf("applying migrations: %v", err)
	}
	migrationPool.Close()

	pgStore, err := store.NewPostgresStore(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("building postgres event store: %v", err)
	}
	return pgStore, pgStore.Close
}

var errNotReady = errors.New("dependency not ready")

func readyCheck(ok bool) error {
	if ok {
		return nil
	}
	return errNotReady
}
