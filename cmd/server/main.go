package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"gatehouse/internal/audit"
	"gatehouse/internal/authz"
	"gatehouse/internal/catalog"
	"gatehouse/internal/grant"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/httpserver"
	"gatehouse/internal/platform/logger"
	"gatehouse/internal/platform/metrics"
	"gatehouse/internal/policy"
	"gatehouse/internal/principal"
	"gatehouse/internal/proof"
	"gatehouse/internal/scope"
	"gatehouse/internal/snapshot"
	httptransport "gatehouse/internal/transport/http"
)

const (
	accessTokenTTL   = time.Hour
	closureCacheSize = 4096
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal services; nothing here evaluates anything.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	// The locked role catalog. A seed that fails validation, including an
	// external system with zero mappings, refuses startup outright.
	roleCatalog, err := catalog.Load(catalog.DefaultSeed())
	if err != nil {
		log.Error("capability catalog rejected", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db   *sql.DB
		pool *pgxpool.Pool

		scopeStore     scope.Store
		grantStore     grant.Store
		auditStore     audit.Store
		principalStore principal.Store
		sessionStore   principal.SessionStore
		policyStore    policy.Store
		proofStore     proof.Store
	)
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pool, err = pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		scopeStore = scope.NewPostgres(db)
		grantStore = grant.NewPostgres(db)
		auditStore = audit.NewPostgres(db)
		policyStore = policy.NewPostgres(db)
		proofStore = proof.NewPostgres(pool)
		principalStore = principal.NewPostgres(db)
		log.Info("stores backed by postgres")
	} else {
		scopeStore = scope.NewInMemory()
		grantStore = grant.NewInMemory()
		auditStore = audit.NewInMemory()
		policyStore = policy.NewInMemory()
		proofStore = proof.NewInMemory()
		principalStore = principal.NewInMemory()
		log.Info("stores backed by memory, set POSTGRES_DSN for persistence")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		sessionStore = principal.NewSessionRedis(rdb)
		scopeStore = scope.NewRedisClosureCache(scopeStore, rdb, cfg.ScopeClosureTTL)
	} else {
		sessionStore = principal.NewSessionInMemory()
		scopeStore = scope.NewCachedStore(scopeStore, closureCacheSize, cfg.ScopeClosureTTL)
	}

	if len(cfg.KafkaBrokers) > 0 && db != nil {
		publisher, err := audit.NewPublisher(ctx, db, cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("failed to start audit publisher", "error", err)
			os.Exit(1)
		}
		go func() {
			if err := publisher.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error("audit publisher stopped", "error", err)
			}
		}()
	}

	evaluatorOpts := []authz.Option{authz.WithLogger(log), authz.WithMetrics(m)}
	if db != nil {
		// One transaction per decision: grant reads and the audit append
		// commit together.
		evaluatorOpts = append(evaluatorOpts, authz.WithDB(db))
	}
	evaluator := authz.New(principalStore, scopeStore, roleCatalog, grantStore, auditStore, evaluatorOpts...)
	snapshots := snapshot.New(principalStore, scopeStore, roleCatalog, grantStore, auditStore,
		snapshot.WithLogger(log), snapshot.WithMetrics(m))
	impersonation := principal.NewResolver(principalStore, sessionStore, auditStore,
		principal.WithLogger(log), principal.WithMetrics(m))
	policies := policy.NewResolver(policyStore, policy.WithLogger(log))
	exporter := proof.NewExporter(proofStore, policies, auditStore,
		proof.WithLogger(log), proof.WithMetrics(m))

	bearerTokens := principal.NewAccessTokenIssuer(cfg.JWTSigningKey, accessTokenTTL)
	sessionTokens := principal.NewTokenIssuer(cfg.ImpersonationSigningKey)

	handler := httptransport.NewHandler(
		evaluator,
		snapshots,
		impersonation,
		sessionTokens,
		exporter,
		policyStore,
		scope.NewDirectory(scopeStore),
		log,
		m,
	)
	router := httptransport.NewRouter(handler, cfg, bearerTokens, impersonation)

	srv := httpserver.New(cfg.Addr, router)
	go func() {
		log.Info("starting gatehouse", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
