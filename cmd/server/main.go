package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/glazecorp/glaze-engine/internal/aggregator"
	"github.com/glazecorp/glaze-engine/internal/bounds"
	"github.com/glazecorp/glaze-engine/internal/chain"
	"github.com/glazecorp/glaze-engine/internal/config"
	"github.com/glazecorp/glaze-engine/internal/logger"
	"github.com/glazecorp/glaze-engine/internal/metrics"
	"github.com/glazecorp/glaze-engine/internal/oracle"
	"github.com/glazecorp/glaze-engine/internal/profile"
	"github.com/glazecorp/glaze-engine/internal/store"
	"github.com/glazecorp/glaze-engine/internal/terminal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	level, _ := logger.ParseLevel(cfg.LogLevel)
	log := logger.New(os.Stdout, cfg.LogFormat, level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			log.Error("database migration failed", "err", err)
			os.Exit(1)
		}
		st = pg
		log.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				log.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, cfg.CacheTTL)
			log.Info("Redis cache enabled")
		}
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store (glaze history will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Chain ---
	client, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		log.Error("rpc connection failed", "url", cfg.RPCURL, "err", err)
		os.Exit(1)
	}
	defer client.Close()
	reader := chain.NewReader(client, cfg.Book)

	// --- Off-chain sources ---
	prices, err := oracle.NewClient(oracle.Config{
		Logger:       log,
		TTL:          cfg.PriceCacheTTL,
		FailureTTL:   cfg.PriceFailureTTL,
		FetchTimeout: cfg.PriceTimeout,
	})
	if err != nil {
		log.Error("price oracle setup failed", "err", err)
		os.Exit(1)
	}
	var profiles profile.Lookup
	if cfg.NeynarAPIKey != "" {
		profiles = profile.NewClient(profile.Config{Logger: log, APIKey: cfg.NeynarAPIKey, CacheTTL: cfg.ProfileCacheTTL})
	} else {
		log.Warn("NEYNAR_API_KEY not set, profiles disabled")
	}
	var swaps terminal.SwapAggregator
	if cfg.AggregatorURL != "" {
		agg, err := aggregator.NewClient(aggregator.Config{Logger: log, BaseURL: cfg.AggregatorURL, ClientID: cfg.AggregatorClientID})
		if err != nil {
			log.Error("aggregator setup failed", "err", err)
			os.Exit(1)
		}
		swaps = agg
	} else {
		log.Info("AGGREGATOR_URL empty, swaps use the pool")
	}

	// --- Derivation ---
	auctionDecay, err := cfg.RigAuctionDecay()
	if err != nil {
		log.Error("invalid auction settings", "err", err)
		os.Exit(1)
	}
	dcfg := terminal.MinerDeriverConfig(log, cfg.PNL())
	dcfg.AuctionDecay = auctionDecay
	deriver, err := terminal.NewDeriver(dcfg)
	if err != nil {
		log.Error("invalid derivation settings", "err", err)
		os.Exit(1)
	}
	guard, err := bounds.NewGuard(cfg.SlippageBps, cfg.PriceBufferBps)
	if err != nil {
		log.Error("invalid transaction bounds", "err", err)
		os.Exit(1)
	}

	// --- WebSocket hub ---
	wsHub := terminal.NewWSHub(log)
	go wsHub.Run(ctx)

	// --- Engine ---
	engine, err := terminal.NewEngine(terminal.EngineConfig{
		Logger:       log,
		Reader:       reader,
		Store:        st,
		Prices:       prices,
		Publisher:    wsHub,
		Deriver:      deriver,
		Book:         cfg.Book,
		Account:      cfg.Account,
		TickInterval: cfg.TickInterval,
		PollInterval: cfg.PollInterval,
	})
	if err != nil {
		log.Error("engine setup failed", "err", err)
		os.Exit(1)
	}
	engine.Start(ctx)

	svc, err := terminal.NewService(terminal.ServiceConfig{
		Logger:     log,
		Engine:     engine,
		Deriver:    deriver,
		Store:      st,
		Prices:     prices,
		Profiles:   profiles,
		Accounts:   reader,
		Receipts:   client,
		Auctions:   reader,
		Builder:    chain.NewBuilder(cfg.Book),
		Guard:      guard,
		Book:       cfg.Book,
		Aggregator: swaps,
	})
	if err != nil {
		log.Error("service setup failed", "err", err)
		os.Exit(1)
	}

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if !engine.Ready() {
			status, code = "starting", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		fmt.Fprintf(w, `{"status":%q,"service":"glaze-engine"}`, status)
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for live miner views and glaze announcements.
		r.Get("/ws", wsHub.HandleWS)

		// Everything else has a bounded lifetime. Receipt waits are the
		// longest.
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			svc.Routes(r)
		})
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("glaze-engine listening", "port", cfg.Port, "rpc", cfg.RPCURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Info("shutting down glaze-engine...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "err", err)
	}
	fmt.Println("glaze-engine stopped")
}
