package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"

	"github.com/atelier-market/atelier/cmd/atelier/cli"
	"github.com/atelier-market/atelier/internal/app"
	"github.com/atelier-market/atelier/internal/backend"
	"github.com/atelier-market/atelier/internal/identity"
	"github.com/atelier-market/atelier/internal/observability"
	"github.com/atelier-market/atelier/internal/platform/cache"
	"github.com/atelier-market/atelier/internal/platform/db"
	"github.com/atelier-market/atelier/internal/preload"
	"github.com/atelier-market/atelier/internal/rbac"
	"github.com/atelier-market/atelier/internal/shared"
	"github.com/atelier-market/atelier/internal/storefront"
	"github.com/atelier-market/atelier/internal/view"
	"github.com/atelier-market/atelier/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 {
		if err := runCommand(ctx, cfg, os.Args[1:]); err != nil {
			logger.Error("command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, cfg *app.Config, args []string) error {
	switch args[0] {
	case "routes":
		policy, err := app.LoadPolicy(cfg)
		if err != nil {
			return err
		}
		return cli.PrintRoutes(os.Stdout, policy)
	case "jobs":
		if len(args) < 2 {
			return errors.New("usage: atelier jobs stats|scheduled|trigger <task> [args...]")
		}
		jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
		defer jobsCLI.Close()
		switch args[1] {
		case "stats":
			stats, err := jobsCLI.InspectQueue()
			if err != nil {
				return err
			}
			fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
			return nil
		case "scheduled":
			tasks, err := jobsCLI.ListScheduled(20)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				fmt.Printf("%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.Format(time.RFC3339))
			}
			return nil
		case "trigger":
			if len(args) < 3 {
				return errors.New("usage: atelier jobs trigger <task> [args...]")
			}
			info, err := jobsCLI.Trigger(ctx, args[2], args[3:]...)
			if err != nil {
				return err
			}
			fmt.Printf("enqueued %s id=%s\n", info.Type, info.ID)
			return nil
		}
		return fmt.Errorf("unknown jobs command %q", args[1])
	}
	return fmt.Errorf("unknown command %q", args[0])
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	// Sign-in keeps working without the ledger.
	var ledger identity.Ledger
	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, ConnectTimeout: 5 * time.Second})
	if err != nil {
		logger.Warn("sign-in ledger unavailable", slog.Any("error", err))
	} else {
		defer dbpool.Close()
		err = db.WithTx(ctx, dbpool, func(tx pgx.Tx) error {
			return identity.NewPGLedger(tx).EnsureSchema(ctx)
		})
		if err != nil {
			logger.Warn("sign-in ledger schema", slog.Any("error", err))
		} else {
			ledger = identity.NewPGLedger(dbpool)
		}
	}

	metrics := observability.NewMetrics()

	policy, err := app.LoadPolicy(cfg)
	if err != nil {
		return err
	}
	deniedMode, err := cfg.Denied()
	if err != nil {
		return err
	}
	decisions := rbac.NewDecisionCache(cfg.AuthzCacheTTL, nil)
	authorizer := rbac.NewAuthorizer(policy, decisions, rbac.NewMetrics(metrics.Registerer()))

	templates, err := view.NewEngine(authorizer)
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	backendClient, err := backend.New(backend.Options{
		BaseURL:          cfg.BackendURL,
		ServiceToken:     cfg.BackendToken,
		Timeout:          cfg.BackendTimeout,
		RatePerSecond:    cfg.BackendRPS,
		Burst:            cfg.BackendBurst,
		FailureThreshold: cfg.BackendFailureThreshold,
		OpenTimeout:      cfg.BackendOpenTimeout,
		Logger:           logger,
	})
	if err != nil {
		return err
	}
	if err := backendClient.Ping(ctx); err != nil {
		logger.Warn("backend ping", slog.Any("error", err))
	}

	pageCache := cache.NewCache(redisClient, cfg.CacheTTL)
	pages := storefront.NewPages(backendClient, pageCache, logger)

	queue := preload.New(pages.Warm, preload.Options{
		Size:    cfg.PreloadSize,
		Workers: cfg.PreloadWorkers,
		Timeout: cfg.PreloadTimeout,
		Policy:  policy,
		Logger:  logger,
	})
	go func() {
		if err := queue.Run(ctx); err != nil {
			logger.Warn("preload queue stopped", slog.Any("error", err))
		}
	}()
	go func() {
		err := pageCache.ListenForInvalidation(ctx, func(version int64) {
			purged := decisions.Reset()
			logger.Info("cache version bumped", slog.Int64("version", version), slog.Int("decisions_purged", purged))
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("cache invalidation listener", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient := jobs.NewClient(redisOpts, cfg.WarmupUniqueFor)
	defer jobsClient.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()

	sessionManager := shared.NewSessionManager(redisClient, "atelier_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	verifier, err := identity.NewVerifier(cfg.IDPSigningSecret, cfg.IDPIssuer)
	if err != nil {
		return err
	}

	var storefrontHandler *storefront.Handler
	guard := rbac.Guard{
		Authorizer: authorizer,
		Logger:     logger,
		DeniedMode: deniedMode,
		Pending: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			storefrontHandler.Pending(w, r)
		}),
	}
	storefrontHandler = storefront.NewHandler(storefront.HandlerConfig{
		Logger:     logger,
		Templates:  templates,
		Pages:      pages,
		Authorizer: authorizer,
		Guard:      guard,
		CSRF:       csrfManager,
		Cache:      pageCache,
		Decisions:  decisions,
		Warmup:     jobsClient,
	})

	identityHandler := identity.NewHandler(identity.HandlerConfig{
		Logger:      logger,
		Verifier:    verifier,
		Sessions:    sessionManager,
		Ledger:      ledger,
		Preloader:   queue,
		Policy:      policy,
		SignInURL:   cfg.IDPSignInURL,
		CallbackURL: cfg.CallbackURL(),
	})

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		Resolver:          identity.NewResolver(backendClient, logger),
		Guard:             guard,
		IdentityHandler:   identityHandler,
		StorefrontHandler: storefrontHandler,
		JobHandler:        jobs.NewHandler(inspector, logger),
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
