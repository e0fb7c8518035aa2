package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/bryanwahyu/automaton-relay/internal/application"
	appai "github.com/bryanwahyu/automaton-relay/internal/application/ai"
	apppersist "github.com/bryanwahyu/automaton-relay/internal/application/persist"
	"github.com/bryanwahyu/automaton-relay/internal/callbacks"
	"github.com/bryanwahyu/automaton-relay/internal/config"
	"github.com/bryanwahyu/automaton-relay/internal/domain/droplog"
	"github.com/bryanwahyu/automaton-relay/internal/domain/reporting"
	domservices "github.com/bryanwahyu/automaton-relay/internal/domain/services"
	openaiclient "github.com/bryanwahyu/automaton-relay/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/automaton-relay/internal/infra/db/mysql"
	postgresp "github.com/bryanwahyu/automaton-relay/internal/infra/db/postgres"
	"github.com/bryanwahyu/automaton-relay/internal/infra/httpserver"
	"github.com/bryanwahyu/automaton-relay/internal/infra/platform"
	minioStore "github.com/bryanwahyu/automaton-relay/internal/infra/storage"
	"github.com/bryanwahyu/automaton-relay/internal/middleware"
	"github.com/bryanwahyu/automaton-relay/internal/wire"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	if err := middleware.ValidateClusterName(cfg.Relay.ClusterName); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	clock := application.SystemClock{}

	resolver := domservices.NewResolver()
	signer := callbacks.NewSigner([]byte(cfg.Relay.CallbackHMACKey), cfg.Relay.TargetID, cfg.Relay.SinkName)
	enc := &wire.Encoder{
		AccountID: cfg.Relay.AccountID,
		Cluster:   cfg.Relay.ClusterName,
		Resolver:  resolver,
		Signer:    signer,
	}

	var (
		findings reporting.Repository
		services domservices.Repository
		drops    droplog.Repository
		auth     apppersist.Recoverer
		checks   = map[string]middleware.HealthChecker{}
	)

	switch cfg.Relay.Backend {
	case "platform":
		session := platform.NewSessionManager(
			cfg.Platform.URL, cfg.Platform.APIKey,
			cfg.Platform.Email, cfg.Platform.Password,
			cfg.LoginRateLimit(), clock,
		)
		if err := session.SignIn(ctx); err != nil {
			// degraded start is fine, calls will keep retrying within the rate limit
			log.Printf("initial platform sign-in failed: %v", err)
		}
		client := platform.NewClient(cfg.Platform.URL, cfg.Platform.APIKey, session)
		store := platform.NewStore(client, enc, clock)
		findings, services, auth = store, store, session
		checks["session"] = middleware.CheckerFunc(func(context.Context) error {
			if session.AccessToken() == "" {
				return fmt.Errorf("no platform session")
			}
			return nil
		})

	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		defer db.Close()
		findings = mysqlp.NewFindingRepository(db, enc, clock)
		services = mysqlp.NewServiceRepository(db, enc)
		drops = mysqlp.NewDropLogRepository(db)
		checks["database"] = &middleware.DatabaseHealthChecker{DB: db}

	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		defer db.Close()
		findings = postgresp.NewFindingRepository(db, enc, clock)
		services = postgresp.NewServiceRepository(db, enc)
		drops = postgresp.NewDropLogRepository(db)
		checks["database"] = &middleware.DatabaseHealthChecker{DB: db}

	default:
		log.Fatalf("unknown backend %q (want platform, mysql or postgres)", cfg.Relay.Backend)
	}

	svc := &apppersist.Service{
		Findings:         findings,
		Services:         services,
		Auth:             auth,
		DropLog:          drops,
		Resolver:         resolver,
		TenantID:         cfg.Relay.AccountID,
		OffloadThreshold: cfg.Relay.OffloadThreshold,
	}

	// optional: offload besar evidence files ke MinIO
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		svc.Artifacts = store
	}

	// optional: AI summary untuk failure findings
	if cfg.AI.Enabled {
		svc.Annotator = appai.NewService(openaiclient.NewClient(cfg.AI.APIKey, cfg.AI.Model))
	}

	// warm the resolver so service-key guessing works from the first finding
	if known, err := svc.ActiveServices(ctx); err != nil {
		log.Printf("could not prefetch active services: %v", err)
	} else {
		log.Printf("loaded %d active services", len(known))
	}

	// init router
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if len(cfg.Server.APIKeys) > 0 {
		mux.Use(middleware.APIKeyAuth(cfg.Server.APIKeys))
	}
	mux.Use(middleware.RateLimitMiddleware(60, 10))
	mux.Get("/ready", middleware.HealthHandler(checks))
	mux.Mount("/", httpserver.NewRouter(svc, signer, drops))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Printf("relay listening on %s backend=%s cluster=%s", addr, cfg.Relay.Backend, cfg.Relay.ClusterName)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down relay...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
