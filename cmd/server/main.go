package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tracevault/internal/audit"
	"tracevault/internal/blob"
	credentialhandler "tracevault/internal/credential/handler"
	credentialservice "tracevault/internal/credential/service"
	credentialstore "tracevault/internal/credential/store"
	"tracevault/internal/gate"
	"tracevault/internal/identity"
	"tracevault/internal/platform/config"
	"tracevault/internal/platform/database"
	"tracevault/internal/platform/logger"
	"tracevault/internal/platform/metrics"
	"tracevault/internal/platform/tracing"
	"tracevault/internal/trace"
	httptransport "tracevault/internal/transport/http"
	"tracevault/migrations"
)

const resolverCacheTTL = 5 * time.Minute

// main wires the dependency graph and owns the server lifecycle. Domain
// logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing tracevault",
		"addr", cfg.Addr,
		"database", cfg.DatabasePath,
		"resolver", cfg.ResolverEndpoint,
		"blob_store", cfg.BlobEndpoint,
	)

	pool, err := database.New(database.DefaultConfig(cfg.DatabasePath))
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := migrations.Apply(ctx, pool.DB()); err != nil {
		cancel()
		log.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}
	cancel()

	m := metrics.New()

	var spans tracing.Tracer = tracing.NewNoop()
	if cfg.TracingEnabled {
		spans = tracing.NewOTel()
		log.Info("otel tracing enabled")
	}

	var resolver identity.Resolver = identity.NewHTTPResolver(identity.HTTPResolverConfig{
		BaseURL: cfg.ResolverEndpoint,
		Timeout: cfg.ResolveTimeout,
	})
	resolver = identity.NewCachingResolver(resolver, resolverCacheTTL)

	// Without a configured blob endpoint the vault runs self-contained on
	// the in-process content store, which is what local development wants.
	var blobs blob.Store
	if cfg.BlobEndpoint != "" {
		blobs = blob.NewHTTPStore(blob.HTTPStoreConfig{
			BaseURL: cfg.BlobEndpoint,
			Timeout: cfg.BlobTimeout,
		})
	} else {
		log.Warn("no blob store endpoint configured, using in-memory content store")
		blobs = blob.NewMemoryStore()
	}

	accessGate := gate.New(resolver, gate.WithLogger(log))

	auditStore := audit.NewSQLite(pool.DB())
	publisher := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(cfg.AuditBufferSize),
		audit.WithPublisherLogger(log),
		audit.WithFailureHook(m.AuditAppendFailures.Inc),
	)
	defer publisher.Close()

	credentials := credentialservice.NewService(
		credentialstore.NewSQLite(pool.DB()),
		blobs,
		accessGate,
		credentialservice.WithLogger(log),
		credentialservice.WithAuditor(publisher),
		credentialservice.WithMetrics(m),
		credentialservice.WithTracer(spans),
	)

	// Chain heads live next to the audit index so a restart resumes every
	// owner's chain instead of starting over.
	tracer := trace.NewTracer(blobs, trace.NewSQLiteNameLayer(pool.DB()),
		trace.WithLogger(log),
		trace.WithMetrics(m),
		trace.WithMaxAttempts(cfg.ChainMaxAttempts),
		trace.WithTracer(spans),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Credentials: credentialhandler.New(credentials, log, m),
		Trace:       trace.NewHandler(tracer, accessGate, log, m),
		Pool:        pool,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
