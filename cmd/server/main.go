package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	auditlog "auth-plane/internal/audit"
	auditrepo "auth-plane/internal/audit/repository"
	"auth-plane/internal/config"
	"auth-plane/internal/db"
	identityservice "auth-plane/internal/identity/service"
	"auth-plane/internal/rbac"
	rbacrepo "auth-plane/internal/rbac/repository"
	"auth-plane/internal/security"
	"auth-plane/internal/server"
	"auth-plane/internal/session"
	sessionrepo "auth-plane/internal/session/repository"
	"auth-plane/internal/telemetry"
	userrepo "auth-plane/internal/user/repository"
	userservice "auth-plane/internal/user/service"
)

const serviceName = "auth-plane"

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, serviceName, cfg.OTLPInsecure)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown", "error", err)
		}
	}()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	hasher := security.NewHasher(cfg.BcryptCost)
	codec, err := security.NewTokenCodec(cfg.JWTAlgorithm, cfg.JWTSecret)
	if err != nil {
		return err
	}

	users := userrepo.NewPostgresRepository(pool)
	sessions := sessionrepo.NewPostgresRepository(pool)
	rbacStore := rbacrepo.NewPostgresRepository(pool)
	auditStore := auditrepo.NewPostgresRepository(pool)

	auditLogger := auditlog.NewLogger(auditStore, server.ClientIPFromContext)
	manager := session.NewManager(sessions)
	authSvc := identityservice.NewAuthService(users, manager, hasher, codec, auditLogger, cfg.AccessTTL(), cfg.RefreshTTL())
	userSvc := userservice.NewUserService(users, rbacStore, hasher)
	rbacSvc := rbac.NewService(rbacStore, users)

	decider, err := rbac.NewRegoDecider()
	if err != nil {
		return err
	}
	gate := rbac.NewGate(rbac.NewResolver(rbacStore), decider)

	metrics := telemetry.NewHTTPMetrics()
	router := server.NewRouter(server.Deps{
		Auth:     authSvc,
		Users:    userSvc,
		RBAC:     rbacSvc,
		Gate:     gate,
		AuditLog: auditStore,
		Pinger:   pool,
		Metrics:  metrics,
	})

	api := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", cfg.HTTPAddr, "env", cfg.Env)
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("metrics listener", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}
