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

	"golang.org/x/sync/errgroup"

	activityHandler "cliquey/internal/activity/handler"
	activityService "cliquey/internal/activity/service"
	authHandler "cliquey/internal/auth/handler"
	authService "cliquey/internal/auth/service"
	"cliquey/internal/health"
	invitationHandler "cliquey/internal/invitation/handler"
	invitationService "cliquey/internal/invitation/service"
	jwttoken "cliquey/internal/jwt_token"
	"cliquey/internal/platform/config"
	"cliquey/internal/platform/httpserver"
	"cliquey/internal/platform/logger"
	"cliquey/internal/platform/metrics"
	profileHandler "cliquey/internal/profile/handler"
	profileService "cliquey/internal/profile/service"
	"cliquey/internal/ratelimit/models"
	ratelimit "cliquey/internal/ratelimit/middleware"
	httptransport "cliquey/internal/transport/http"
)

const (
	tokenIssuer   = "cliquey"
	tokenAudience = "cliquey-api"
)

// main wires dependencies and runs the server until SIGINT/SIGTERM. Business
// logic lives in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.Auth.JWTSigningKey == config.DevSigningKey {
		log.Warn("JWT_SIGNING_KEY not set, using development key")
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	m := metrics.New()
	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, tokenIssuer, tokenAudience)

	auth := authService.New(b.users, b.invitations, b.trl, jwt, b.runner,
		authService.WithLogger(log),
		authService.WithAuditPublisher(b.audit),
		authService.WithMetrics(m),
		authService.WithSessionTTL(cfg.Auth.SessionTTL),
	)
	invitations := invitationService.New(b.invitations, b.users,
		invitationService.WithLogger(log),
		invitationService.WithAuditPublisher(b.audit),
		invitationService.WithMetrics(m),
		invitationService.WithDefaultHorizon(cfg.Auth.InvitationTTL),
	)
	profiles := profileService.New(b.profiles, b.runner,
		profileService.WithLogger(log),
		profileService.WithAuditPublisher(b.audit),
		profileService.WithMetrics(m),
	)
	activity := activityService.New(b.events, b.users, activityService.WithLogger(log))

	if cfg.Auth.BootstrapLogin != "" {
		created, err := auth.EnsureAdmin(ctx, cfg.Auth.BootstrapLogin, cfg.Auth.BootstrapPassword)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		if created {
			log.Info("bootstrap admin created", "login", cfg.Auth.BootstrapLogin)
		}
	} else if empty, err := auth.NeedsBootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap check: %w", err)
	} else if empty {
		log.Warn("no accounts exist; set BOOTSTRAP_ADMIN_LOGIN and BOOTSTRAP_ADMIN_PASSWORD to create the first admin")
	}

	checker := health.New(health.WithLogger(log))
	if b.db != nil {
		checker.Add("database", b.db.PingContext)
	}
	if b.redis != nil {
		checker.Add("redis", b.redis.Health)
	}

	limits := ratelimit.New(b.limiter, log,
		ratelimit.WithLimit(models.ClassAuth, models.Limit{
			Requests: cfg.RateLimit.AuthRequests,
			Window:   cfg.RateLimit.AuthWindow,
		}),
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
		ratelimit.WithMetrics(m),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:            log,
		Metrics:           m,
		Health:            checker,
		Auth:              authHandler.New(auth, log, cfg.Auth.SecureCookies),
		Invitations:       invitationHandler.New(invitations, log),
		Profiles:          profileHandler.New(profiles, log),
		Activity:          activityHandler.New(activity, log),
		TokenValidator:    jwttoken.NewJWTServiceAdapter(jwt),
		RevocationChecker: auth,
		RateLimit:         limits,
		TrustedProxies:    cfg.Server.TrustedProxies,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting cliquey", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return b.purgeRevocations(gctx, log)
	})
	g.Go(func() error {
		return b.sweepBuckets(gctx, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}
