// authd is the identity HTTP server: sign-up, token issuance, session
// revocation and user lookup.
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

	"painel-auth/internal/api"
	"painel-auth/internal/audit"
	auditrepo "painel-auth/internal/audit/repository"
	"painel-auth/internal/auth/service"
	"painel-auth/internal/config"
	"painel-auth/internal/db"
	"painel-auth/internal/security"
	sessionrepo "painel-auth/internal/session/repository"
	"painel-auth/internal/telemetry"
	oteltelemetry "painel-auth/internal/telemetry/otel"
	userrepo "painel-auth/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()

	providers, err := oteltelemetry.NewProviders(ctx, cfg.OTLPEndpoint, "painel-auth", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
		defer cancel()
		_ = providers.Shutdown(sctx)
	}()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())

	authSvc := service.NewAuthService(
		userrepo.NewPostgresRepository(conn),
		sessionrepo.NewPostgresRepository(conn),
		security.NewHasher(cfg.BcryptCost),
		tokens,
		cfg.RefreshTTL(),
	)

	metrics, err := telemetry.NewMetrics(providers.MeterProvider.Meter("painel-auth/authd"))
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}
	emitter := oteltelemetry.NewEventEmitter(providers.LoggerProvider)
	auditor := audit.NewLogger(auditrepo.NewPostgresRepository(conn), api.ClientIP)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(authSvc, emitter, metrics, auditor).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("identity server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down identity server...")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("identity server stopped")
}
