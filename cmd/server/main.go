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

	"patitas/backend/internal/cache"
	"patitas/backend/internal/config"
	"patitas/backend/internal/httpapi"
	"patitas/backend/internal/mailer"
	"patitas/backend/internal/payment"
	"patitas/backend/internal/service"
	"patitas/backend/internal/store"
	"patitas/backend/internal/store/memory"
	pgstore "patitas/backend/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		}
		repo = pg
		closers = append(closers, pg.Close)
		log.Println("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	if migrated, err := repo.MigratePlaintextCredentials(ctx, httpapi.HashPassword); err != nil {
		log.Fatalf("credential migration failed: %v", err)
	} else if migrated > 0 {
		log.Printf("credential migration: rehashed %d legacy credentials", migrated)
	}

	catalogCache := cache.CatalogCache(cache.NoopCatalogCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			catalogCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	var mail mailer.Mailer = mailer.NoopMailer{}
	if cfg.EmailEnabled && cfg.SMTPHost != "" {
		mail = mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom)
		log.Println("mailer: smtp")
	} else {
		log.Println("mailer: noop")
	}

	gateway := payment.NewClient(cfg.MPAccessToken, cfg.PublicBaseURL, cfg.CurrencyID)
	if cfg.MPAccessToken == "" {
		log.Println("payment gateway: disabled (MP_ACCESS_TOKEN unset)")
	} else if gateway.SandboxMode() {
		log.Println("payment gateway: mercadopago (sandbox)")
	} else {
		log.Println("payment gateway: mercadopago")
	}

	svc := service.New(repo, gateway, mail, catalogCache, cfg.TaxRatePercent, time.Duration(cfg.CatalogTTLSeconds)*time.Second)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, cfg.MPWebhookSecret, cfg.AllowUnsignedWebhooks)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("store backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.MPAccessToken != "" && cfg.MPWebhookSecret == "" && !cfg.AllowUnsignedWebhooks {
		return fmt.Errorf("MP_WEBHOOK_SECRET must be set when the gateway is enabled (or set ALLOW_UNSIGNED_WEBHOOKS=true for local development)")
	}
	if cfg.AllowUnsignedWebhooks {
		log.Println("WARNING: ALLOW_UNSIGNED_WEBHOOKS is enabled; webhook signatures are NOT verified")
	}
	return nil
}
