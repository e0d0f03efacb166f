package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatehouse.org/internal/auth"
	"gatehouse.org/internal/config"
	"gatehouse.org/internal/httpapi"
	"gatehouse.org/internal/ids"
	"gatehouse.org/internal/notify"
	"gatehouse.org/internal/obs"
	"gatehouse.org/internal/store/pg"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("missing DSN: set GATEHOUSE_PG_DSN")
	}

	store, err := pg.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer bootCancel()

	// The permission catalog is idempotent and cheap; seeding at boot
	// keeps a fresh database usable without a separate step.
	if err := store.Permissions().Ensure(bootCtx, auth.PermissionCatalog); err != nil {
		log.Fatalf("seed permissions: %v", err)
	}

	signer, err := auth.NewSigner(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		log.Fatalf("signer: %v", err)
	}
	tokens, err := auth.NewTokenManager(store.Tokens())
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}
	mailer := notify.NewMailer(cfg.SMTPAddr, cfg.SMTPFrom, cfg.AppBaseURL, cfg.SMTPUser, cfg.SMTPPass)
	defer mailer.Close()

	hasher := auth.NewHasher(cfg.BcryptCost, cfg.MaxConcurrent)
	service, err := auth.NewService(store, signer, hasher, tokens,
		auth.WithNotifier(mailer),
		auth.WithIDGenerator(ids.New),
	)
	if err != nil {
		log.Fatalf("service: %v", err)
	}
	resolver, err := auth.NewResolver(store.Users(), store.Roles())
	if err != nil {
		log.Fatalf("resolver: %v", err)
	}

	api := httpapi.New(service, resolver, signer, store, httpapi.ReadyProbe{DB: store.DB()}, version)

	handler := httpapi.RateLimit(api.Handler(), cfg.RateLimitPerSecond, cfg.RateLimitBurst)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting gatehouse-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
