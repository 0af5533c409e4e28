// Package main is the entry point for the certforge server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"certforge/internal/cache"
	"certforge/internal/config"
	"certforge/internal/database"
	"certforge/internal/engine"
	"certforge/internal/handlers"
	"certforge/internal/middleware"
	"certforge/internal/router"
	"certforge/internal/session"
	"certforge/internal/storage"
	"certforge/internal/store"
)

func main() {
	// Structured logger: JSON outside development, text locally.
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	if env := os.Getenv("APP_ENV"); env != "" && env != "development" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"base_url", cfg.BaseURL,
	)

	defaultFormat, err := engine.ParseFormat(cfg.RenderFormat)
	if err != nil {
		slog.Error("invalid RENDER_FORMAT", "error", err)
		os.Exit(1)
	}

	// Connect to PostgreSQL.
	db, err := database.Connect(cfg.DSN(), database.PoolFor(cfg.DBMaxConns))
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run pending migrations.
	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed the administrator, default template and sample data. Existing
	// rows are left alone.
	if err := database.Seed(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		slog.Error("failed to seed database", "error", err)
		os.Exit(1)
	}

	// Connect to Valkey (sessions, render cache, export lock).
	valkeyClient, err := cache.ConnectValkey(cache.ValkeyOptions{
		Addr:     cfg.ValkeyAddr(),
		Password: cfg.ValkeyPassword,
		DB:       cfg.ValkeyDB,
	})
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	// In non-development environments, mark cookies as Secure (HTTPS-only).
	secureCookies := !cfg.IsDev()
	sessionStore := session.NewStore(valkeyClient, secureCookies)

	// Initialize data stores.
	userStore := store.NewUserStore(db)
	orgStore := store.NewOrganizationStore(db)
	programStore := store.NewProgramStore(db)
	templateStore := store.NewTemplateStore(db)
	certStore := store.NewCertificateStore(db)
	exportStore := store.NewExportLogStore(db)

	// Connect to S3-compatible object storage (optional; asset uploads and
	// archived exports are disabled without it).
	var storageClient *storage.Client
	if cfg.StorageConfigured() {
		storageClient, err = storage.New(
			cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey,
			cfg.S3BucketPublic, cfg.S3BucketPrivate, cfg.S3PublicURL,
		)
		if err != nil {
			slog.Error("failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		slog.Info("s3 storage connected",
			"endpoint", cfg.S3Endpoint,
			"public_bucket", cfg.S3BucketPublic,
			"private_bucket", cfg.S3BucketPrivate,
		)
	} else {
		slog.Warn("s3 storage not configured, asset uploads disabled")
	}

	// Rendering engine: Go fonts plus any TTFs in RENDER_FONT_DIR.
	fonts, err := engine.NewFontSet()
	if err != nil {
		slog.Error("failed to load fonts", "error", err)
		os.Exit(1)
	}
	if cfg.FontDir != "" {
		if err := fonts.LoadDir(cfg.FontDir); err != nil {
			slog.Error("failed to load font directory", "dir", cfg.FontDir, "error", err)
			os.Exit(1)
		}
	}
	var objects engine.ObjectFetcher
	if storageClient != nil {
		objects = storageClient
	}
	eng := engine.New(
		engine.WithFonts(fonts),
		engine.WithImageSource(engine.NewImageLoader(cfg.ImageFetchTimeout, objects)),
		engine.WithConcurrency(cfg.RenderConcurrency),
	)

	renderCache := cache.NewRenderCache(valkeyClient, cfg.RenderCacheTTL)
	exportLock := cache.NewExportLock(valkeyClient, cache.DefaultExportLockTTL)

	// Create handler groups with their dependencies.
	adminHandlers := handlers.NewAdmin(orgStore, programStore, templateStore, certStore, exportStore,
		eng, renderCache, exportLock, storageClient, handlers.AdminConfig{
			BaseURL:            cfg.BaseURL,
			DefaultFormat:      defaultFormat,
			ExportIncludeFiles: cfg.ExportIncludeFiles,
		})
	authHandlers := handlers.NewAuth(sessionStore, userStore)
	publicHandlers := handlers.NewPublic(certStore, cfg.BaseURL)

	loginLimiter := middleware.NewRateLimiter("login", 10, time.Minute)
	defer loginLimiter.Stop()
	verifyLimiter := middleware.NewRateLimiter("verify", 60, time.Minute)
	defer verifyLimiter.Stop()

	// Set up the Chi router with all middleware and routes.
	r := router.New(sessionStore, adminHandlers, authHandlers, publicHandlers, router.Options{
		SecureCookies: secureCookies,
		LoginLimiter:  loginLimiter,
		VerifyLimiter: verifyLimiter,
		Ready: func(ctx context.Context) error {
			if err := database.Ready(ctx, db); err != nil {
				return err
			}
			return cache.Ping(ctx, valkeyClient)
		},
	})

	// WriteTimeout must accommodate bulk exports that render every
	// certificate before responding.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active requests up to 30 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
