package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/example/family-portal/internal/application"
	"github.com/example/family-portal/internal/config"
	httptransport "github.com/example/family-portal/internal/http"
	"github.com/example/family-portal/internal/persistence"
	"github.com/example/family-portal/internal/persistence/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	pool, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := pool.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := pool.Migrate(context.Background()); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	idGenerator := uuid.NewString
	tokenGenerator := func() string { return randomHex(32) }
	now := time.Now

	eventRepo := newEventRepositoryAdapter(sqlite.NewEventRepository(pool), logger)
	rsvpRepo := newRSVPRepositoryAdapter(sqlite.NewRSVPRepository(pool))
	userRepo := newUserRepositoryAdapter(sqlite.NewUserRepository(pool))
	sessionRepo := newSessionRepositoryAdapter(sqlite.NewSessionRepository(pool))
	credentialStore := newCredentialStoreAdapter(sqlite.NewUserRepository(pool))

	eventService := application.NewEventServiceWithLogger(eventRepo, rsvpRepo, userRepo, idGenerator, now, logger)
	rsvpService := application.NewRSVPServiceWithLogger(rsvpRepo, eventRepo, now, logger)
	userService := application.NewUserService(userRepo, nil, idGenerator, now)
	authService := application.NewAuthServiceWithLogger(credentialStore, sessionRepo, nil, tokenGenerator, now, cfg.SessionTTL, logger)

	if err := bootstrapAdmin(ctx, cfg, userRepo, idGenerator, now); err != nil {
		logger.Error("failed to bootstrap admin account", "error", err)
		os.Exit(1)
	}

	authHandler := httptransport.NewAuthHandler(authService, logger)
	eventHandler := httptransport.NewEventHandler(eventService, rsvpService, logger)
	userHandler := httptransport.NewUserHandler(userService, logger)
	feedHandler := httptransport.NewFeedHandler(eventService, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Auth:   authHandler,
		Users:  userHandler,
		Events: eventHandler,
		Feed:   feedHandler,
	})

	protected := httptransport.RequireSession(authService, logger)(router)
	handler := httptransport.RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Login and logout manage their own tokens.
		if strings.HasPrefix(r.URL.Path, "/sessions") {
			router.ServeHTTP(w, r)
			return
		}
		protected.ServeHTTP(w, r)
	}))

	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.SessionSweepSchedule, func() {
		if err := authService.PruneExpiredSessions(context.Background()); err != nil {
			logger.Error("session sweep failed", "error", err)
		}
	}); err != nil {
		logger.Error("invalid session sweep schedule", "schedule", cfg.SessionSweepSchedule, "error", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("family portal API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// bootstrapAdmin seeds an admin account on first start so the portal is
// reachable before any other account exists.
func bootstrapAdmin(ctx context.Context, cfg config.Config, users *userRepositoryAdapter, idGenerator func() string, now func() time.Time) error {
	if cfg.BootstrapAdminEmail == "" {
		return nil
	}

	_, err := users.repo.GetUserByEmail(ctx, cfg.BootstrapAdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return err
	}

	hash, err := application.CreatePasswordHash(cfg.BootstrapAdminPass, application.DefaultArgon2idParams)
	if err != nil {
		return err
	}

	created := now()
	_, err = users.CreateUser(ctx, application.User{
		ID:          idGenerator(),
		Email:       cfg.BootstrapAdminEmail,
		DisplayName: "Administrator",
		Role:        application.RoleAdmin,
		CreatedAt:   created,
		UpdatedAt:   created,
	}, hash)
	return err
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
