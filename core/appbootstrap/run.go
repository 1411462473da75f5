// Package appbootstrap wires configuration, storage, services and the HTTP
// server into a running process.
package appbootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"relato/api"
	"relato/config"
	"relato/core/auth"
	"relato/core/store"
	"relato/core/utils"
)

const shutdownTimeout = 10 * time.Second

func Run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := utils.NewLoggerWithLevel(cfg.LogLevel)

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.ApplyMigrations(ctx, db, cfg, logger); err != nil {
		return err
	}

	comp, err := composeRuntime(cfg, db, logger)
	if err != nil {
		return err
	}
	if err := seedAdmin(ctx, comp.users, cfg, logger); err != nil {
		return err
	}

	for _, w := range comp.workers {
		w.StartWithContext(ctx)
	}

	server := api.NewServer(cfg, comp.serverDeps, logger)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, w := range comp.workers {
		if err := w.StopWithContext(shutdownCtx); err != nil {
			logger.Errorf("worker shutdown: %v", err)
		}
	}
	return httpServer.Shutdown(shutdownCtx)
}

// seedAdmin creates the first administrator when the user table is empty so a
// fresh deployment is immediately usable.
func seedAdmin(ctx context.Context, users store.UsersStore, cfg *config.AppConfig, logger *utils.Logger) error {
	count, err := users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	password := cfg.Bootstrap.AdminPassword
	generated := false
	if password == "" {
		password, err = utils.RandString(18)
		if err != nil {
			return err
		}
		generated = true
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &store.User{
		Email:        cfg.Bootstrap.AdminEmail,
		Name:         cfg.Bootstrap.AdminName,
		PasswordHash: hash,
		Role:         store.RoleAdmin,
	}
	if _, err := users.Create(ctx, admin); err != nil {
		return err
	}
	if generated {
		logger.Printf("seeded admin %s with generated password: %s", admin.Email, password)
	} else {
		logger.Printf("seeded admin %s", admin.Email)
	}
	return nil
}
