package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"billdesk/terminal/internal/app"
	"billdesk/terminal/internal/config"
	"billdesk/terminal/internal/domain"
	"billdesk/terminal/internal/httpapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err := validateSecurityConfig(cfg); err != nil {
		logger.Error("invalid security configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	rt, err := app.Build(startCtx, cfg, logger)
	if err != nil {
		cancel()
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	status := rt.Service.LoadCatalog(startCtx)
	cancel()
	logger.Info("catalog loaded", "products", status.Products, "source", status.Source)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), cfg.ManagerPIN, operators(cfg))
	api := httpapi.New(rt.Service, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Production:    cfg.IsProduction(),
		Metrics:       rt.Metrics,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Saves may wait on the billing server for the full save timeout.
		WriteTimeout: cfg.SaveTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if rt.Worker != nil {
		go func() {
			if err := rt.Worker.Run(ctx); err != nil {
				logger.Error("print worker stopped", "error", err)
			}
		}()
	}
	go expireSessions(ctx, rt, 10*time.Minute)

	go func() {
		logger.Info("billing terminal listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

func expireSessions(ctx context.Context, rt *app.Runtime, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rt.Service.ExpireIdleSessions(now)
		}
	}
}

func operators(cfg config.Config) []httpapi.Operator {
	ops := make([]httpapi.Operator, 0, len(cfg.Operators))
	for _, name := range cfg.OperatorNames() {
		role := domain.RoleCashier
		if cfg.IsAdmin(name) {
			role = domain.RoleAdmin
		}
		ops = append(ops, httpapi.Operator{Username: name, Password: cfg.Operators[name], Role: role})
	}
	return ops
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	if len(cfg.Operators) == 0 {
		return fmt.Errorf("TERMINAL_OPERATORS must list at least one operator")
	}
	for name, hash := range cfg.Operators {
		if !strings.HasPrefix(hash, "$2") {
			return fmt.Errorf("TERMINAL_OPERATORS entry %q must be a bcrypt hash", name)
		}
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"222222": true, "333333": true, "444444": true, "555555": true,
		"666666": true, "777777": true, "888888": true, "999999": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	// Reject all-same-digit PINs.
	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	// Reject ascending or descending sequential PINs (e.g. 123456, 987654).
	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
