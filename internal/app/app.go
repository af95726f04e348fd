// Package app assembles the terminal's components from configuration. Both
// the HTTP server and the CLI start here.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"billdesk/terminal/internal/apiclient"
	"billdesk/terminal/internal/cache"
	"billdesk/terminal/internal/config"
	"billdesk/terminal/internal/observability"
	"billdesk/terminal/internal/printer"
	"billdesk/terminal/internal/receipt"
	"billdesk/terminal/internal/service"
	"billdesk/terminal/internal/store"
	"billdesk/terminal/internal/store/memory"
	pgstore "billdesk/terminal/internal/store/postgres"
)

// NewLogger builds a text or JSON slog logger. Unknown levels mean info.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

type Runtime struct {
	Config  config.Config
	Logger  *slog.Logger
	Service *service.Service
	Metrics *observability.Metrics
	// Worker drains the print queue; nil with the direct spooler.
	Worker *printer.Worker

	closers []func() error
}

// Build wires the billing client, catalog cache, journal, printer and
// metrics into a Service. Optional backends that are configured but
// unreachable are logged and replaced, except Postgres, which is fatal.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger, Metrics: observability.NewMetrics()}

	client, err := apiclient.New(cfg.APIBaseURL, apiclient.Options{
		CSRFToken:     cfg.APICSRFToken,
		SessionCookie: cfg.APISessionCookie,
		Timeout:       cfg.APITimeout,
	})
	if err != nil {
		return nil, err
	}

	var journal store.Journal
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, fmt.Errorf("journal schema: %w", err)
		}
		journal = pg
		rt.closers = append(rt.closers, pg.Close)
		logger.Info("journal: postgres")
	} else {
		journal = memory.New()
		logger.Info("journal: in-memory")
	}

	catalogCache := cache.CatalogCache(cache.NoopCatalogCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, catalog cache disabled", "error", err)
			_ = redisCache.Close()
		} else {
			catalogCache = redisCache
			rt.closers = append(rt.closers, redisCache.Close)
			logger.Info("catalog cache: redis")
		}
	}

	device, err := printer.FromConfig(cfg.PrinterType, cfg.PrinterUSBPath, cfg.PrinterAddress)
	if err != nil {
		rt.Close()
		return nil, err
	}
	spooler, worker, err := newSpooler(cfg, device, logger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.Worker = worker
	rt.closers = append(rt.closers, spooler.Close)

	rt.Service = service.New(client, service.Options{
		CatalogCache: catalogCache,
		CatalogTTL:   cfg.CatalogCacheTTL,
		Journal:      journal,
		Spooler:      spooler,
		Metrics:      rt.Metrics,
		Logger:       logger,
		Business: receipt.Business{
			Name:    cfg.BusinessName,
			Address: cfg.BusinessAddress,
			Phone:   cfg.BusinessPhone,
			Footer:  cfg.BusinessFooter,
		},
		PaperWidth:     cfg.PaperWidth,
		Location:       cfg.Location(),
		Locale:         cfg.Locale,
		Currency:       cfg.Currency,
		SaveTimeout:    cfg.SaveTimeout,
		SessionIdleTTL: cfg.SessionIdleTTL,
	})
	return rt, nil
}

func newSpooler(cfg config.Config, device printer.Printer, logger *slog.Logger) (printer.Spooler, *printer.Worker, error) {
	switch strings.ToLower(cfg.PrintQueue) {
	case "", "direct":
		logger.Info("print queue: direct")
		return printer.NewDirectSpooler(device), nil, nil
	case "asynq":
		if cfg.RedisAddr == "" {
			return nil, nil, errors.New("PRINT_QUEUE=asynq needs REDIS_ADDR")
		}
		opts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
		logger.Info("print queue: asynq")
		return printer.NewAsynqSpooler(opts), printer.NewWorker(opts, device, logger), nil
	default:
		return nil, nil, fmt.Errorf("unknown PRINT_QUEUE %q", cfg.PrintQueue)
	}
}

// Close releases backends in the order they were opened.
func (rt *Runtime) Close() {
	for _, closeFn := range rt.closers {
		if err := closeFn(); err != nil {
			rt.Logger.Warn("close error", "error", err)
		}
	}
}
