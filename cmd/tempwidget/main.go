package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/tempwidget/internal/api/http"
	"github.com/i474232898/tempwidget/internal/config"
	"github.com/i474232898/tempwidget/internal/location"
	"github.com/i474232898/tempwidget/internal/logger"
	"github.com/i474232898/tempwidget/internal/registry"
	"github.com/i474232898/tempwidget/internal/scheduler"
	"github.com/i474232898/tempwidget/internal/store"
	"github.com/i474232898/tempwidget/internal/weather"
	"github.com/i474232898/tempwidget/internal/weather/providers"
	"github.com/i474232898/tempwidget/internal/widget"
)

const userAgent = "tempwidget/1.0"

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := newProvider(cfg, zl)
	if err != nil {
		zl.Fatal("failed to build weather provider", zap.Error(err))
	}

	resolver := newResolver(cfg, zl)

	reg, err := registry.Open(cfg.DatabasePath, zl)
	if err != nil {
		zl.Fatal("failed to open instance registry", zap.String("path", cfg.DatabasePath), zap.Error(err))
	}
	defer reg.Close()

	// In-memory surface with configured retention.
	frames := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)

	orchestrator := widget.NewOrchestrator(reg, frames, resolver, provider, zl)
	orchestrator.SetZone(cfg.DeviceZone)

	sched := scheduler.New(ctx, orchestrator, cfg.RefreshInterval, cfg.CycleTimeout, zl)
	if err := sched.Start(); err != nil {
		zl.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "tempwidget",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New(fiberlogger.Config{
		Output: zap.NewStdLog(zl.Named("http")).Writer(),
	}))
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":             "ok",
			"service":            "tempwidget",
			"provider":           provider.Name(),
			"locationPermission": resolver.HasPermission(),
		})
	})

	httpapi.RegisterRoutes(app, reg, frames, sched)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			zl.Error("fiber server stopped", zap.Error(err))
		}
	}()
	zl.Info("tempwidget started", zap.String("port", cfg.Port), zap.String("provider", provider.Name()))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		zl.Error("error during shutdown", zap.Error(err))
	}
}

func newProvider(cfg *config.AppConfig, zl *zap.Logger) (weather.Provider, error) {
	opts := providers.Options{
		Client: providers.NewHTTPClient(cfg.HTTPConnectTimeout, cfg.HTTPReadTimeout),
		Logger: zl,
	}
	switch cfg.WeatherProvider {
	case providers.PirateWeatherName:
		opts.BaseURL = cfg.PirateWeatherBaseURL
		opts.Params = cfg.PirateWeatherParams
		opts.APIKey = cfg.PirateWeatherAPIKey
	default:
		opts.BaseURL = cfg.OpenMeteoBaseURL
		opts.Params = cfg.OpenMeteoParams
	}
	return providers.New(cfg.WeatherProvider, opts)
}

func newResolver(cfg *config.AppConfig, zl *zap.Logger) *location.Resolver {
	client := &http.Client{Timeout: cfg.LocationRequestTimeout}

	passive := location.NewPassiveSource(cfg.LocationMaxAge)
	rc := location.Config{
		Permissions:    cfg.LocationGrants,
		Network:        location.NewIPSource(client, cfg.IPGeoURL, cfg.LocationMaxAge),
		Passive:        passive,
		RequestTimeout: cfg.LocationRequestTimeout,
		Logger:         zl,
	}
	if cfg.GPSDAddr != "" {
		rc.GPS = location.NewGPSDSource(cfg.GPSDAddr, cfg.LocationMaxAge)
	}

	switch cfg.Geocoder {
	case "nominatim":
		rc.Geocoder = location.NewNominatimGeocoder(client, cfg.NominatimURL, userAgent, "")
	case "google":
		rc.Geocoder = location.NewGoogleGeocoder(cfg.GoogleGeocoderAPIKey)
	}
	return location.NewResolver(rc)
}
