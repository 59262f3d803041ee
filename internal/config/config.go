package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/i474232898/tempwidget/internal/location"
	"github.com/i474232898/tempwidget/internal/scheduler"
	"github.com/i474232898/tempwidget/internal/units"
	"github.com/i474232898/tempwidget/internal/weather/providers"
)

type AppConfig struct {
	Port     string `validate:"required,numeric"`
	LogLevel string

	// Weather provider selection and wiring.
	WeatherProvider      string `validate:"oneof=openmeteo pirateweather"`
	OpenMeteoBaseURL     string `validate:"required,url"`
	OpenMeteoParams      string
	PirateWeatherBaseURL string `validate:"required,url"`
	PirateWeatherParams  string
	PirateWeatherAPIKey  string `validate:"required_if=WeatherProvider pirateweather"`

	HTTPConnectTimeout time.Duration `validate:"gt=0"`
	HTTPReadTimeout    time.Duration `validate:"gt=0"`

	// RefreshInterval is never below scheduler.MinInterval.
	RefreshInterval time.Duration
	CycleTimeout    time.Duration `validate:"gt=0"`

	// Location resolution.
	LocationGrants         location.Permissions
	LocationRequestTimeout time.Duration `validate:"gt=0"`
	LocationMaxAge         time.Duration `validate:"gte=0"`
	IPGeoURL               string        `validate:"required,url"`
	GPSDAddr               string        `validate:"omitempty,hostname_port"`

	Geocoder             string `validate:"oneof=nominatim google none"`
	NominatimURL         string `validate:"omitempty,url"`
	GoogleGeocoderAPIKey string `validate:"required_if=Geocoder google"`

	// DeviceZone stamps "Updated: HH:MM"; see units.ParseZone.
	DeviceZone *time.Location

	DatabasePath string `validate:"required"`

	// In-memory frame retention.
	StoreMaxHistory int           // frames per instance (0 = unlimited)
	StoreMaxAge     time.Duration // max age of frames (0 = unlimited)
}

// Load reads configuration from the environment (and .env when present).
// The result is not modified after Load returns.
func Load() (*AppConfig, error) {
	// A missing .env is normal in production.
	_ = godotenv.Load()

	cfg := &AppConfig{
		Port:                 getenvDefault("PORT", "8080"),
		LogLevel:             getenvDefault("LOG_LEVEL", "info"),
		WeatherProvider:      getenvDefault("WEATHER_PROVIDER", providers.OpenMeteoName),
		OpenMeteoBaseURL:     getenvDefault("OPENMETEO_BASE_URL", providers.DefaultOpenMeteoURL),
		OpenMeteoParams:      getenvDefault("OPENMETEO_PARAMS", providers.DefaultOpenMeteoParams),
		PirateWeatherBaseURL: getenvDefault("PIRATEWEATHER_BASE_URL", providers.DefaultPirateWeatherURL),
		PirateWeatherParams:  getenvDefault("PIRATEWEATHER_PARAMS", providers.DefaultPirateWeatherParams),
		PirateWeatherAPIKey:  os.Getenv("PIRATEWEATHER_API_KEY"),
		IPGeoURL:             getenvDefault("IPGEO_URL", location.DefaultIPGeoURL),
		GPSDAddr:             os.Getenv("GPSD_ADDR"),
		Geocoder:             getenvDefault("GEOCODER", "nominatim"),
		NominatimURL:         getenvDefault("NOMINATIM_URL", location.DefaultNominatimURL),
		GoogleGeocoderAPIKey: os.Getenv("GOOGLE_GEOCODER_API_KEY"),
		DatabasePath:         getenvDefault("DATABASE_PATH", "tempwidget.db"),
		StoreMaxHistory:      getenvInt("STORE_MAX_HISTORY", 96), // a day at the shortest refresh interval
	}

	var err error
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"HTTP_CONNECT_TIMEOUT", providers.DefaultConnectTimeout, &cfg.HTTPConnectTimeout},
		{"HTTP_READ_TIMEOUT", providers.DefaultReadTimeout, &cfg.HTTPReadTimeout},
		{"REFRESH_INTERVAL", scheduler.MinInterval, &cfg.RefreshInterval},
		{"CYCLE_TIMEOUT", 2 * time.Minute, &cfg.CycleTimeout},
		{"LOCATION_REQUEST_TIMEOUT", location.DefaultRequestTimeout, &cfg.LocationRequestTimeout},
		{"LOCATION_MAX_AGE", 30 * time.Minute, &cfg.LocationMaxAge},
		{"STORE_MAX_AGE", 24 * time.Hour, &cfg.StoreMaxAge},
	}
	for _, d := range durations {
		if *d.dst, err = getenvDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}
	if cfg.RefreshInterval < scheduler.MinInterval {
		cfg.RefreshInterval = scheduler.MinInterval
	}

	cfg.LocationGrants, err = location.ParsePermissions(getenvDefault("LOCATION_GRANTS", "coarse"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOCATION_GRANTS: %w", err)
	}

	cfg.DeviceZone, err = units.ParseZone(os.Getenv("DEVICE_ZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEVICE_ZONE: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("invalid configuration: %s", verrs.Error())
		}
		return nil, err
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
