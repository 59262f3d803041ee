package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/tempwidget/internal/units"
	"github.com/i474232898/tempwidget/internal/weather"
)

const (
	OpenMeteoName          = "openmeteo"
	DefaultOpenMeteoURL    = "https://api.open-meteo.com/v1/forecast"
	DefaultOpenMeteoParams = "current=temperature_2m,relative_humidity_2m" +
		"&hourly=temperature_2m,dew_point_2m,precipitation_probability,weather_code" +
		"&temperature_unit=fahrenheit&timezone=auto&forecast_days=3"
)

// OpenMeteoProvider implements weather.Provider for Open-Meteo, whose
// forecast comes back as parallel hourly arrays.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	params  string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewOpenMeteoProvider(client *http.Client, baseURL, params string, log *zap.Logger) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenMeteoProvider{
		name:    OpenMeteoName,
		baseURL: baseURL,
		params:  params,
		client:  client,
		circuit: newCircuitBreaker(OpenMeteoName),
		log:     log.Named(OpenMeteoName),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, coord weather.Coordinate) (weather.Snapshot, error) {
	u := fmt.Sprintf("%s?latitude=%s&longitude=%s", p.baseURL, formatCoord(coord.Latitude), formatCoord(coord.Longitude))
	u = joinQuery(u, p.params)

	body, err := fetchBody(ctx, p.client, p.circuit, u)
	if err != nil {
		p.log.Debug("fetch failed", zap.Error(err))
		return weather.Snapshot{}, err
	}

	snap, err := parseOpenMeteo(body)
	if err != nil {
		p.log.Warn("parse failed", zap.Error(err))
		return weather.Snapshot{}, err
	}
	if !units.IsValidTemperature(snap.CurrentTempF) {
		p.log.Warn("implausible temperature", zap.Float64("tempF", snap.CurrentTempF))
	}
	return snap, nil
}

// openMeteoPayload mirrors the fields we read. Hourly entries may be null.
type openMeteoPayload struct {
	CurrentUnits struct {
		Temperature string `json:"temperature_2m"`
	} `json:"current_units"`
	Current *struct {
		Temperature *float64 `json:"temperature_2m"`
		Humidity    *float64 `json:"relative_humidity_2m"`
	} `json:"current"`
	HourlyUnits struct {
		Temperature string `json:"temperature_2m"`
		DewPoint    string `json:"dew_point_2m"`
	} `json:"hourly_units"`
	Hourly struct {
		Time        []string   `json:"time"`
		Temperature []*float64 `json:"temperature_2m"`
		DewPoint    []*float64 `json:"dew_point_2m"`
		PrecipProb  []*float64 `json:"precipitation_probability"`
		WeatherCode []*float64 `json:"weather_code"`
	} `json:"hourly"`
}

func parseOpenMeteo(body []byte) (weather.Snapshot, error) {
	var payload openMeteoPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Snapshot{}, weather.ParseFailure(err.Error())
	}
	if payload.Current == nil {
		return weather.Snapshot{}, weather.ParseFailure("missing current block")
	}
	if payload.Current.Temperature == nil {
		return weather.Snapshot{}, weather.ParseFailure("missing current.temperature_2m")
	}
	if payload.Current.Humidity == nil {
		return weather.Snapshot{}, weather.ParseFailure("missing current.relative_humidity_2m")
	}

	unit := payload.CurrentUnits.Temperature
	toF := fahrenheitFor(unit)
	hourlyToF := fahrenheitFor(firstNonEmpty(payload.HourlyUnits.Temperature, unit))
	dewToF := fahrenheitFor(firstNonEmpty(payload.HourlyUnits.DewPoint, payload.HourlyUnits.Temperature, unit))

	snap := weather.NewSnapshot()
	snap.CurrentTempF = toF(*payload.Current.Temperature)
	snap.HumidityPct = *payload.Current.Humidity

	h := payload.Hourly
	if len(h.DewPoint) > 0 {
		snap.DewPointF = dewToF(valueAt(h.DewPoint, 0))
	}
	snap.RainChanceNext3hPct = weather.PctFromPercent(weather.MaxLeading(floats(h.PrecipProb), 3))

	if len(h.Time) > 0 {
		points := make([]weather.HourlyPoint, len(h.Time))
		for i, ts := range h.Time {
			code := -1
			if c := valueAt(h.WeatherCode, i); !math.IsNaN(c) {
				code = int(c)
			}
			points[i] = weather.HourlyPoint{
				Day:       datePrefix(ts),
				TempF:     hourlyToF(valueAt(h.Temperature, i)),
				PrecipPct: valueAt(h.PrecipProb, i),
				Code:      code,
			}
		}
		today := datePrefix(h.Time[0])
		snap.ForecastDays = weather.AggregateDays(today, points, weather.MaxForecastDays, wmoSeverity, func(code int) string {
			return string(mapOpenMeteoCondition(code))
		})
	}

	return snap.Normalize(), nil
}

// fahrenheitFor returns a converter for a unit label such as "°F" or "°C".
func fahrenheitFor(unit string) func(float64) float64 {
	if strings.Contains(strings.ToUpper(unit), "C") {
		return units.CelsiusToFahrenheit
	}
	return func(v float64) float64 { return v }
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func datePrefix(ts string) string {
	if len(ts) < len("2006-01-02") {
		return ""
	}
	return ts[:len("2006-01-02")]
}

// valueAt reads index i of a nullable series, NaN when absent.
func valueAt(series []*float64, i int) float64 {
	if i < 0 || i >= len(series) || series[i] == nil {
		return math.NaN()
	}
	return *series[i]
}

func floats(series []*float64) []float64 {
	out := make([]float64, len(series))
	for i := range series {
		out[i] = valueAt(series, i)
	}
	return out
}

// wmoSeverity orders WMO codes for picking a day's icon. Freezing rain and
// drizzle rank between thunderstorms and snow even though their codes are
// lower than the snow codes.
func wmoSeverity(code int) int {
	switch code {
	case 56, 57, 66, 67:
		return 5
	}
	switch mapOpenMeteoCondition(code) {
	case weather.ConditionStorm:
		return 6
	case weather.ConditionSnow:
		return 4
	case weather.ConditionRain:
		return 3
	case weather.ConditionFog:
		return 2
	case weather.ConditionCloudy:
		return 1
	case weather.ConditionClear:
		return 0
	default:
		return -1
	}
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// WMO weather interpretation codes as used by Open-Meteo.
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionFog
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}
