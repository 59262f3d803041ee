package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/tempwidget/internal/units"
	"github.com/i474232898/tempwidget/internal/weather"
)

const (
	PirateWeatherName          = "pirateweather"
	DefaultPirateWeatherURL    = "https://api.pirateweather.net/forecast"
	DefaultPirateWeatherParams = "units=us&exclude=minutely,alerts"
)

// PirateWeatherProvider implements weather.Provider for Pirate Weather
// (Dark Sky compatible currently/hourly/daily blocks).
type PirateWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	params  string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
	log     *zap.Logger
}

func NewPirateWeatherProvider(client *http.Client, apiKey, baseURL, params string, log *zap.Logger) *PirateWeatherProvider {
	if baseURL == "" {
		baseURL = DefaultPirateWeatherURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PirateWeatherProvider{
		name:    PirateWeatherName,
		apiKey:  apiKey,
		baseURL: baseURL,
		params:  params,
		client:  client,
		circuit: newCircuitBreaker(PirateWeatherName),
		log:     log.Named(PirateWeatherName),
	}
}

func (p *PirateWeatherProvider) Name() string {
	return p.name
}

func (p *PirateWeatherProvider) Fetch(ctx context.Context, coord weather.Coordinate) (weather.Snapshot, error) {
	if p.apiKey == "" {
		return weather.Snapshot{}, weather.NewFailure(weather.KindService, "pirateweather api key is not configured")
	}

	u := fmt.Sprintf("%s/%s/%s,%s", p.baseURL, url.PathEscape(p.apiKey),
		formatCoord(coord.Latitude), formatCoord(coord.Longitude))
	u = joinQuery(u, p.params)

	body, err := fetchBody(ctx, p.client, p.circuit, u)
	if err != nil {
		p.log.Debug("fetch failed", zap.Error(err))
		return weather.Snapshot{}, err
	}

	snap, err := parsePirateWeather(body)
	if err != nil {
		p.log.Warn("parse failed", zap.Error(err))
		return weather.Snapshot{}, err
	}
	if !units.IsValidTemperature(snap.CurrentTempF) {
		p.log.Warn("implausible temperature", zap.Float64("tempF", snap.CurrentTempF))
	}
	return snap, nil
}

type pirateHour struct {
	Temperature       *float64 `json:"temperature"`
	PrecipProbability *float64 `json:"precipProbability"`
}

type pirateDay struct {
	TemperatureHigh   *float64 `json:"temperatureHigh"`
	TemperatureLow    *float64 `json:"temperatureLow"`
	PrecipProbability *float64 `json:"precipProbability"`
	Icon              string   `json:"icon"`
}

type piratePayload struct {
	Currently *struct {
		Temperature *float64 `json:"temperature"`
		Humidity    *float64 `json:"humidity"`
		DewPoint    *float64 `json:"dewPoint"`
	} `json:"currently"`
	Hourly struct {
		Data []pirateHour `json:"data"`
	} `json:"hourly"`
	Daily struct {
		Data []pirateDay `json:"data"`
	} `json:"daily"`
	Flags struct {
		Units string `json:"units"`
	} `json:"flags"`
}

func parsePirateWeather(body []byte) (weather.Snapshot, error) {
	var payload piratePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Snapshot{}, weather.ParseFailure(err.Error())
	}
	cur := payload.Currently
	switch {
	case cur == nil:
		return weather.Snapshot{}, weather.ParseFailure("missing currently block")
	case cur.Temperature == nil:
		return weather.Snapshot{}, weather.ParseFailure("missing currently.temperature")
	case cur.Humidity == nil:
		return weather.Snapshot{}, weather.ParseFailure("missing currently.humidity")
	case cur.DewPoint == nil:
		return weather.Snapshot{}, weather.ParseFailure("missing currently.dewPoint")
	}

	// "us" (and an absent flag) means Fahrenheit; si, ca and uk2 are Celsius.
	toF := func(v float64) float64 { return v }
	if u := payload.Flags.Units; u != "" && u != "us" {
		toF = units.CelsiusToFahrenheit
	}

	snap := weather.NewSnapshot()
	snap.CurrentTempF = toF(*cur.Temperature)
	snap.HumidityPct = *cur.Humidity * 100
	snap.DewPointF = toF(*cur.DewPoint)

	probs := make([]float64, len(payload.Hourly.Data))
	for i, h := range payload.Hourly.Data {
		probs[i] = deref(h.PrecipProbability)
	}
	snap.RainChanceNext3hPct = weather.PctFromFraction(weather.MaxLeading(probs, 3))

	// daily.data[0] is today.
	for i := 1; i < len(payload.Daily.Data) && len(snap.ForecastDays) < weather.MaxForecastDays; i++ {
		d := payload.Daily.Data[i]
		snap.ForecastDays = append(snap.ForecastDays, weather.DailyForecast{
			HighF:     toF(deref(d.TemperatureHigh)),
			LowF:      toF(deref(d.TemperatureLow)),
			PrecipPct: weather.PctFromFraction(deref(d.PrecipProbability)),
			IconKey:   d.Icon,
		})
	}

	return snap.Normalize(), nil
}

func deref(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
