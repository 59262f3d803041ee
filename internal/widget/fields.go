package widget

import (
	"fmt"
	"maps"
	"time"

	"github.com/i474232898/tempwidget/internal/layout"
	"github.com/i474232898/tempwidget/internal/units"
	"github.com/i474232898/tempwidget/internal/weather"
)

const (
	LoadingText            = "Getting location…"
	PermissionRequiredText = "Location permission required"
)

// Fields is one update of a widget surface: text per field, point sizes and
// icon visibility. Fields left out keep whatever the surface showed before.
type Fields struct {
	Text    map[layout.Field]string  `json:"text"`
	Sizes   map[layout.Field]float64 `json:"sizes,omitempty"`
	Visible map[layout.Field]bool    `json:"visible,omitempty"`
}

func newFields(scale layout.Scale) Fields {
	return Fields{
		Text:    make(map[layout.Field]string),
		Sizes:   maps.Clone(scale.Sizes),
		Visible: make(map[layout.Field]bool),
	}
}

// Clone returns a deep copy so a committed update cannot be changed afterwards.
func (f Fields) Clone() Fields {
	return Fields{
		Text:    maps.Clone(f.Text),
		Sizes:   maps.Clone(f.Sizes),
		Visible: maps.Clone(f.Visible),
	}
}

func (f Fields) setLoading() {
	f.Text[layout.LocationName] = LoadingText
}

func (f Fields) setPermissionRequired() {
	f.Text[layout.TemperatureF] = "Permission"
	f.Text[layout.TemperatureC] = "No"
	f.Text[layout.LocationName] = PermissionRequiredText
}

// setFailure writes the two-line error label, the failure message and blanks
// every weather field so nothing stale stays on screen.
func (f Fields) setFailure(label, message string, at time.Time) {
	f.Text[layout.TemperatureC] = label
	f.Text[layout.TemperatureF] = "Error"
	f.Text[layout.LocationName] = message
	f.Text[layout.Humidity] = "Humidity: " + units.Unknown + "%"
	f.Text[layout.DewPoint] = "Dew point: " + units.Unknown
	f.Text[layout.RainChance] = "Rain 3h: " + units.Unknown + "%"
	f.Text[layout.Day1Content] = dayContent(weather.UnknownDay())
	f.Text[layout.Day2Content] = dayContent(weather.UnknownDay())
	f.setIcon(layout.Day1Icon, "")
	f.setIcon(layout.Day2Icon, "")
	f.Text[layout.UpdatedTime] = "Updated: " + units.FormatClock(at)
}

func (f Fields) setWeather(loc weather.ResolvedLocation, snap weather.Snapshot, at time.Time) {
	tempF := snap.CurrentTempF
	f.Text[layout.TemperatureC] = units.FormatTemperature(units.FahrenheitToCelsius(tempF), units.Celsius)
	f.Text[layout.TemperatureF] = units.FormatTemperature(tempF, units.Fahrenheit)

	f.Text[layout.Humidity] = "Humidity: " + units.FormatDegrees(snap.HumidityPct) + "%"
	f.Text[layout.DewPoint] = "Dew point: " + dewPoint(snap.DewPointF)
	f.Text[layout.RainChance] = "Rain 3h: " + units.FormatPercent(snap.RainChanceNext3hPct) + "%"

	days := [weather.MaxForecastDays]weather.DailyForecast{weather.UnknownDay(), weather.UnknownDay()}
	copy(days[:], snap.ForecastDays)
	f.Text[layout.Day1Content] = dayContent(days[0])
	f.Text[layout.Day2Content] = dayContent(days[1])
	f.setIcon(layout.Day1Icon, days[0].IconKey)
	f.setIcon(layout.Day2Icon, days[1].IconKey)

	name := loc.DisplayName
	if snap.LocationName != "" && snap.LocationName != weather.UnknownLocationName {
		name = snap.LocationName
	}
	f.Text[layout.LocationName] = name
	f.Text[layout.UpdatedTime] = "Updated: " + units.FormatClock(at)
}

func (f Fields) setIcon(field layout.Field, key string) {
	f.Text[field] = key
	f.Visible[field] = key != ""
}

func dewPoint(v float64) string {
	d := units.FormatDegrees(v)
	if d == units.Unknown {
		return d
	}
	return d + "°F"
}

// dayContent renders "<high>/<low>°F\nRain: <pct>%".
func dayContent(d weather.DailyForecast) string {
	return fmt.Sprintf("%s/%s°F\nRain: %s%%",
		units.FormatDegrees(d.HighF), units.FormatDegrees(d.LowF), units.FormatPercent(d.PrecipPct))
}
