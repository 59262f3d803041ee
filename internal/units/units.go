package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zsefvlol/timezonemapper"
)

const (
	Celsius    = "C"
	Fahrenheit = "F"

	// Placeholder rendered for values the source did not provide.
	Unknown = "--"
)

// FahrenheitToCelsius converts a Fahrenheit temperature to Celsius.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5.0 / 9.0
}

// CelsiusToFahrenheit converts a Celsius temperature to Fahrenheit.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9.0/5.0 + 32
}

// FormatTemperature rounds v to the nearest integer and appends the degree sign and unit.
// NaN renders as the unknown placeholder.
func FormatTemperature(v float64, unit string) string {
	return FormatDegrees(v) + "°" + unit
}

// FormatDegrees renders a bare rounded temperature, or "--" when unknown.
func FormatDegrees(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Unknown
	}
	return fmt.Sprintf("%d", int64(math.Round(v)))
}

// FormatPercent renders a 0-100 percentage, or "--" for the -1 sentinel.
func FormatPercent(pct int) string {
	if pct < 0 {
		return Unknown
	}
	return fmt.Sprintf("%d", pct)
}

// IsValidTemperature reports whether a Fahrenheit reading is physically plausible.
func IsValidTemperature(f float64) bool {
	return !math.IsNaN(f) && f >= -100 && f <= 150
}

// FormatClock renders t as zero-padded 24-hour HH:MM.
func FormatClock(t time.Time) string {
	s := t.Format("15:04")
	if len(s) == 5 {
		return s
	}
	// Layout formatting should always produce five characters; build it by hand otherwise.
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// ZoneFor returns the IANA time zone covering the coordinate, or time.Local
// when the zone is unknown or its tz data is not installed.
func ZoneFor(lat, lon float64) *time.Location {
	name := timezonemapper.LatLngToTimezoneString(lat, lon)
	if name == "" || name == "unknown" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

// ParseZone reads a device zone setting: empty or "local" for time.Local, an
// IANA name such as "Europe/Berlin", or a "lat,lon" pair resolved with ZoneFor.
func ParseZone(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "local") {
		return time.Local, nil
	}
	if latStr, lonStr, ok := strings.Cut(s, ","); ok {
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid latitude in zone %q", s)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid longitude in zone %q", s)
		}
		return ZoneFor(lat, lon), nil
	}
	return time.LoadLocation(s)
}
