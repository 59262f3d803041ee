package units_test

import (
	"math"
	"testing"
	"time"

	"github.com/i474232898/tempwidget/internal/units"
)

func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestTemperatureConversion(t *testing.T) {
	tests := []struct {
		name string
		f    float64
		c    float64
	}{
		{"freezing", 32, 0},
		{"boiling", 212, 100},
		{"crossover", -40, -40},
		{"body", 98.6, 37},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := units.FahrenheitToCelsius(tc.f); !almostEqual(got, tc.c, 1e-9) {
				t.Errorf("FahrenheitToCelsius(%v) = %v; want %v", tc.f, got, tc.c)
			}
			if got := units.CelsiusToFahrenheit(tc.c); !almostEqual(got, tc.f, 1e-9) {
				t.Errorf("CelsiusToFahrenheit(%v) = %v; want %v", tc.c, got, tc.f)
			}
		})
	}
}

func TestTemperatureRoundTrip(t *testing.T) {
	for f := -120.0; f <= 150.0; f += 0.37 {
		got := units.CelsiusToFahrenheit(units.FahrenheitToCelsius(f))
		if !almostEqual(got, f, 1e-9) {
			t.Fatalf("round trip of %v gave %v", f, got)
		}
	}
}

func TestFormatTemperature(t *testing.T) {
	tests := []struct {
		v    float64
		unit string
		want string
	}{
		{72.4, units.Fahrenheit, "72°F"},
		{72.5, units.Fahrenheit, "73°F"},
		{-0.4, units.Celsius, "0°C"},
		{-3.6, units.Celsius, "-4°C"},
		{math.NaN(), units.Fahrenheit, "--°F"},
	}
	for _, tc := range tests {
		if got := units.FormatTemperature(tc.v, tc.unit); got != tc.want {
			t.Errorf("FormatTemperature(%v, %q) = %q; want %q", tc.v, tc.unit, got, tc.want)
		}
	}
}

func TestFormatPercent(t *testing.T) {
	if got := units.FormatPercent(-1); got != "--" {
		t.Errorf("FormatPercent(-1) = %q", got)
	}
	if got := units.FormatPercent(45); got != "45" {
		t.Errorf("FormatPercent(45) = %q", got)
	}
}

func TestIsValidTemperature(t *testing.T) {
	if !units.IsValidTemperature(70) {
		t.Error("70F should be valid")
	}
	if units.IsValidTemperature(500) || units.IsValidTemperature(math.NaN()) {
		t.Error("500F and NaN should be invalid")
	}
}

func TestFormatClock(t *testing.T) {
	ts := time.Date(2024, 1, 2, 7, 5, 0, 0, time.UTC)
	if got := units.FormatClock(ts); got != "07:05" {
		t.Errorf("FormatClock = %q; want 07:05", got)
	}
	ts = time.Date(2024, 1, 2, 23, 59, 59, 0, time.UTC)
	if got := units.FormatClock(ts); got != "23:59" {
		t.Errorf("FormatClock = %q; want 23:59", got)
	}
}

func TestZoneForNeverNil(t *testing.T) {
	if units.ZoneFor(40.7128, -74.0060) == nil {
		t.Fatal("expected a zone for New York")
	}
	if units.ZoneFor(0, -160) == nil {
		t.Fatal("expected a fallback zone for open ocean")
	}
}

func TestParseZone(t *testing.T) {
	utc, err := units.ParseZone("UTC")
	if err != nil || utc.String() != "UTC" {
		t.Fatalf("ParseZone(UTC) = %v, %v", utc, err)
	}
	for _, in := range []string{"", "local", " Local "} {
		loc, err := units.ParseZone(in)
		if err != nil || loc != time.Local {
			t.Errorf("ParseZone(%q) = %v, %v; want time.Local", in, loc, err)
		}
	}
	loc, err := units.ParseZone("40.7128, -74.0060")
	if err != nil || loc == nil {
		t.Fatalf("ParseZone(coordinate) = %v, %v", loc, err)
	}
	for _, in := range []string{"Mars/Olympus", "91,0", "0,181", "north,west"} {
		if _, err := units.ParseZone(in); err == nil {
			t.Errorf("ParseZone(%q): expected error", in)
		}
	}
}
