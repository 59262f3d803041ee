package weather

import (
	"math"
)

// Condition represents a normalized high-level weather condition.
// It is also used as the icon key for providers that only report numeric codes.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionFog     Condition = "fog"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
)

// UnknownPct marks a percentage the source did not provide.
const UnknownPct = -1

// UnknownLocationName is shown when reverse geocoding yields nothing.
const UnknownLocationName = "Unknown Location"

// MaxForecastDays is the number of days after today a snapshot carries.
const MaxForecastDays = 2

// Coordinate is a point on the globe in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinate lies within the WGS84 range.
func (c Coordinate) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}

// ResolvedLocation is a coordinate with a human-readable name.
type ResolvedLocation struct {
	Coordinate  Coordinate `json:"coordinate"`
	DisplayName string     `json:"displayName"`
}

// DailyForecast summarizes one day after today.
// HighF/LowF are NaN and PrecipPct is UnknownPct when not provided.
type DailyForecast struct {
	HighF     float64 `json:"highF"`
	LowF      float64 `json:"lowF"`
	PrecipPct int     `json:"precipPct"`
	IconKey   string  `json:"iconKey,omitempty"`
}

// UnknownDay returns a forecast day with every field unknown.
func UnknownDay() DailyForecast {
	return DailyForecast{HighF: math.NaN(), LowF: math.NaN(), PrecipPct: UnknownPct}
}

// Snapshot is the normalized weather result for one coordinate.
// Temperatures are always Fahrenheit.
type Snapshot struct {
	CurrentTempF        float64         `json:"currentTempF"`
	HumidityPct         float64         `json:"humidityPct"`
	DewPointF           float64         `json:"dewPointF"`
	RainChanceNext3hPct int             `json:"rainChanceNext3hPct"`
	LocationName        string          `json:"locationName,omitempty"`
	ForecastDays        []DailyForecast `json:"forecastDays"`
}

// NewSnapshot returns a snapshot whose optional fields are unknown.
func NewSnapshot() Snapshot {
	return Snapshot{
		CurrentTempF:        math.NaN(),
		HumidityPct:         math.NaN(),
		DewPointF:           math.NaN(),
		RainChanceNext3hPct: UnknownPct,
	}
}
