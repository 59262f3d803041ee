// Package layout scales widget text sizes continuously with the surface width.
package layout

import (
	"math"
)

const (
	// BaseWidthDp is the width at which every field renders at its default size.
	BaseWidthDp = 200.0

	MinScale = 1.0
	MaxScale = 2.5
)

// Field names a text view on the widget surface.
type Field string

const (
	TemperatureC Field = "temperature-C"
	TemperatureF Field = "temperature-F"
	Humidity     Field = "humidity"
	DewPoint     Field = "dew-point"
	RainChance   Field = "rain-chance"
	Day1Content  Field = "day1-content"
	Day2Content  Field = "day2-content"
	Day1Icon     Field = "day1-icon"
	Day2Icon     Field = "day2-icon"
	LocationName Field = "location-name"
	UpdatedTime  Field = "updated-time"
)

// Range is the size of a field at MinScale and at MaxScale.
type Range struct {
	Min float64
	Max float64
}

// Ranges lists every scaled field. The temperature readouts carry their own
// ranges; the rest scale from their default size to 2.5x of it.
var Ranges = map[Field]Range{
	TemperatureF: {48, 130},
	TemperatureC: {40, 110},
	LocationName: scaled(14),
	Humidity:     scaled(12),
	DewPoint:     scaled(12),
	RainChance:   scaled(12),
	Day1Content:  scaled(12),
	Day2Content:  scaled(12),
	UpdatedTime:  scaled(10),
}

func scaled(def float64) Range {
	return Range{Min: def, Max: def * MaxScale}
}

// Scale is the layout for one surface width.
type Scale struct {
	Factor float64           `json:"scaleFactor"`
	Sizes  map[Field]float64 `json:"sizes"`
}

// ScaleFactor maps a minimum width in dp to a factor within [MinScale, MaxScale].
// Invalid widths scale as the base width.
func ScaleFactor(widthDp float64) float64 {
	if math.IsNaN(widthDp) || widthDp <= 0 {
		return MinScale
	}
	return clamp(widthDp/BaseWidthDp, MinScale, MaxScale)
}

// Size interpolates a field size for a scale factor.
func (r Range) Size(factor float64) float64 {
	t := (factor - MinScale) / (MaxScale - MinScale)
	return clamp(r.Min+(r.Max-r.Min)*t, r.Min, r.Max)
}

// Compute returns the text sizes for a surface of the given minimum width.
func Compute(widthDp float64) Scale {
	f := ScaleFactor(widthDp)
	sizes := make(map[Field]float64, len(Ranges))
	for field, r := range Ranges {
		sizes[field] = r.Size(f)
	}
	return Scale{Factor: f, Sizes: sizes}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
