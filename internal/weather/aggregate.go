package weather

import (
	"math"
)

// HourlyPoint is one row of a provider's hourly series. Missing values are NaN;
// Code is -1 when the provider sent no weather code.
type HourlyPoint struct {
	Day       string // YYYY-MM-DD
	TempF     float64
	PrecipPct float64
	Code      int
}

// AggregateDays summarizes the hourly rows of the days following today, in the
// order their date keys first appear, keeping at most limit days.
// High/low are the max/min temperature of a day and rain chance is the max
// probability. The day's code is the one severity ranks highest, ties going to
// the larger code; a nil severity ranks codes by value. iconFor maps that code
// to an icon key.
func AggregateDays(today string, points []HourlyPoint, limit int, severity func(code int) int, iconFor func(code int) string) []DailyForecast {
	if severity == nil {
		severity = func(code int) int { return code }
	}

	type bucket struct {
		high, low, precip float64
		code, rank        int
	}

	var order []string
	buckets := make(map[string]*bucket)

	for _, p := range points {
		if p.Day == "" || p.Day == today {
			continue
		}
		b, ok := buckets[p.Day]
		if !ok {
			if len(order) >= limit {
				continue
			}
			b = &bucket{high: math.NaN(), low: math.NaN(), precip: math.NaN(), code: -1}
			buckets[p.Day] = b
			order = append(order, p.Day)
		}
		b.high = nanMax(b.high, p.TempF)
		b.low = nanMin(b.low, p.TempF)
		b.precip = nanMax(b.precip, p.PrecipPct)
		if p.Code >= 0 {
			r := severity(p.Code)
			if b.code < 0 || r > b.rank || (r == b.rank && p.Code > b.code) {
				b.code, b.rank = p.Code, r
			}
		}
	}

	days := make([]DailyForecast, 0, len(order))
	for _, k := range order {
		b := buckets[k]
		day := DailyForecast{
			HighF:     b.high,
			LowF:      b.low,
			PrecipPct: PctFromPercent(b.precip),
		}
		if b.code >= 0 && iconFor != nil {
			day.IconKey = iconFor(b.code)
		}
		days = append(days, day)
	}
	return days
}

// MaxLeading returns the max of the first n non-NaN values, NaN if there are none.
func MaxLeading(values []float64, n int) float64 {
	if n > len(values) {
		n = len(values)
	}
	out := math.NaN()
	for _, v := range values[:n] {
		out = nanMax(out, v)
	}
	return out
}

// PctFromPercent rounds a 0-100 value to an int percentage, UnknownPct for NaN.
func PctFromPercent(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return UnknownPct
	}
	return clampPct(int(math.Round(v)))
}

// PctFromFraction converts a 0-1 probability to a rounded percentage.
func PctFromFraction(v float64) int {
	return PctFromPercent(v * 100)
}

// Normalize enforces the snapshot invariants: percentages are UnknownPct or
// within [0,100], and at most MaxForecastDays days are kept.
func (s Snapshot) Normalize() Snapshot {
	if !math.IsNaN(s.HumidityPct) {
		s.HumidityPct = math.Max(0, math.Min(100, s.HumidityPct))
	}
	if s.RainChanceNext3hPct != UnknownPct {
		s.RainChanceNext3hPct = clampPct(s.RainChanceNext3hPct)
	}

	days := make([]DailyForecast, 0, MaxForecastDays)
	for i, d := range s.ForecastDays {
		if i >= MaxForecastDays {
			break
		}
		if d.PrecipPct != UnknownPct {
			d.PrecipPct = clampPct(d.PrecipPct)
		}
		days = append(days, d)
	}
	s.ForecastDays = days
	return s
}

func clampPct(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

func nanMax(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	default:
		return math.Max(a, b)
	}
}

func nanMin(a, b float64) float64 {
	switch {
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	default:
		return math.Min(a, b)
	}
}
