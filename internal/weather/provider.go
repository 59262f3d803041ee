package weather

import (
	"context"
)

// Provider abstracts a weather data source (e.g. Open-Meteo, Pirate Weather).
//
// Fetch returns a normalized Snapshot, a *Failure describing why the fetch
// failed, or ctx.Err() unchanged when the caller cancelled.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, coord Coordinate) (Snapshot, error)
}
