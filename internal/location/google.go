package location

import (
	"context"
	"errors"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/tempwidget/internal/weather"
)

// ErrGeocoderBusy is returned while an earlier Google lookup is still running.
var ErrGeocoderBusy = errors.New("google geocoder busy with an earlier request")

// GoogleGeocoder reverse geocodes with the Google Geocoding API.
//
// The client library takes no context and builds its own http.Client with no
// timeout, so a cancelled lookup keeps running until the server answers or the
// connection drops. At most one such lookup is in flight per geocoder; calls
// made while it is stuck fail fast with ErrGeocoderBusy.
type GoogleGeocoder struct {
	reverse func(geocoder.Location) ([]geocoder.Address, error)
	slot    chan struct{}
}

// NewGoogleGeocoder configures the geocoder package's process-wide API key.
// Only one Google key can be active per process.
func NewGoogleGeocoder(apiKey string) *GoogleGeocoder {
	geocoder.ApiKey = apiKey
	return &GoogleGeocoder{
		reverse: geocoder.GeocodingReverse,
		slot:    make(chan struct{}, 1),
	}
}

type googleResult struct {
	addrs []geocoder.Address
	err   error
}

func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, c weather.Coordinate) (Address, error) {
	select {
	case g.slot <- struct{}{}:
	default:
		return Address{}, ErrGeocoderBusy
	}

	done := make(chan googleResult, 1)
	go func() {
		defer func() { <-g.slot }()
		addrs, err := g.reverse(geocoder.Location{Latitude: c.Latitude, Longitude: c.Longitude})
		done <- googleResult{addrs: addrs, err: err}
	}()

	select {
	case <-ctx.Done():
		return Address{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return Address{}, res.err
		}
		if len(res.addrs) == 0 {
			return Address{}, errors.New("no address for coordinate")
		}
		a := res.addrs[0]
		return Address{
			Locality:     a.City,
			SubAdminArea: a.County,
			AdminArea:    a.State,
			CountryName:  a.Country,
		}, nil
	}
}
