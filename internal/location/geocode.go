package location

import (
	"context"
	"strings"

	"github.com/i474232898/tempwidget/internal/weather"
)

// Address is the part of a reverse geocoding result used for naming.
type Address struct {
	Locality     string
	SubAdminArea string
	AdminArea    string
	CountryName  string
}

// DisplayName picks the most specific non-empty component.
func (a Address) DisplayName() string {
	for _, s := range []string{a.Locality, a.SubAdminArea, a.AdminArea, a.CountryName} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return weather.UnknownLocationName
}

// Geocoder converts coordinates to an address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, c weather.Coordinate) (Address, error)
}
