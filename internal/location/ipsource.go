package location

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/i474232898/tempwidget/internal/weather"
)

const DefaultIPGeoURL = "http://ip-api.com/json/?fields=status,message,lat,lon"

// IPSource is the network tier: it locates the device by its public IP.
type IPSource struct {
	url    string
	client *http.Client
	cache  *fixCache
}

func NewIPSource(client *http.Client, url string, maxAge time.Duration) *IPSource {
	if url == "" {
		url = DefaultIPGeoURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &IPSource{url: url, client: client, cache: newFixCache(maxAge)}
}

func (s *IPSource) Name() string {
	return "network"
}

func (s *IPSource) LastKnown(context.Context) (weather.Coordinate, bool, error) {
	c, ok := s.cache.load()
	return c, ok, nil
}

func (s *IPSource) RequestUpdate(ctx context.Context) (weather.Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return weather.Coordinate{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return weather.Coordinate{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return weather.Coordinate{}, fmt.Errorf("%w: geolocation service denied access (%d)", ErrSecurity, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return weather.Coordinate{}, fmt.Errorf("geolocation service returned status %d", resp.StatusCode)
	}

	var body struct {
		Status  string   `json:"status"`
		Message string   `json:"message"`
		Lat     *float64 `json:"lat"`
		Lon     *float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return weather.Coordinate{}, fmt.Errorf("decode geolocation response: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return weather.Coordinate{}, fmt.Errorf("%w: %s", ErrNoFix, body.Message)
	}
	if body.Lat == nil || body.Lon == nil {
		return weather.Coordinate{}, ErrNoFix
	}

	c := weather.Coordinate{Latitude: *body.Lat, Longitude: *body.Lon}
	s.cache.store(c)
	return c, nil
}
