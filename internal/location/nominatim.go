package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mitchellh/mapstructure"

	"github.com/i474232898/tempwidget/internal/weather"
)

const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// NominatimGeocoder reverse geocodes with OpenStreetMap Nominatim.
type NominatimGeocoder struct {
	baseURL   string
	userAgent string
	language  string
	client    *http.Client
}

func NewNominatimGeocoder(client *http.Client, baseURL, userAgent, language string) *NominatimGeocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &NominatimGeocoder{
		baseURL:   baseURL,
		userAgent: userAgent,
		language:  language,
		client:    client,
	}
}

// nominatimAddress holds the address keys we care about; Nominatim omits the
// ones that do not apply to a place.
type nominatimAddress struct {
	City          string `mapstructure:"city"`
	Town          string `mapstructure:"town"`
	Village       string `mapstructure:"village"`
	Hamlet        string `mapstructure:"hamlet"`
	Municipality  string `mapstructure:"municipality"`
	County        string `mapstructure:"county"`
	StateDistrict string `mapstructure:"state_district"`
	State         string `mapstructure:"state"`
	Country       string `mapstructure:"country"`
}

func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, c weather.Coordinate) (Address, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(c.Latitude, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(c.Longitude, 'f', 6, 64))
	q.Set("format", "jsonv2")
	q.Set("zoom", "14")
	q.Set("addressdetails", "1")
	if g.language != "" {
		q.Set("accept-language", g.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return Address{}, err
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Address{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Address{}, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var body struct {
		Error   string         `json:"error"`
		Address map[string]any `json:"address"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Address{}, fmt.Errorf("decode nominatim response: %w", err)
	}
	if body.Error != "" {
		return Address{}, errors.New(body.Error)
	}

	var a nominatimAddress
	if err := mapstructure.WeakDecode(body.Address, &a); err != nil {
		return Address{}, fmt.Errorf("decode nominatim address: %w", err)
	}
	return Address{
		Locality:     firstNonEmpty(a.City, a.Town, a.Village, a.Hamlet, a.Municipality),
		SubAdminArea: firstNonEmpty(a.County, a.StateDistrict),
		AdminArea:    a.State,
		CountryName:  a.Country,
	}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
