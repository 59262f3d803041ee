package providers

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/i474232898/tempwidget/internal/weather"
)

// Options configures the adapter built by New.
type Options struct {
	Client  *http.Client
	BaseURL string
	Params  string
	APIKey  string
	Logger  *zap.Logger
}

// New returns the adapter registered under name.
func New(name string, opts Options) (weather.Provider, error) {
	if opts.Client == nil {
		opts.Client = NewHTTPClient(DefaultConnectTimeout, DefaultReadTimeout)
	}
	switch name {
	case OpenMeteoName:
		return NewOpenMeteoProvider(opts.Client, opts.BaseURL, opts.Params, opts.Logger), nil
	case PirateWeatherName:
		return NewPirateWeatherProvider(opts.Client, opts.APIKey, opts.BaseURL, opts.Params, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown weather provider %q", name)
	}
}
