package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/tempwidget/internal/weather"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 10 * time.Second

	// maxBodyBytes caps a provider payload; forecasts are a few hundred KB at most.
	maxBodyBytes = 4 << 20
)

// NewHTTPClient builds the transport shared by an adapter for its whole life.
// connect bounds dialing, read bounds waiting for the response and reading it.
func NewHTTPClient(connect, read time.Duration) *http.Client {
	if connect <= 0 {
		connect = DefaultConnectTimeout
	}
	if read <= 0 {
		read = DefaultReadTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connect}).DialContext,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   connect + read,
	}
}

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A call the caller abandoned says nothing about the service.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errAbandoned)
		},
	})
}

// errAbandoned marks a request cut short by the caller's context.
var errAbandoned = errors.New("request abandoned by caller")

// statusError carries a non-2xx status out of the circuit breaker.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "unexpected status code: " + strconv.Itoa(e.code)
}

// fetchBody performs one GET through the circuit breaker and returns the body.
// It never retries; the refresh schedule is the retry policy.
// Errors are *weather.Failure values, or ctx.Err() when the caller cancelled.
func fetchBody(ctx context.Context, client *http.Client, cb *gobreaker.CircuitBreaker, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, weather.NewFailure(weather.KindNetwork, "network error: invalid request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			if ctx.Err() != nil {
				return nil, errAbandoned
			}
			return nil, execErr
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// Drain so the connection can be reused.
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			se := &statusError{code: resp.StatusCode}
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return nil, se
			}
			// Client errors are our fault, not the service's health.
			return se, nil
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			if ctx.Err() != nil {
				return nil, errAbandoned
			}
			return nil, readErr
		}
		return body, nil
	})

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	if err != nil {
		var se *statusError
		switch {
		case errors.As(err, &se):
			return nil, weather.ServiceFailure(se.code)
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, weather.NetworkFailure(fmt.Sprintf("circuit breaker open: %v", err))
		default:
			return nil, weather.NetworkFailure(err.Error())
		}
	}

	switch v := result.(type) {
	case *statusError:
		return nil, weather.ServiceFailure(v.code)
	case []byte:
		if len(bytes.TrimSpace(v)) == 0 {
			return nil, weather.ErrEmptyResponse
		}
		return v, nil
	default:
		return nil, weather.NetworkFailure("unexpected result type from circuit breaker")
	}
}

// joinQuery appends a fixed query-parameter string to a URL that may already
// carry parameters.
func joinQuery(base, params string) string {
	if params == "" {
		return base
	}
	if strings.Contains(base, "?") {
		return base + "&" + params
	}
	return base + "?" + params
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
