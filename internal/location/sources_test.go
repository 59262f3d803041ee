package location

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/tempwidget/internal/weather"
)

func TestIPSourceRequestUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","lat":40.7,"lon":-74.0}`))
	}))
	defer srv.Close()

	src := NewIPSource(srv.Client(), srv.URL, time.Hour)
	if _, ok, _ := src.LastKnown(context.Background()); ok {
		t.Fatalf("expected empty cache before the first request")
	}

	got, err := src.RequestUpdate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := weather.Coordinate{Latitude: 40.7, Longitude: -74.0}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if cached, ok, _ := src.LastKnown(context.Background()); !ok || cached != want {
		t.Fatalf("expected fix to be cached, got %+v (%v)", cached, ok)
	}
}

func TestIPSourceErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(error) bool
	}{
		{"forbidden", http.StatusForbidden, ``, func(err error) bool { return errors.Is(err, ErrSecurity) }},
		{"fail status", http.StatusOK, `{"status":"fail","message":"reserved range"}`, func(err error) bool { return errors.Is(err, ErrNoFix) }},
		{"server error", http.StatusBadGateway, ``, func(err error) bool { return err != nil && !errors.Is(err, ErrSecurity) }},
		{"bad json", http.StatusOK, `{`, func(err error) bool { return err != nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewIPSource(srv.Client(), srv.URL, 0).RequestUpdate(context.Background())
			if !tt.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func fakeGPSD(t *testing.T, lines ...string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		watch, _ := bufio.NewReader(conn).ReadString('\n')
		if !strings.HasPrefix(watch, "?WATCH=") {
			return
		}
		for _, l := range lines {
			_, _ = conn.Write([]byte(l + "\n"))
		}
	}()
	return ln.Addr().String()
}

func TestGPSDSourceRequestUpdate(t *testing.T) {
	addr := fakeGPSD(t,
		`{"class":"VERSION","release":"3.25"}`,
		`{"class":"TPV","mode":1}`,
		`not json`,
		`{"class":"TPV","mode":3,"lat":52.52,"lon":13.405}`,
	)

	src := NewGPSDSource(addr, 0)
	got, err := src.RequestUpdate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := weather.Coordinate{Latitude: 52.52, Longitude: 13.405}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if cached, ok, _ := src.LastKnown(context.Background()); !ok || cached != want {
		t.Fatalf("expected cached fix, got %+v (%v)", cached, ok)
	}
}

func TestGPSDSourceNoFix(t *testing.T) {
	addr := fakeGPSD(t, `{"class":"TPV","mode":1}`)

	_, err := NewGPSDSource(addr, 0).RequestUpdate(context.Background())
	if !errors.Is(err, ErrNoFix) {
		t.Fatalf("expected ErrNoFix, got %v", err)
	}
}

func TestGPSDSourceTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = NewGPSDSource(ln.Addr().String(), 0).RequestUpdate(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPassiveSourceUnsubscribes(t *testing.T) {
	src := NewPassiveSource(0)
	want := weather.Coordinate{Latitude: 1.29, Longitude: 103.85}

	done := make(chan weather.Coordinate)
	go func() {
		c, _ := src.RequestUpdate(context.Background())
		done <- c
	}()

	deadline := time.Now().Add(time.Second)
	for src.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	src.Publish(want)

	if got := <-done; got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if n := src.Subscribers(); n != 0 {
		t.Fatalf("expected no subscribers after fix, got %d", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := src.RequestUpdate(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if n := src.Subscribers(); n != 0 {
		t.Fatalf("expected no subscribers after timeout, got %d", n)
	}
}

func TestFixCacheExpires(t *testing.T) {
	c := newFixCache(time.Minute)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.store(weather.Coordinate{Latitude: 1, Longitude: 2})
	if _, ok := c.load(); !ok {
		t.Fatalf("expected fresh fix")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.load(); ok {
		t.Fatalf("expected stale fix to be ignored")
	}
}

func TestNominatimReverseGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reverse" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "jsonv2" {
			t.Errorf("unexpected format %q", r.URL.Query().Get("format"))
		}
		if r.Header.Get("User-Agent") != "tempwidget-test" {
			t.Errorf("missing user agent")
		}
		_, _ = w.Write([]byte(`{"address":{"town":"Hoboken","county":"Hudson County","state":"New Jersey","country":"United States","postcode":7030}}`))
	}))
	defer srv.Close()

	g := NewNominatimGeocoder(srv.Client(), srv.URL, "tempwidget-test", "en")
	addr, err := g.ReverseGeocode(context.Background(), weather.Coordinate{Latitude: 40.74, Longitude: -74.03})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr.Locality != "Hoboken" || addr.SubAdminArea != "Hudson County" || addr.AdminArea != "New Jersey" {
		t.Fatalf("unexpected address %+v", addr)
	}
	if addr.DisplayName() != "Hoboken" {
		t.Fatalf("unexpected display name %q", addr.DisplayName())
	}
}

func TestNominatimErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	_, err := NewNominatimGeocoder(srv.Client(), srv.URL, "", "").ReverseGeocode(context.Background(), weather.Coordinate{})
	if err == nil || err.Error() != "Unable to geocode" {
		t.Fatalf("expected geocoder error, got %v", err)
	}
}

func TestGoogleGeocoderBoundsStuckLookups(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	g := NewGoogleGeocoder("test-key")
	g.reverse = func(geocoder.Location) ([]geocoder.Address, error) {
		if calls.Add(1) == 1 {
			<-release
		}
		return []geocoder.Address{{City: "Brooklyn", State: "New York", Country: "United States"}}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := g.ReverseGeocode(ctx, weather.Coordinate{}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}

	if _, err := g.ReverseGeocode(context.Background(), weather.Coordinate{}); !errors.Is(err, ErrGeocoderBusy) {
		t.Fatalf("expected ErrGeocoderBusy while the first lookup is stuck, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one library call, got %d", calls.Load())
	}

	close(release)
	deadline := time.Now().Add(time.Second)
	for {
		addr, err := g.ReverseGeocode(context.Background(), weather.Coordinate{})
		if err == nil {
			if addr.Locality != "Brooklyn" {
				t.Fatalf("unexpected address %+v", addr)
			}
			break
		}
		if !errors.Is(err, ErrGeocoderBusy) || time.Now().After(deadline) {
			t.Fatalf("expected lookup to succeed once released, got %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
