package widget

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/tempwidget/internal/layout"
	"github.com/i474232898/tempwidget/internal/weather"
	"github.com/i474232898/tempwidget/internal/weather/providers"
)

type staticInstances []Instance

func (s staticInstances) ListInstances(context.Context) ([]Instance, error) {
	return s, nil
}

type recordingRenderer struct {
	mu      sync.Mutex
	commits map[string][]Fields
	fail    string
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{commits: make(map[string][]Fields)}
}

func (r *recordingRenderer) Commit(_ context.Context, id string, f Fields) error {
	if id == r.fail {
		return errors.New("surface gone")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits[id] = append(r.commits[id], f)
	return nil
}

func (r *recordingRenderer) frames(id string) []Fields {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commits[id]
}

func (r *recordingRenderer) last(t *testing.T, id string) Fields {
	t.Helper()
	frames := r.frames(id)
	if len(frames) == 0 {
		t.Fatalf("no commits for %s", id)
	}
	return frames[len(frames)-1]
}

type fakeResolver struct {
	granted bool
	loc     weather.ResolvedLocation
	err     error
	block   bool
	calls   atomic.Int32
}

func (f *fakeResolver) HasPermission() bool { return f.granted }

func (f *fakeResolver) Resolve(ctx context.Context) (weather.ResolvedLocation, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return weather.ResolvedLocation{}, ctx.Err()
	}
	return f.loc, f.err
}

type fakeProvider struct {
	snap  weather.Snapshot
	err   error
	calls atomic.Int32
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Fetch(context.Context, weather.Coordinate) (weather.Snapshot, error) {
	f.calls.Add(1)
	return f.snap, f.err
}

var brooklyn = weather.ResolvedLocation{
	Coordinate:  weather.Coordinate{Latitude: 40.6782, Longitude: -73.9442},
	DisplayName: "Brooklyn",
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 1, 9, 5, 0, 0, time.UTC)
}

func newTestOrchestrator(instances []Instance, r Renderer, loc LocationResolver, p weather.Provider) *Orchestrator {
	o := NewOrchestrator(staticInstances(instances), r, loc, p, nil)
	o.now = fixedNow
	o.SetZone(time.UTC)
	return o
}

func TestRefreshSuccessMapping(t *testing.T) {
	snap := weather.Snapshot{
		CurrentTempF:        68,
		HumidityPct:         45,
		DewPointF:           51.6,
		RainChanceNext3hPct: 30,
		ForecastDays: []weather.DailyForecast{
			{HighF: 71.4, LowF: 55.5, PrecipPct: 20, IconKey: "rain"},
			{HighF: 65, LowF: math.NaN(), PrecipPct: weather.UnknownPct},
		},
	}
	r := newRecordingRenderer()
	o := newTestOrchestrator([]Instance{{ID: "w1", MinWidthDp: 250}}, r,
		&fakeResolver{granted: true, loc: brooklyn}, &fakeProvider{snap: snap})

	if err := o.RefreshAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frames := r.frames("w1")
	if len(frames) != 2 {
		t.Fatalf("expected loading and final commits, got %d", len(frames))
	}
	if got := frames[0].Text[layout.LocationName]; got != LoadingText {
		t.Fatalf("expected loading text first, got %q", got)
	}

	got := frames[1]
	want := map[layout.Field]string{
		layout.TemperatureC: "20°C",
		layout.TemperatureF: "68°F",
		layout.Humidity:     "Humidity: 45%",
		layout.DewPoint:     "Dew point: 52°F",
		layout.RainChance:   "Rain 3h: 30%",
		layout.Day1Content:  "71/56°F\nRain: 20%",
		layout.Day2Content:  "65/--°F\nRain: --%",
		layout.Day1Icon:     "rain",
		layout.Day2Icon:     "",
		layout.LocationName: "Brooklyn",
	}
	for field, text := range want {
		if got.Text[field] != text {
			t.Errorf("%s: expected %q, got %q", field, text, got.Text[field])
		}
	}
	if !got.Visible[layout.Day1Icon] || got.Visible[layout.Day2Icon] {
		t.Errorf("unexpected icon visibility %v", got.Visible)
	}
	if updated := got.Text[layout.UpdatedTime]; updated != "Updated: 09:05" {
		t.Errorf("unexpected updated time %q", updated)
	}
	if got.Sizes[layout.TemperatureF] != layout.Compute(250).Sizes[layout.TemperatureF] {
		t.Errorf("sizes not computed for the instance width")
	}
}

func TestRefreshUnknownValues(t *testing.T) {
	r := newRecordingRenderer()
	o := newTestOrchestrator([]Instance{{ID: "w1"}}, r,
		&fakeResolver{granted: true, loc: brooklyn}, &fakeProvider{snap: weather.NewSnapshot()})

	if err := o.RefreshAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := r.last(t, "w1")
	want := map[layout.Field]string{
		layout.Humidity:    "Humidity: --%",
		layout.DewPoint:    "Dew point: --",
		layout.RainChance:  "Rain 3h: --%",
		layout.Day1Content: "--/--°F\nRain: --%",
		layout.Day2Content: "--/--°F\nRain: --%",
	}
	for field, text := range want {
		if got.Text[field] != text {
			t.Errorf("%s: expected %q, got %q", field, text, got.Text[field])
		}
	}
}

func TestRefreshPermissionDenied(t *testing.T) {
	resolver := &fakeResolver{granted: false}
	provider := &fakeProvider{}
	r := newRecordingRenderer()
	o := newTestOrchestrator([]Instance{{ID: "w1"}}, r, resolver, provider)

	if err := o.RefreshAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := r.last(t, "w1").Text
	want := map[layout.Field]string{
		layout.TemperatureF: "Permission",
		layout.TemperatureC: "No",
		layout.LocationName: "Location permission required",
	}
	if len(got) != len(want) {
		t.Fatalf("expected exactly %v, got %v", want, got)
	}
	for field, text := range want {
		if got[field] != text {
			t.Errorf("%s: expected %q, got %q", field, text, got[field])
		}
	}
	if resolver.calls.Load() != 0 || provider.calls.Load() != 0 {
		t.Fatalf("expected no location or weather calls")
	}
}

func TestRefreshLocationFailure(t *testing.T) {
	provider := &fakeProvider{}
	r := newRecordingRenderer()
	o := newTestOrchestrator([]Instance{{ID: "w1"}}, r,
		&fakeResolver{granted: true, err: weather.NewFailure(weather.KindLocation, "location error: provider disabled")},
		provider)

	if err := o.RefreshAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := r.last(t, "w1").Text
	if got[layout.TemperatureC] != "Location" || got[layout.TemperatureF] != "Error" {
		t.Fatalf("unexpected labels %q/%q", got[layout.TemperatureC], got[layout.TemperatureF])
	}
	if got[layout.LocationName] != "location error: provider disabled" {
		t.Fatalf("unexpected location name %q", got[layout.LocationName])
	}
	if provider.calls.Load() != 0 {
		t.Fatalf("weather must not be fetched without a location")
	}
}

func TestRefreshWeatherServiceError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	provider := providers.NewOpenMeteoProvider(srv.Client(), srv.URL, providers.DefaultOpenMeteoParams, nil)
	r := newRecordingRenderer()
	o := newTestOrchestrator([]Instance{{ID: "w1"}}, r, &fakeResolver{granted: true, loc: brooklyn}, provider)

	if err := o.RefreshAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := r.last(t, "w1").Text
	if got[layout.TemperatureC] != "Weather" || got[layout.TemperatureF] != "Error" {
		t.Fatalf("unexpected labels %q/%q", got[layout.TemperatureC], got[layout.TemperatureF])
	}
	if !strings.Contains(got[layout.LocationName], "500") {
		t.Fatalf("expected status code in location name, got %q", got[layout.LocationName])
	}
	if strings.Contains(got[layout.LocationName], "Brooklyn") {
		t.Fatalf("resolved name should be replaced by the error, got %q", got[layout.LocationName])
	}
	if hits.Load() != 1 {
		t.Fatalf("expected exactly one request, got %d", hits.Load())
	}
}

func TestRefreshIsolatesInstances(t *testing.T) {
	r := newRecordingRenderer()
	r.fail = "broken"
	o := newTestOrchestrator([]Instance{{ID: "broken"}, {ID: "w1"}, {ID: "w2"}}, r,
		&fakeResolver{granted: true, loc: brooklyn}, &fakeProvider{snap: weather.NewSnapshot()})

	err := o.RefreshAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected commit error for the broken instance, got %v", err)
	}
	for _, id := range []string{"w1", "w2"} {
		if len(r.frames(id)) != 2 {
			t.Fatalf("%s: expected two commits, got %d", id, len(r.frames(id)))
		}
	}
}

func TestRefreshCancellation(t *testing.T) {
	r := newRecordingRenderer()
	o := newTestOrchestrator([]Instance{{ID: "w1"}}, r, &fakeResolver{granted: true, block: true}, &fakeProvider{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := o.RefreshAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n := len(r.frames("w1")); n != 1 {
		t.Fatalf("expected only the loading commit, got %d", n)
	}
}

func TestUpdatedStampUsesDeviceZone(t *testing.T) {
	fallback := weather.ResolvedLocation{
		Coordinate:  weather.Coordinate{Latitude: 40.7128, Longitude: -74.0060},
		DisplayName: "New York",
	}
	tokyo := time.FixedZone("JST", 9*60*60)

	tests := []struct {
		name     string
		resolver *fakeResolver
		provider *fakeProvider
		zone     *time.Location
		want     string
	}{
		{"default location success", &fakeResolver{granted: true, loc: fallback}, &fakeProvider{snap: weather.NewSnapshot()}, time.UTC, "Updated: 09:05"},
		{"weather failure", &fakeResolver{granted: true, loc: fallback}, &fakeProvider{err: weather.NewFailure(weather.KindNetwork, "network error: refused")}, time.UTC, "Updated: 09:05"},
		{"location failure", &fakeResolver{granted: true, err: weather.NewFailure(weather.KindLocation, "location error: no fix")}, &fakeProvider{}, time.UTC, "Updated: 09:05"},
		{"configured zone", &fakeResolver{granted: true, loc: fallback}, &fakeProvider{snap: weather.NewSnapshot()}, tokyo, "Updated: 18:05"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecordingRenderer()
			o := newTestOrchestrator([]Instance{{ID: "w1"}}, r, tt.resolver, tt.provider)
			o.SetZone(tt.zone)

			if err := o.RefreshAll(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := r.last(t, "w1").Text[layout.UpdatedTime]; got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
