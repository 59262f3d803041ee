package location

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/i474232898/tempwidget/internal/weather"
)

const DefaultGPSDAddr = "localhost:2947"

const gpsdWatch = `?WATCH={"enable":true,"json":true};` + "\n"

// GPSDSource is the GPS tier: it reads TPV reports from a gpsd daemon.
type GPSDSource struct {
	addr   string
	dialer net.Dialer
	cache  *fixCache
}

func NewGPSDSource(addr string, maxAge time.Duration) *GPSDSource {
	if addr == "" {
		addr = DefaultGPSDAddr
	}
	return &GPSDSource{addr: addr, cache: newFixCache(maxAge)}
}

func (s *GPSDSource) Name() string {
	return "gps"
}

func (s *GPSDSource) LastKnown(context.Context) (weather.Coordinate, bool, error) {
	c, ok := s.cache.load()
	return c, ok, nil
}

// tpvReport is a gpsd time-position-velocity report. Mode 2 and 3 are 2D and 3D fixes.
type tpvReport struct {
	Class string   `mapstructure:"class"`
	Mode  int      `mapstructure:"mode"`
	Lat   *float64 `mapstructure:"lat"`
	Lon   *float64 `mapstructure:"lon"`
}

// RequestUpdate opens a watch, waits for the first TPV with a fix and closes
// the watch on every exit path.
func (s *GPSDSource) RequestUpdate(ctx context.Context) (weather.Coordinate, error) {
	conn, err := s.dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return weather.Coordinate{}, fmt.Errorf("dial gpsd: %w", err)
	}
	defer conn.Close()

	// Unblock the reader when the caller gives up.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if _, err := conn.Write([]byte(gpsdWatch)); err != nil {
		return weather.Coordinate{}, s.readErr(ctx, err)
	}

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var raw map[string]any
		if err := json.Unmarshal(sc.Bytes(), &raw); err != nil {
			continue
		}
		if raw["class"] != "TPV" {
			continue
		}
		var tpv tpvReport
		if err := mapstructure.WeakDecode(raw, &tpv); err != nil {
			continue
		}
		if tpv.Mode < 2 || tpv.Lat == nil || tpv.Lon == nil {
			continue
		}
		c := weather.Coordinate{Latitude: *tpv.Lat, Longitude: *tpv.Lon}
		s.cache.store(c)
		return c, nil
	}
	if err := sc.Err(); err != nil {
		return weather.Coordinate{}, s.readErr(ctx, err)
	}
	if ctx.Err() != nil {
		return weather.Coordinate{}, ctx.Err()
	}
	return weather.Coordinate{}, ErrNoFix
}

func (s *GPSDSource) readErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("read gpsd: %w", err)
}
