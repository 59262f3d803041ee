// Package location resolves the device position through an ordered chain of
// location sources and names it by reverse geocoding.
package location

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/tempwidget/internal/weather"
)

var (
	// ErrNoFix means a source has no position to offer; the chain falls through.
	ErrNoFix = errors.New("no location fix")

	// ErrSecurity marks a source refusing access. It ends resolution with a
	// permission failure instead of falling through.
	ErrSecurity = errors.New("security exception")
)

// DefaultCoordinate and DefaultLocationName are used when no tier yields a fix.
var DefaultCoordinate = weather.Coordinate{Latitude: 40.7128, Longitude: -74.0060}

const DefaultLocationName = "Default Location"

// Source is one device location provider.
type Source interface {
	Name() string

	// LastKnown returns the cached fix, if any, without doing I/O.
	LastKnown(ctx context.Context) (weather.Coordinate, bool, error)

	// RequestUpdate waits for one fresh fix until ctx is done and releases
	// whatever it subscribed to before returning.
	RequestUpdate(ctx context.Context) (weather.Coordinate, error)
}

// PermissionChecker reports whether location access is granted.
type PermissionChecker interface {
	Granted() bool
}

// Permissions is a static grant set.
type Permissions struct {
	Fine   bool
	Coarse bool
}

// Granted reports whether either precision is allowed.
func (p Permissions) Granted() bool {
	return p.Fine || p.Coarse
}

// ParsePermissions reads a comma separated grant list such as "fine,coarse".
// "none" or an empty string grants nothing.
func ParsePermissions(s string) (Permissions, error) {
	var p Permissions
	for _, part := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "fine":
			p.Fine = true
		case "coarse":
			p.Coarse = true
		case "", "none":
		default:
			return Permissions{}, errors.New("unknown location grant " + part)
		}
	}
	return p, nil
}

// fixCache holds the newest fix a source has seen.
type fixCache struct {
	mu     sync.RWMutex
	fix    weather.Coordinate
	at     time.Time
	ok     bool
	maxAge time.Duration // 0 keeps fixes forever
	now    func() time.Time
}

func newFixCache(maxAge time.Duration) *fixCache {
	return &fixCache{maxAge: maxAge, now: time.Now}
}

func (c *fixCache) store(fix weather.Coordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fix, c.at, c.ok = fix, c.now(), true
}

func (c *fixCache) load() (weather.Coordinate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.ok {
		return weather.Coordinate{}, false
	}
	if c.maxAge > 0 && c.now().Sub(c.at) > c.maxAge {
		return weather.Coordinate{}, false
	}
	return c.fix, true
}
