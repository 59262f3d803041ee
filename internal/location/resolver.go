package location

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/tempwidget/internal/weather"
)

const DefaultRequestTimeout = 10 * time.Second

// Config wires a Resolver. Nil sources are skipped.
type Config struct {
	Permissions    PermissionChecker
	Network        Source
	GPS            Source
	Passive        Source
	Geocoder       Geocoder
	RequestTimeout time.Duration
	Logger         *zap.Logger
}

// Resolver finds the device location: last-known fixes first, then one active
// request per source, then a fixed default.
type Resolver struct {
	perms          PermissionChecker
	tiers          []Source
	passive        Source
	geocoder       Geocoder
	requestTimeout time.Duration
	log            *zap.Logger
}

func NewResolver(cfg Config) *Resolver {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Permissions == nil {
		cfg.Permissions = Permissions{}
	}
	r := &Resolver{
		perms:          cfg.Permissions,
		passive:        cfg.Passive,
		geocoder:       cfg.Geocoder,
		requestTimeout: cfg.RequestTimeout,
		log:            cfg.Logger.Named("location"),
	}
	for _, s := range []Source{cfg.Network, cfg.GPS, cfg.Passive} {
		if s != nil {
			r.tiers = append(r.tiers, s)
		}
	}
	return r
}

// HasPermission reports whether location access is granted.
func (r *Resolver) HasPermission() bool {
	return r.perms.Granted()
}

// Resolve returns the best available location. Errors are *weather.Failure
// values or ctx.Err() when the caller cancelled.
func (r *Resolver) Resolve(ctx context.Context) (weather.ResolvedLocation, error) {
	if !r.HasPermission() {
		return weather.ResolvedLocation{}, weather.NewFailure(weather.KindPermissionDenied, "location permission not granted")
	}

	if err := ctx.Err(); err != nil {
		return weather.ResolvedLocation{}, err
	}

	coord, src, err := r.locate(ctx)
	if err != nil {
		return weather.ResolvedLocation{}, err
	}
	if src == nil {
		r.log.Info("no location from any source, using default",
			zap.Float64("lat", DefaultCoordinate.Latitude), zap.Float64("lon", DefaultCoordinate.Longitude))
		return weather.ResolvedLocation{Coordinate: DefaultCoordinate, DisplayName: DefaultLocationName}, nil
	}

	if pub, ok := r.passive.(interface{ Publish(weather.Coordinate) }); ok && src != r.passive {
		pub.Publish(coord)
	}

	name, err := r.name(ctx, coord)
	if err != nil {
		return weather.ResolvedLocation{}, err
	}
	r.log.Debug("location resolved", zap.String("source", src.Name()), zap.String("name", name))
	return weather.ResolvedLocation{Coordinate: coord, DisplayName: name}, nil
}

// locate walks the tiers. A nil source with a nil error means nothing was found.
func (r *Resolver) locate(ctx context.Context) (weather.Coordinate, Source, error) {
	for _, s := range r.tiers {
		coord, ok, err := s.LastKnown(ctx)
		if err != nil {
			return weather.Coordinate{}, nil, r.sourceFailure(ctx, s, err)
		}
		if ok && r.usable(s, coord) {
			return coord, s, nil
		}
	}

	for _, s := range r.tiers {
		coord, err := r.request(ctx, s)
		if err == nil && r.usable(s, coord) {
			return coord, s, nil
		}
		if err == nil {
			continue
		}
		if ctx.Err() != nil || errors.Is(err, ErrSecurity) {
			return weather.Coordinate{}, nil, r.sourceFailure(ctx, s, err)
		}
		r.log.Debug("location request failed", zap.String("source", s.Name()), zap.Error(err))
	}
	return weather.Coordinate{}, nil, nil
}

func (r *Resolver) request(ctx context.Context, s Source) (weather.Coordinate, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()
	return s.RequestUpdate(reqCtx)
}

func (r *Resolver) usable(s Source, c weather.Coordinate) bool {
	if !c.Valid() {
		r.log.Warn("discarding out of range fix", zap.String("source", s.Name()),
			zap.Float64("lat", c.Latitude), zap.Float64("lon", c.Longitude))
		return false
	}
	return true
}

func (r *Resolver) sourceFailure(ctx context.Context, s Source, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	r.log.Warn("location source failed", zap.String("source", s.Name()), zap.Error(err))
	if errors.Is(err, ErrSecurity) {
		return weather.NewFailure(weather.KindPermissionDenied, "%v", err)
	}
	return weather.NewFailure(weather.KindLocation, "location error: %v", err)
}

// name reverse geocodes c; failures only degrade the name.
func (r *Resolver) name(ctx context.Context, c weather.Coordinate) (string, error) {
	if r.geocoder == nil {
		return weather.UnknownLocationName, nil
	}
	gctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
	defer cancel()

	addr, err := r.geocoder.ReverseGeocode(gctx, c)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		r.log.Warn("reverse geocoding failed", zap.Error(err))
		return weather.UnknownLocationName, nil
	}
	return addr.DisplayName(), nil
}
