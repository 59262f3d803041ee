// Package widget runs the refresh cycle for every widget instance: resolve the
// location, fetch the weather and commit the rendered fields.
package widget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/i474232898/tempwidget/internal/layout"
	"github.com/i474232898/tempwidget/internal/weather"
)

// Instance is one widget surface.
type Instance struct {
	ID         string  `json:"id"`
	MinWidthDp float64 `json:"minWidthDp"`
}

// InstanceLister enumerates the surfaces to refresh.
type InstanceLister interface {
	ListInstances(ctx context.Context) ([]Instance, error)
}

// Renderer paints fields onto a surface.
type Renderer interface {
	Commit(ctx context.Context, id string, f Fields) error
}

// LocationResolver finds where the device is.
type LocationResolver interface {
	HasPermission() bool
	Resolve(ctx context.Context) (weather.ResolvedLocation, error)
}

// Orchestrator holds no per-cycle state; RefreshAll may run concurrently.
type Orchestrator struct {
	instances InstanceLister
	renderer  Renderer
	locator   LocationResolver
	provider  weather.Provider
	log       *zap.Logger
	now       func() time.Time
	zone      *time.Location
}

func NewOrchestrator(instances InstanceLister, renderer Renderer, locator LocationResolver, provider weather.Provider, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		instances: instances,
		renderer:  renderer,
		locator:   locator,
		provider:  provider,
		log:       log.Named("widget"),
		now:       time.Now,
		zone:      time.Local,
	}
}

// SetZone sets the device zone of the "Updated" stamp. Call it before the
// first refresh; nil restores time.Local.
func (o *Orchestrator) SetZone(zone *time.Location) {
	if zone == nil {
		zone = time.Local
	}
	o.zone = zone
}

// RefreshAll refreshes every instance concurrently. A failing instance does
// not stop the others; commit errors are combined in the result. Cancellation
// is returned as ctx.Err().
func (o *Orchestrator) RefreshAll(ctx context.Context) error {
	list, err := o.instances.ListInstances(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("list instances: %w", err)
	}

	o.log.Debug("refresh cycle started", zap.Int("instances", len(list)))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, inst := range list {
		inst := inst
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := o.Refresh(ctx, inst); err != nil {
				if weather.IsCancellation(err) {
					return
				}
				o.log.Error("refresh failed", zap.String("instance", inst.ID), zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("instance %s: %w", inst.ID, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	o.log.Debug("refresh cycle completed", zap.Int("instances", len(list)))
	return errs
}

// Refresh runs one cycle for a single instance. Location and weather failures
// are rendered, not returned; the error is a commit failure or ctx.Err().
func (o *Orchestrator) Refresh(ctx context.Context, inst Instance) error {
	fields := newFields(layout.Compute(inst.MinWidthDp))

	fields.setLoading()
	if err := o.commit(ctx, inst.ID, fields); err != nil {
		return err
	}

	if !o.locator.HasPermission() {
		fields.setPermissionRequired()
		return o.commit(ctx, inst.ID, fields)
	}

	loc, err := o.locator.Resolve(ctx)
	if err != nil {
		if weather.IsCancellation(err) {
			return err
		}
		o.log.Warn("location failed",
			zap.String("instance", inst.ID),
			zap.String("kind", string(weather.KindOf(err))),
			zap.Error(err))
		fields.setFailure("Location", err.Error(), o.wallClock())
		return o.commit(ctx, inst.ID, fields)
	}
	fields.Text[layout.LocationName] = loc.DisplayName

	snap, err := o.provider.Fetch(ctx, loc.Coordinate)
	if err != nil {
		if weather.IsCancellation(err) {
			return err
		}
		o.log.Warn("weather fetch failed",
			zap.String("instance", inst.ID),
			zap.String("provider", o.provider.Name()),
			zap.String("kind", string(weather.KindOf(err))),
			zap.Error(err))
		fields.setFailure("Weather", err.Error(), o.wallClock())
		return o.commit(ctx, inst.ID, fields)
	}

	fields.setWeather(loc, snap, o.wallClock())
	o.log.Debug("instance refreshed",
		zap.String("instance", inst.ID),
		zap.String("location", loc.DisplayName),
		zap.Float64("tempF", snap.CurrentTempF))
	return o.commit(ctx, inst.ID, fields)
}

// wallClock is the device clock. Every branch stamps with it, whatever
// coordinate was resolved.
func (o *Orchestrator) wallClock() time.Time {
	return o.now().In(o.zone)
}

func (o *Orchestrator) commit(ctx context.Context, id string, f Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.renderer.Commit(ctx, id, f.Clone())
}
