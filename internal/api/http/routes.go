package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/tempwidget/internal/layout"
	"github.com/i474232898/tempwidget/internal/registry"
	"github.com/i474232898/tempwidget/internal/store"
)

var validate = validator.New()

// Instances is the widget instance registry.
type Instances interface {
	Add(ctx context.Context, minWidthDp float64) (registry.Record, error)
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (registry.Record, error)
	List(ctx context.Context) ([]registry.Record, error)
}

// Frames serves what each widget currently shows.
type Frames interface {
	Latest(id string) (store.Frame, error)
	History(id string, from, to time.Time) ([]store.Frame, error)
	Forget(id string)
}

// Trigger starts a refresh cycle outside the schedule.
type Trigger interface {
	RunNow() error
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, instances Instances, frames Frames, trigger Trigger) {
	v1 := app.Group("/api/v1")

	v1.Get("/instances", func(c *fiber.Ctx) error {
		list, err := instances.List(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list widget instances")
		}
		return c.JSON(fiber.Map{"instances": list})
	})

	v1.Post("/instances", func(c *fiber.Ctx) error {
		var req createInstanceRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rec, err := instances.Add(c.UserContext(), req.MinWidthDp)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to register widget instance")
		}
		return c.Status(fiber.StatusCreated).JSON(rec)
	})

	v1.Delete("/instances/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if err := instances.Remove(c.UserContext(), id); err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "widget instance not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to remove widget instance")
		}
		frames.Forget(id)
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/instances/:id/fields", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if err := instanceExists(c, instances, id); err != nil {
			return err
		}

		frame, err := frames.Latest(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "widget has not been rendered yet")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch widget fields")
		}
		return c.JSON(frame)
	})

	v1.Get("/instances/:id/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := instanceExists(c, instances, req.ID); err != nil {
			return err
		}

		list, err := frames.History(req.ID, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no frames for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch widget history")
		}

		return c.JSON(fiber.Map{
			"instanceId": req.ID,
			"from":       req.From,
			"to":         req.To,
			"frames":     list,
		})
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		if err := trigger.RunNow(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to start refresh")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "refresh started"})
	})

	v1.Get("/layout", func(c *fiber.Ctx) error {
		var req layoutQuery
		if err := c.QueryParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "width must be a number")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(layout.Compute(req.Width))
	})
}

func instanceExists(c *fiber.Ctx, instances Instances, id string) error {
	if _, err := instances.Get(c.UserContext(), id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "widget instance not found")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to look up widget instance")
	}
	return nil
}

type createInstanceRequest struct {
	MinWidthDp float64 `json:"minWidthDp" validate:"required,gt=0,lte=2000"`
}

type layoutQuery struct {
	Width float64 `query:"width" validate:"required,gt=0"`
}

// historyQuery holds the parameters of the history endpoint.
type historyQuery struct {
	ID   string    `validate:"required,uuid"`
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	h.ID = c.Params("id")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime accepts RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
