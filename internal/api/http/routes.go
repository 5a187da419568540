package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-ingestion/internal/store"
	"github.com/i474232898/weather-ingestion/internal/weather"
)

var validate = validator.New()

// SummaryProvider exposes the result of the latest backfill run.
type SummaryProvider interface {
	LastSummary() (weather.Summary, bool)
}

// QuotaReader exposes the daily API budget.
type QuotaReader interface {
	CallsToday() int
	Cap() int
	Remaining() int
}

// Deps are the services the HTTP API reads from.
type Deps struct {
	Repo     weather.Repository
	Runs     SummaryProvider
	Quota    QuotaReader
	Gatherer prometheus.Gatherer
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")

	v1.Get("/observations", func(c *fiber.Ctx) error {
		var req observationsQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		observations, err := deps.Repo.List(c.UserContext(), req.City, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no observations for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to list observations")
		}

		return c.JSON(fiber.Map{
			"city":         req.City,
			"from":         req.From.Format(weather.DateLayout),
			"to":           req.To.Format(weather.DateLayout),
			"observations": observations,
		})
	})

	v1.Get("/backfill/last", func(c *fiber.Ctx) error {
		sum, ok := deps.Runs.LastSummary()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no backfill has run yet")
		}
		return c.JSON(sum)
	})

	v1.Get("/quota", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"callsToday": deps.Quota.CallsToday(),
			"dailyCap":   deps.Quota.Cap(),
			"remaining":  deps.Quota.Remaining(),
		})
	})
}

// observationsQuery holds query parameters for the observations endpoint.
type observationsQuery struct {
	City string    `validate:"required"`
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (q *observationsQuery) bind(c *fiber.Ctx) error {
	q.City = c.Query("city")

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseDate(fromStr)
	if err != nil {
		return err
	}
	to, err := parseDate(toStr)
	if err != nil {
		return err
	}

	q.From = from
	q.To = to
	return nil
}

// parseDate parses a YYYY-MM-DD calendar date in local time.
func parseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(weather.DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, errors.New("invalid date format; use YYYY-MM-DD")
	}
	return d, nil
}
