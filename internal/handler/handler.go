package handler

import (
	"errors"
	"strconv"
	"time"

	"go-pos-ledger/internal/event"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return fiber.StatusBadRequest
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindInactiveProduct:
		return fiber.StatusUnprocessableEntity
	case apperror.KindInsufficientStock, apperror.KindAlreadyCancelled, apperror.KindConflict:
		return fiber.StatusConflict
	case apperror.KindSequenceConflict, apperror.KindBusy:
		return fiber.StatusServiceUnavailable
	case apperror.KindUnauthorized:
		return fiber.StatusUnauthorized
	case apperror.KindForbidden:
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every error returned by a handler as
// {"error", "code", "details"}. Causes of internal errors are only shown
// when debug is set.
func ErrorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			status := StatusFor(appErr.Kind)
			body := fiber.Map{"error": appErr.Message, "code": appErr.Kind}
			if len(appErr.Details) > 0 {
				body["details"] = appErr.Details
			}
			if status >= 500 {
				zap.L().Error("request failed",
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
					zap.Error(err),
				)
				if debug && appErr.Err != nil {
					body["cause"] = appErr.Err.Error()
				}
			}
			return c.Status(status).JSON(body)
		}

		zap.L().Error("unhandled error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		body := fiber.Map{"error": "Internal Server Error", "code": apperror.KindInternal}
		if debug {
			body["cause"] = err.Error()
		}
		return c.Status(fiber.StatusInternalServerError).JSON(body)
	}
}

func getUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals("user_id").(uuid.UUID)
	return id
}

func getUserName(c *fiber.Ctx) string {
	name, ok := c.Locals("user_name").(string)
	if !ok {
		return "Unknown"
	}
	return name
}

func getUserEmail(c *fiber.Ctx) string {
	email, _ := c.Locals("user_email").(string)
	return email
}

// actorFrom builds the event actor from the auth middleware locals.
func actorFrom(c *fiber.Ctx) event.Actor {
	return event.Actor{
		ID:        getUserID(c),
		Name:      getUserName(c),
		Email:     getUserEmail(c),
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid %s", name)
	}
	return id, nil
}

func queryUUID(c *fiber.Ctx, key string) (*uuid.UUID, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation("invalid %s", key)
	}
	return &id, nil
}

func pageFrom(c *fiber.Ctx) repository.Page {
	return repository.Page{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 20),
	}
}

func paginated(c *fiber.Ctx, data interface{}, total int64, page repository.Page) error {
	size := page.Size()
	pages := (total + int64(size) - 1) / int64(size)
	return c.JSON(fiber.Map{
		"data": data,
		"pagination": fiber.Map{
			"page":  page.Offset()/size + 1,
			"limit": size,
			"total": total,
			"pages": pages,
		},
	})
}

const dateLayout = "2006-01-02"

// dateRange reads ?start=YYYY-MM-DD&end=YYYY-MM-DD as local calendar days.
// end is inclusive; the returned end is the following midnight. Without
// parameters it covers the last defaultDays days up to today.
func dateRange(c *fiber.Ctx, loc *time.Location, defaultDays int) (time.Time, time.Time, error) {
	now := time.Now().In(loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	end := today
	if raw := c.Query("end"); raw != "" {
		t, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			return time.Time{}, time.Time{}, apperror.Validation("end must be YYYY-MM-DD")
		}
		end = t
	}
	start := end.AddDate(0, 0, -(defaultDays - 1))
	if raw := c.Query("start"); raw != "" {
		t, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			return time.Time{}, time.Time{}, apperror.Validation("start must be YYYY-MM-DD")
		}
		start = t
	}
	end = end.AddDate(0, 0, 1)
	if !end.After(start) {
		return time.Time{}, time.Time{}, apperror.Validation("start must not be after end")
	}
	return start, end, nil
}

// optionalRange is dateRange when either bound is given, else no bounds.
func optionalRange(c *fiber.Ctx, loc *time.Location) (*time.Time, *time.Time, error) {
	if c.Query("start") == "" && c.Query("end") == "" {
		return nil, nil, nil
	}
	start, end, err := dateRange(c, loc, 1)
	if err != nil {
		return nil, nil, err
	}
	return &start, &end, nil
}

func queryLimit(c *fiber.Ctx, def int) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n < 1 {
		return def
	}
	if n > 100 {
		return 100
	}
	return n
}
