package handler

import (
	"time"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ActivityHandler struct {
	service service.ActivityService
	loc     *time.Location
}

func NewActivityHandler(s service.ActivityService, loc *time.Location) *ActivityHandler {
	return &ActivityHandler{service: s, loc: loc}
}

// List supports ?user_id&entity&action&start&end&page&limit.
// GET /api/v1/activity
func (h *ActivityHandler) List(c *fiber.Ctx) error {
	userID, err := queryUUID(c, "user_id")
	if err != nil {
		return err
	}
	start, end, err := optionalRange(c, h.loc)
	if err != nil {
		return err
	}
	page := pageFrom(c)
	entries, total, err := h.service.List(c.UserContext(), repository.ActivityFilter{
		UserID: userID,
		Entity: c.Query("entity"),
		Action: c.Query("action"),
		Start:  start,
		End:    end,
		Page:   page,
	})
	if err != nil {
		return err
	}
	return paginated(c, entries, total, page)
}

// UserActivity returns the latest entries of one user.
// GET /api/v1/activity/user/:id
func (h *ActivityHandler) UserActivity(c *fiber.Ctx) error {
	userID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	role, _ := c.Locals("user_role").(model.Role)
	entries, err := h.service.UserActivity(c.UserContext(), userID, getUserID(c), role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": entries, "count": len(entries)})
}

// Summary counts today's entries per action and lists the busiest users.
// GET /api/v1/activity/summary
func (h *ActivityHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}
