package handler

import (
	"fmt"
	"time"

	"go-pos-ledger/internal/service"
	"go-pos-ledger/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

type ReportHandler struct {
	service service.ReportService
	loc     *time.Location
}

func NewReportHandler(s service.ReportService, loc *time.Location) *ReportHandler {
	return &ReportHandler{service: s, loc: loc}
}

// Daily returns the sales summary for ?date=YYYY-MM-DD, default today.
func (h *ReportHandler) Daily(c *fiber.Ctx) error {
	day := time.Now().In(h.loc)
	if raw := c.Query("date"); raw != "" {
		t, err := time.ParseInLocation(dateLayout, raw, h.loc)
		if err != nil {
			return apperror.Validation("date must be YYYY-MM-DD")
		}
		day = t
	}
	report, err := h.service.DailySales(c.UserContext(), day)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

// Sales buckets revenue by ?group_by=day|month over ?start&end.
func (h *ReportHandler) Sales(c *fiber.Ctx) error {
	start, end, err := dateRange(c, h.loc, 30)
	if err != nil {
		return err
	}
	report, err := h.service.Sales(c.UserContext(), start, end, c.Query("group_by", service.GroupByDay))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": report})
}

func (h *ReportHandler) TopProducts(c *fiber.Ctx) error {
	start, end, err := dateRange(c, h.loc, 30)
	if err != nil {
		return err
	}
	rows, err := h.service.TopProducts(c.UserContext(), start, end, queryLimit(c, 10))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rows})
}

func (h *ReportHandler) RevenueByCategory(c *fiber.Ctx) error {
	start, end, err := dateRange(c, h.loc, 30)
	if err != nil {
		return err
	}
	rows, err := h.service.RevenueByCategory(c.UserContext(), start, end)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": rows})
}

func (h *ReportHandler) Dashboard(c *fiber.Ctx) error {
	d, err := h.service.Dashboard(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": d})
}

func (h *ReportHandler) InventoryOverview(c *fiber.Ctx) error {
	o, err := h.service.InventoryOverview(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": o})
}

func (h *ReportHandler) Reorder(c *fiber.Ctx) error {
	products, err := h.service.ReorderList(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": products})
}

// ExportCSV streams transactions in ?start&end as a CSV attachment.
func (h *ReportHandler) ExportCSV(c *fiber.Ctx) error {
	start, end, err := dateRange(c, h.loc, 30)
	if err != nil {
		return err
	}
	body, err := h.service.ExportTransactionsCSV(c.UserContext(), start, end)
	if err != nil {
		return err
	}
	filename := fmt.Sprintf("transactions_%s_%s.csv", start.Format("20060102"), end.AddDate(0, 0, -1).Format("20060102"))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Attachment(filename)
	return c.Send(body)
}
