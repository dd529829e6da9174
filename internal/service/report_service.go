package service

import (
	"context"
	"time"

	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/pkg/apperror"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type DailySalesReport struct {
	Date           string                          `json:"date"`
	Transactions   int64                           `json:"transactions"`
	Revenue        decimal.Decimal                 `json:"revenue"`
	Discount       decimal.Decimal                 `json:"discount"`
	Tax            decimal.Decimal                 `json:"tax"`
	ItemsSold      int64                           `json:"items_sold"`
	AverageSale    decimal.Decimal                 `json:"average_sale"`
	PaymentMethods []repository.PaymentMethodTotal `json:"payment_methods"`
	TopProducts    []repository.ProductSales       `json:"top_products"`
}

type SalesPeriod struct {
	Period       string          `json:"period"`
	Transactions int64           `json:"transactions"`
	Revenue      decimal.Decimal `json:"revenue"`
	Discount     decimal.Decimal `json:"discount"`
	Tax          decimal.Decimal `json:"tax"`
}

type SalesReport struct {
	Start   string        `json:"start"`
	End     string        `json:"end"`
	GroupBy string        `json:"group_by"`
	Periods []SalesPeriod `json:"periods"`
	Total   SalesPeriod   `json:"total"`
}

type InventoryOverview struct {
	repository.InventoryStats
	EstimatedProfit decimal.Decimal `json:"estimated_profit"`
}

type Dashboard struct {
	Today          repository.SalesSummary   `json:"today"`
	Month          repository.SalesSummary   `json:"month"`
	Inventory      InventoryOverview         `json:"inventory"`
	LowStock       []model.Product           `json:"low_stock"`
	TopProducts    []repository.ProductSales `json:"top_products"`
	Recent         []model.Transaction       `json:"recent_transactions"`
	TotalCustomers int64                     `json:"total_customers"`
}

// transactionCSV is one export row.
type transactionCSV struct {
	Number        string `csv:"transaction_number"`
	Date          string `csv:"date"`
	Status        string `csv:"status"`
	Cashier       string `csv:"cashier"`
	Customer      string `csv:"customer"`
	Items         int    `csv:"items"`
	Subtotal      string `csv:"subtotal"`
	Discount      string `csv:"discount"`
	Tax           string `csv:"tax"`
	Total         string `csv:"total"`
	AmountPaid    string `csv:"amount_paid"`
	ChangeGiven   string `csv:"change_given"`
	PaymentMethod string `csv:"payment_method"`
}

const (
	GroupByDay   = "day"
	GroupByMonth = "month"
)

type ReportService interface {
	DailySales(ctx context.Context, day time.Time) (*DailySalesReport, error)
	Sales(ctx context.Context, start, end time.Time, groupBy string) (*SalesReport, error)
	TopProducts(ctx context.Context, start, end time.Time, limit int) ([]repository.ProductSales, error)
	RevenueByCategory(ctx context.Context, start, end time.Time) ([]repository.CategoryRevenue, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
	InventoryOverview(ctx context.Context) (*InventoryOverview, error)
	ReorderList(ctx context.Context) ([]model.Product, error)
	ExportTransactionsCSV(ctx context.Context, start, end time.Time) ([]byte, error)
}

type reportService struct {
	repo        repository.ReportRepository
	productRepo repository.ProductRepository
	trxRepo     repository.TransactionRepository
	loc         *time.Location
	now         func() time.Time
}

func NewReportService(
	repo repository.ReportRepository,
	pRepo repository.ProductRepository,
	tRepo repository.TransactionRepository,
	loc *time.Location,
	now func() time.Time,
) ReportService {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &reportService{repo: repo, productRepo: pRepo, trxRepo: tRepo, loc: loc, now: now}
}

// StartOfDay is local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func (s *reportService) DailySales(ctx context.Context, day time.Time) (*DailySalesReport, error) {
	start := StartOfDay(day, s.loc)
	end := start.AddDate(0, 0, 1)

	summary, err := s.repo.SalesSummary(ctx, start, end)
	if err != nil {
		return nil, err
	}
	methods, err := s.repo.PaymentBreakdown(ctx, start, end)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ItemsSold(ctx, start, end)
	if err != nil {
		return nil, err
	}
	top, err := s.repo.TopProducts(ctx, start, end, 5)
	if err != nil {
		return nil, err
	}

	r := &DailySalesReport{
		Date:           start.Format("2006-01-02"),
		Transactions:   summary.Transactions,
		Revenue:        summary.Revenue,
		Discount:       summary.Discount,
		Tax:            summary.Tax,
		ItemsSold:      items,
		AverageSale:    decimal.Zero,
		PaymentMethods: methods,
		TopProducts:    top,
	}
	if summary.Transactions > 0 {
		r.AverageSale = summary.Revenue.Div(decimal.NewFromInt(summary.Transactions)).Round(2)
	}
	return r, nil
}

func (s *reportService) Sales(ctx context.Context, start, end time.Time, groupBy string) (*SalesReport, error) {
	if groupBy == "" {
		groupBy = GroupByDay
	}
	if groupBy != GroupByDay && groupBy != GroupByMonth {
		return nil, apperror.Validation("group_by must be %s or %s", GroupByDay, GroupByMonth)
	}
	if !end.After(start) {
		return nil, apperror.Validation("end must be after start")
	}

	headers, err := s.repo.CompletedHeaders(ctx, start, end)
	if err != nil {
		return nil, err
	}

	layout := "2006-01-02"
	if groupBy == GroupByMonth {
		layout = "2006-01"
	}

	report := &SalesReport{
		Start:   start.In(s.loc).Format("2006-01-02"),
		End:     end.In(s.loc).Format("2006-01-02"),
		GroupBy: groupBy,
		Periods: []SalesPeriod{},
		Total:   SalesPeriod{Period: "total"},
	}
	index := map[string]int{}
	for _, h := range headers {
		key := h.CreatedAt.In(s.loc).Format(layout)
		i, ok := index[key]
		if !ok {
			i = len(report.Periods)
			index[key] = i
			report.Periods = append(report.Periods, SalesPeriod{Period: key})
		}
		p := &report.Periods[i]
		p.Transactions++
		p.Revenue = p.Revenue.Add(h.Total)
		p.Discount = p.Discount.Add(h.Discount)
		p.Tax = p.Tax.Add(h.Tax)

		report.Total.Transactions++
		report.Total.Revenue = report.Total.Revenue.Add(h.Total)
		report.Total.Discount = report.Total.Discount.Add(h.Discount)
		report.Total.Tax = report.Total.Tax.Add(h.Tax)
	}
	return report, nil
}

func (s *reportService) TopProducts(ctx context.Context, start, end time.Time, limit int) ([]repository.ProductSales, error) {
	if limit < 1 {
		limit = 10
	}
	return s.repo.TopProducts(ctx, start, end, limit)
}

func (s *reportService) RevenueByCategory(ctx context.Context, start, end time.Time) ([]repository.CategoryRevenue, error) {
	return s.repo.RevenueByCategory(ctx, start, end)
}

func (s *reportService) InventoryOverview(ctx context.Context) (*InventoryOverview, error) {
	stats, err := s.repo.InventoryStats(ctx)
	if err != nil {
		return nil, err
	}
	return &InventoryOverview{
		InventoryStats:  *stats,
		EstimatedProfit: stats.StockValue.Sub(stats.CostValue),
	}, nil
}

func (s *reportService) ReorderList(ctx context.Context) ([]model.Product, error) {
	return s.productRepo.ListLowStock(ctx)
}

// Dashboard runs its independent queries concurrently.
func (s *reportService) Dashboard(ctx context.Context) (*Dashboard, error) {
	now := s.now()
	todayStart := StartOfDay(now, s.loc)
	todayEnd := todayStart.AddDate(0, 0, 1)
	monthStart := time.Date(todayStart.Year(), todayStart.Month(), 1, 0, 0, 0, 0, s.loc)
	monthEnd := monthStart.AddDate(0, 1, 0)

	var (
		d            Dashboard
		today, month *repository.SalesSummary
		inventory    *InventoryOverview
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		today, err = s.repo.SalesSummary(gctx, todayStart, todayEnd)
		return err
	})
	g.Go(func() (err error) {
		month, err = s.repo.SalesSummary(gctx, monthStart, monthEnd)
		return err
	})
	g.Go(func() (err error) {
		inventory, err = s.InventoryOverview(gctx)
		return err
	})
	g.Go(func() error {
		low, err := s.productRepo.ListLowStock(gctx)
		if err != nil {
			return err
		}
		if len(low) > 5 {
			low = low[:5]
		}
		d.LowStock = low
		return nil
	})
	g.Go(func() (err error) {
		d.TopProducts, err = s.repo.TopProducts(gctx, monthStart, monthEnd, 5)
		return err
	})
	g.Go(func() (err error) {
		d.Recent, err = s.repo.RecentTransactions(gctx, 5)
		return err
	})
	g.Go(func() (err error) {
		d.TotalCustomers, err = s.repo.CountCustomers(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.Today = *today
	d.Month = *month
	d.Inventory = *inventory
	return &d, nil
}

func (s *reportService) ExportTransactionsCSV(ctx context.Context, start, end time.Time) ([]byte, error) {
	if !end.After(start) {
		return nil, apperror.Validation("end must be after start")
	}
	trxs, err := s.trxRepo.ListBetween(ctx, start, end)
	if err != nil {
		return nil, err
	}

	rows := make([]*transactionCSV, 0, len(trxs))
	for _, t := range trxs {
		row := &transactionCSV{
			Number:        t.TransactionNumber,
			Date:          t.CreatedAt.In(s.loc).Format("2006-01-02 15:04:05"),
			Status:        string(t.Status),
			Items:         len(t.Items),
			Subtotal:      t.Subtotal.StringFixed(2),
			Discount:      t.Discount.StringFixed(2),
			Tax:           t.Tax.StringFixed(2),
			Total:         t.Total.StringFixed(2),
			AmountPaid:    t.AmountPaid.StringFixed(2),
			ChangeGiven:   t.ChangeGiven.StringFixed(2),
			PaymentMethod: string(t.PaymentMethod),
		}
		if t.Cashier != nil {
			row.Cashier = t.Cashier.Name
		}
		if t.Customer != nil {
			row.Customer = t.Customer.Name
		}
		rows = append(rows, row)
	}
	return gocsv.MarshalBytes(&rows)
}
