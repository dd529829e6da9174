package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-pos-ledger/internal/event"
	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/service"
	"go-pos-ledger/internal/testutil"
	"go-pos-ledger/pkg/apperror"
	"go-pos-ledger/pkg/jwt"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func TestStatusFor(t *testing.T) {
	cases := map[apperror.Kind]int{
		apperror.KindValidation:        400,
		apperror.KindNotFound:          404,
		apperror.KindInactiveProduct:   422,
		apperror.KindInsufficientStock: 409,
		apperror.KindAlreadyCancelled:  409,
		apperror.KindConflict:          409,
		apperror.KindSequenceConflict:  503,
		apperror.KindBusy:              503,
		apperror.KindUnauthorized:      401,
		apperror.KindForbidden:         403,
		apperror.KindInternal:          500,
	}
	for kind, want := range cases {
		if got := StatusFor(kind); got != want {
			t.Fatalf("%s: expected %d, got %d", kind, want, got)
		}
	}
}

func TestErrorHandlerBody(t *testing.T) {
	for _, debug := range []bool{false, true} {
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(debug)})
		app.Get("/stock", func(c *fiber.Ctx) error {
			return apperror.InsufficientStock("p1", "Kopi", 1, 3)
		})
		app.Get("/boom", func(c *fiber.Ctx) error {
			return errors.New("disk on fire")
		})

		status, body := do(t, app, http.MethodGet, "/stock", "", nil)
		if status != 409 || body["code"] != string(apperror.KindInsufficientStock) {
			t.Fatalf("unexpected response %d %v", status, body)
		}
		details, _ := body["details"].(map[string]interface{})
		if details["available"] != float64(1) || details["requested"] != float64(3) {
			t.Fatalf("missing details: %v", body)
		}

		status, body = do(t, app, http.MethodGet, "/boom", "", nil)
		if status != 500 {
			t.Fatalf("expected 500, got %d", status)
		}
		if _, shown := body["cause"]; shown != debug {
			t.Fatalf("debug=%v: cause shown=%v", debug, shown)
		}
	}
}

type api struct {
	app *fiber.App
	db  *gorm.DB
}

func newAPI(t *testing.T) *api {
	t.Helper()
	db := testutil.OpenDB(t)

	productRepo := repository.NewProductRepo(db)
	trxRepo := repository.NewTransactionRepo(db)
	customerRepo := repository.NewCustomerRepo(db)
	userRepo := repository.NewUserRepo(db)
	events := event.Discard

	aggregates := service.NewAggregateUpdater(db, customerRepo, 3)
	seq := service.NewDBSequencer(repository.NewSequenceRepo(db), trxRepo)
	authService := service.NewAuthService(userRepo, jwt.NewManager("test-secret", time.Hour), time.Hour, events)
	invService := service.NewInventoryService(db, productRepo, repository.NewCategoryRepo(db), repository.NewSupplierRepo(db), repository.NewAdjustmentRepo(db), events)
	trxService := service.NewTransactionService(db, productRepo, trxRepo, customerRepo, seq, aggregates, events,
		service.TransactionOptions{Location: time.UTC})

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(false)})
	RegisterRoutes(app, Handlers{
		Auth:        NewAuthHandler(authService),
		User:        NewUserHandler(service.NewUserService(userRepo, events)),
		Inventory:   NewInventoryHandler(invService, time.UTC),
		Transaction: NewTransactionHandler(trxService, time.UTC),
		Customer:    NewCustomerHandler(service.NewCustomerService(customerRepo, trxRepo, events)),
		Supplier:    NewSupplierHandler(service.NewSupplierService(db, repository.NewSupplierRepo(db), events)),
		Report:      NewReportHandler(service.NewReportService(repository.NewReportRepo(db), productRepo, trxRepo, time.UTC, nil), time.UTC),
		Activity:    NewActivityHandler(service.NewActivityService(repository.NewActivityRepo(db), time.UTC, nil), time.UTC),
	}, authService, nil)

	return &api{app: app, db: db}
}

func (a *api) login(t *testing.T, role model.Role) string {
	t.Helper()
	u := testutil.SeedUser(t, a.db, role)
	status, body := do(t, a.app, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": u.Email, "password": "secret123",
	})
	if status != 200 {
		t.Fatalf("login failed: %d %v", status, body)
	}
	return body["token"].(string)
}

func do(t *testing.T, app *fiber.App, method, path, token string, payload interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	body := map[string]interface{}{}
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	return resp.StatusCode, body
}

func TestSaleOverHTTP(t *testing.T) {
	a := newAPI(t)
	cashier := a.login(t, model.RoleCashier)
	manager := a.login(t, model.RoleManager)
	p := testutil.SeedProduct(t, a.db, "Kopi", "4.75", 3)

	status, _ := do(t, a.app, http.MethodGet, "/api/v1/products", "", nil)
	if status != 401 {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	status, body := do(t, a.app, http.MethodPost, "/api/v1/transactions", cashier, map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": p.ID, "quantity": 2}},
		"payment_method": "cash",
		"amount_paid":    "10",
	})
	if status != 201 {
		t.Fatalf("expected 201, got %d %v", status, body)
	}
	data := body["data"].(map[string]interface{})
	total, _ := decimal.NewFromString(data["total"].(string))
	change, _ := decimal.NewFromString(data["change_given"].(string))
	if !total.Equal(decimal.RequireFromString("9.50")) || !change.Equal(decimal.RequireFromString("0.50")) {
		t.Fatalf("unexpected totals %v %v", data["total"], data["change_given"])
	}
	id := data["id"].(string)

	status, body = do(t, a.app, http.MethodPost, "/api/v1/transactions", cashier, map[string]interface{}{
		"items":          []map[string]interface{}{{"product_id": p.ID, "quantity": 2}},
		"payment_method": "cash",
	})
	if status != 409 || body["code"] != string(apperror.KindInsufficientStock) {
		t.Fatalf("expected insufficient stock 409, got %d %v", status, body)
	}

	status, _ = do(t, a.app, http.MethodPut, "/api/v1/transactions/"+id+"/cancel", cashier, nil)
	if status != 403 {
		t.Fatalf("cashier must not cancel, got %d", status)
	}
	status, body = do(t, a.app, http.MethodPut, "/api/v1/transactions/"+id+"/cancel", manager, nil)
	if status != 200 {
		t.Fatalf("cancel failed: %d %v", status, body)
	}
	status, body = do(t, a.app, http.MethodPut, "/api/v1/transactions/"+id+"/cancel", manager, nil)
	if status != 409 || body["code"] != string(apperror.KindAlreadyCancelled) {
		t.Fatalf("expected already cancelled 409, got %d %v", status, body)
	}
	if got := testutil.Stock(t, a.db, p.ID); got != 3 {
		t.Fatalf("expected stock back to 3, got %d", got)
	}
}

func TestBadRequestsOverHTTP(t *testing.T) {
	a := newAPI(t)
	cashier := a.login(t, model.RoleCashier)

	status, _ := do(t, a.app, http.MethodGet, "/api/v1/transactions/not-a-uuid", cashier, nil)
	if status != 400 {
		t.Fatalf("expected 400 for bad id, got %d", status)
	}
	status, body := do(t, a.app, http.MethodGet, "/api/v1/transactions/number/TRX-19990101-0001", cashier, nil)
	if status != 404 || body["code"] != string(apperror.KindNotFound) {
		t.Fatalf("expected 404, got %d %v", status, body)
	}
	status, body = do(t, a.app, http.MethodPost, "/api/v1/transactions", cashier, map[string]interface{}{
		"items":          []map[string]interface{}{},
		"payment_method": "cash",
	})
	if status != 400 || body["code"] != string(apperror.KindValidation) {
		t.Fatalf("expected validation 400, got %d %v", status, body)
	}
	status, _ = do(t, a.app, http.MethodGet, "/api/v1/reports/daily?date=31-01-2024", cashier, nil)
	if status != 400 {
		t.Fatalf("expected 400 for bad date, got %d", status)
	}
}

func TestSupplierRoutesByRole(t *testing.T) {
	a := newAPI(t)
	cashier := a.login(t, model.RoleCashier)
	manager := a.login(t, model.RoleManager)
	admin := a.login(t, model.RoleAdmin)
	supplier := map[string]interface{}{"name": "Budi", "email": "budi@grosir.test", "phone": "0812"}

	status, _ := do(t, a.app, http.MethodPost, "/api/v1/suppliers", cashier, supplier)
	if status != 403 {
		t.Fatalf("cashier must not create suppliers, got %d", status)
	}
	status, body := do(t, a.app, http.MethodPost, "/api/v1/suppliers", manager, supplier)
	if status != 201 {
		t.Fatalf("expected 201, got %d %v", status, body)
	}
	data := body["data"].(map[string]interface{})
	if data["country"] != model.DefaultSupplierCountry || data["payment_terms"] != string(model.TermsNet30) {
		t.Fatalf("unexpected defaults %v", data)
	}
	path := "/api/v1/suppliers/" + data["id"].(string)

	status, _ = do(t, a.app, http.MethodGet, path, cashier, nil)
	if status != 200 {
		t.Fatalf("cashier should read suppliers, got %d", status)
	}
	status, _ = do(t, a.app, http.MethodDelete, path, manager, nil)
	if status != 403 {
		t.Fatalf("manager must not delete suppliers, got %d", status)
	}
	status, _ = do(t, a.app, http.MethodDelete, path, admin, nil)
	if status != 200 {
		t.Fatalf("admin delete failed: %d", status)
	}
	status, _ = do(t, a.app, http.MethodGet, path, cashier, nil)
	if status != 404 {
		t.Fatalf("expected 404 after delete, got %d", status)
	}

	status, _ = do(t, a.app, http.MethodGet, "/api/v1/activity/summary", cashier, nil)
	if status != 403 {
		t.Fatalf("cashier must not read the activity summary, got %d", status)
	}
	status, _ = do(t, a.app, http.MethodGet, "/api/v1/activity/summary", manager, nil)
	if status != 200 {
		t.Fatalf("manager summary failed: %d", status)
	}
}
