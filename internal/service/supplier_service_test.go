package service

import (
	"context"
	"testing"

	"go-pos-ledger/internal/event"
	"go-pos-ledger/internal/model"
	"go-pos-ledger/internal/repository"
	"go-pos-ledger/internal/testutil"
	"go-pos-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newSupplierRequest() *CreateSupplierRequest {
	return &CreateSupplierRequest{
		Name:  " Budi ",
		Email: " Budi@Grosir.test",
		Phone: "0812-1111",
		City:  "Johor Bahru",
	}
}

func TestCreateSupplierDefaults(t *testing.T) {
	f := newInventoryFixture(t)
	suppliers := NewSupplierService(f.db, repository.NewSupplierRepo(f.db), f.events)

	sup, err := suppliers.Create(context.Background(), newSupplierRequest(), f.actor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sup.Name != "Budi" || sup.Email != "budi@grosir.test" {
		t.Fatalf("fields not normalized: %q %q", sup.Name, sup.Email)
	}
	if sup.Country != model.DefaultSupplierCountry || sup.PaymentTerms != model.TermsNet30 || !sup.IsActive {
		t.Fatalf("unexpected defaults %+v", sup)
	}
	if len(f.events.topic(event.TopicSupplierChanged)) != 1 {
		t.Fatalf("expected a supplier event")
	}

	bad := newSupplierRequest()
	bad.Phone = ""
	if _, err := suppliers.Create(context.Background(), bad, f.actor); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected phone required, got %v", err)
	}
	bad = newSupplierRequest()
	bad.PaymentTerms = "net90"
	if _, err := suppliers.Create(context.Background(), bad, f.actor); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected unknown terms rejected, got %v", err)
	}
}

func TestUpdateSupplierOnlyTouchesSentFields(t *testing.T) {
	f := newInventoryFixture(t)
	suppliers := NewSupplierService(f.db, repository.NewSupplierRepo(f.db), f.events)
	sup, err := suppliers.Create(context.Background(), newSupplierRequest(), f.actor)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	terms := model.TermsCOD
	updated, err := suppliers.Update(context.Background(), sup.ID, &UpdateSupplierRequest{
		Company:      strPtr(" PT Grosir "),
		PaymentTerms: &terms,
	}, f.actor)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Company != "PT Grosir" || updated.PaymentTerms != model.TermsCOD {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.Name != "Budi" || updated.Phone != "0812-1111" || updated.City != "Johor Bahru" {
		t.Fatalf("unsent fields changed: %+v", updated)
	}

	if _, err := suppliers.Update(context.Background(), sup.ID, &UpdateSupplierRequest{Phone: strPtr(" ")}, f.actor); !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected blank phone rejected, got %v", err)
	}
	if _, err := suppliers.Update(context.Background(), uuid.New(), &UpdateSupplierRequest{Name: strPtr("X")}, f.actor); !apperror.IsKind(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProductsReferenceSuppliers(t *testing.T) {
	f := newInventoryFixture(t)
	suppliers := NewSupplierService(f.db, repository.NewSupplierRepo(f.db), f.events)
	sup, err := suppliers.Create(context.Background(), newSupplierRequest(), f.actor)
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}

	unknown := uuid.New()
	_, err = f.svc.CreateProduct(context.Background(), &CreateProductRequest{
		SKU: "air-1", Name: "Air", Price: decimal.NewFromInt(1), SupplierID: &unknown,
	}, f.actor)
	if !apperror.IsKind(err, apperror.KindNotFound) {
		t.Fatalf("expected unknown supplier rejected, got %v", err)
	}

	p, err := f.svc.CreateProduct(context.Background(), &CreateProductRequest{
		SKU: "air-1", Name: "Air", Price: decimal.NewFromInt(1), Stock: 4, SupplierID: &sup.ID,
	}, f.actor)
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	got, err := f.svc.GetProduct(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Supplier == nil || got.Supplier.ID != sup.ID {
		t.Fatalf("expected supplier preloaded, got %+v", got.Supplier)
	}
	list, total, err := f.svc.ListProducts(context.Background(), repository.ProductFilter{SupplierID: &sup.ID})
	if err != nil || total != 1 || list[0].ID != p.ID {
		t.Fatalf("expected the product listed under its supplier, got %d %v", total, err)
	}

	if err := suppliers.Delete(context.Background(), sup.ID, f.actor); err != nil {
		t.Fatalf("delete supplier: %v", err)
	}
	got, err = f.svc.GetProduct(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("product should survive its supplier: %v", err)
	}
	if got.SupplierID != nil || got.Stock != 4 {
		t.Fatalf("expected supplier cleared and stock kept, got %v %d", got.SupplierID, got.Stock)
	}
	if _, err := suppliers.Get(context.Background(), sup.ID); !apperror.IsKind(err, apperror.KindNotFound) {
		t.Fatalf("expected deleted supplier gone, got %v", err)
	}
}

func TestClearProductSupplier(t *testing.T) {
	f := newInventoryFixture(t)
	suppliers := NewSupplierService(f.db, repository.NewSupplierRepo(f.db), f.events)
	sup, err := suppliers.Create(context.Background(), newSupplierRequest(), f.actor)
	if err != nil {
		t.Fatalf("create supplier: %v", err)
	}
	p := testutil.SeedProduct(t, f.db, "Beras", "12.00", 10)

	updated, err := f.svc.UpdateProduct(context.Background(), p.ID, &UpdateProductRequest{SupplierID: &sup.ID}, f.actor)
	if err != nil || updated.SupplierID == nil || *updated.SupplierID != sup.ID {
		t.Fatalf("expected supplier set, got %v", err)
	}
	none := uuid.Nil
	updated, err = f.svc.UpdateProduct(context.Background(), p.ID, &UpdateProductRequest{SupplierID: &none}, f.actor)
	if err != nil || updated.SupplierID != nil {
		t.Fatalf("expected supplier cleared, got %v", err)
	}
}
