package validator

import (
	"testing"

	"github.com/shopspring/decimal"

	"go-pos-ledger/pkg/apperror"
)

type lineInput struct {
	Quantity int `validate:"required,gte=1"`
}

type saleInput struct {
	Items    []lineInput     `validate:"required,min=1,dive"`
	Discount decimal.Decimal `validate:"gte=0"`
	Method   string          `validate:"required,oneof=cash card"`
}

func TestCheckAcceptsValidInput(t *testing.T) {
	in := saleInput{
		Items:    []lineInput{{Quantity: 2}},
		Discount: decimal.NewFromInt(0),
		Method:   "cash",
	}
	if err := Check(&in); err != nil {
		t.Fatalf("expected valid input, got %v", err)
	}
}

func TestCheckRejectsNegativeMoney(t *testing.T) {
	in := saleInput{
		Items:    []lineInput{{Quantity: 1}},
		Discount: decimal.NewFromFloat(-1.5),
		Method:   "cash",
	}
	err := Check(&in)
	if !apperror.IsKind(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestValidateStructListsEveryField(t *testing.T) {
	in := saleInput{Items: []lineInput{{Quantity: 0}}, Method: "crypto"}
	errs := ValidateStruct(&in)
	if len(errs) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(errs))
	}
}
