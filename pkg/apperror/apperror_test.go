package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOfUnwrapsChain(t *testing.T) {
	base := InsufficientStock("p-1", "Teh Botol", 5, 6)
	wrapped := fmt.Errorf("create transaction: %w", base)

	if got := KindOf(wrapped); got != KindInsufficientStock {
		t.Fatalf("expected %s, got %s", KindInsufficientStock, got)
	}
	if !IsKind(wrapped, KindInsufficientStock) {
		t.Fatalf("expected IsKind to match through wrapping")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("plain errors must map to internal")
	}
}

func TestInsufficientStockDetails(t *testing.T) {
	err := InsufficientStock("p-1", "Teh Botol", 5, 6)
	if err.Details["available"] != 5 || err.Details["requested"] != 6 {
		t.Fatalf("unexpected details: %#v", err.Details)
	}
	if err.Error() != "insufficient stock for Teh Botol. Available: 5" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("cancel: %w", AlreadyCancelled("TRX-20240101-0001"))
	if !errors.Is(err, &Error{Kind: KindAlreadyCancelled}) {
		t.Fatalf("expected errors.Is to match on kind")
	}
	if errors.Is(err, &Error{Kind: KindNotFound}) {
		t.Fatalf("kinds must not cross-match")
	}
}

func TestSequenceConflictKeepsCause(t *testing.T) {
	cause := errors.New("duplicated key")
	err := SequenceConflict("TRX-20240101-0002", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
}
