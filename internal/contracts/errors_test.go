package contracts

import (
	"errors"
	"fmt"
	"testing"
)

type lifecycleErr struct{}

func (lifecycleErr) Error() string         { return "not ready" }
func (lifecycleErr) ErrorCategory() string { return CategoryLifecycle }

func TestWrapCategorizedError_NewErrorUsesProvidedCategory(t *testing.T) {
	wrapped := WrapCategorizedError(CategoryMarshaling, errors.New("boom"))
	var classified *CategorizedError
	if !errors.As(wrapped, &classified) {
		t.Fatalf("expected categorized error, got %T", wrapped)
	}
	if classified.Category != CategoryMarshaling {
		t.Fatalf("expected category=%q, got %q", CategoryMarshaling, classified.Category)
	}
}

func TestWrapCategorizedError_NormalizesUnknownCategoryToAPI(t *testing.T) {
	wrapped := WrapCategorizedError("unknown", errors.New("boom"))
	if got := ErrorCategory(wrapped); got != CategoryAPI {
		t.Fatalf("expected category=%q, got %q", CategoryAPI, got)
	}
}

func TestWrapCategorizedError_KeepsExistingCategory(t *testing.T) {
	inner := WrapCategorizedError(CategoryConfiguration, errors.New("missing"))
	outer := WrapCategorizedError(CategoryMarshaling, fmt.Errorf("resolve: %w", inner))
	if got := ErrorCategory(outer); got != CategoryConfiguration {
		t.Fatalf("expected category=%q, got %q", CategoryConfiguration, got)
	}
}

func TestErrorCategory_UsesCategorizedInterfaceThroughWrapping(t *testing.T) {
	err := fmt.Errorf("get_balance: %w", lifecycleErr{})
	if got := ErrorCategory(err); got != CategoryLifecycle {
		t.Fatalf("expected category=%q, got %q", CategoryLifecycle, got)
	}
}

func TestErrorCategory_DefaultsToAPIForRegularErrors(t *testing.T) {
	if got := ErrorCategory(errors.New("plain")); got != CategoryAPI {
		t.Fatalf("expected default category=%q, got %q", CategoryAPI, got)
	}
	if got := ErrorCategory(nil); got != "" {
		t.Fatalf("expected empty category for nil, got %q", got)
	}
}
