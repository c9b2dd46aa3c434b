package contracts

import (
	"errors"
	"strings"
)

const (
	CategoryAPI           = "api"
	CategoryConfiguration = "configuration"
	CategoryLifecycle     = "lifecycle"
	CategoryModule        = "module"
	CategoryMarshaling    = "marshaling"
)

// Categorized is implemented by errors that know which part of the error
// taxonomy they belong to.
type Categorized interface {
	ErrorCategory() string
}

type CategorizedError struct {
	Category string
	Err      error
}

func (e *CategorizedError) Error() string {
	return e.Err.Error()
}

func (e *CategorizedError) Unwrap() error {
	return e.Err
}

func (e *CategorizedError) ErrorCategory() string {
	return normalizeCategory(e.Category)
}

func normalizeCategory(category string) string {
	switch strings.ToLower(strings.TrimSpace(category)) {
	case CategoryConfiguration:
		return CategoryConfiguration
	case CategoryLifecycle:
		return CategoryLifecycle
	case CategoryModule:
		return CategoryModule
	case CategoryMarshaling:
		return CategoryMarshaling
	default:
		return CategoryAPI
	}
}

func WrapCategorizedError(category string, err error) error {
	if err == nil {
		return nil
	}
	var existing *CategorizedError
	if errors.As(err, &existing) {
		return &CategorizedError{
			Category: normalizeCategory(existing.Category),
			Err:      existing.Err,
		}
	}
	return &CategorizedError{
		Category: normalizeCategory(category),
		Err:      err,
	}
}

func ErrorCategory(err error) string {
	if err == nil {
		return ""
	}
	var classified Categorized
	if errors.As(err, &classified) {
		return normalizeCategory(classified.ErrorCategory())
	}
	return CategoryAPI
}
