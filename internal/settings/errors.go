package settings

import (
	"errors"
	"fmt"
	"strings"

	"lightning-worker/go-backend/internal/contracts"
)

var ErrMissingRequiredSetting = errors.New("missing required setting")

// MissingRequiredSettingError reports which required settings resolved to
// absent.
type MissingRequiredSettingError struct {
	Names []Name
}

func (e *MissingRequiredSettingError) Error() string {
	names := make([]string, 0, len(e.Names))
	for _, n := range e.Names {
		names = append(names, string(n))
	}
	return fmt.Sprintf("%s: %s (check the defaults file or LNW_* environment)", ErrMissingRequiredSetting, strings.Join(names, ", "))
}

func (e *MissingRequiredSettingError) Is(target error) bool {
	return target == ErrMissingRequiredSetting
}

func (e *MissingRequiredSettingError) ErrorCategory() string {
	return contracts.CategoryConfiguration
}
