package settings

import (
	"context"
	"fmt"
)

// Partial is a caller-supplied subset of settings. A name missing from the
// map means "no value given"; "" is a real override.
type Partial map[Name]string

// Write persists each recognized setting present in partial. Writing a value
// equal to the compiled default removes the stored override instead.
func Write(ctx context.Context, store OverrideStore, defaults Defaults, partial Partial) error {
	if store == nil {
		return fmt.Errorf("settings: write: no override store")
	}
	if defaults == nil {
		defaults = CompiledDefaults()
	}
	for _, e := range entries {
		override, given := partial[e.Name]
		if !given {
			continue
		}
		def, hasDefault := defaults.Value(e.Name)
		if hasDefault && override == def {
			if err := store.Remove(ctx, e.StorageKey); err != nil {
				return fmt.Errorf("settings: clear override %s: %w", e.StorageKey, err)
			}
			continue
		}
		if err := store.Set(ctx, e.StorageKey, override); err != nil {
			return fmt.Errorf("settings: persist override %s: %w", e.StorageKey, err)
		}
	}
	return nil
}
