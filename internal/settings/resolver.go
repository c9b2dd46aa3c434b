package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// OverrideStore is the persistent keyed override storage. Get reports whether
// the key is present so an explicit "" can be told apart from "never set".
type OverrideStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

type Options struct {
	Defaults Defaults
	// Origin is the scheme://host[:port] that self-hosted relative endpoints
	// are resolved against.
	Origin string
	Logger *slog.Logger
}

var requiredSettings = []Name{Network, Proxy}

// Resolve produces the effective settings: a stored "" means unset, any other
// stored value wins, otherwise the compiled default applies. Self-hosted
// rewriting runs before the required-settings check.
func Resolve(ctx context.Context, store OverrideStore, opts Options) (Resolved, error) {
	if opts.Defaults == nil {
		opts.Defaults = CompiledDefaults()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	values := make(map[Name]string, len(entries))
	for _, e := range entries {
		v, ok, err := resolveEntry(ctx, store, e, opts.Defaults)
		if err != nil {
			return Resolved{}, err
		}
		if ok {
			values[e.Name] = v
		}
	}

	if values[SelfHosted] == "true" {
		origin := strings.TrimRight(strings.TrimSpace(opts.Origin), "/")
		if origin == "" {
			logger.Warn("self-hosted mode enabled without an origin; relative endpoints left as-is", "component", "settings")
		} else {
			logger.Info("self-hosted mode enabled", "component", "settings", "origin", origin)
			rewriteSelfHosted(values, origin)
		}
	}

	var missing []Name
	for _, name := range requiredSettings {
		if v, ok := values[name]; !ok || v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return Resolved{}, &MissingRequiredSettingError{Names: missing}
	}
	return Resolved{values: values}, nil
}

func resolveEntry(ctx context.Context, store OverrideStore, e Entry, defaults Defaults) (string, bool, error) {
	if store != nil {
		stored, ok, err := store.Get(ctx, e.StorageKey)
		if err != nil {
			return "", false, fmt.Errorf("settings: read override %s: %w", e.StorageKey, err)
		}
		if ok {
			if stored == "" {
				return "", false, nil
			}
			return stored, true, nil
		}
	}
	v, ok := defaults.Value(e.Name)
	return v, ok, nil
}

func rewriteSelfHosted(values map[Name]string, origin string) {
	if storage, ok := values[Storage]; ok && strings.HasPrefix(storage, "/") {
		values[Storage] = origin + storage
	}
	if proxy, ok := values[Proxy]; ok && strings.HasPrefix(proxy, "/") {
		values[Proxy] = websocketOrigin(origin) + proxy
	}
}

func websocketOrigin(origin string) string {
	switch {
	case strings.HasPrefix(origin, "http://"):
		return "ws://" + strings.TrimPrefix(origin, "http://")
	case strings.HasPrefix(origin, "https://"):
		return "wss://" + strings.TrimPrefix(origin, "https://")
	default:
		return origin
	}
}
