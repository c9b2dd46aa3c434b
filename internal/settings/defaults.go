package settings

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults holds the compiled-in value of each setting. A name that is not in
// the map has no default.
type Defaults map[Name]string

func (d Defaults) Value(name Name) (string, bool) {
	v, ok := d[name]
	return v, ok
}

type defaultsFile struct {
	Defaults map[string]*string `yaml:"defaults"`
}

// CompiledDefaults builds the default layer from built-in fallbacks and the
// process environment.
func CompiledDefaults() Defaults {
	out := make(Defaults, len(entries))
	for _, e := range entries {
		if v, ok := envDefault(e); ok {
			out[e.Name] = v
		}
	}
	return out
}

// LoadDefaults layers an optional YAML defaults file between the built-in
// fallbacks and the environment. An empty path or a missing file yields the
// compiled defaults.
func LoadDefaults(path string) (Defaults, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return CompiledDefaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CompiledDefaults(), nil
		}
		return nil, fmt.Errorf("settings: read defaults file: %w", err)
	}
	var parsed defaultsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("settings: parse defaults file: %w", err)
	}

	out := make(Defaults, len(entries))
	for _, e := range entries {
		if e.HasFallback {
			out[e.Name] = e.Fallback
		}
	}
	for raw, value := range parsed.Defaults {
		name, ok := ParseName(raw)
		if !ok {
			return nil, fmt.Errorf("settings: unknown setting %q in defaults file", raw)
		}
		if value == nil {
			delete(out, name)
			continue
		}
		out[name] = *value
	}
	applyEnvOverrides(out)
	return out, nil
}

func applyEnvOverrides(d Defaults) {
	for _, e := range entries {
		raw, set := os.LookupEnv(e.EnvKey)
		if !set {
			continue
		}
		raw = strings.TrimSpace(raw)
		if raw == "" && !e.EnvEmptyIsSet {
			continue
		}
		d[e.Name] = raw
	}
}

func envDefault(e Entry) (string, bool) {
	raw, set := os.LookupEnv(e.EnvKey)
	raw = strings.TrimSpace(raw)
	switch {
	case set && (raw != "" || e.EnvEmptyIsSet):
		return raw, true
	case e.HasFallback:
		return e.Fallback, true
	default:
		return "", false
	}
}
