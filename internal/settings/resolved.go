package settings

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Resolved is the immutable outcome of resolution. Absent settings are not
// present in the map, which keeps "unset" distinct from "".
type Resolved struct {
	values map[Name]string
}

// FromMap builds a Resolved value from already-resolved data, e.g. one that
// crossed a process boundary. Unknown names are rejected.
func FromMap(values map[Name]string) (Resolved, error) {
	out := make(map[Name]string, len(values))
	for name, v := range values {
		if _, ok := Lookup(name); !ok {
			return Resolved{}, fmt.Errorf("settings: unknown setting %q", name)
		}
		out[name] = v
	}
	return Resolved{values: out}, nil
}

func (r Resolved) Value(name Name) (string, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Get returns the value or "" when absent.
func (r Resolved) Get(name Name) string {
	return r.values[name]
}

// Optional returns nil for absent settings.
func (r Resolved) Optional(name Name) *string {
	v, ok := r.values[name]
	if !ok {
		return nil
	}
	return &v
}

func (r Resolved) Map() map[Name]string {
	out := make(map[Name]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

func (r Resolved) Network() string { return r.values[Network] }
func (r Resolved) Proxy() string   { return r.values[Proxy] }

func (r Resolved) SelfHosted() bool {
	return r.values[SelfHosted] == "true"
}

func (r Resolved) MarshalJSON() ([]byte, error) {
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[string(k)] = v
	}
	return json.Marshal(out)
}

func (r *Resolved) UnmarshalJSON(data []byte) error {
	var raw map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	values := make(map[Name]string, len(raw))
	for key, v := range raw {
		if v == nil {
			continue
		}
		values[Name(key)] = *v
	}
	parsed, err := FromMap(values)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Names lists the present settings, sorted.
func (r Resolved) Names() []Name {
	out := make([]Name, 0, len(r.values))
	for k := range r.values {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
