package rpc

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// paramReader reads positional JSON-RPC params. The first decoding failure is
// kept in err and later reads return zero values, so a handler can read all
// of its params and check once.
type paramReader struct {
	args []json.RawMessage
	err  error
}

// newParamReader accepts an array, null, an absent member or an empty object
// (no params).
func newParamReader(raw json.RawMessage, maxArgs int) (*paramReader, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		return &paramReader{}, nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(trimmed, &args); err != nil {
		return nil, errInvalidParams
	}
	if len(args) > maxArgs {
		return nil, errInvalidParams
	}
	return &paramReader{args: args}, nil
}

// arg returns the raw param at i, or nil when it is missing or null.
func (p *paramReader) arg(i int) json.RawMessage {
	if p.err != nil || i >= len(p.args) {
		return nil
	}
	raw := bytes.TrimSpace(p.args[i])
	if bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}

func (p *paramReader) decode(raw json.RawMessage, out any) bool {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		p.err = errInvalidParams
		return false
	}
	return true
}

func (p *paramReader) require(i int) json.RawMessage {
	raw := p.arg(i)
	if raw == nil && p.err == nil {
		p.err = errInvalidParams
	}
	return raw
}

func (p *paramReader) string(i int) string {
	raw := p.require(i)
	if raw == nil {
		return ""
	}
	var v string
	if !p.decode(raw, &v) {
		return ""
	}
	if strings.TrimSpace(v) == "" {
		p.err = errInvalidParams
	}
	return v
}

// optString returns nil for a missing or null param. An empty string is kept.
func (p *paramReader) optString(i int) *string {
	raw := p.arg(i)
	if raw == nil {
		return nil
	}
	var v string
	if !p.decode(raw, &v) {
		return nil
	}
	return &v
}

func (p *paramReader) number(raw json.RawMessage) (json.Number, bool) {
	var n json.Number
	if !p.decode(raw, &n) {
		return "", false
	}
	return n, true
}

func (p *paramReader) uint64(i int) uint64 {
	raw := p.require(i)
	if raw == nil {
		return 0
	}
	return p.parseUint(raw, 64)
}

func (p *paramReader) optUint64(i int) *uint64 {
	raw := p.arg(i)
	if raw == nil {
		return nil
	}
	v := p.parseUint(raw, 64)
	if p.err != nil {
		return nil
	}
	return &v
}

func (p *paramReader) optUint32(i int) *uint32 {
	raw := p.arg(i)
	if raw == nil {
		return nil
	}
	v := uint32(p.parseUint(raw, 32))
	if p.err != nil {
		return nil
	}
	return &v
}

func (p *paramReader) parseUint(raw json.RawMessage, bits int) uint64 {
	n, ok := p.number(raw)
	if !ok {
		return 0
	}
	v, err := strconv.ParseUint(n.String(), 10, bits)
	if err != nil {
		p.err = errInvalidParams
		return 0
	}
	return v
}

func (p *paramReader) float64(i int) float64 {
	raw := p.require(i)
	if raw == nil {
		return 0
	}
	n, ok := p.number(raw)
	if !ok {
		return 0
	}
	v, err := n.Float64()
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		p.err = errInvalidParams
		return 0
	}
	return v
}

// strings returns an empty, non-nil slice for a missing param.
func (p *paramReader) strings(i int) []string {
	raw := p.arg(i)
	if raw == nil {
		return []string{}
	}
	var v []string
	if !p.decode(raw, &v) {
		return []string{}
	}
	if v == nil {
		v = []string{}
	}
	return v
}

// object decodes a JSON object param into out. Unknown fields are rejected.
func (p *paramReader) object(i int, out any, required bool) {
	raw := p.arg(i)
	if raw == nil {
		if required && p.err == nil {
			p.err = errInvalidParams
		}
		return
	}
	p.decode(raw, out)
}
