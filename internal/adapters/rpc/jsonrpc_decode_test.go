package rpc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"lightning-worker/go-backend/internal/capability"
)

func TestParamReaderAcceptsEmptyForms(t *testing.T) {
	for _, raw := range []string{``, `null`, `{}`, `[]`} {
		p, err := newParamReader(json.RawMessage(raw), 0)
		if err != nil {
			t.Fatalf("params %q: unexpected error %v", raw, err)
		}
		if len(p.args) != 0 {
			t.Fatalf("params %q: expected no args", raw)
		}
	}
	if _, err := newParamReader(json.RawMessage(`{"a":1}`), 1); !errors.Is(err, errInvalidParams) {
		t.Fatalf("expected named params to be rejected, got %v", err)
	}
	if _, err := newParamReader(json.RawMessage(`[1,2]`), 1); !errors.Is(err, errInvalidParams) {
		t.Fatalf("expected too many params to be rejected, got %v", err)
	}
}

func TestParamReaderUint64KeepsPrecision(t *testing.T) {
	p, err := newParamReader(json.RawMessage(`[18446744073709551615, null, 7]`), 3)
	if err != nil {
		t.Fatalf("new reader: %v", err)
	}
	if got := p.uint64(0); got != 18446744073709551615 {
		t.Fatalf("unexpected value %d", got)
	}
	if got := p.optUint64(1); got != nil {
		t.Fatalf("expected nil for null param, got %d", *got)
	}
	if got := p.optUint32(2); got == nil || *got != 7 {
		t.Fatalf("unexpected u32 %v", got)
	}
	if p.err != nil {
		t.Fatalf("unexpected error: %v", p.err)
	}
}

func TestParamReaderRejectsBadNumbers(t *testing.T) {
	cases := []string{`[-1]`, `[1.5]`, `[true]`, `[4294967296]`}
	for _, raw := range cases {
		p, err := newParamReader(json.RawMessage(raw), 1)
		if err != nil {
			t.Fatalf("new reader: %v", err)
		}
		_ = p.optUint32(0)
		if !errors.Is(p.err, errInvalidParams) {
			t.Fatalf("params %s: expected invalid params", raw)
		}
	}
}

func TestParamReaderRequiredString(t *testing.T) {
	p, _ := newParamReader(json.RawMessage(`[""]`), 1)
	_ = p.string(0)
	if !errors.Is(p.err, errInvalidParams) {
		t.Fatal("expected empty required string to be rejected")
	}

	p, _ = newParamReader(json.RawMessage(`[""]`), 1)
	got := p.optString(0)
	if p.err != nil || got == nil || *got != "" {
		t.Fatalf("optional empty string must be kept, got %v err=%v", got, p.err)
	}

	p, _ = newParamReader(json.RawMessage(`[]`), 1)
	if labels := p.strings(0); labels == nil || len(labels) != 0 {
		t.Fatalf("expected empty labels, got %#v", labels)
	}
}

func TestParamReaderObject(t *testing.T) {
	p, _ := newParamReader(json.RawMessage(`[{"outpoint":"abc:0","force":true,"fee_rate_per_kw":253}]`), 1)
	var req capability.CloseChannelRequest
	p.object(0, &req, true)
	if p.err != nil {
		t.Fatalf("unexpected error: %v", p.err)
	}
	rate := uint32(253)
	want := capability.CloseChannelRequest{Outpoint: "abc:0", Force: true, FeeRatePerKw: &rate}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Fatalf("close request mismatch (-want +got):\n%s", diff)
	}

	p, _ = newParamReader(json.RawMessage(`[{"outpoint":"abc:0","bogus":1}]`), 1)
	p.object(0, &req, true)
	if !errors.Is(p.err, errInvalidParams) {
		t.Fatal("expected unknown field to be rejected")
	}
}
