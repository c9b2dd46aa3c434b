// Package privacylog keeps wallet secrets and identifiers out of logs. Secret
// values are replaced outright; identifiers that would link a line to a
// user's funds become per-boot fingerprints so lines stay correlatable.
package privacylog

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const redactedValue = "[REDACTED]"

type action uint8

const (
	keep action = iota
	redact
	fingerprint
)

var (
	bootSalt = newSalt()

	fingerprintedKeys = map[string]struct{}{
		"node_id":     {},
		"pubkey":      {},
		"peer":        {},
		"to_node":     {},
		"address":     {},
		"destination": {},
	}
	// Any key containing one of these is redacted.
	secretFragments = []string{
		"token", "secret", "password", "passphrase", "authorization", "auth",
		"mnemonic", "seed", "preimage",
	}
)

func classify(key string) action {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, frag := range secretFragments {
		if strings.Contains(key, frag) {
			return redact
		}
	}
	if _, ok := fingerprintedKeys[key]; ok {
		return fingerprint
	}
	return keep
}

// NewLogger returns a JSON logger writing to w with secrets redacted.
func NewLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	return slog.New(WrapHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

// SanitizingHandler rewrites attributes before handing records to next.
type SanitizingHandler struct {
	next slog.Handler
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	clean := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(SanitizeAttr(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = SanitizeAttr(a)
	}
	return &SanitizingHandler{next: h.next.WithAttrs(clean)}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

// SanitizeAttr applies the key policy to a, descending into groups.
func SanitizeAttr(a slog.Attr) slog.Attr {
	switch classify(a.Key) {
	case redact:
		return slog.String(a.Key, redactedValue)
	case fingerprint:
		return slog.String(fingerprintKey(a.Key), FingerprintID(a.Value.Resolve().String()))
	}
	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: v}
	}
	members := v.Group()
	clean := make([]slog.Attr, len(members))
	for i, m := range members {
		clean[i] = SanitizeAttr(m)
	}
	return slog.Attr{Key: a.Key, Value: slog.GroupValue(clean...)}
}

// SanitizeArgs applies the key policy to alternating key/value args as passed
// to slog.Logger methods.
func SanitizeArgs(args ...any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, 0, len(args))
	for i := 0; i < len(args); i++ {
		key, isKey := args[i].(string)
		if !isKey || i+1 == len(args) {
			out = append(out, args[i])
			continue
		}
		i++
		switch classify(key) {
		case redact:
			out = append(out, key, redactedValue)
		case fingerprint:
			out = append(out, fingerprintKey(key), FingerprintID(fmt.Sprint(args[i])))
		default:
			out = append(out, key, args[i])
		}
	}
	return out
}

// FingerprintID hashes value with the boot salt. Equal values map to equal
// fingerprints until the process restarts.
func FingerprintID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value + "|" + bootSalt))
	return "fp_" + hex.EncodeToString(sum[:8])
}

func fingerprintKey(key string) string {
	if strings.HasSuffix(strings.ToLower(key), "_fp") {
		return key
	}
	return key + "_fp"
}

func newSalt() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("privacylog: read random salt: " + err.Error())
	}
	return hex.EncodeToString(buf[:])
}
