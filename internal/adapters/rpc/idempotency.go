package rpc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	rpcIdempotencyHeader = "X-LNW-Idempotency-Key"
	idempotencyTTL       = 10 * time.Minute
	idempotencyEntries   = 1024
)

type replayOutcome uint8

const (
	// replayOwner means the caller reserved the key and must call finish.
	replayOwner replayOutcome = iota
	replayHit
	replayClash
	// replayPending means an earlier request under the key is still running
	// and the caller stopped waiting for it.
	replayPending
)

type idempotencyEntry struct {
	fingerprint string
	response    rpcResponse
}

type flight struct {
	fingerprint string
	done        chan struct{}
	response    rpcResponse
}

// replayCache returns the stored response of a payment-style call retried
// under the same key, so a client that lost the reply does not pay twice. A
// key is reserved before dispatch; retries arriving while the first request
// runs wait for its response instead of dispatching again.
type replayCache struct {
	mu       sync.Mutex
	lru      *expirable.LRU[string, idempotencyEntry]
	inflight map[string]*flight
}

func newReplayCache() *replayCache {
	return &replayCache{
		lru:      expirable.NewLRU[string, idempotencyEntry](idempotencyEntries, nil, idempotencyTTL),
		inflight: make(map[string]*flight),
	}
}

// begin reserves key for fingerprint, or reports what an earlier request
// under key produced.
func (c *replayCache) begin(ctx context.Context, key, fingerprint string) (rpcResponse, replayOutcome) {
	if c == nil {
		return rpcResponse{}, replayOwner
	}
	c.mu.Lock()
	if entry, ok := c.lru.Get(key); ok {
		c.mu.Unlock()
		if entry.fingerprint != fingerprint {
			return rpcResponse{}, replayClash
		}
		return entry.response, replayHit
	}
	if f, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		if f.fingerprint != fingerprint {
			return rpcResponse{}, replayClash
		}
		select {
		case <-f.done:
			return f.response, replayHit
		case <-ctx.Done():
			return rpcResponse{}, replayPending
		}
	}
	c.inflight[key] = &flight{fingerprint: fingerprint, done: make(chan struct{})}
	c.mu.Unlock()
	return rpcResponse{}, replayOwner
}

// finish records the owner's response and releases waiters.
func (c *replayCache) finish(key string, resp rpcResponse) {
	if c == nil {
		return
	}
	c.mu.Lock()
	f, ok := c.inflight[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.inflight, key)
	f.response = resp
	c.lru.Add(key, idempotencyEntry{fingerprint: f.fingerprint, response: resp})
	c.mu.Unlock()
	close(f.done)
}

// idempotencyKey scopes a client key to the presenting token.
func idempotencyKey(raw, token string) string {
	key := strings.TrimSpace(raw)
	if key == "" {
		return ""
	}
	return token + "|" + key
}

func requestFingerprint(req rpcRequest) string {
	raw, err := json.Marshal(struct {
		Method     string          `json:"method"`
		Params     json.RawMessage `json:"params"`
		APIVersion *int            `json:"api_version,omitempty"`
	}{req.Method, req.Params, req.APIVersion})
	if err != nil {
		raw = []byte(req.Method + "|" + string(req.Params))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
