package rpc

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"lightning-worker/go-backend/internal/platform/ratelimiter"
)

const rateLimitIdleTTL = 10 * time.Minute

// newRateLimiter returns nil when limiting is disabled; a nil limiter allows
// everything.
func newRateLimiter(cfg transportConfig) *ratelimiter.MapLimiter {
	if !cfg.rateLimited {
		return nil
	}
	return ratelimiter.New(cfg.rateRPS, cfg.rateBurst, rateLimitIdleTTL)
}

// clientKey identifies the caller for rate and stream limits: the token when
// one is presented, the remote host otherwise.
func clientKey(r *http.Request, token string) string {
	if token = strings.TrimSpace(token); token != "" {
		return "token:" + token
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	if host == "" {
		return "ip:unknown"
	}
	return "ip:" + host
}

// streamSlots bounds concurrent /rpc/stream subscriptions globally and per
// client.
type streamSlots struct {
	global  *semaphore.Weighted
	perPeer int

	mu     sync.Mutex
	byPeer map[string]int
}

func newStreamSlots(cfg transportConfig) *streamSlots {
	return &streamSlots{
		global:  semaphore.NewWeighted(cfg.maxStreams),
		perPeer: cfg.maxStreamsPerPeer,
		byPeer:  make(map[string]int),
	}
}

func (s *streamSlots) acquire(peer string) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byPeer[peer] >= s.perPeer {
		return nil, false
	}
	if !s.global.TryAcquire(1) {
		return nil, false
	}
	s.byPeer[peer]++
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.byPeer[peer]--
			if s.byPeer[peer] <= 0 {
				delete(s.byPeer, peer)
			}
			s.global.Release(1)
		})
	}, true
}
