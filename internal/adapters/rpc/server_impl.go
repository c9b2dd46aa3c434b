package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lightning-worker/go-backend/internal/events"
	"lightning-worker/go-backend/internal/platform/ratelimiter"
	"lightning-worker/go-backend/internal/settings"
	"lightning-worker/go-backend/internal/worker"
)

const (
	DefaultRPCAddr     = "127.0.0.1:8787"
	defaultCallTimeout = 2 * time.Minute
	rpcTokenHeader     = "X-LNW-RPC-Token"
)

// SettingsSource resolves the wallet settings used by the setup method.
type SettingsSource func(ctx context.Context) (settings.Resolved, error)

type Options struct {
	Addr     string
	Bridge   *worker.Bridge
	Settings SettingsSource
	Events   *events.Broadcaster
	// EventChannel is the hub streamed when /rpc/stream names none.
	EventChannel string
	Gatherer     prometheus.Gatherer
	Logger       *slog.Logger
	CallTimeout  time.Duration
}

type Server struct {
	httpServer  *http.Server
	bridge      *worker.Bridge
	settings    SettingsSource
	events      *events.Broadcaster
	eventChan   string
	logger      *slog.Logger
	callTimeout time.Duration
	initErr     error

	rpcToken        string
	requireRPC      bool
	allowNullOrigin bool
	rateLimiter     *ratelimiter.MapLimiter
	streams         *streamSlots
	idempotency     *replayCache
	methods         map[string]rpcMethod
}

// New reads auth and limits from the environment (LNW_RPC_TOKEN,
// LNW_REQUIRE_RPC_TOKEN, LNW_ENV and the LNW_RPC_* knobs). A configuration
// error is reported by Run.
func New(opts Options) *Server {
	cfg, err := loadTransportConfig()
	if err != nil {
		return &Server{initErr: err}
	}
	return buildServer(opts, cfg)
}

func newServer(opts Options, rpcToken string, requireRPC bool) *Server {
	cfg := loadLimitConfig()
	cfg.token = rpcToken
	cfg.requireToken = requireRPC
	return buildServer(opts, cfg)
}

func buildServer(opts Options, cfg transportConfig) *Server {
	addr := opts.Addr
	if addr == "" {
		addr = DefaultRPCAddr
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}

	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		bridge:          opts.Bridge,
		settings:        opts.Settings,
		events:          opts.Events,
		eventChan:       strings.TrimSpace(opts.EventChannel),
		logger:          logger.With("component", "rpc"),
		callTimeout:     callTimeout,
		rpcToken:        cfg.token,
		requireRPC:      cfg.requireToken,
		allowNullOrigin: cfg.allowNullOrigin,
		rateLimiter:     newRateLimiter(cfg),
		streams:         newStreamSlots(cfg),
		idempotency:     newReplayCache(),
	}
	s.methods = s.methodTable()
	if s.rpcToken == "" && !s.requireRPC {
		s.logger.Warn("rpc auth disabled", "reason", envRPCToken+" is not set")
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.HandleFunc("/rpc/stream", s.handleRPCStream)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return s
}

// Run serves until ctx ends, then shuts the listener down. The bridge is
// owned by the caller and is not closed here.
func (s *Server) Run(ctx context.Context) error {
	if s.initErr != nil {
		return s.initErr
	}
	if ctx.Err() != nil {
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("rpc listening", "addr", s.httpServer.Addr)
		err := s.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.handleHealth(w, r)
}

func (s *Server) HandleRPC(w http.ResponseWriter, r *http.Request) {
	s.handleRPC(w, r)
}

func (s *Server) HandleRPCStream(w http.ResponseWriter, r *http.Request) {
	s.handleRPCStream(w, r)
}

type healthBody struct {
	Status  string `json:"status"`
	Session string `json:"session,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.allowOrigin(w, r) {
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body := healthBody{Status: "ok"}
	if s.bridge != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		info, err := s.bridge.State().Await(ctx)
		cancel()
		if err != nil {
			body.Status = "degraded"
		} else {
			body.Session = info.State.String()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// preflight applies CORS, answers OPTIONS, checks the token and the method.
// It returns false once a response has been written.
func (s *Server) preflight(w http.ResponseWriter, r *http.Request, method string) bool {
	if !s.allowOrigin(w, r) {
		return false
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return false
	}
	if !s.authorize(w, r) {
		return false
	}
	if r.Method != method {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) allowOrigin(w http.ResponseWriter, r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin != "" {
		if !isAllowedOrigin(origin, s.allowNullOrigin) {
			http.Error(w, "origin is not allowed", http.StatusForbidden)
			return false
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
	}
	h := w.Header()
	h.Set("Vary", "Origin")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, "+rpcTokenHeader+", "+rpcIdempotencyHeader)
	return true
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	if s.rpcToken == "" && !s.requireRPC {
		return true
	}
	if s.extractRPCToken(r) != s.rpcToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return false
	}
	return true
}

func (s *Server) extractRPCToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(rpcTokenHeader)); token != "" {
		return token
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > len("bearer ") && strings.EqualFold(auth[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(auth[len("bearer "):])
	}
	return ""
}

// isAllowedOrigin accepts loopback origins only; the opaque "null" origin
// needs allowNull.
func isAllowedOrigin(raw string, allowNull bool) bool {
	if raw == "null" {
		return allowNull
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
