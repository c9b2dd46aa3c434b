package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lightning-worker/go-backend/internal/capability/memwallet"
	"lightning-worker/go-backend/internal/events"
	"lightning-worker/go-backend/internal/settings"
	"lightning-worker/go-backend/internal/worker"
)

type walletHarness struct {
	server  *Server
	runtime *memwallet.Runtime
	nextID  int
}

func newWalletHarness(t *testing.T) *walletHarness {
	t.Helper()
	t.Setenv("LNW_RPC_RATE_LIMIT_ENABLED", "false")
	logger := slog.New(slog.DiscardHandler)
	broadcaster := events.NewBroadcaster(64)
	rt := memwallet.NewRuntime(memwallet.Options{Events: broadcaster, Logger: logger})
	bridge := worker.New(rt, worker.Options{Logger: logger})
	t.Cleanup(bridge.Close)

	source := func(context.Context) (settings.Resolved, error) {
		return settings.FromMap(map[settings.Name]string{
			settings.Network:                 "signet",
			settings.Proxy:                   "wss://proxy.example/ws",
			settings.LSP:                     "https://lsp.example",
			settings.LNEventBroadcastChannel: "ln_events",
		})
	}
	s := newServer(Options{
		Bridge:       bridge,
		Settings:     source,
		Events:       broadcaster,
		EventChannel: "ln_events",
		Logger:       logger,
	}, "", false)
	return &walletHarness{server: s, runtime: rt}
}

func (h *walletHarness) call(t *testing.T, method string, params ...any) rpcResponse {
	t.Helper()
	return h.callWithHeaders(t, nil, method, params...)
}

func (h *walletHarness) callWithHeaders(t *testing.T, headers map[string]string, method string, params ...any) rpcResponse {
	t.Helper()
	h.nextID++
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      h.nextID,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	rec := rpcCallWithHeaders(t, h.server, string(body), headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("%s: unexpected http status %d", method, rec.Code)
	}
	return decodeRPCResponse(t, rec)
}

func (h *walletHarness) ready(t *testing.T) {
	t.Helper()
	decodeResult(t, h.call(t, "load_module"), new(okResult))
	decodeResult(t, h.call(t, "setup"), new(okResult))
}

// fundedChannel funds the wallet on-chain and opens a channel to the LSP.
func (h *walletHarness) fundedChannel(t *testing.T) {
	t.Helper()
	var addr struct {
		Address string `json:"address"`
	}
	decodeResult(t, h.call(t, "get_new_address", []string{"deposit"}), &addr)
	if _, err := h.runtime.Fund(addr.Address, 1_000_000); err != nil {
		t.Fatalf("fund: %v", err)
	}
	var ch map[string]any
	decodeResult(t, h.call(t, "open_channel", nil, 500_000), &ch)
}

func TestRPCLifecycleErrorCodes(t *testing.T) {
	h := newWalletHarness(t)

	expectRPCCode(t, h.call(t, "get_balance"), -32010)
	expectRPCCode(t, h.call(t, "get_version"), -32010)

	h.ready(t)
	expectRPCCode(t, h.call(t, "setup"), -32013)

	var version string
	decodeResult(t, h.call(t, "get_version"), &version)
	if version != memwallet.Version {
		t.Fatalf("unexpected version %q", version)
	}
	var infos []string
	decodeResult(t, h.call(t, "get_infos"), &infos)
	if len(infos) == 0 || !strings.HasPrefix(infos[0], "node_id=") {
		t.Fatalf("unexpected infos %v", infos)
	}
	var state worker.StateInfo
	decodeResult(t, h.call(t, "state"), &state)
	if state.State != worker.SessionReady {
		t.Fatalf("unexpected state %v", state.State)
	}

	decodeResult(t, h.call(t, "stop"), new(okResult))
	expectRPCCode(t, h.call(t, "get_balance"), -32011)
	expectRPCCode(t, h.call(t, "load_module"), -32011)
}

func TestRPCInvoicePaidOverRPC(t *testing.T) {
	h := newWalletHarness(t)
	h.ready(t)
	h.fundedChannel(t)

	var created map[string]any
	decodeResult(t, h.call(t, "create_invoice", 1_000, "coffee"), &created)
	bolt11, _ := created["bolt11"].(string)
	hash, _ := created["payment_hash"].(string)
	if bolt11 == "" || hash == "" {
		t.Fatalf("invoice missing identifiers: %v", created)
	}
	if created["paid"] != false {
		t.Fatalf("new invoice must report paid=false, got %v", created["paid"])
	}

	var paid map[string]any
	decodeResult(t, h.call(t, "pay_invoice", bolt11, nil, []string{"self"}), &paid)
	if paid["paid"] != true {
		t.Fatalf("expected paid=true, got %v", paid["paid"])
	}

	var stored map[string]any
	decodeResult(t, h.call(t, "get_invoice_by_hash", hash), &stored)
	for _, key := range []string{
		"amount_sats", "bolt11", "expire", "expired", "inbound", "labels", "last_updated",
		"paid", "payee_pubkey", "payment_hash", "potential_hodl_invoice", "preimage",
		"privacy_level", "status",
	} {
		if _, ok := stored[key]; !ok {
			t.Fatalf("invoice field %q missing over rpc: %v", key, stored)
		}
	}
	if stored["paid"] != true || stored["status"] != "Succeeded" {
		t.Fatalf("unexpected stored invoice: %v", stored)
	}

	var outpoints string
	decodeResult(t, h.call(t, "get_channel_outpoints_short_string"), &outpoints)
	if !strings.HasSuffix(outpoints, ":0") || len(outpoints) != 22 {
		t.Fatalf("unexpected outpoints %q", outpoints)
	}
}

func TestRPCModuleErrorKeepsCode(t *testing.T) {
	h := newWalletHarness(t)
	h.ready(t)

	resp := h.call(t, "create_invoice", 20_000_000)
	expectRPCCode(t, resp, -32030)
	data, _ := resp.Error.Data.(map[string]any)
	if data["code"] != "LspAmountTooHighError" || data["category"] != "module" {
		t.Fatalf("unexpected error data %v", resp.Error.Data)
	}
	if resp.Error.Message != "Invoice amount is too high" {
		t.Fatalf("module message must pass through, got %q", resp.Error.Message)
	}

	expectRPCCode(t, h.call(t, "convert_btc_to_sats", "one"), -32602)
	expectRPCCode(t, h.call(t, "pay_invoice"), -32602)
	expectRPCCode(t, h.call(t, "close_channel", map[string]any{"force": true}), -32602)
}

func TestRPCSetupReportsMissingSettings(t *testing.T) {
	h := newWalletHarness(t)
	h.server.settings = func(context.Context) (settings.Resolved, error) {
		return settings.Resolved{}, &settings.MissingRequiredSettingError{Names: []settings.Name{settings.Proxy}}
	}
	decodeResult(t, h.call(t, "load_module"), new(okResult))
	expectRPCCode(t, h.call(t, "setup"), -32020)
}

func TestRPCIdempotentPaymentReplays(t *testing.T) {
	h := newWalletHarness(t)
	h.ready(t)
	h.fundedChannel(t)

	var created map[string]any
	decodeResult(t, h.call(t, "create_invoice", 2_000, ""), &created)
	bolt11 := created["bolt11"].(string)

	headers := map[string]string{rpcIdempotencyHeader: "pay-1"}
	first := h.callWithHeaders(t, headers, "pay_invoice", bolt11)
	second := h.callWithHeaders(t, headers, "pay_invoice", bolt11)
	if first.Error != nil || second.Error != nil {
		t.Fatalf("expected replayed success, got %+v / %+v", first.Error, second.Error)
	}
	if string(first.Result) != string(second.Result) {
		t.Fatalf("replay differs:\n%s\n%s", first.Result, second.Result)
	}
	expectRPCCode(t, h.callWithHeaders(t, headers, "pay_invoice", bolt11, 5), -32041)

	// Without the key the second payment reaches the module.
	expectRPCCode(t, h.call(t, "pay_invoice", bolt11), -32030)
}

// gatedRuntime holds Load until gate closes.
type gatedRuntime struct {
	*memwallet.Runtime
	gate chan struct{}
}

func (g *gatedRuntime) Load(ctx context.Context) error {
	<-g.gate
	return g.Runtime.Load(ctx)
}

func TestRPCIdempotentUnknownOutcomeIsNotRedispatched(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	rt := &gatedRuntime{Runtime: memwallet.NewRuntime(memwallet.Options{Logger: logger}), gate: make(chan struct{})}
	bridge := worker.New(rt, worker.Options{Logger: logger})
	t.Cleanup(bridge.Close)
	t.Cleanup(func() { close(rt.gate) })
	h := &walletHarness{
		server:  newServer(Options{Bridge: bridge, Logger: logger, CallTimeout: 20 * time.Millisecond}, "", false),
		runtime: rt.Runtime,
	}

	headers := map[string]string{rpcIdempotencyHeader: "load-1"}
	first := h.callWithHeaders(t, headers, "load_module")
	expectRPCCode(t, first, -32040)
	second := h.callWithHeaders(t, headers, "load_module")
	expectRPCCode(t, second, -32040)
	if first.Error.Message != second.Error.Message {
		t.Fatalf("retry was dispatched again:\n%s\n%s", first.Error.Message, second.Error.Message)
	}
}

func TestRPCStreamDeliversLNEvents(t *testing.T) {
	h := newWalletHarness(t)
	h.ready(t)
	h.fundedChannel(t)

	srv := httptest.NewServer(h.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/rpc/stream", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var note struct {
			Method string `json:"method"`
			Params struct {
				Channel string `json:"channel"`
				Kind    string `json:"kind"`
			} `json:"params"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &note); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		if note.Method != "ln_event" || note.Params.Channel != "ln_events" {
			t.Fatalf("unexpected notification %+v", note)
		}
		if note.Params.Kind == events.KindChannelOpened {
			return
		}
	}
	t.Fatalf("stream ended without channel_opened: %v", scanner.Err())
}
