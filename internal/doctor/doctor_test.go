package doctor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"lightning-worker/go-backend/internal/settings"
)

func newProxyServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newStatusServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func assertCheck(t *testing.T, report Report, name string, pass bool) {
	t.Helper()
	for _, c := range report.Checks {
		if c.Name == name {
			if c.Pass != pass {
				t.Fatalf("check %s: pass=%v reason=%q", name, c.Pass, c.Reason)
			}
			return
		}
	}
	t.Fatalf("check %s not found in %+v", name, report.Checks)
}

func TestRunPassesWithReachableEndpoints(t *testing.T) {
	proxy := newProxyServer(t)
	esplora := newStatusServer(t, http.StatusNotFound)
	lsp := newStatusServer(t, http.StatusOK)
	rpc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" || r.Header.Get("X-LNW-RPC-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","session":"session_ready"}`))
	}))
	defer rpc.Close()

	resolved, err := settings.FromMap(map[settings.Name]string{
		settings.Network: "signet",
		settings.Proxy:   wsURL(proxy),
		settings.Esplora: esplora.URL,
		settings.LSP:     lsp.URL,
	})
	if err != nil {
		t.Fatalf("build settings: %v", err)
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	report := Run(context.Background(), resolved, Input{
		RPCAddr:  strings.TrimPrefix(rpc.URL, "http://"),
		RPCToken: "tok",
		Timeout:  2 * time.Second,
		Now:      func() time.Time { return fixed },
	})
	if !report.Ready {
		t.Fatalf("expected ready report, failed checks: %+v", report.Failed())
	}
	if !report.CheckedAt.Equal(fixed) {
		t.Fatalf("unexpected checked_at %s", report.CheckedAt)
	}
	assertCheck(t, report, "proxy_handshake", true)
	assertCheck(t, report, "esplora_reachable", true)
	assertCheck(t, report, "lsp_reachable", true)
	assertCheck(t, report, "rpc_reachable", true)
	for _, c := range report.Checks {
		if c.Name == "storage_reachable" {
			t.Fatal("unset storage endpoint must not be checked")
		}
	}
}

func TestRunReportsFailures(t *testing.T) {
	broken := newStatusServer(t, http.StatusBadGateway)

	resolved, err := settings.FromMap(map[settings.Name]string{
		settings.Network: "mainnet",
		settings.Proxy:   "https://proxy.example",
		settings.Storage: broken.URL,
	})
	if err != nil {
		t.Fatalf("build settings: %v", err)
	}
	report := Run(context.Background(), resolved, Input{Timeout: time.Second})
	if report.Ready {
		t.Fatal("expected failing report")
	}
	assertCheck(t, report, "network_valid", false)
	assertCheck(t, report, "proxy_handshake", false)
	assertCheck(t, report, "storage_reachable", false)
	if got := len(report.Failed()); got != 3 {
		t.Fatalf("expected 3 failed checks, got %d", got)
	}
}

func TestRunSkipsEndpointsWhenSettingsFail(t *testing.T) {
	missing := &settings.MissingRequiredSettingError{Names: []settings.Name{settings.Proxy}}
	report := Run(context.Background(), settings.Resolved{}, Input{
		SettingsErr: missing,
		RPCAddr:     "not-an-address",
	})
	if report.Ready {
		t.Fatal("expected failing report")
	}
	assertCheck(t, report, "settings_resolved", false)
	assertCheck(t, report, "rpc_reachable", false)
	if len(report.Checks) != 2 {
		t.Fatalf("endpoint checks must be skipped, got %+v", report.Checks)
	}
	if !errors.Is(missing, settings.ErrMissingRequiredSetting) {
		t.Fatal("missing settings error must match its sentinel")
	}
}
