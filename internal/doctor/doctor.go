// Package doctor checks whether the endpoints a wallet session depends on are
// usable before (or while) the daemon runs.
package doctor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"lightning-worker/go-backend/internal/settings"
)

const defaultTimeout = 5 * time.Second

var knownNetworks = map[string]struct{}{
	"bitcoin": {},
	"testnet": {},
	"signet":  {},
	"regtest": {},
}

type Input struct {
	// SettingsErr is the resolution error, if any. Endpoint checks are skipped
	// when it is set.
	SettingsErr error
	RPCAddr     string
	RPCToken    string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Dialer      *websocket.Dialer
	Now         func() time.Time
}

type Check struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

type Report struct {
	Ready     bool      `json:"ready"`
	Checks    []Check   `json:"checks"`
	CheckedAt time.Time `json:"checked_at"`
}

// Failed returns the checks that did not pass.
func (r Report) Failed() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Pass {
			out = append(out, c)
		}
	}
	return out
}

// Run probes the resolved endpoints. Unset optional endpoints produce no
// check.
func Run(ctx context.Context, resolved settings.Resolved, in Input) Report {
	if in.Timeout <= 0 {
		in.Timeout = defaultTimeout
	}
	if in.HTTPClient == nil {
		in.HTTPClient = &http.Client{Timeout: in.Timeout}
	}
	if in.Dialer == nil {
		in.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: in.Timeout,
		}
	}
	now := time.Now
	if in.Now != nil {
		now = in.Now
	}
	report := Report{
		Ready:     true,
		Checks:    make([]Check, 0, 8),
		CheckedAt: now().UTC(),
	}
	add := func(name string, err error) {
		c := Check{Name: name, Pass: err == nil}
		if err != nil {
			c.Reason = err.Error()
			report.Ready = false
		}
		report.Checks = append(report.Checks, c)
	}

	if in.SettingsErr != nil {
		add("settings_resolved", in.SettingsErr)
	} else {
		add("settings_resolved", nil)
		add("network_valid", validateNetwork(resolved.Network()))
		add("proxy_handshake", probeWebsocket(ctx, in.Dialer, resolved.Proxy()))
		for _, name := range []settings.Name{settings.Esplora, settings.Storage, settings.LSP} {
			if endpoint, ok := resolved.Value(name); ok && endpoint != "" {
				add(string(name)+"_reachable", probeHTTP(ctx, in.HTTPClient, endpoint))
			}
		}
	}

	if strings.TrimSpace(in.RPCAddr) != "" {
		add("rpc_reachable", probeRPC(ctx, in.HTTPClient, in.RPCAddr, in.RPCToken))
	}
	return report
}

func validateNetwork(network string) error {
	if _, ok := knownNetworks[network]; !ok {
		return fmt.Errorf("unknown network %q", network)
	}
	return nil
}

func probeWebsocket(ctx context.Context, dialer *websocket.Dialer, endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("proxy url is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("proxy url must use ws or wss, got %q", u.Scheme)
	}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("proxy handshake failed: http %d", resp.StatusCode)
		}
		return fmt.Errorf("proxy handshake failed: %w", err)
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

// probeHTTP treats any response below 500 as reachable; many API roots answer
// 404 to a bare GET.
func probeHTTP(ctx context.Context, client *http.Client, endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("endpoint %q is not an http url", endpoint)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return unwrapURLError(err)
	}
	resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return nil
}

func probeRPC(ctx context.Context, client *http.Client, addr, token string) error {
	base := strings.TrimSpace(addr)
	if !strings.Contains(base, "://") {
		if _, _, err := net.SplitHostPort(base); err != nil {
			return fmt.Errorf("rpc address %q is invalid: %w", addr, err)
		}
		base = "http://" + base
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/healthz", nil)
	if err != nil {
		return err
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("X-LNW-RPC-Token", token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return unwrapURLError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz returned http %d", resp.StatusCode)
	}
	var body struct {
		Status  string `json:"status"`
		Session string `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode healthz: %w", err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("daemon status %q", body.Status)
	}
	return nil
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
