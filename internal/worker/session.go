package worker

import (
	"context"
	"fmt"
	"log/slog"

	"lightning-worker/go-backend/internal/capability"
	"lightning-worker/go-backend/internal/settings"
)

type State int

const (
	Uninitialized State = iota
	ModuleReady
	SessionReady
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case ModuleReady:
		return "module_ready"
	case SessionReady:
		return "session_ready"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for candidate := Uninitialized; candidate <= Failed; candidate++ {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// SetupFlags are the optional feature switches passed at construction.
type SetupFlags struct {
	SafeMode         *bool `json:"safe_mode,omitempty"`
	ShouldZapHodl    *bool `json:"should_zap_hodl,omitempty"`
	DoNotBumpCloseTx *bool `json:"do_not_bump_close_tx,omitempty"`
}

// StateInfo is the bridge-local view of the session lifecycle.
type StateInfo struct {
	State State  `json:"state"`
	Cause string `json:"cause,omitempty"`
}

// Session is the lifecycle of the single wallet. It is only touched by the
// bridge actor goroutine.
type Session struct {
	state       State
	cause       error
	constructed bool
	wallet      capability.Wallet
	settings    settings.Resolved
}

func (s *Session) State() State { return s.state }

// moduleLoaded marks the module usable. It only moves Uninitialized forward.
func (s *Session) moduleLoaded() {
	if s.state == Uninitialized {
		s.state = ModuleReady
	}
}

func (s *Session) fail(cause error) {
	s.state = Failed
	s.cause = cause
}

// requireModule gates module-scoped operations: any state after load.
func (s *Session) requireModule() error {
	switch s.state {
	case Uninitialized:
		return ErrNotReady
	case Failed:
		return &SessionFailedError{Cause: s.cause}
	default:
		return nil
	}
}

// requireWallet gates session operations.
func (s *Session) requireWallet() (capability.Wallet, error) {
	switch s.state {
	case SessionReady:
		return s.wallet, nil
	case Stopped:
		return nil, ErrSessionStopped
	case Failed:
		return nil, &SessionFailedError{Cause: s.cause}
	default:
		return nil, ErrNotReady
	}
}

func (s *Session) info() StateInfo {
	out := StateInfo{State: s.state}
	if s.cause != nil {
		out.Cause = s.cause.Error()
	}
	return out
}

// construct performs the single NewWallet call.
func (s *Session) construct(ctx context.Context, rt capability.Runtime, cfg capability.WalletConfig, resolved settings.Resolved) error {
	if s.constructed {
		return ErrSessionAlreadyConstructed
	}
	if err := s.requireModule(); err != nil {
		return err
	}
	if _, taken := constructedModules.LoadOrStore(rt, struct{}{}); taken {
		return ErrSessionAlreadyConstructed
	}
	s.constructed = true
	wallet, err := rt.NewWallet(ctx, cfg)
	if err != nil {
		s.fail(err)
		return err
	}
	s.wallet = wallet
	s.settings = resolved
	s.state = SessionReady
	return nil
}

// stop is the terminal lifecycle stop.
func (s *Session) stop(ctx context.Context) error {
	w, err := s.requireWallet()
	if err != nil {
		return err
	}
	if err := w.Stop(ctx); err != nil {
		return err
	}
	s.state = Stopped
	return nil
}

// changeLSPAndRestart applies a new LSP URL and restarts the module's nodes.
// A failed change leaves everything untouched; a failed restart fails the
// session.
func (s *Session) changeLSPAndRestart(ctx context.Context, lspURL string) error {
	w, err := s.requireWallet()
	if err != nil {
		return err
	}
	if err := w.ChangeLSP(ctx, capability.LSPConfig{URL: &lspURL}); err != nil {
		return err
	}
	if err := w.Stop(ctx); err != nil {
		s.fail(err)
		return err
	}
	if err := w.Start(ctx); err != nil {
		s.fail(err)
		return err
	}
	return nil
}

// walletConfig maps resolved settings and setup arguments onto the module's
// constructor arguments.
func walletConfig(resolved settings.Resolved, mnemonic, password *string, flags SetupFlags) capability.WalletConfig {
	cfg := capability.WalletConfig{
		Password:                nonEmpty(password),
		Mnemonic:                mnemonic,
		Network:                 resolved.Network(),
		Proxy:                   resolved.Proxy(),
		Esplora:                 resolved.Optional(settings.Esplora),
		RGS:                     resolved.Optional(settings.RGS),
		Auth:                    resolved.Optional(settings.Auth),
		Subscriptions:           resolved.Optional(settings.Subscriptions),
		Storage:                 resolved.Optional(settings.Storage),
		Scorer:                  resolved.Optional(settings.Scorer),
		BlindAuth:               resolved.Optional(settings.BlindAuth),
		Hermes:                  resolved.Optional(settings.Hermes),
		LNEventBroadcastChannel: resolved.Optional(settings.LNEventBroadcastChannel),
		DoNotBumpCloseTx:        flags.DoNotBumpCloseTx,
	}
	cfg.LSPURL, cfg.LSPSConnectionString, cfg.LSPSToken = selectLSP(resolved)
	if flags.SafeMode != nil && *flags.SafeMode {
		cfg.SafeMode = flags.SafeMode
	}
	// Hodl invoices are skipped by default; zapping them means not skipping.
	if flags.ShouldZapHodl != nil && *flags.ShouldZapHodl {
		skip := false
		cfg.SkipHodlInvoices = &skip
	}
	return cfg
}

// selectLSP returns either the LSP URL or the LSPS pair, never both. The pair
// is only used when no URL is set and both halves are present.
func selectLSP(resolved settings.Resolved) (url, connectionString, token *string) {
	url = nonEmpty(resolved.Optional(settings.LSP))
	conn := nonEmpty(resolved.Optional(settings.LSPSConnectionString))
	tok := nonEmpty(resolved.Optional(settings.LSPSToken))
	if url == nil && conn != nil && tok != nil {
		return nil, conn, tok
	}
	return url, nil, nil
}

func nonEmpty(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}

func logSetup(logger *slog.Logger, resolved settings.Resolved, flags SetupFlags) {
	attrs := make([]any, 0, 2*len(settings.Entries())+6)
	for _, e := range settings.Entries() {
		v, ok := resolved.Value(e.Name)
		if !ok {
			attrs = append(attrs, string(e.Name), nil)
			continue
		}
		attrs = append(attrs, string(e.Name), v)
	}
	attrs = append(attrs,
		"safe_mode", flags.SafeMode != nil && *flags.SafeMode,
		"zap_hodl", flags.ShouldZapHodl != nil && *flags.ShouldZapHodl,
		"do_not_bump_close_tx", flags.DoNotBumpCloseTx,
	)
	logger.Info("wallet setup", attrs...)
}
