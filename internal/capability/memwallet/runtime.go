// Package memwallet is an in-process capability module. It keeps the node
// manager in memory and simulates lightning and on-chain activity
// deterministically, which makes it suitable for development daemons and
// tests. It does not talk to any network.
package memwallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/tyler-smith/go-bip39"

	"lightning-worker/go-backend/internal/capability"
	"lightning-worker/go-backend/internal/events"
	"lightning-worker/go-backend/internal/securestore"
)

const (
	Version = "0.3.0"

	satsPerBTC     = 100_000_000
	maxLogLines    = 500
	deviceLockTTL  = 60 * time.Second
	mnemonicBits   = 128
	exportedPrefix = "LNWENC1"
)

type Options struct {
	Events *events.Broadcaster
	Logger *slog.Logger
	Now    func() time.Time
}

// Runtime is the module. It holds at most one node manager and at most one
// active wallet.
type Runtime struct {
	mu     sync.Mutex
	loaded bool
	now    func() time.Time
	logger *slog.Logger
	events *events.Broadcaster

	logs      []string
	store     *nodeManager
	active    *Wallet
	lockUntil time.Time
}

func NewRuntime(opts Options) *Runtime {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		now:    now,
		logger: logger.With("component", "memwallet"),
		events: opts.Events,
	}
}

var _ capability.Runtime = (*Runtime)(nil)

// logf appends to the module log returned by Logs. Callers hold r.mu.
func (r *Runtime) logf(format string, args ...any) {
	line := fmt.Sprintf("%s %s", r.now().UTC().Format(time.RFC3339), fmt.Sprintf(format, args...))
	r.logs = append(r.logs, line)
	if len(r.logs) > maxLogLines {
		r.logs = append([]string(nil), r.logs[len(r.logs)-maxLogLines:]...)
	}
}

func (r *Runtime) requireLoadedLocked() error {
	if !r.loaded {
		return capability.ErrNotLoaded
	}
	return nil
}

func (r *Runtime) Load(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = true
	r.logf("module loaded, version %s", Version)
	r.logger.Debug("memwallet module loaded")
	return nil
}

func (r *Runtime) ConvertBTCToSats(_ context.Context, btc float64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireLoadedLocked(); err != nil {
		return 0, err
	}
	if btc < 0 || math.IsNaN(btc) || math.IsInf(btc, 0) || btc*satsPerBTC > math.MaxUint64/2 {
		return 0, capability.NewError(capability.CodeInvalidArgument, "btc amount out of range")
	}
	return uint64(math.Round(btc * satsPerBTC)), nil
}

func (r *Runtime) ConvertSatsToBTC(_ context.Context, sats uint64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireLoadedLocked(); err != nil {
		return 0, err
	}
	return float64(sats) / satsPerBTC, nil
}

func (r *Runtime) Version(context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireLoadedLocked(); err != nil {
		return "", err
	}
	return Version, nil
}

func (r *Runtime) Logs(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireLoadedLocked(); err != nil {
		return nil, err
	}
	return append([]string(nil), r.logs...), nil
}

func (r *Runtime) HasNodeManager(context.Context) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireLoadedLocked(); err != nil {
		return false, err
	}
	return r.store != nil, nil
}

// RestoreMnemonic replaces stored state with a fresh node manager for the
// mnemonic. Lightning data is not restored. The wallet must be stopped.
func (r *Runtime) RestoreMnemonic(_ context.Context, mnemonic string, password *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireLoadedLocked(); err != nil {
		return err
	}
	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if !bip39.IsMnemonicValid(mnemonic) {
		return capability.NewError(capability.CodeInvalidMnemonic, "mnemonic failed validation")
	}
	if r.active != nil && r.active.running {
		return capability.NewError(capability.CodeAlreadyRunning, "stop the wallet before restoring")
	}
	network := ""
	if r.store != nil {
		network = r.store.Network
	}
	r.store = newNodeManager(mnemonic, network, password)
	r.active = nil
	r.logf("restored node manager from mnemonic")
	return nil
}

func (r *Runtime) ImportJSON(_ context.Context, state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireLoadedLocked(); err != nil {
		return err
	}
	if strings.HasPrefix(state, exportedPrefix) {
		return capability.NewError(capability.CodeInvalidArgument, "encrypted export cannot be imported without its password")
	}
	var imported nodeManager
	if err := json.Unmarshal([]byte(state), &imported); err != nil {
		return capability.NewError(capability.CodeInvalidArgument, "invalid state document: "+err.Error())
	}
	if imported.Version != stateVersion || !bip39.IsMnemonicValid(imported.Mnemonic) {
		return capability.NewError(capability.CodeInvalidArgument, "unsupported state document")
	}
	if r.active != nil && r.active.running {
		return capability.NewError(capability.CodeAlreadyRunning, "stop the wallet before importing")
	}
	imported.normalize()
	r.store = &imported
	r.active = nil
	r.logf("imported node manager %s", imported.NodeID)
	return nil
}

// ExportJSON returns the node manager document, encrypted when a password is
// given.
func (r *Runtime) ExportJSON(_ context.Context, password *string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireLoadedLocked(); err != nil {
		return "", err
	}
	if r.store == nil {
		return "", capability.NewError(capability.CodeNotFound, "no node manager to export")
	}
	raw, err := json.Marshal(r.store)
	if err != nil {
		return "", err
	}
	if password == nil || *password == "" {
		return string(raw), nil
	}
	enc, err := securestore.EncryptString(*password, string(raw))
	if err != nil {
		return "", err
	}
	return exportedPrefix + ":" + enc, nil
}

func (r *Runtime) Infos(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireLoadedLocked(); err != nil {
		return nil, err
	}
	if r.store == nil {
		return []string{}, nil
	}
	n := r.store
	return []string{
		"node_id=" + n.NodeID,
		"network=" + n.Network,
		fmt.Sprintf("channels=%d", len(n.Channels)),
		fmt.Sprintf("peers=%d", len(n.Peers)),
		fmt.Sprintf("invoices=%d", len(n.Invoices)),
		fmt.Sprintf("onchain_sats=%d", n.Onchain.Confirmed+n.Onchain.Unconfirmed),
		fmt.Sprintf("running=%t", r.active != nil && r.active.running),
	}, nil
}

func (r *Runtime) EncryptMnemonic(_ context.Context, mnemonic, password string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireLoadedLocked(); err != nil {
		return "", err
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return "", capability.NewError(capability.CodeInvalidMnemonic, "mnemonic failed validation")
	}
	if password == "" {
		return "", capability.NewError(capability.CodeIncorrectPassword, "password is required")
	}
	return securestore.EncryptString(password, mnemonic)
}

func (r *Runtime) DecryptMnemonic(_ context.Context, encrypted, password string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireLoadedLocked(); err != nil {
		return "", err
	}
	plain, err := securestore.DecryptString(password, encrypted)
	if errors.Is(err, securestore.ErrAuthFailed) {
		return "", capability.NewError(capability.CodeIncorrectPassword, "cannot decrypt mnemonic")
	}
	if err != nil {
		return "", capability.NewError(capability.CodeInvalidArgument, err.Error())
	}
	return plain, nil
}

// DeviceLockRemainingSecs reports how long another device would have to wait
// for the lock held by the running wallet. Nil means unlocked.
func (r *Runtime) DeviceLockRemainingSecs(_ context.Context, password, _, _ *string) (*uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireLoadedLocked(); err != nil {
		return nil, err
	}
	if r.store != nil && !r.store.passwordMatches(password) {
		return nil, capability.NewError(capability.CodeIncorrectPassword, "password does not match")
	}
	if r.active == nil || !r.active.running {
		return nil, nil
	}
	remaining := r.lockUntil.Sub(r.now())
	if remaining <= 0 {
		return nil, nil
	}
	secs := uint64(math.Ceil(remaining.Seconds()))
	return &secs, nil
}

func (r *Runtime) NewWallet(_ context.Context, cfg capability.WalletConfig) (capability.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.requireLoadedLocked(); err != nil {
		return nil, err
	}
	if !validNetwork(cfg.Network) {
		return nil, capability.NewError(capability.CodeInvalidArgument, "unknown network "+cfg.Network)
	}
	if strings.TrimSpace(cfg.Proxy) == "" {
		return nil, capability.NewError(capability.CodeInvalidArgument, "proxy is required")
	}
	if r.active != nil && r.active.running {
		return nil, capability.NewError(capability.CodeDeviceLocked, "wallet already running on this device")
	}

	if r.store == nil {
		mnemonic, err := newMnemonic(cfg.Mnemonic)
		if err != nil {
			return nil, err
		}
		r.store = newNodeManager(mnemonic, cfg.Network, cfg.Password)
		r.logf("created node manager %s on %s", r.store.NodeID, cfg.Network)
	} else {
		if r.store.Network == "" {
			r.store.Network = cfg.Network
		}
		if r.store.Network != cfg.Network {
			return nil, capability.NewError(capability.CodeNetworkMismatch,
				fmt.Sprintf("stored wallet is on %s, requested %s", r.store.Network, cfg.Network))
		}
		if !r.store.passwordMatches(cfg.Password) {
			return nil, capability.NewError(capability.CodeIncorrectPassword, "password does not match")
		}
		if cfg.Mnemonic != nil && strings.Join(strings.Fields(*cfg.Mnemonic), " ") != r.store.Mnemonic {
			return nil, capability.NewError(capability.CodeInvalidMnemonic, "mnemonic does not match stored wallet")
		}
	}

	if lsp := lspFromConfig(cfg); lsp != nil {
		r.store.LSP = *lsp
	}
	w := &Wallet{rt: r, cfg: cfg, running: true}
	if cfg.LNEventBroadcastChannel != nil {
		w.hub = r.events.Hub(*cfg.LNEventBroadcastChannel)
	}
	r.active = w
	r.lockUntil = r.now().Add(deviceLockTTL)
	r.logf("wallet started, node %s", r.store.NodeID)
	return w, nil
}

func newMnemonic(provided *string) (string, error) {
	if provided != nil && strings.TrimSpace(*provided) != "" {
		mnemonic := strings.Join(strings.Fields(*provided), " ")
		if !bip39.IsMnemonicValid(mnemonic) {
			return "", capability.NewError(capability.CodeInvalidMnemonic, "mnemonic failed validation")
		}
		return mnemonic, nil
	}
	entropy, err := bip39.NewEntropy(mnemonicBits)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

func lspFromConfig(cfg capability.WalletConfig) *capability.LSPConfig {
	switch {
	case cfg.LSPURL != nil:
		return &capability.LSPConfig{URL: cfg.LSPURL}
	case cfg.LSPSConnectionString != nil && cfg.LSPSToken != nil:
		return &capability.LSPConfig{ConnectionString: cfg.LSPSConnectionString, Token: cfg.LSPSToken}
	default:
		return nil
	}
}

// Fund credits an address of the stored wallet with a confirmed on-chain
// deposit. It stands in for the chain in development setups.
func (r *Runtime) Fund(address string, sats uint64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store == nil {
		return "", capability.NewError(capability.CodeNotFound, "no node manager")
	}
	labels, ok := r.store.Addresses[address]
	if !ok {
		return "", capability.NewError(capability.CodeNotFound, "address does not belong to this wallet")
	}
	now := uint64(r.now().Unix())
	txid := txidHex()
	r.store.Onchain.Confirmed += sats
	r.store.Deposits[address] = txid
	r.store.Onchain.Txs = append(r.store.Onchain.Txs, capability.Transaction{
		Txid:             txid,
		Received:         sats,
		ConfirmationTime: &now,
		Labels:           append([]string(nil), labels...),
	})
	r.logf("funded %s with %d sats in %s", address, sats, txid)
	return txid, nil
}
