package worker

import (
	"context"
	"sync"

	"lightning-worker/go-backend/internal/capability"
)

type fakeRuntime struct {
	mu        sync.Mutex
	loaded    bool
	loadCalls int
	loadErr   error
	loadGate  chan struct{}
	loadStart chan struct{}

	staticCalls int
	newWallet   []capability.WalletConfig
	walletErr   error
	wallet      *fakeWallet
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{wallet: newFakeWallet()}
}

func (f *fakeRuntime) Load(ctx context.Context) error {
	f.mu.Lock()
	f.loadCalls++
	gate, start := f.loadGate, f.loadStart
	f.mu.Unlock()
	if start != nil {
		close(start)
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = true
	return nil
}

func (f *fakeRuntime) LoadCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadCalls
}

func (f *fakeRuntime) requireLoaded() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return capability.ErrNotLoaded
	}
	return nil
}

func (f *fakeRuntime) countStatic() error {
	f.mu.Lock()
	f.staticCalls++
	f.mu.Unlock()
	return f.requireLoaded()
}

func (f *fakeRuntime) ConvertBTCToSats(_ context.Context, btc float64) (uint64, error) {
	if err := f.requireLoaded(); err != nil {
		return 0, err
	}
	return uint64(btc * 100_000_000), nil
}

func (f *fakeRuntime) ConvertSatsToBTC(_ context.Context, sats uint64) (float64, error) {
	if err := f.countStatic(); err != nil {
		return 0, err
	}
	return float64(sats) / 100_000_000, nil
}

func (f *fakeRuntime) Version(context.Context) (string, error) {
	if err := f.countStatic(); err != nil {
		return "", err
	}
	return "1.2.3", nil
}

func (f *fakeRuntime) Logs(context.Context) ([]string, error) {
	return []string{"a"}, f.countStatic()
}

func (f *fakeRuntime) HasNodeManager(context.Context) (bool, error) {
	return false, f.countStatic()
}

func (f *fakeRuntime) RestoreMnemonic(context.Context, string, *string) error {
	return f.countStatic()
}

func (f *fakeRuntime) ImportJSON(context.Context, string) error { return f.countStatic() }

func (f *fakeRuntime) ExportJSON(context.Context, *string) (string, error) {
	return "{}", f.countStatic()
}

func (f *fakeRuntime) Infos(context.Context) ([]string, error) {
	return []string{"node_id=fake"}, f.countStatic()
}

func (f *fakeRuntime) EncryptMnemonic(context.Context, string, string) (string, error) {
	return "enc", f.countStatic()
}

func (f *fakeRuntime) DecryptMnemonic(context.Context, string, string) (string, error) {
	return "dec", f.countStatic()
}

func (f *fakeRuntime) DeviceLockRemainingSecs(context.Context, *string, *string, *string) (*uint64, error) {
	return nil, f.countStatic()
}

func (f *fakeRuntime) NewWallet(_ context.Context, cfg capability.WalletConfig) (capability.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newWallet = append(f.newWallet, cfg)
	if f.walletErr != nil {
		return nil, f.walletErr
	}
	return f.wallet, nil
}

func (f *fakeRuntime) NewWalletCalls() []capability.WalletConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capability.WalletConfig(nil), f.newWallet...)
}

type fakeWallet struct {
	mu    sync.Mutex
	calls []string

	invoice   *capability.Invoice
	channels  []capability.Channel
	network   string
	changeErr error
	stopErr   error
	startErr  error
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{network: "signet"}
}

func (w *fakeWallet) record(name string) {
	w.mu.Lock()
	w.calls = append(w.calls, name)
	w.mu.Unlock()
}

func (w *fakeWallet) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.calls...)
}

func (w *fakeWallet) Balance(context.Context) (*capability.Balance, error) {
	w.record("balance")
	return &capability.Balance{Lightning: 10, Confirmed: 20, Unconfirmed: 30, Closing: 40}, nil
}

func (w *fakeWallet) Activity(context.Context) ([]capability.ActivityItem, error) {
	w.record("activity")
	return nil, nil
}

func (w *fakeWallet) Network(context.Context) (string, error) {
	w.record("network")
	return w.network, nil
}

func (w *fakeWallet) BitcoinPrice(context.Context, *string) (float64, error) {
	w.record("price")
	return 1, nil
}

func (w *fakeWallet) Invoice(_ context.Context, bolt11 string) (*capability.Invoice, error) {
	w.record("invoice")
	if w.invoice == nil || w.invoice.Bolt11 == nil || *w.invoice.Bolt11 != bolt11 {
		return nil, nil
	}
	return w.invoice, nil
}

func (w *fakeWallet) InvoiceByHash(context.Context, string) (*capability.Invoice, error) {
	w.record("invoice_by_hash")
	return w.invoice, nil
}

func (w *fakeWallet) DecodeInvoice(context.Context, string, *string) (*capability.Invoice, error) {
	w.record("decode")
	return w.invoice, nil
}

func (w *fakeWallet) CreateBIP21(context.Context, *uint64, []string) (*capability.Bip21RawMaterials, error) {
	w.record("bip21")
	return &capability.Bip21RawMaterials{Address: "addr"}, nil
}

func (w *fakeWallet) CreateInvoice(context.Context, uint64, string, *uint32) (*capability.Invoice, error) {
	w.record("create_invoice")
	return w.invoice, nil
}

func (w *fakeWallet) PayInvoice(context.Context, string, *uint64, []string) (*capability.Invoice, error) {
	w.record("pay_invoice")
	return w.invoice, nil
}

func (w *fakeWallet) Keysend(context.Context, string, uint64, *string, []string) (*capability.Invoice, error) {
	w.record("keysend")
	return w.invoice, nil
}

func (w *fakeWallet) EstimateLNFee(context.Context, string, *uint64) (*uint64, error) {
	w.record("estimate_ln_fee")
	return nil, nil
}

func (w *fakeWallet) NewAddress(context.Context, []string) (*capability.Bip21RawMaterials, error) {
	w.record("new_address")
	return &capability.Bip21RawMaterials{Address: "addr"}, nil
}

func (w *fakeWallet) CheckAddress(context.Context, string) (*capability.Transaction, error) {
	w.record("check_address")
	return nil, nil
}

func (w *fakeWallet) SweepWallet(context.Context, string, []string, *uint64) (string, error) {
	w.record("sweep")
	return "txid", nil
}

func (w *fakeWallet) EstimateSweepChannelOpenFee(context.Context, *uint64) (uint64, error) {
	w.record("estimate_sweep")
	return 0, nil
}

func (w *fakeWallet) ListChannels(context.Context) ([]capability.Channel, error) {
	w.record("list_channels")
	return w.channels, nil
}

func (w *fakeWallet) OpenChannel(context.Context, *string, uint64) (*capability.Channel, error) {
	w.record("open_channel")
	return &capability.Channel{UserChanID: "c1"}, nil
}

func (w *fakeWallet) CloseChannel(context.Context, capability.CloseChannelRequest) error {
	w.record("close_channel")
	return nil
}

func (w *fakeWallet) ChannelClosure(context.Context, string) (*capability.ChannelClosure, error) {
	w.record("channel_closure")
	return nil, nil
}

func (w *fakeWallet) ListChannelClosures(context.Context) ([]capability.ChannelClosure, error) {
	w.record("list_channel_closures")
	return nil, nil
}

func (w *fakeWallet) ListPeers(context.Context) ([]capability.Peer, error) {
	w.record("list_peers")
	return nil, nil
}

func (w *fakeWallet) ConnectToPeer(context.Context, string) error {
	w.record("connect_to_peer")
	return nil
}

func (w *fakeWallet) DisconnectPeer(context.Context, string) error {
	w.record("disconnect_peer")
	return nil
}

func (w *fakeWallet) DeletePeer(context.Context, string) error {
	w.record("delete_peer")
	return nil
}

func (w *fakeWallet) ListNodes(context.Context) ([]string, error) {
	w.record("list_nodes")
	return []string{"node"}, nil
}

func (w *fakeWallet) ChangeLSP(context.Context, capability.LSPConfig) error {
	w.record("change_lsp")
	return w.changeErr
}

func (w *fakeWallet) ConfiguredLSP(context.Context) (*capability.LSPConfig, error) {
	w.record("configured_lsp")
	return &capability.LSPConfig{}, nil
}

func (w *fakeWallet) ResetOnchainTracker(context.Context) error {
	w.record("reset_onchain_tracker")
	return nil
}

func (w *fakeWallet) Start(context.Context) error {
	w.record("start")
	return w.startErr
}

func (w *fakeWallet) Stop(context.Context) error {
	w.record("stop")
	return w.stopErr
}

func (w *fakeWallet) DeleteAll(context.Context) error {
	w.record("delete_all")
	return nil
}

func (w *fakeWallet) ShowSeed(context.Context) (string, error) {
	w.record("show_seed")
	return "seed", nil
}

func (w *fakeWallet) ChangePassword(context.Context, *string, *string) error {
	w.record("change_password")
	return nil
}
