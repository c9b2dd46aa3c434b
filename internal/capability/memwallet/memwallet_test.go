package memwallet

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tyler-smith/go-bip39"

	"lightning-worker/go-backend/internal/capability"
	"lightning-worker/go-backend/internal/events"
)

const testPeer = "02aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func strPtr(v string) *string { return &v }

func newLoadedRuntime(t *testing.T, broadcaster *events.Broadcaster) *Runtime {
	t.Helper()
	rt := NewRuntime(Options{Events: broadcaster, Logger: slog.New(slog.DiscardHandler)})
	if err := rt.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return rt
}

func newTestWallet(t *testing.T, rt *Runtime, cfg capability.WalletConfig) *Wallet {
	t.Helper()
	if cfg.Network == "" {
		cfg.Network = "signet"
	}
	if cfg.Proxy == "" {
		cfg.Proxy = "wss://proxy.example"
	}
	w, err := rt.NewWallet(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new wallet: %v", err)
	}
	return w.(*Wallet)
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var modErr *capability.Error
	if !errors.As(err, &modErr) || modErr.Code != code {
		t.Fatalf("expected module error %s, got %v", code, err)
	}
}

func TestProbeFailsUntilLoaded(t *testing.T) {
	rt := NewRuntime(Options{})
	if _, err := rt.ConvertBTCToSats(context.Background(), 1); !errors.Is(err, capability.ErrNotLoaded) {
		t.Fatalf("expected not loaded, got %v", err)
	}
	if err := rt.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	sats, err := rt.ConvertBTCToSats(context.Background(), 1)
	if err != nil || sats != 100_000_000 {
		t.Fatalf("unexpected conversion %d err=%v", sats, err)
	}
	btc, err := rt.ConvertSatsToBTC(context.Background(), 2_100_000_000_000_000)
	if err != nil || btc != 21_000_000 {
		t.Fatalf("unexpected conversion %v err=%v", btc, err)
	}
}

func TestNewWalletGeneratesMnemonic(t *testing.T) {
	ctx := context.Background()
	rt := newLoadedRuntime(t, nil)
	if has, _ := rt.HasNodeManager(ctx); has {
		t.Fatal("expected no node manager before construction")
	}
	if infos, err := rt.Infos(ctx); err != nil || len(infos) != 0 {
		t.Fatalf("expected no infos before construction, got %v err=%v", infos, err)
	}
	w := newTestWallet(t, rt, capability.WalletConfig{})
	seed, err := w.ShowSeed(ctx)
	if err != nil || !bip39.IsMnemonicValid(seed) {
		t.Fatalf("expected valid generated mnemonic, got %q err=%v", seed, err)
	}
	if has, _ := rt.HasNodeManager(ctx); !has {
		t.Fatal("expected node manager after construction")
	}
	nodes, _ := w.ListNodes(ctx)
	if len(nodes) != 1 || !validPubkey(nodes[0]) {
		t.Fatalf("unexpected node ids: %v", nodes)
	}
	infos, err := rt.Infos(ctx)
	if err != nil || len(infos) == 0 || infos[0] != "node_id="+nodes[0] || infos[1] != "network=signet" {
		t.Fatalf("unexpected infos: %v err=%v", infos, err)
	}
}

func TestNewWalletRejectsInvalidMnemonicAndNetworkMismatch(t *testing.T) {
	ctx := context.Background()
	rt := newLoadedRuntime(t, nil)
	_, err := rt.NewWallet(ctx, capability.WalletConfig{Network: "signet", Proxy: "wss://p", Mnemonic: strPtr("not a mnemonic")})
	requireCode(t, err, capability.CodeInvalidMnemonic)

	w := newTestWallet(t, rt, capability.WalletConfig{})
	_, err = rt.NewWallet(ctx, capability.WalletConfig{Network: "signet", Proxy: "wss://p"})
	requireCode(t, err, capability.CodeDeviceLocked)

	if err := w.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	_, err = rt.NewWallet(ctx, capability.WalletConfig{Network: "testnet", Proxy: "wss://p"})
	requireCode(t, err, capability.CodeNetworkMismatch)
}

func TestInvoicePaymentFlow(t *testing.T) {
	ctx := context.Background()
	broadcaster := events.NewBroadcaster(16)
	rt := newLoadedRuntime(t, broadcaster)
	w := newTestWallet(t, rt, capability.WalletConfig{
		LSPURL:                  strPtr("https://lsp.example"),
		LNEventBroadcastChannel: strPtr("ln_events"),
	})
	_, live, cancel := broadcaster.Hub("ln_events").Subscribe(0)
	defer cancel()

	addr, err := w.NewAddress(ctx, []string{"deposit"})
	if err != nil {
		t.Fatalf("new address: %v", err)
	}
	if _, err := rt.Fund(addr.Address, 1_000_000); err != nil {
		t.Fatalf("fund: %v", err)
	}
	tx, err := w.CheckAddress(ctx, addr.Address)
	if err != nil || tx == nil || tx.Received != 1_000_000 {
		t.Fatalf("expected funding tx, got %+v err=%v", tx, err)
	}

	ch, err := w.OpenChannel(ctx, nil, 500_000)
	if err != nil {
		t.Fatalf("open channel: %v", err)
	}
	if ch.Outpoint == nil || ch.Size != 500_000 || ch.Balance != 495_000 {
		t.Fatalf("unexpected channel: %+v", ch)
	}

	inv, err := w.CreateInvoice(ctx, 1_000, "coffee", nil)
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if inv.Paid || !inv.Inbound || inv.Bolt11 == nil || !strings.HasPrefix(*inv.Bolt11, "lntbs1") {
		t.Fatalf("unexpected invoice: %+v", inv)
	}

	paid, err := w.PayInvoice(ctx, *inv.Bolt11, nil, []string{"self"})
	if err != nil {
		t.Fatalf("pay invoice: %v", err)
	}
	if !paid.Paid || paid.FeesPaid == nil || *paid.FeesPaid != 1 {
		t.Fatalf("unexpected payment: %+v", paid)
	}
	stored, err := w.InvoiceByHash(ctx, inv.PaymentHash)
	if err != nil || !stored.Paid || stored.Status != "Succeeded" {
		t.Fatalf("expected stored invoice paid, got %+v err=%v", stored, err)
	}

	seen := map[string]bool{}
	timeout := time.After(time.Second)
	for len(seen) < 3 {
		select {
		case ev := <-live:
			seen[ev.Kind] = true
		case <-timeout:
			t.Fatalf("missing events, saw %v", seen)
		}
	}
	for _, kind := range []string{events.KindChannelOpened, events.KindInvoicePaid, events.KindPaymentSent} {
		if !seen[kind] {
			t.Fatalf("expected %s event, saw %v", kind, seen)
		}
	}

	_, err = w.PayInvoice(ctx, *inv.Bolt11, nil, nil)
	requireCode(t, err, capability.CodeInvoiceInvalid)
}

func TestCreateInvoiceLSPErrors(t *testing.T) {
	ctx := context.Background()
	rt := newLoadedRuntime(t, nil)
	w := newTestWallet(t, rt, capability.WalletConfig{})
	_, err := w.CreateInvoice(ctx, 1000, "", nil)
	requireCode(t, err, capability.CodeLspGenericError)

	rt2 := newLoadedRuntime(t, nil)
	w2 := newTestWallet(t, rt2, capability.WalletConfig{LSPURL: strPtr("https://lsp.example")})
	_, err = w2.CreateInvoice(ctx, maxLSPInvoiceSats+1, "", nil)
	requireCode(t, err, capability.CodeLspAmountTooHighError)
}

func TestDecodeInvoiceChecksNetwork(t *testing.T) {
	ctx := context.Background()
	rt := newLoadedRuntime(t, nil)
	w := newTestWallet(t, rt, capability.WalletConfig{LSPURL: strPtr("https://lsp.example")})
	inv, err := w.CreateInvoice(ctx, 2_100, "", nil)
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	decoded, err := w.DecodeInvoice(ctx, *inv.Bolt11, nil)
	if err != nil || decoded.PaymentHash != inv.PaymentHash || *decoded.AmountSats != 2_100 {
		t.Fatalf("unexpected decode: %+v err=%v", decoded, err)
	}
	_, err = w.DecodeInvoice(ctx, *inv.Bolt11, strPtr("bitcoin"))
	requireCode(t, err, capability.CodeNetworkMismatch)
	_, err = w.DecodeInvoice(ctx, "lntbs1garbage", nil)
	requireCode(t, err, capability.CodeInvoiceInvalid)
}

func TestConnectToPeerParsesConnectionString(t *testing.T) {
	ctx := context.Background()
	rt := newLoadedRuntime(t, nil)
	w := newTestWallet(t, rt, capability.WalletConfig{})

	if err := w.ConnectToPeer(ctx, testPeer+"@127.0.0.1:9735"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := w.ConnectToPeer(ctx, testPeer+"@127.0.0.1"); err == nil {
		t.Fatal("expected error for missing port")
	} else {
		requireCode(t, err, capability.CodePeerConnectionError)
	}
	peers, err := w.ListPeers(ctx)
	if err != nil || len(peers) != 1 {
		t.Fatalf("unexpected peers %+v err=%v", peers, err)
	}
	if peers[0].ConnectionString == nil || *peers[0].ConnectionString != testPeer+"@127.0.0.1:9735" || !peers[0].IsConnected {
		t.Fatalf("unexpected peer: %+v", peers[0])
	}
	if err := w.DisconnectPeer(ctx, testPeer); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := w.DeletePeer(ctx, testPeer); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if peers, _ := w.ListPeers(ctx); len(peers) != 0 {
		t.Fatalf("expected peer deleted, got %+v", peers)
	}
}

func TestChangeLSPAppliesOnRestart(t *testing.T) {
	ctx := context.Background()
	rt := newLoadedRuntime(t, nil)
	w := newTestWallet(t, rt, capability.WalletConfig{LSPURL: strPtr("https://old.example")})

	if err := w.ChangeLSP(ctx, capability.LSPConfig{URL: strPtr("https://new.example")}); err != nil {
		t.Fatalf("change lsp: %v", err)
	}
	cfg, _ := w.ConfiguredLSP(ctx)
	if cfg.URL == nil || *cfg.URL != "https://old.example" {
		t.Fatalf("lsp change must wait for restart, got %+v", cfg)
	}
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := w.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	cfg, _ = w.ConfiguredLSP(ctx)
	if cfg.URL == nil || *cfg.URL != "https://new.example" {
		t.Fatalf("expected new lsp after restart, got %+v", cfg)
	}
}

func TestCloseChannelRecordsClosure(t *testing.T) {
	ctx := context.Background()
	rt := newLoadedRuntime(t, nil)
	w := newTestWallet(t, rt, capability.WalletConfig{LSPURL: strPtr("https://lsp.example")})
	addr, _ := w.NewAddress(ctx, nil)
	if _, err := rt.Fund(addr.Address, 200_000); err != nil {
		t.Fatalf("fund: %v", err)
	}
	ch, err := w.OpenChannel(ctx, nil, 100_000)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	err = w.CloseChannel(ctx, capability.CloseChannelRequest{Outpoint: *ch.Outpoint, Force: true, Abandon: true})
	requireCode(t, err, capability.CodeInvalidArgument)

	if err := w.CloseChannel(ctx, capability.CloseChannelRequest{Outpoint: *ch.Outpoint}); err != nil {
		t.Fatalf("close: %v", err)
	}
	closure, err := w.ChannelClosure(ctx, ch.UserChanID)
	if err != nil {
		t.Fatalf("closure: %v", err)
	}
	if closure.ChannelFundingTxo == nil || *closure.ChannelFundingTxo != *ch.Outpoint || closure.Reason != "CooperativeClosure" {
		t.Fatalf("unexpected closure: %+v", closure)
	}
	balance, _ := w.Balance(ctx)
	if balance.Lightning != 0 || balance.Confirmed != 200_000-channelOpenVBytes {
		t.Fatalf("unexpected balance after close: %+v", balance)
	}
}

func TestMnemonicEncryptionAndExport(t *testing.T) {
	ctx := context.Background()
	rt := newLoadedRuntime(t, nil)
	w := newTestWallet(t, rt, capability.WalletConfig{Password: strPtr("pw")})
	seed, _ := w.ShowSeed(ctx)

	enc, err := rt.EncryptMnemonic(ctx, seed, "secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := rt.DecryptMnemonic(ctx, enc, "wrong"); err == nil {
		t.Fatal("expected wrong password to fail")
	} else {
		requireCode(t, err, capability.CodeIncorrectPassword)
	}
	plain, err := rt.DecryptMnemonic(ctx, enc, "secret")
	if err != nil || plain != seed {
		t.Fatalf("decrypt roundtrip failed: %q err=%v", plain, err)
	}

	exported, err := rt.ExportJSON(ctx, nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	sealed, err := rt.ExportJSON(ctx, strPtr("pw"))
	if err != nil || !strings.HasPrefix(sealed, exportedPrefix) || strings.Contains(sealed, seed) {
		t.Fatalf("expected encrypted export, err=%v", err)
	}
	if err := rt.ImportJSON(ctx, exported); err == nil {
		t.Fatal("import must be refused while the wallet runs")
	}
	if err := w.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := rt.ImportJSON(ctx, exported); err != nil {
		t.Fatalf("import: %v", err)
	}
	requireCode(t, rt.ImportJSON(ctx, sealed), capability.CodeInvalidArgument)

	_, err = rt.NewWallet(ctx, capability.WalletConfig{Network: "signet", Proxy: "wss://p"})
	requireCode(t, err, capability.CodeIncorrectPassword)
	again, err := rt.NewWallet(ctx, capability.WalletConfig{Network: "signet", Proxy: "wss://p", Password: strPtr("pw")})
	if err != nil {
		t.Fatalf("reopen imported wallet: %v", err)
	}
	if got, _ := again.ShowSeed(ctx); got != seed {
		t.Fatal("imported wallet has a different seed")
	}
}

func TestDeviceLockRemaining(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	rt := NewRuntime(Options{Now: func() time.Time { return now }})
	_ = rt.Load(ctx)
	if secs, err := rt.DeviceLockRemainingSecs(ctx, nil, nil, nil); err != nil || secs != nil {
		t.Fatalf("expected no lock without a wallet, got %v err=%v", secs, err)
	}
	newTestWallet(t, rt, capability.WalletConfig{})
	now = now.Add(15 * time.Second)
	secs, err := rt.DeviceLockRemainingSecs(ctx, nil, nil, nil)
	if err != nil || secs == nil || *secs != 45 {
		t.Fatalf("expected 45s remaining, got %v err=%v", secs, err)
	}
}

func TestDeleteAllInvalidatesWallet(t *testing.T) {
	ctx := context.Background()
	rt := newLoadedRuntime(t, nil)
	w := newTestWallet(t, rt, capability.WalletConfig{})
	if err := w.DeleteAll(ctx); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if has, _ := rt.HasNodeManager(ctx); has {
		t.Fatal("expected node manager removed")
	}
	_, err := w.Balance(ctx)
	requireCode(t, err, capability.CodeNotRunning)
}
