package worker

import (
	"context"
	"strings"

	"lightning-worker/go-backend/internal/capability"
	"lightning-worker/go-backend/internal/settings"
)

// Setup constructs the wallet session from resolved settings. It may be
// called once per bridge.
func (b *Bridge) Setup(resolved settings.Resolved, mnemonic, password *string, flags SetupFlags) *Pending[struct{}] {
	return inline(b, OpSetup, func(ctx context.Context, s *Session) (struct{}, error) {
		if s.constructed {
			return struct{}{}, ErrSessionAlreadyConstructed
		}
		if err := s.requireModule(); err != nil {
			return struct{}{}, err
		}
		logSetup(b.logger, resolved, flags)
		return struct{}{}, s.construct(ctx, b.runtime, walletConfig(resolved, mnemonic, password, flags), resolved)
	})
}

// Stop stops the wallet. The session cannot be used afterwards.
func (b *Bridge) Stop() *Pending[struct{}] {
	return inline(b, OpStop, func(ctx context.Context, s *Session) (struct{}, error) {
		return struct{}{}, s.stop(ctx)
	})
}

// ChangeLSPAndRestart changes the LSP URL, then stops and starts the nodes so
// the change takes effect. Stop and start are skipped if the change fails.
func (b *Bridge) ChangeLSPAndRestart(lspURL string) *Pending[struct{}] {
	return inline(b, OpChangeLSPAndRestart, func(ctx context.Context, s *Session) (struct{}, error) {
		return struct{}{}, s.changeLSPAndRestart(ctx, lspURL)
	})
}

// Module-scoped operations.

func (b *Bridge) Version() *Pending[string] {
	return moduleCall(b, OpGetVersion, func(ctx context.Context, rt capability.Runtime) (string, error) {
		return rt.Version(ctx)
	})
}

func (b *Bridge) Logs() *Pending[[]string] {
	return moduleCall(b, OpGetLogs, func(ctx context.Context, rt capability.Runtime) ([]string, error) {
		logs, err := rt.Logs(ctx)
		return cloneStrings(logs), err
	})
}

func (b *Bridge) ConvertBTCToSats(btc float64) *Pending[uint64] {
	return moduleCall(b, OpConvertBTCToSats, func(ctx context.Context, rt capability.Runtime) (uint64, error) {
		return rt.ConvertBTCToSats(ctx, btc)
	})
}

func (b *Bridge) ConvertSatsToBTC(sats uint64) *Pending[float64] {
	return moduleCall(b, OpConvertSatsToBTC, func(ctx context.Context, rt capability.Runtime) (float64, error) {
		return rt.ConvertSatsToBTC(ctx, sats)
	})
}

// HasNodeManager reports whether a saved wallet exists without starting it.
func (b *Bridge) HasNodeManager() *Pending[bool] {
	return moduleCall(b, OpHasNodeManager, func(ctx context.Context, rt capability.Runtime) (bool, error) {
		return rt.HasNodeManager(ctx)
	})
}

func (b *Bridge) RestoreMnemonic(mnemonic string, password *string) *Pending[struct{}] {
	return moduleCall(b, OpRestoreMnemonic, func(ctx context.Context, rt capability.Runtime) (struct{}, error) {
		return struct{}{}, rt.RestoreMnemonic(ctx, mnemonic, password)
	})
}

func (b *Bridge) ImportJSON(state string) *Pending[struct{}] {
	return moduleCall(b, OpImportJSON, func(ctx context.Context, rt capability.Runtime) (struct{}, error) {
		return struct{}{}, rt.ImportJSON(ctx, state)
	})
}

func (b *Bridge) ExportJSON(password *string) *Pending[string] {
	return moduleCall(b, OpExportJSON, func(ctx context.Context, rt capability.Runtime) (string, error) {
		return rt.ExportJSON(ctx, password)
	})
}

func (b *Bridge) Infos() *Pending[[]string] {
	return moduleCall(b, OpGetInfos, func(ctx context.Context, rt capability.Runtime) ([]string, error) {
		return rt.Infos(ctx)
	})
}

func (b *Bridge) EncryptMnemonic(mnemonic, password string) *Pending[string] {
	return moduleCall(b, OpEncryptMnemonic, func(ctx context.Context, rt capability.Runtime) (string, error) {
		return rt.EncryptMnemonic(ctx, mnemonic, password)
	})
}

func (b *Bridge) DecryptMnemonic(encrypted, password string) *Pending[string] {
	return moduleCall(b, OpDecryptMnemonic, func(ctx context.Context, rt capability.Runtime) (string, error) {
		return rt.DecryptMnemonic(ctx, encrypted, password)
	})
}

func (b *Bridge) DeviceLockRemainingSecs(password, authURL, storageURL *string) *Pending[*uint64] {
	return moduleCall(b, OpDeviceLockRemainingSecs, func(ctx context.Context, rt capability.Runtime) (*uint64, error) {
		secs, err := rt.DeviceLockRemainingSecs(ctx, password, authURL, storageURL)
		return clonePtr(secs), err
	})
}

// Session operations.

func (b *Bridge) Balance() *Pending[*capability.Balance] {
	return walletCall(b, OpGetBalance, func(ctx context.Context, w capability.Wallet) (*capability.Balance, error) {
		balance, err := w.Balance(ctx)
		return copyBalance(balance), err
	})
}

func (b *Bridge) Activity() *Pending[[]capability.ActivityItem] {
	return walletCall(b, OpGetActivity, func(ctx context.Context, w capability.Wallet) ([]capability.ActivityItem, error) {
		items, err := w.Activity(ctx)
		if err != nil {
			return nil, err
		}
		return copyEach(items, copyActivityItem), nil
	})
}

// Network returns the wallet network, "signet" when the module reports none.
func (b *Bridge) Network() *Pending[string] {
	return walletCall(b, OpGetNetwork, func(ctx context.Context, w capability.Wallet) (string, error) {
		network, err := w.Network(ctx)
		if err != nil {
			return "", err
		}
		if network == "" {
			return "signet", nil
		}
		return network, nil
	})
}

func (b *Bridge) BitcoinPrice(fiat *string) *Pending[float64] {
	return walletCall(b, OpGetBitcoinPrice, func(ctx context.Context, w capability.Wallet) (float64, error) {
		return w.BitcoinPrice(ctx, fiat)
	})
}

// Invoice looks up an invoice by bolt11. A nil result means not found.
func (b *Bridge) Invoice(bolt11 string) *Pending[*capability.Invoice] {
	return walletCall(b, OpGetInvoice, func(ctx context.Context, w capability.Wallet) (*capability.Invoice, error) {
		inv, err := w.Invoice(ctx, bolt11)
		return copyInvoice(inv), err
	})
}

func (b *Bridge) InvoiceByHash(hash string) *Pending[*capability.Invoice] {
	return walletCall(b, OpGetInvoiceByHash, func(ctx context.Context, w capability.Wallet) (*capability.Invoice, error) {
		inv, err := w.InvoiceByHash(ctx, hash)
		return copyInvoice(inv), err
	})
}

func (b *Bridge) DecodeInvoice(invoice string, network *string) *Pending[*capability.Invoice] {
	return walletCall(b, OpDecodeInvoice, func(ctx context.Context, w capability.Wallet) (*capability.Invoice, error) {
		inv, err := w.DecodeInvoice(ctx, invoice, network)
		return copyInvoice(inv), err
	})
}

func (b *Bridge) CreateBIP21(amountSats *uint64, labels []string) *Pending[*capability.Bip21RawMaterials] {
	labels = cloneStrings(labels)
	return walletCall(b, OpCreateBIP21, func(ctx context.Context, w capability.Wallet) (*capability.Bip21RawMaterials, error) {
		raw, err := w.CreateBIP21(ctx, amountSats, labels)
		return copyBip21(raw), err
	})
}

func (b *Bridge) CreateInvoice(amountSats uint64, label string, expiryDeltaSecs *uint32) *Pending[*capability.Invoice] {
	return walletCall(b, OpCreateInvoice, func(ctx context.Context, w capability.Wallet) (*capability.Invoice, error) {
		inv, err := w.CreateInvoice(ctx, amountSats, label, expiryDeltaSecs)
		return copyInvoice(inv), err
	})
}

func (b *Bridge) PayInvoice(invoice string, amountSats *uint64, labels []string) *Pending[*capability.Invoice] {
	labels = cloneStrings(labels)
	return walletCall(b, OpPayInvoice, func(ctx context.Context, w capability.Wallet) (*capability.Invoice, error) {
		inv, err := w.PayInvoice(ctx, invoice, amountSats, labels)
		return copyInvoice(inv), err
	})
}

func (b *Bridge) Keysend(toNode string, amountSats uint64, message *string, labels []string) *Pending[*capability.Invoice] {
	labels = cloneStrings(labels)
	return walletCall(b, OpKeysend, func(ctx context.Context, w capability.Wallet) (*capability.Invoice, error) {
		inv, err := w.Keysend(ctx, toNode, amountSats, message, labels)
		return copyInvoice(inv), err
	})
}

func (b *Bridge) EstimateLNFee(invoice string, amountSats *uint64) *Pending[*uint64] {
	return walletCall(b, OpEstimateLNFee, func(ctx context.Context, w capability.Wallet) (*uint64, error) {
		fee, err := w.EstimateLNFee(ctx, invoice, amountSats)
		return clonePtr(fee), err
	})
}

func (b *Bridge) NewAddress(labels []string) *Pending[*capability.Bip21RawMaterials] {
	labels = cloneStrings(labels)
	return walletCall(b, OpGetNewAddress, func(ctx context.Context, w capability.Wallet) (*capability.Bip21RawMaterials, error) {
		raw, err := w.NewAddress(ctx, labels)
		return copyBip21(raw), err
	})
}

func (b *Bridge) CheckAddress(address string) *Pending[*capability.Transaction] {
	return walletCall(b, OpCheckAddress, func(ctx context.Context, w capability.Wallet) (*capability.Transaction, error) {
		tx, err := w.CheckAddress(ctx, address)
		return copyTransaction(tx), err
	})
}

func (b *Bridge) SweepWallet(destination string, labels []string, feeRate *uint64) *Pending[string] {
	labels = cloneStrings(labels)
	return walletCall(b, OpSweepWallet, func(ctx context.Context, w capability.Wallet) (string, error) {
		return w.SweepWallet(ctx, destination, labels, feeRate)
	})
}

func (b *Bridge) EstimateSweepChannelOpenFee(feeRate *uint64) *Pending[uint64] {
	return walletCall(b, OpEstimateSweepChannelOpenFee, func(ctx context.Context, w capability.Wallet) (uint64, error) {
		return w.EstimateSweepChannelOpenFee(ctx, feeRate)
	})
}

func (b *Bridge) ListChannels() *Pending[[]capability.Channel] {
	return walletCall(b, OpListChannels, func(ctx context.Context, w capability.Wallet) ([]capability.Channel, error) {
		channels, err := w.ListChannels(ctx)
		if err != nil {
			return nil, err
		}
		return copyEach(channels, copyChannel), nil
	})
}

// ChannelOutpointsShort joins channel outpoints as "txid[:20]:vout" with
// commas. Channels without an outpoint are skipped.
func (b *Bridge) ChannelOutpointsShort() *Pending[string] {
	return walletCall(b, OpChannelOutpointsShort, func(ctx context.Context, w capability.Wallet) (string, error) {
		channels, err := w.ListChannels(ctx)
		if err != nil {
			return "", err
		}
		return shortOutpoints(channels), nil
	})
}

func shortOutpoints(channels []capability.Channel) string {
	parts := make([]string, 0, len(channels))
	for _, ch := range channels {
		if ch.Outpoint == nil {
			continue
		}
		txid, vout, _ := strings.Cut(*ch.Outpoint, ":")
		if len(txid) > 20 {
			txid = txid[:20]
		}
		parts = append(parts, txid+":"+vout)
	}
	return strings.Join(parts, ",")
}

func (b *Bridge) OpenChannel(toPubkey *string, amountSats uint64) *Pending[*capability.Channel] {
	return walletCall(b, OpOpenChannel, func(ctx context.Context, w capability.Wallet) (*capability.Channel, error) {
		ch, err := w.OpenChannel(ctx, toPubkey, amountSats)
		if err != nil || ch == nil {
			return nil, err
		}
		out := copyChannel(*ch)
		return &out, nil
	})
}

func (b *Bridge) CloseChannel(req capability.CloseChannelRequest) *Pending[struct{}] {
	return walletExec(b, OpCloseChannel, func(ctx context.Context, w capability.Wallet) error {
		return w.CloseChannel(ctx, req)
	})
}

func (b *Bridge) ChannelClosure(userChannelID string) *Pending[*capability.ChannelClosure] {
	return walletCall(b, OpGetChannelClosure, func(ctx context.Context, w capability.Wallet) (*capability.ChannelClosure, error) {
		closure, err := w.ChannelClosure(ctx, userChannelID)
		if err != nil || closure == nil {
			return nil, err
		}
		out := copyChannelClosure(*closure)
		return &out, nil
	})
}

func (b *Bridge) ListChannelClosures() *Pending[[]capability.ChannelClosure] {
	return walletCall(b, OpListChannelClosures, func(ctx context.Context, w capability.Wallet) ([]capability.ChannelClosure, error) {
		closures, err := w.ListChannelClosures(ctx)
		if err != nil {
			return nil, err
		}
		return copyEach(closures, copyChannelClosure), nil
	})
}

func (b *Bridge) ListPeers() *Pending[[]capability.Peer] {
	return walletCall(b, OpListPeers, func(ctx context.Context, w capability.Wallet) ([]capability.Peer, error) {
		peers, err := w.ListPeers(ctx)
		if err != nil {
			return nil, err
		}
		return copyEach(peers, copyPeer), nil
	})
}

func (b *Bridge) ConnectToPeer(connectionString string) *Pending[struct{}] {
	return walletExec(b, OpConnectToPeer, func(ctx context.Context, w capability.Wallet) error {
		return w.ConnectToPeer(ctx, connectionString)
	})
}

func (b *Bridge) DisconnectPeer(pubkey string) *Pending[struct{}] {
	return walletExec(b, OpDisconnectPeer, func(ctx context.Context, w capability.Wallet) error {
		return w.DisconnectPeer(ctx, pubkey)
	})
}

func (b *Bridge) DeletePeer(pubkey string) *Pending[struct{}] {
	return walletExec(b, OpDeletePeer, func(ctx context.Context, w capability.Wallet) error {
		return w.DeletePeer(ctx, pubkey)
	})
}

func (b *Bridge) ListNodes() *Pending[[]string] {
	return walletCall(b, OpListNodes, func(ctx context.Context, w capability.Wallet) ([]string, error) {
		nodes, err := w.ListNodes(ctx)
		if err != nil {
			return nil, err
		}
		return cloneStrings(nodes), nil
	})
}

// ChangeLSP only records the new LSP; it takes effect after a restart.
func (b *Bridge) ChangeLSP(cfg capability.LSPConfig) *Pending[struct{}] {
	cfg = *copyLSPConfig(&cfg)
	return walletExec(b, OpChangeLSP, func(ctx context.Context, w capability.Wallet) error {
		return w.ChangeLSP(ctx, cfg)
	})
}

func (b *Bridge) ConfiguredLSP() *Pending[*capability.LSPConfig] {
	return walletCall(b, OpGetConfiguredLSP, func(ctx context.Context, w capability.Wallet) (*capability.LSPConfig, error) {
		cfg, err := w.ConfiguredLSP(ctx)
		return copyLSPConfig(cfg), err
	})
}

func (b *Bridge) ResetOnchainTracker() *Pending[struct{}] {
	return walletExec(b, OpResetOnchainTracker, func(ctx context.Context, w capability.Wallet) error {
		return w.ResetOnchainTracker(ctx)
	})
}

// Start restarts the wallet's nodes. It is not needed after Setup.
func (b *Bridge) Start() *Pending[struct{}] {
	return walletExec(b, OpStart, func(ctx context.Context, w capability.Wallet) error {
		return w.Start(ctx)
	})
}

func (b *Bridge) DeleteAll() *Pending[struct{}] {
	return walletExec(b, OpDeleteAll, func(ctx context.Context, w capability.Wallet) error {
		return w.DeleteAll(ctx)
	})
}

func (b *Bridge) ShowSeed() *Pending[string] {
	return walletCall(b, OpShowSeed, func(ctx context.Context, w capability.Wallet) (string, error) {
		return w.ShowSeed(ctx)
	})
}

func (b *Bridge) ChangePassword(oldPassword, newPassword *string) *Pending[struct{}] {
	return walletExec(b, OpChangePassword, func(ctx context.Context, w capability.Wallet) error {
		return w.ChangePassword(ctx, oldPassword, newPassword)
	})
}
