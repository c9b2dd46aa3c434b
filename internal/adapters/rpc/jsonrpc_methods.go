package rpc

import (
	"context"
	"errors"
	"strings"

	"lightning-worker/go-backend/internal/capability"
	"lightning-worker/go-backend/internal/worker"
)

type rpcMethod struct {
	maxArgs int
	call    func(ctx context.Context, p *paramReader) (any, error)
}

type okResult struct {
	Status string `json:"status"`
}

// call waits for the bridge result unless reading params already failed.
func call[T any](ctx context.Context, p *paramReader, start func() *worker.Pending[T]) (any, error) {
	if p.err != nil {
		return nil, p.err
	}
	v, err := start().Await(ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func exec(ctx context.Context, p *paramReader, start func() *worker.Pending[struct{}]) (any, error) {
	if _, err := call(ctx, p, start); err != nil {
		return nil, err
	}
	return okResult{Status: "ok"}, nil
}

// methodTable maps every bridge operation to its RPC method. Params are
// positional in the order of the bridge method's arguments.
func (s *Server) methodTable() map[string]rpcMethod {
	b := s.bridge
	methods := map[worker.Op]rpcMethod{
		worker.OpLoadModule: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return exec(ctx, p, b.LoadModule)
		}},
		worker.OpState: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.State)
		}},
		worker.OpSetup: {3, s.setup},
		worker.OpStop: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return exec(ctx, p, b.Stop)
		}},
		worker.OpChangeLSPAndRestart: {1, func(ctx context.Context, p *paramReader) (any, error) {
			url := p.string(0)
			return exec(ctx, p, func() *worker.Pending[struct{}] { return b.ChangeLSPAndRestart(url) })
		}},

		worker.OpGetVersion: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.Version)
		}},
		worker.OpGetLogs: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.Logs)
		}},
		worker.OpConvertBTCToSats: {1, func(ctx context.Context, p *paramReader) (any, error) {
			btc := p.float64(0)
			return call(ctx, p, func() *worker.Pending[uint64] { return b.ConvertBTCToSats(btc) })
		}},
		worker.OpConvertSatsToBTC: {1, func(ctx context.Context, p *paramReader) (any, error) {
			sats := p.uint64(0)
			return call(ctx, p, func() *worker.Pending[float64] { return b.ConvertSatsToBTC(sats) })
		}},
		worker.OpHasNodeManager: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.HasNodeManager)
		}},
		worker.OpRestoreMnemonic: {2, func(ctx context.Context, p *paramReader) (any, error) {
			mnemonic, password := p.string(0), p.optString(1)
			return exec(ctx, p, func() *worker.Pending[struct{}] { return b.RestoreMnemonic(mnemonic, password) })
		}},
		worker.OpImportJSON: {1, func(ctx context.Context, p *paramReader) (any, error) {
			state := p.string(0)
			return exec(ctx, p, func() *worker.Pending[struct{}] { return b.ImportJSON(state) })
		}},
		worker.OpExportJSON: {1, func(ctx context.Context, p *paramReader) (any, error) {
			password := p.optString(0)
			return call(ctx, p, func() *worker.Pending[string] { return b.ExportJSON(password) })
		}},
		worker.OpGetInfos: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.Infos)
		}},
		worker.OpEncryptMnemonic: {2, func(ctx context.Context, p *paramReader) (any, error) {
			mnemonic, password := p.string(0), p.string(1)
			return call(ctx, p, func() *worker.Pending[string] { return b.EncryptMnemonic(mnemonic, password) })
		}},
		worker.OpDecryptMnemonic: {2, func(ctx context.Context, p *paramReader) (any, error) {
			encrypted, password := p.string(0), p.string(1)
			return call(ctx, p, func() *worker.Pending[string] { return b.DecryptMnemonic(encrypted, password) })
		}},
		worker.OpDeviceLockRemainingSecs: {3, func(ctx context.Context, p *paramReader) (any, error) {
			password, authURL, storageURL := p.optString(0), p.optString(1), p.optString(2)
			return call(ctx, p, func() *worker.Pending[*uint64] {
				return b.DeviceLockRemainingSecs(password, authURL, storageURL)
			})
		}},

		worker.OpGetBalance: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.Balance)
		}},
		worker.OpGetActivity: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.Activity)
		}},
		worker.OpGetNetwork: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.Network)
		}},
		worker.OpGetBitcoinPrice: {1, func(ctx context.Context, p *paramReader) (any, error) {
			fiat := p.optString(0)
			return call(ctx, p, func() *worker.Pending[float64] { return b.BitcoinPrice(fiat) })
		}},
		worker.OpGetInvoice: {1, func(ctx context.Context, p *paramReader) (any, error) {
			bolt11 := p.string(0)
			return call(ctx, p, func() *worker.Pending[*capability.Invoice] { return b.Invoice(bolt11) })
		}},
		worker.OpGetInvoiceByHash: {1, func(ctx context.Context, p *paramReader) (any, error) {
			hash := p.string(0)
			return call(ctx, p, func() *worker.Pending[*capability.Invoice] { return b.InvoiceByHash(hash) })
		}},
		worker.OpDecodeInvoice: {2, func(ctx context.Context, p *paramReader) (any, error) {
			invoice, network := p.string(0), p.optString(1)
			return call(ctx, p, func() *worker.Pending[*capability.Invoice] { return b.DecodeInvoice(invoice, network) })
		}},
		worker.OpCreateBIP21: {2, func(ctx context.Context, p *paramReader) (any, error) {
			amount, labels := p.optUint64(0), p.strings(1)
			return call(ctx, p, func() *worker.Pending[*capability.Bip21RawMaterials] { return b.CreateBIP21(amount, labels) })
		}},
		worker.OpCreateInvoice: {3, func(ctx context.Context, p *paramReader) (any, error) {
			amount, label, expiry := p.uint64(0), p.optString(1), p.optUint32(2)
			return call(ctx, p, func() *worker.Pending[*capability.Invoice] {
				return b.CreateInvoice(amount, deref(label), expiry)
			})
		}},
		worker.OpPayInvoice: {3, func(ctx context.Context, p *paramReader) (any, error) {
			invoice, amount, labels := p.string(0), p.optUint64(1), p.strings(2)
			return call(ctx, p, func() *worker.Pending[*capability.Invoice] { return b.PayInvoice(invoice, amount, labels) })
		}},
		worker.OpKeysend: {4, func(ctx context.Context, p *paramReader) (any, error) {
			node, amount, message, labels := p.string(0), p.uint64(1), p.optString(2), p.strings(3)
			return call(ctx, p, func() *worker.Pending[*capability.Invoice] { return b.Keysend(node, amount, message, labels) })
		}},
		worker.OpEstimateLNFee: {2, func(ctx context.Context, p *paramReader) (any, error) {
			invoice, amount := p.string(0), p.optUint64(1)
			return call(ctx, p, func() *worker.Pending[*uint64] { return b.EstimateLNFee(invoice, amount) })
		}},
		worker.OpGetNewAddress: {1, func(ctx context.Context, p *paramReader) (any, error) {
			labels := p.strings(0)
			return call(ctx, p, func() *worker.Pending[*capability.Bip21RawMaterials] { return b.NewAddress(labels) })
		}},
		worker.OpCheckAddress: {1, func(ctx context.Context, p *paramReader) (any, error) {
			address := p.string(0)
			return call(ctx, p, func() *worker.Pending[*capability.Transaction] { return b.CheckAddress(address) })
		}},
		worker.OpSweepWallet: {3, func(ctx context.Context, p *paramReader) (any, error) {
			dest, labels, feeRate := p.string(0), p.strings(1), p.optUint64(2)
			return call(ctx, p, func() *worker.Pending[string] { return b.SweepWallet(dest, labels, feeRate) })
		}},
		worker.OpEstimateSweepChannelOpenFee: {1, func(ctx context.Context, p *paramReader) (any, error) {
			feeRate := p.optUint64(0)
			return call(ctx, p, func() *worker.Pending[uint64] { return b.EstimateSweepChannelOpenFee(feeRate) })
		}},
		worker.OpListChannels: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.ListChannels)
		}},
		worker.OpChannelOutpointsShort: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.ChannelOutpointsShort)
		}},
		worker.OpOpenChannel: {2, func(ctx context.Context, p *paramReader) (any, error) {
			pubkey, amount := p.optString(0), p.uint64(1)
			return call(ctx, p, func() *worker.Pending[*capability.Channel] { return b.OpenChannel(pubkey, amount) })
		}},
		worker.OpCloseChannel: {1, func(ctx context.Context, p *paramReader) (any, error) {
			var req capability.CloseChannelRequest
			p.object(0, &req, true)
			if p.err == nil && strings.TrimSpace(req.Outpoint) == "" {
				p.err = errInvalidParams
			}
			return exec(ctx, p, func() *worker.Pending[struct{}] { return b.CloseChannel(req) })
		}},
		worker.OpGetChannelClosure: {1, func(ctx context.Context, p *paramReader) (any, error) {
			id := p.string(0)
			return call(ctx, p, func() *worker.Pending[*capability.ChannelClosure] { return b.ChannelClosure(id) })
		}},
		worker.OpListChannelClosures: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.ListChannelClosures)
		}},
		worker.OpListPeers: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.ListPeers)
		}},
		worker.OpConnectToPeer: {1, func(ctx context.Context, p *paramReader) (any, error) {
			conn := p.string(0)
			return exec(ctx, p, func() *worker.Pending[struct{}] { return b.ConnectToPeer(conn) })
		}},
		worker.OpDisconnectPeer: {1, func(ctx context.Context, p *paramReader) (any, error) {
			pubkey := p.string(0)
			return exec(ctx, p, func() *worker.Pending[struct{}] { return b.DisconnectPeer(pubkey) })
		}},
		worker.OpDeletePeer: {1, func(ctx context.Context, p *paramReader) (any, error) {
			pubkey := p.string(0)
			return exec(ctx, p, func() *worker.Pending[struct{}] { return b.DeletePeer(pubkey) })
		}},
		worker.OpListNodes: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.ListNodes)
		}},
		worker.OpChangeLSP: {1, func(ctx context.Context, p *paramReader) (any, error) {
			var cfg capability.LSPConfig
			p.object(0, &cfg, true)
			return exec(ctx, p, func() *worker.Pending[struct{}] { return b.ChangeLSP(cfg) })
		}},
		worker.OpGetConfiguredLSP: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.ConfiguredLSP)
		}},
		worker.OpResetOnchainTracker: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return exec(ctx, p, b.ResetOnchainTracker)
		}},
		worker.OpStart: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return exec(ctx, p, b.Start)
		}},
		worker.OpDeleteAll: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return exec(ctx, p, b.DeleteAll)
		}},
		worker.OpShowSeed: {0, func(ctx context.Context, p *paramReader) (any, error) {
			return call(ctx, p, b.ShowSeed)
		}},
		worker.OpChangePassword: {2, func(ctx context.Context, p *paramReader) (any, error) {
			oldPassword, newPassword := p.optString(0), p.optString(1)
			return exec(ctx, p, func() *worker.Pending[struct{}] { return b.ChangePassword(oldPassword, newPassword) })
		}},
	}
	out := make(map[string]rpcMethod, len(methods))
	for op, m := range methods {
		out[string(op)] = m
	}
	return out
}

var errNoSettingsSource = errors.New("rpc server has no settings source for setup")

// setup resolves settings at call time so overrides written by walletctl
// since the daemon started are honored. Params: [mnemonic, password, flags].
func (s *Server) setup(ctx context.Context, p *paramReader) (any, error) {
	mnemonic, password := p.optString(0), p.optString(1)
	var flags worker.SetupFlags
	p.object(2, &flags, false)
	if p.err != nil {
		return nil, p.err
	}
	if s.settings == nil {
		return nil, errNoSettingsSource
	}
	resolved, err := s.settings(ctx)
	if err != nil {
		return nil, err
	}
	return exec(ctx, p, func() *worker.Pending[struct{}] {
		return s.bridge.Setup(resolved, mnemonic, password, flags)
	})
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
