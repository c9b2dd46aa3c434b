// Package capability describes the wallet capability module the worker
// hosts. The module is opaque: the worker only loads it, constructs one
// wallet from it and forwards operations.
package capability

import "context"

// Runtime is the module-level surface. Everything except NewWallet is usable
// as soon as the module is loaded, before any wallet exists.
type Runtime interface {
	// Load performs the expensive one-time module initialization.
	Load(ctx context.Context) error

	ConvertBTCToSats(ctx context.Context, btc float64) (uint64, error)
	ConvertSatsToBTC(ctx context.Context, sats uint64) (float64, error)
	Version(ctx context.Context) (string, error)
	Logs(ctx context.Context) ([]string, error)
	// HasNodeManager reports whether a saved wallet exists in storage.
	HasNodeManager(ctx context.Context) (bool, error)
	RestoreMnemonic(ctx context.Context, mnemonic string, password *string) error
	ImportJSON(ctx context.Context, state string) error
	ExportJSON(ctx context.Context, password *string) (string, error)
	// Infos describes the stored node manager, one line per fact. Empty when
	// nothing is stored.
	Infos(ctx context.Context) ([]string, error)
	EncryptMnemonic(ctx context.Context, mnemonic, password string) (string, error)
	DecryptMnemonic(ctx context.Context, encrypted, password string) (string, error)
	DeviceLockRemainingSecs(ctx context.Context, password, authURL, storageURL *string) (*uint64, error)

	NewWallet(ctx context.Context, cfg WalletConfig) (Wallet, error)
}

// Wallet is a constructed wallet instance. Returned records may be shared
// with module internals; callers copy them before handing them out.
type Wallet interface {
	Balance(ctx context.Context) (*Balance, error)
	Activity(ctx context.Context) ([]ActivityItem, error)
	Network(ctx context.Context) (string, error)
	BitcoinPrice(ctx context.Context, fiat *string) (float64, error)

	Invoice(ctx context.Context, bolt11 string) (*Invoice, error)
	InvoiceByHash(ctx context.Context, hash string) (*Invoice, error)
	DecodeInvoice(ctx context.Context, invoice string, network *string) (*Invoice, error)
	CreateBIP21(ctx context.Context, amountSats *uint64, labels []string) (*Bip21RawMaterials, error)
	CreateInvoice(ctx context.Context, amountSats uint64, label string, expiryDeltaSecs *uint32) (*Invoice, error)
	PayInvoice(ctx context.Context, invoice string, amountSats *uint64, labels []string) (*Invoice, error)
	Keysend(ctx context.Context, toNode string, amountSats uint64, message *string, labels []string) (*Invoice, error)
	EstimateLNFee(ctx context.Context, invoice string, amountSats *uint64) (*uint64, error)

	NewAddress(ctx context.Context, labels []string) (*Bip21RawMaterials, error)
	CheckAddress(ctx context.Context, address string) (*Transaction, error)
	SweepWallet(ctx context.Context, destination string, labels []string, feeRate *uint64) (string, error)
	EstimateSweepChannelOpenFee(ctx context.Context, feeRate *uint64) (uint64, error)

	ListChannels(ctx context.Context) ([]Channel, error)
	OpenChannel(ctx context.Context, toPubkey *string, amountSats uint64) (*Channel, error)
	CloseChannel(ctx context.Context, req CloseChannelRequest) error
	ChannelClosure(ctx context.Context, userChannelID string) (*ChannelClosure, error)
	ListChannelClosures(ctx context.Context) ([]ChannelClosure, error)

	ListPeers(ctx context.Context) ([]Peer, error)
	ConnectToPeer(ctx context.Context, connectionString string) error
	DisconnectPeer(ctx context.Context, pubkey string) error
	DeletePeer(ctx context.Context, pubkey string) error
	ListNodes(ctx context.Context) ([]string, error)

	ChangeLSP(ctx context.Context, cfg LSPConfig) error
	ConfiguredLSP(ctx context.Context) (*LSPConfig, error)
	ResetOnchainTracker(ctx context.Context) error

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	DeleteAll(ctx context.Context) error
	ShowSeed(ctx context.Context) (string, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword *string) error
}

// WalletConfig is the full argument list for wallet construction. Nil
// pointers mean "not provided" and let the module apply its own default.
type WalletConfig struct {
	Password *string
	Mnemonic *string

	Network string
	Proxy   string

	Esplora              *string
	RGS                  *string
	LSPURL               *string
	LSPSConnectionString *string
	LSPSToken            *string
	Auth                 *string
	Subscriptions        *string
	Storage              *string
	Scorer               *string
	BlindAuth            *string
	Hermes               *string

	LNEventBroadcastChannel *string

	DoNotConnectPeers *bool
	SkipDeviceLock    *bool
	SafeMode          *bool
	SkipHodlInvoices  *bool
	DoNotBumpCloseTx  *bool
}

type CloseChannelRequest struct {
	Outpoint     string  `json:"outpoint"`
	Force        bool    `json:"force"`
	Abandon      bool    `json:"abandon"`
	Address      *string `json:"address,omitempty"`
	Network      *string `json:"network,omitempty"`
	FeeRatePerKw *uint32 `json:"fee_rate_per_kw,omitempty"`
}
