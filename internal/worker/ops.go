package worker

// Op names one bridge operation. The string form is also the RPC method name.
type Op string

const (
	OpLoadModule              Op = "load_module"
	OpGetVersion              Op = "get_version"
	OpGetLogs                 Op = "get_logs"
	OpConvertBTCToSats        Op = "convert_btc_to_sats"
	OpConvertSatsToBTC        Op = "convert_sats_to_btc"
	OpHasNodeManager          Op = "has_node_manager"
	OpRestoreMnemonic         Op = "restore_mnemonic"
	OpImportJSON              Op = "import_json"
	OpExportJSON              Op = "export_json"
	OpGetInfos                Op = "get_infos"
	OpEncryptMnemonic         Op = "encrypt_mnemonic"
	OpDecryptMnemonic         Op = "decrypt_mnemonic"
	OpDeviceLockRemainingSecs Op = "get_device_lock_remaining_secs"

	OpSetup                       Op = "setup"
	OpGetBalance                  Op = "get_balance"
	OpGetActivity                 Op = "get_activity"
	OpGetNetwork                  Op = "get_network"
	OpGetBitcoinPrice             Op = "get_bitcoin_price"
	OpGetInvoice                  Op = "get_invoice"
	OpGetInvoiceByHash            Op = "get_invoice_by_hash"
	OpDecodeInvoice               Op = "decode_invoice"
	OpCreateBIP21                 Op = "create_bip21"
	OpCreateInvoice               Op = "create_invoice"
	OpPayInvoice                  Op = "pay_invoice"
	OpKeysend                     Op = "keysend"
	OpEstimateLNFee               Op = "estimate_ln_fee"
	OpGetNewAddress               Op = "get_new_address"
	OpCheckAddress                Op = "check_address"
	OpSweepWallet                 Op = "sweep_wallet"
	OpEstimateSweepChannelOpenFee Op = "estimate_sweep_channel_open_fee"
	OpListChannels                Op = "list_channels"
	OpChannelOutpointsShort       Op = "get_channel_outpoints_short_string"
	OpOpenChannel                 Op = "open_channel"
	OpCloseChannel                Op = "close_channel"
	OpGetChannelClosure           Op = "get_channel_closure"
	OpListChannelClosures         Op = "list_channel_closures"
	OpListPeers                   Op = "list_peers"
	OpConnectToPeer               Op = "connect_to_peer"
	OpDisconnectPeer              Op = "disconnect_peer"
	OpDeletePeer                  Op = "delete_peer"
	OpListNodes                   Op = "list_nodes"
	OpChangeLSP                   Op = "change_lsp"
	OpGetConfiguredLSP            Op = "get_configured_lsp"
	OpChangeLSPAndRestart         Op = "change_lsp_and_restart"
	OpResetOnchainTracker         Op = "reset_onchain_tracker"
	OpStart                       Op = "start"
	OpStop                        Op = "stop"
	OpDeleteAll                   Op = "delete_all"
	OpShowSeed                    Op = "show_seed"
	OpChangePassword              Op = "change_password"
	OpState                       Op = "state"
)

// Ops lists every operation the bridge accepts.
func Ops() []Op {
	return []Op{
		OpLoadModule, OpGetVersion, OpGetLogs, OpConvertBTCToSats, OpConvertSatsToBTC,
		OpHasNodeManager, OpRestoreMnemonic, OpImportJSON, OpExportJSON, OpGetInfos,
		OpEncryptMnemonic, OpDecryptMnemonic, OpDeviceLockRemainingSecs,
		OpSetup, OpGetBalance, OpGetActivity, OpGetNetwork, OpGetBitcoinPrice, OpGetInvoice,
		OpGetInvoiceByHash, OpDecodeInvoice, OpCreateBIP21, OpCreateInvoice, OpPayInvoice,
		OpKeysend, OpEstimateLNFee, OpGetNewAddress, OpCheckAddress, OpSweepWallet,
		OpEstimateSweepChannelOpenFee, OpListChannels, OpChannelOutpointsShort, OpOpenChannel,
		OpCloseChannel, OpGetChannelClosure, OpListChannelClosures, OpListPeers, OpConnectToPeer,
		OpDisconnectPeer, OpDeletePeer, OpListNodes, OpChangeLSP, OpGetConfiguredLSP,
		OpChangeLSPAndRestart, OpResetOnchainTracker, OpStart, OpStop, OpDeleteAll, OpShowSeed,
		OpChangePassword, OpState,
	}
}
