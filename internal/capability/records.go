package capability

// Invoice is a lightning payment request as tracked by the module. Boolean
// fields are always serialized so false and true are both observable.
type Invoice struct {
	AmountSats           *uint64  `json:"amount_sats,omitempty"`
	Bolt11               *string  `json:"bolt11,omitempty"`
	Description          *string  `json:"description,omitempty"`
	Expire               uint64   `json:"expire"`
	Expired              bool     `json:"expired"`
	FeesPaid             *uint64  `json:"fees_paid,omitempty"`
	Inbound              bool     `json:"inbound"`
	Labels               []string `json:"labels"`
	LastUpdated          uint64   `json:"last_updated"`
	Paid                 bool     `json:"paid"`
	PayeePubkey          *string  `json:"payee_pubkey,omitempty"`
	PaymentHash          string   `json:"payment_hash"`
	PotentialHodlInvoice bool     `json:"potential_hodl_invoice"`
	Preimage             *string  `json:"preimage,omitempty"`
	PrivacyLevel         string   `json:"privacy_level"`
	Status               string   `json:"status"`
}

type Balance struct {
	Lightning   uint64 `json:"lightning"`
	Confirmed   uint64 `json:"confirmed"`
	Unconfirmed uint64 `json:"unconfirmed"`
	Closing     uint64 `json:"closing"`
}

type ChannelClosure struct {
	ChannelID         *string `json:"channel_id,omitempty"`
	NodeID            *string `json:"node_id,omitempty"`
	Reason            string  `json:"reason"`
	Timestamp         uint64  `json:"timestamp"`
	ChannelFundingTxo *string `json:"channel_funding_txo,omitempty"`
}

type Bip21RawMaterials struct {
	Address   string   `json:"address"`
	Invoice   *string  `json:"invoice,omitempty"`
	BTCAmount *string  `json:"btc_amount,omitempty"`
	Labels    []string `json:"labels"`
}

type Channel struct {
	UserChanID    string  `json:"user_chan_id"`
	Balance       uint64  `json:"balance"`
	Size          uint64  `json:"size"`
	Reserve       uint64  `json:"reserve"`
	Inbound       uint64  `json:"inbound"`
	Outpoint      *string `json:"outpoint,omitempty"`
	Peer          string  `json:"peer"`
	Confirmations uint32  `json:"confirmations"`
	IsOutbound    bool    `json:"is_outbound"`
	IsUsable      bool    `json:"is_usable"`
}

type Peer struct {
	Pubkey           string  `json:"pubkey"`
	ConnectionString *string `json:"connection_string,omitempty"`
	Alias            *string `json:"alias,omitempty"`
	Label            *string `json:"label,omitempty"`
	IsConnected      bool    `json:"is_connected"`
}

type LSPConfig struct {
	URL              *string `json:"url,omitempty"`
	ConnectionString *string `json:"connection_string,omitempty"`
	Token            *string `json:"token,omitempty"`
}

// Transaction is the first on-chain transaction seen for an address.
type Transaction struct {
	Txid             string   `json:"txid"`
	Received         uint64   `json:"received"`
	Sent             uint64   `json:"sent"`
	Fee              *uint64  `json:"fee,omitempty"`
	ConfirmationTime *uint64  `json:"confirmation_time,omitempty"`
	Labels           []string `json:"labels"`
}

const (
	ActivityLightning    = "lightning"
	ActivityOnchain      = "onchain"
	ActivityChannelOpen  = "channel_open"
	ActivityChannelClose = "channel_close"
)

type ActivityItem struct {
	Kind        string   `json:"kind"`
	ID          string   `json:"id"`
	AmountSats  *uint64  `json:"amount_sats,omitempty"`
	Inbound     bool     `json:"inbound"`
	Labels      []string `json:"labels"`
	LastUpdated *uint64  `json:"last_updated,omitempty"`
}
