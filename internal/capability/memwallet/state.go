package memwallet

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/tyler-smith/go-bip39"

	"lightning-worker/go-backend/internal/capability"
)

const stateVersion = 1

type storedPeer struct {
	Pubkey    string  `json:"pubkey"`
	Addr      string  `json:"addr"`
	Label     *string `json:"label,omitempty"`
	Connected bool    `json:"-"`
}

type onchainState struct {
	Confirmed   uint64                   `json:"confirmed"`
	Unconfirmed uint64                   `json:"unconfirmed"`
	Txs         []capability.Transaction `json:"txs"`
}

// nodeManager is everything the module keeps in storage for one wallet. It
// is also the export_json document.
type nodeManager struct {
	Version      int                            `json:"version"`
	Mnemonic     string                         `json:"mnemonic"`
	PasswordHash string                         `json:"password_hash,omitempty"`
	Network      string                         `json:"network"`
	NodeID       string                         `json:"node_id"`
	AddressIndex uint32                         `json:"address_index"`
	Addresses    map[string][]string            `json:"addresses"`
	Deposits     map[string]string              `json:"deposits"`
	Onchain      onchainState                   `json:"onchain"`
	Invoices     map[string]*capability.Invoice `json:"invoices"`
	Channels     []capability.Channel           `json:"channels"`
	Closures     []capability.ChannelClosure    `json:"closures"`
	Peers        map[string]*storedPeer         `json:"peers"`
	LSP          capability.LSPConfig           `json:"lsp"`
	ChannelSeq   uint64                         `json:"channel_seq"`
}

func newNodeManager(mnemonic, network string, password *string) *nodeManager {
	return &nodeManager{
		Version:      stateVersion,
		Mnemonic:     mnemonic,
		PasswordHash: hashPassword(password),
		Network:      network,
		NodeID:       nodeKeyHex(bip39.NewSeed(mnemonic, "")),
		Addresses:    map[string][]string{},
		Deposits:     map[string]string{},
		Invoices:     map[string]*capability.Invoice{},
		Peers:        map[string]*storedPeer{},
	}
}

// normalize fills maps that a decoded document may lack.
func (n *nodeManager) normalize() {
	if n.Addresses == nil {
		n.Addresses = map[string][]string{}
	}
	if n.Deposits == nil {
		n.Deposits = map[string]string{}
	}
	if n.Invoices == nil {
		n.Invoices = map[string]*capability.Invoice{}
	}
	if n.Peers == nil {
		n.Peers = map[string]*storedPeer{}
	}
}

func hashPassword(password *string) string {
	if password == nil || *password == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(*password))
	return hex.EncodeToString(sum[:])
}

func (n *nodeManager) passwordMatches(password *string) bool {
	return n.PasswordHash == hashPassword(password)
}

func (n *nodeManager) lightningBalance() uint64 {
	var total uint64
	for _, ch := range n.Channels {
		total += ch.Balance
	}
	return total
}

func (n *nodeManager) invoiceByBolt11(bolt11 string) *capability.Invoice {
	for _, inv := range n.Invoices {
		if inv.Bolt11 != nil && *inv.Bolt11 == bolt11 {
			return inv
		}
	}
	return nil
}

func (n *nodeManager) channelIndex(match func(capability.Channel) bool) int {
	for i, ch := range n.Channels {
		if match(ch) {
			return i
		}
	}
	return -1
}

// spend takes amount from channel balances, largest first.
func (n *nodeManager) spend(amount uint64) bool {
	if n.lightningBalance() < amount {
		return false
	}
	order := make([]int, len(n.Channels))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return n.Channels[order[a]].Balance > n.Channels[order[b]].Balance })
	for _, i := range order {
		if amount == 0 {
			break
		}
		ch := &n.Channels[i]
		take := min(ch.Balance, amount)
		ch.Balance -= take
		ch.Inbound += take
		amount -= take
	}
	return true
}

// receive credits amount to the channel with the most inbound capacity.
func (n *nodeManager) receive(amount uint64) bool {
	best := -1
	for i, ch := range n.Channels {
		if ch.Inbound >= amount && (best < 0 || ch.Inbound > n.Channels[best].Inbound) {
			best = i
		}
	}
	if best < 0 {
		return false
	}
	n.Channels[best].Balance += amount
	n.Channels[best].Inbound -= amount
	return true
}
