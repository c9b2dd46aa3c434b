package memwallet

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"sort"
	"strings"

	ma "github.com/multiformats/go-multiaddr"

	"lightning-worker/go-backend/internal/capability"
	"lightning-worker/go-backend/internal/events"
)

const (
	defaultInvoiceExpiry = 86400
	maxLSPInvoiceSats    = 10_000_000
	sweepVBytes          = 141
	channelOpenVBytes    = 153
	channelReservePct    = 1
	defaultFeeRate       = 1
)

var fiatPrices = map[string]float64{
	"usd": 65000,
	"eur": 60000,
	"gbp": 51000,
	"jpy": 9800000,
}

// Wallet is the constructed wallet. All state lives in the runtime's node
// manager; the wallet adds the running flag and a pending LSP change.
type Wallet struct {
	rt         *Runtime
	cfg        capability.WalletConfig
	hub        *events.Hub
	running    bool
	pendingLSP *capability.LSPConfig
}

var _ capability.Wallet = (*Wallet)(nil)

// lock returns the node manager with the runtime locked. The returned func
// unlocks.
func (w *Wallet) lock() (*nodeManager, func(), error) {
	w.rt.mu.Lock()
	unlock := w.rt.mu.Unlock
	if w.rt.active != w || w.rt.store == nil {
		unlock()
		return nil, nil, capability.NewError(capability.CodeNotRunning, "wallet data was deleted or replaced")
	}
	return w.rt.store, unlock, nil
}

func (w *Wallet) lockRunning() (*nodeManager, func(), error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, nil, err
	}
	if !w.running {
		unlock()
		return nil, nil, capability.NewError(capability.CodeNotRunning, "wallet nodes are stopped")
	}
	return store, unlock, nil
}

func (w *Wallet) publish(kind string, payload any) {
	if w.hub != nil {
		w.hub.Publish(kind, payload)
	}
}

func (w *Wallet) nowUnix() uint64 {
	return uint64(w.rt.now().Unix())
}

func (w *Wallet) Balance(context.Context) (*capability.Balance, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return &capability.Balance{
		Lightning:   store.lightningBalance(),
		Confirmed:   store.Onchain.Confirmed,
		Unconfirmed: store.Onchain.Unconfirmed,
	}, nil
}

func (w *Wallet) Activity(context.Context) ([]capability.ActivityItem, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	items := make([]capability.ActivityItem, 0, len(store.Invoices)+len(store.Onchain.Txs)+len(store.Channels)+len(store.Closures))
	for _, inv := range store.Invoices {
		if !inv.Paid {
			continue
		}
		updated := inv.LastUpdated
		items = append(items, capability.ActivityItem{
			Kind:        capability.ActivityLightning,
			ID:          inv.PaymentHash,
			AmountSats:  inv.AmountSats,
			Inbound:     inv.Inbound,
			Labels:      inv.Labels,
			LastUpdated: &updated,
		})
	}
	for _, tx := range store.Onchain.Txs {
		amount := tx.Received
		if tx.Sent > tx.Received {
			amount = tx.Sent - tx.Received
		}
		items = append(items, capability.ActivityItem{
			Kind:        capability.ActivityOnchain,
			ID:          tx.Txid,
			AmountSats:  &amount,
			Inbound:     tx.Received > tx.Sent,
			Labels:      tx.Labels,
			LastUpdated: tx.ConfirmationTime,
		})
	}
	for _, ch := range store.Channels {
		size := ch.Size
		items = append(items, capability.ActivityItem{
			Kind:       capability.ActivityChannelOpen,
			ID:         ch.UserChanID,
			AmountSats: &size,
			Labels:     []string{},
		})
	}
	for _, closure := range store.Closures {
		ts := closure.Timestamp
		id := ""
		if closure.ChannelID != nil {
			id = *closure.ChannelID
		}
		items = append(items, capability.ActivityItem{
			Kind:        capability.ActivityChannelClose,
			ID:          id,
			Labels:      []string{},
			LastUpdated: &ts,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return activityTime(items[i]) > activityTime(items[j])
	})
	return items, nil
}

func activityTime(item capability.ActivityItem) uint64 {
	if item.LastUpdated == nil {
		return 0
	}
	return *item.LastUpdated
}

func (w *Wallet) Network(context.Context) (string, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return "", err
	}
	defer unlock()
	return store.Network, nil
}

func (w *Wallet) BitcoinPrice(_ context.Context, fiat *string) (float64, error) {
	code := "usd"
	if fiat != nil && *fiat != "" {
		code = strings.ToLower(*fiat)
	}
	price, ok := fiatPrices[code]
	if !ok {
		return 0, capability.NewError(capability.CodeInvalidArgument, "unsupported fiat currency "+code)
	}
	return price, nil
}

func (w *Wallet) Invoice(_ context.Context, bolt11 string) (*capability.Invoice, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return snapshotInvoice(store.invoiceByBolt11(strings.TrimSpace(bolt11))), nil
}

func (w *Wallet) InvoiceByHash(_ context.Context, hash string) (*capability.Invoice, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	inv, ok := store.Invoices[strings.ToLower(hash)]
	if !ok {
		return nil, capability.NewError(capability.CodeNotFound, "no invoice for hash "+hash)
	}
	return snapshotInvoice(inv), nil
}

func (w *Wallet) DecodeInvoice(_ context.Context, invoice string, network *string) (*capability.Invoice, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	want := store.Network
	if network != nil && *network != "" {
		want = *network
	}
	payload, err := decodeInvoice(invoice)
	if err != nil {
		return nil, err
	}
	if payload.network != want {
		return nil, capability.NewError(capability.CodeNetworkMismatch, "invoice is for "+payload.network)
	}
	hash := hex.EncodeToString(payload.paymentHash[:])
	if known, ok := store.Invoices[hash]; ok {
		return snapshotInvoice(known), nil
	}
	return w.invoiceFromPayload(strings.TrimSpace(invoice), payload), nil
}

func (w *Wallet) invoiceFromPayload(bolt11 string, payload invoicePayload) *capability.Invoice {
	payee := hex.EncodeToString(payload.payee[:])
	inv := &capability.Invoice{
		Bolt11:       &bolt11,
		Expire:       payload.expiresAt,
		Expired:      payload.expiresAt <= w.nowUnix(),
		Labels:       []string{},
		LastUpdated:  w.nowUnix(),
		PayeePubkey:  &payee,
		PaymentHash:  hex.EncodeToString(payload.paymentHash[:]),
		PrivacyLevel: "NotAvailable",
		Status:       "Pending",
	}
	if payload.amountSats > 0 {
		amount := payload.amountSats
		inv.AmountSats = &amount
	}
	if payload.description != "" {
		desc := payload.description
		inv.Description = &desc
	}
	return inv
}

func (w *Wallet) CreateBIP21(ctx context.Context, amountSats *uint64, labels []string) (*capability.Bip21RawMaterials, error) {
	raw, err := w.NewAddress(ctx, labels)
	if err != nil {
		return nil, err
	}
	var amount uint64
	if amountSats != nil {
		amount = *amountSats
		btc := fmt.Sprintf("%d.%08d", amount/satsPerBTC, amount%satsPerBTC)
		raw.BTCAmount = &btc
	}
	label := strings.Join(labels, ",")
	inv, err := w.CreateInvoice(ctx, amount, label, nil)
	if err != nil {
		return nil, err
	}
	raw.Invoice = inv.Bolt11
	return raw, nil
}

// CreateInvoice needs either inbound liquidity for the amount or an LSP that
// would open a channel on payment.
func (w *Wallet) CreateInvoice(_ context.Context, amountSats uint64, label string, expiryDeltaSecs *uint32) (*capability.Invoice, error) {
	store, unlock, err := w.lockRunning()
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !hasInbound(store, amountSats) {
		if store.LSP.URL == nil && store.LSP.ConnectionString == nil {
			return nil, capability.NewError(capability.CodeLspGenericError, "no inbound liquidity and no lsp configured")
		}
		if amountSats > maxLSPInvoiceSats {
			return nil, capability.NewError(capability.CodeLspAmountTooHighError, "Invoice amount is too high")
		}
	}

	expiry := uint64(defaultInvoiceExpiry)
	if expiryDeltaSecs != nil {
		expiry = uint64(*expiryDeltaSecs)
	}
	preimage := randomBytes(32)
	hash := sha256.Sum256(preimage)
	nodeID, _ := hex.DecodeString(store.NodeID)
	var payee [33]byte
	copy(payee[:], nodeID)
	now := w.nowUnix()
	payload := invoicePayload{
		network:     store.Network,
		paymentHash: hash,
		amountSats:  amountSats,
		expiresAt:   now + expiry,
		payee:       payee,
	}
	bolt11 := encodeInvoice(payload)
	preimageHex := hex.EncodeToString(preimage)
	inv := w.invoiceFromPayload(bolt11, payload)
	inv.Inbound = true
	inv.Preimage = &preimageHex
	if label != "" {
		inv.Labels = []string{label}
	}
	store.Invoices[inv.PaymentHash] = inv
	w.rt.logf("created invoice %s for %d sats", inv.PaymentHash, amountSats)
	return snapshotInvoice(inv), nil
}

func hasInbound(store *nodeManager, amount uint64) bool {
	for _, ch := range store.Channels {
		if ch.IsUsable && ch.Inbound >= amount {
			return true
		}
	}
	return false
}

// PayInvoice pays from channel balances. Paying one of this wallet's own
// invoices settles both sides.
func (w *Wallet) PayInvoice(_ context.Context, invoice string, amountSats *uint64, labels []string) (*capability.Invoice, error) {
	store, unlock, err := w.lockRunning()
	if err != nil {
		return nil, err
	}
	defer unlock()

	payload, err := decodeInvoice(invoice)
	if err != nil {
		return nil, err
	}
	if payload.network != store.Network {
		return nil, capability.NewError(capability.CodeNetworkMismatch, "invoice is for "+payload.network)
	}
	if payload.expiresAt <= w.nowUnix() {
		return nil, capability.NewError(capability.CodeInvoiceInvalid, "invoice expired")
	}
	amount := payload.amountSats
	switch {
	case amount > 0 && amountSats != nil:
		return nil, capability.NewError(capability.CodeInvalidArgument, "amount given for an invoice that has one")
	case amount == 0 && amountSats == nil:
		return nil, capability.NewError(capability.CodeInvalidArgument, "amount required for a zero-amount invoice")
	case amount == 0:
		amount = *amountSats
	}
	hash := hex.EncodeToString(payload.paymentHash[:])
	if existing, ok := store.Invoices[hash]; ok && existing.Paid {
		return nil, capability.NewError(capability.CodeInvoiceInvalid, "invoice already paid")
	}

	fee := routingFee(amount)
	if !store.spend(amount + fee) {
		return nil, capability.NewError(capability.CodeInsufficientBalance, "not enough lightning balance")
	}

	now := w.nowUnix()
	out := w.invoiceFromPayload(strings.TrimSpace(invoice), payload)
	out.AmountSats = &amount
	out.FeesPaid = &fee
	out.Paid = true
	out.Status = "Succeeded"
	out.LastUpdated = now
	out.Labels = append([]string{}, labels...)

	if own, ok := store.Invoices[hash]; ok && own.Inbound {
		store.receive(amount)
		own.Paid = true
		own.Status = "Succeeded"
		own.LastUpdated = now
		if own.AmountSats == nil {
			own.AmountSats = &amount
		}
		w.publish(events.KindInvoicePaid, map[string]any{"payment_hash": hash, "amount_sats": amount})
	} else {
		store.Invoices[hash] = out
	}
	w.publish(events.KindPaymentSent, map[string]any{"payment_hash": hash, "amount_sats": amount, "fees_paid": fee})
	w.rt.logf("paid invoice %s, %d sats, fee %d", hash, amount, fee)
	return snapshotInvoice(out), nil
}

func routingFee(amount uint64) uint64 {
	return max(1, amount/1000)
}

func (w *Wallet) Keysend(_ context.Context, toNode string, amountSats uint64, message *string, labels []string) (*capability.Invoice, error) {
	store, unlock, err := w.lockRunning()
	if err != nil {
		return nil, err
	}
	defer unlock()
	if !validPubkey(toNode) {
		return nil, capability.NewError(capability.CodeInvalidArgument, "invalid node pubkey")
	}
	if amountSats == 0 {
		return nil, capability.NewError(capability.CodeInvalidArgument, "amount must be positive")
	}
	fee := routingFee(amountSats)
	if !store.spend(amountSats + fee) {
		return nil, capability.NewError(capability.CodeInsufficientBalance, "not enough lightning balance")
	}
	preimage := randomBytes(32)
	hash := sha256.Sum256(preimage)
	preimageHex := hex.EncodeToString(preimage)
	payee := strings.ToLower(toNode)
	inv := &capability.Invoice{
		AmountSats:   &amountSats,
		Description:  message,
		FeesPaid:     &fee,
		Labels:       append([]string{}, labels...),
		LastUpdated:  w.nowUnix(),
		Paid:         true,
		PayeePubkey:  &payee,
		PaymentHash:  hex.EncodeToString(hash[:]),
		Preimage:     &preimageHex,
		PrivacyLevel: "NotAvailable",
		Status:       "Succeeded",
	}
	store.Invoices[inv.PaymentHash] = inv
	w.publish(events.KindPaymentSent, map[string]any{"payment_hash": inv.PaymentHash, "amount_sats": amountSats, "fees_paid": fee})
	return snapshotInvoice(inv), nil
}

func (w *Wallet) EstimateLNFee(_ context.Context, invoice string, amountSats *uint64) (*uint64, error) {
	payload, err := decodeInvoice(invoice)
	if err != nil {
		return nil, err
	}
	amount := payload.amountSats
	if amount == 0 {
		if amountSats == nil {
			return nil, nil
		}
		amount = *amountSats
	}
	fee := routingFee(amount)
	return &fee, nil
}

func (w *Wallet) NewAddress(_ context.Context, labels []string) (*capability.Bip21RawMaterials, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	store.AddressIndex++
	material := sha256.Sum256([]byte(fmt.Sprintf("%s/%d", store.NodeID, store.AddressIndex)))
	address := encodeAddress(store.Network, material[:])
	store.Addresses[address] = append([]string{}, labels...)
	return &capability.Bip21RawMaterials{Address: address, Labels: append([]string{}, labels...)}, nil
}

func (w *Wallet) CheckAddress(_ context.Context, address string) (*capability.Transaction, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	if err := validateAddress(store.Network, address); err != nil {
		return nil, err
	}
	txid, ok := store.Deposits[address]
	if !ok {
		return nil, nil
	}
	for _, tx := range store.Onchain.Txs {
		if tx.Txid == txid {
			found := tx
			found.Labels = slices.Clone(tx.Labels)
			return &found, nil
		}
	}
	return nil, nil
}

func (w *Wallet) SweepWallet(_ context.Context, destination string, labels []string, feeRate *uint64) (string, error) {
	store, unlock, err := w.lockRunning()
	if err != nil {
		return "", err
	}
	defer unlock()
	if err := validateAddress(store.Network, destination); err != nil {
		return "", err
	}
	fee := feeFor(feeRate, sweepVBytes)
	if store.Onchain.Confirmed <= fee {
		return "", capability.NewError(capability.CodeInsufficientBalance, "on-chain balance does not cover the fee")
	}
	sent := store.Onchain.Confirmed
	store.Onchain.Confirmed = 0
	txid := txidHex()
	now := w.nowUnix()
	store.Onchain.Txs = append(store.Onchain.Txs, capability.Transaction{
		Txid:             txid,
		Sent:             sent,
		Fee:              &fee,
		ConfirmationTime: &now,
		Labels:           append([]string{}, labels...),
	})
	w.rt.logf("swept %d sats to %s in %s", sent-fee, destination, txid)
	return txid, nil
}

func feeFor(feeRate *uint64, vbytes uint64) uint64 {
	rate := uint64(defaultFeeRate)
	if feeRate != nil && *feeRate > 0 {
		rate = *feeRate
	}
	return rate * vbytes
}

func (w *Wallet) EstimateSweepChannelOpenFee(_ context.Context, feeRate *uint64) (uint64, error) {
	return feeFor(feeRate, channelOpenVBytes), nil
}

func (w *Wallet) ListChannels(context.Context) ([]capability.Channel, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return slices.Clone(store.Channels), nil
}

// OpenChannel funds a channel from the confirmed on-chain balance. Without a
// pubkey the channel goes to the configured LSP.
func (w *Wallet) OpenChannel(_ context.Context, toPubkey *string, amountSats uint64) (*capability.Channel, error) {
	store, unlock, err := w.lockRunning()
	if err != nil {
		return nil, err
	}
	defer unlock()

	var peer string
	if toPubkey != nil && *toPubkey != "" {
		peer = strings.ToLower(*toPubkey)
		p, ok := store.Peers[peer]
		if !ok || !p.Connected {
			return nil, capability.NewError(capability.CodePeerConnectionError, "not connected to peer "+peer)
		}
	} else {
		lspPeer, err := lspPubkey(store.LSP)
		if err != nil {
			return nil, err
		}
		peer = lspPeer
	}
	fee := feeFor(nil, channelOpenVBytes)
	if amountSats == 0 || store.Onchain.Confirmed < amountSats+fee {
		return nil, capability.NewError(capability.CodeInsufficientBalance, "on-chain balance does not cover the channel")
	}
	store.Onchain.Confirmed -= amountSats + fee

	store.ChannelSeq++
	outpoint := txidHex() + ":0"
	reserve := amountSats * channelReservePct / 100
	ch := capability.Channel{
		UserChanID:    fmt.Sprintf("%016x", store.ChannelSeq),
		Balance:       amountSats - reserve,
		Size:          amountSats,
		Reserve:       reserve,
		Outpoint:      &outpoint,
		Peer:          peer,
		Confirmations: 6,
		IsOutbound:    true,
		IsUsable:      true,
	}
	store.Channels = append(store.Channels, ch)
	w.publish(events.KindChannelOpened, map[string]any{"user_chan_id": ch.UserChanID, "outpoint": outpoint, "size": amountSats})
	w.rt.logf("opened channel %s with %s", ch.UserChanID, peer)
	return &ch, nil
}

// lspPubkey derives the LSP node id from its URL or LSPS connection string.
func lspPubkey(lsp capability.LSPConfig) (string, error) {
	switch {
	case lsp.ConnectionString != nil:
		pubkey, _, err := parseConnectionString(*lsp.ConnectionString)
		if err != nil {
			return "", capability.NewError(capability.CodeLspConnectionError, "Failed to connect to peer: "+err.Error())
		}
		return pubkey, nil
	case lsp.URL != nil:
		return nodeKeyHex([]byte(*lsp.URL)), nil
	default:
		return "", capability.NewError(capability.CodeLspGenericError, "no lsp configured")
	}
}

func (w *Wallet) CloseChannel(_ context.Context, req capability.CloseChannelRequest) error {
	store, unlock, err := w.lockRunning()
	if err != nil {
		return err
	}
	defer unlock()
	if req.Force && req.Abandon {
		return capability.NewError(capability.CodeInvalidArgument, "force and abandon are mutually exclusive")
	}
	if req.Network != nil && *req.Network != store.Network {
		return capability.NewError(capability.CodeNetworkMismatch, "close requested on "+*req.Network)
	}
	if req.Address != nil {
		if err := validateAddress(store.Network, *req.Address); err != nil {
			return err
		}
	}
	idx := store.channelIndex(func(ch capability.Channel) bool {
		return ch.Outpoint != nil && *ch.Outpoint == req.Outpoint
	})
	if idx < 0 {
		return capability.NewError(capability.CodeNotFound, "no channel with outpoint "+req.Outpoint)
	}
	ch := store.Channels[idx]
	store.Channels = append(store.Channels[:idx], store.Channels[idx+1:]...)

	reason := "CooperativeClosure"
	switch {
	case req.Abandon:
		reason = "HolderForceClosed (abandoned)"
	case req.Force:
		reason = "HolderForceClosed"
	}
	if !req.Abandon {
		store.Onchain.Confirmed += ch.Balance + ch.Reserve
	}
	id, node, txo := ch.UserChanID, ch.Peer, req.Outpoint
	store.Closures = append(store.Closures, capability.ChannelClosure{
		ChannelID:         &id,
		NodeID:            &node,
		Reason:            reason,
		Timestamp:         w.nowUnix(),
		ChannelFundingTxo: &txo,
	})
	w.publish(events.KindChannelClosed, map[string]any{"user_chan_id": id, "reason": reason})
	w.rt.logf("closed channel %s: %s", id, reason)
	return nil
}

func (w *Wallet) ChannelClosure(_ context.Context, userChannelID string) (*capability.ChannelClosure, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	for i := range store.Closures {
		c := &store.Closures[i]
		if c.ChannelID != nil && *c.ChannelID == userChannelID {
			found := *c
			return &found, nil
		}
	}
	return nil, capability.NewError(capability.CodeNotFound, "no closure for channel "+userChannelID)
}

func (w *Wallet) ListChannelClosures(context.Context) ([]capability.ChannelClosure, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return slices.Clone(store.Closures), nil
}

func (w *Wallet) ListPeers(context.Context) ([]capability.Peer, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]capability.Peer, 0, len(store.Peers))
	for _, p := range store.Peers {
		peer := capability.Peer{Pubkey: p.Pubkey, Label: p.Label, IsConnected: p.Connected}
		if addr, err := ma.NewMultiaddr(p.Addr); err == nil {
			conn := formatConnectionString(p.Pubkey, addr)
			peer.ConnectionString = &conn
		}
		out = append(out, peer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pubkey < out[j].Pubkey })
	return out, nil
}

func (w *Wallet) ConnectToPeer(_ context.Context, connectionString string) error {
	store, unlock, err := w.lockRunning()
	if err != nil {
		return err
	}
	defer unlock()
	pubkey, addr, err := parseConnectionString(connectionString)
	if err != nil {
		return err
	}
	if pubkey == store.NodeID {
		return capability.NewError(capability.CodePeerConnectionError, "cannot connect to self")
	}
	peer, ok := store.Peers[pubkey]
	if !ok {
		peer = &storedPeer{Pubkey: pubkey}
		store.Peers[pubkey] = peer
	}
	peer.Addr = addr.String()
	peer.Connected = true
	w.rt.logf("connected to peer %s at %s", pubkey, peer.Addr)
	return nil
}

func (w *Wallet) DisconnectPeer(_ context.Context, pubkey string) error {
	store, unlock, err := w.lock()
	if err != nil {
		return err
	}
	defer unlock()
	peer, ok := store.Peers[strings.ToLower(pubkey)]
	if !ok {
		return capability.NewError(capability.CodeNotFound, "unknown peer "+pubkey)
	}
	peer.Connected = false
	return nil
}

func (w *Wallet) DeletePeer(_ context.Context, pubkey string) error {
	store, unlock, err := w.lock()
	if err != nil {
		return err
	}
	defer unlock()
	delete(store.Peers, strings.ToLower(pubkey))
	return nil
}

func (w *Wallet) ListNodes(context.Context) ([]string, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	return []string{store.NodeID}, nil
}

// ChangeLSP records a new LSP. It becomes active on the next Start and is
// refused while a channel with the current LSP is open.
func (w *Wallet) ChangeLSP(_ context.Context, cfg capability.LSPConfig) error {
	store, unlock, err := w.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if current, err := lspPubkey(store.LSP); err == nil {
		if store.channelIndex(func(ch capability.Channel) bool { return ch.Peer == current }) >= 0 {
			return capability.NewError(capability.CodeLspGenericError, "active channel with the current lsp")
		}
	}
	if cfg.ConnectionString != nil {
		if _, _, err := parseConnectionString(*cfg.ConnectionString); err != nil {
			return capability.NewError(capability.CodeLspConnectionError, err.Error())
		}
	}
	next := cfg
	w.pendingLSP = &next
	w.rt.logf("lsp change pending restart")
	return nil
}

func (w *Wallet) ConfiguredLSP(context.Context) (*capability.LSPConfig, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()
	lsp := store.LSP
	return &lsp, nil
}

func (w *Wallet) ResetOnchainTracker(context.Context) error {
	store, unlock, err := w.lock()
	if err != nil {
		return err
	}
	defer unlock()
	store.Onchain.Unconfirmed = 0
	w.rt.logf("on-chain tracker reset")
	return nil
}

func (w *Wallet) Start(context.Context) error {
	store, unlock, err := w.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if w.running {
		return capability.NewError(capability.CodeAlreadyRunning, "wallet nodes already running")
	}
	if w.pendingLSP != nil {
		store.LSP = *w.pendingLSP
		w.pendingLSP = nil
	}
	w.running = true
	w.rt.lockUntil = w.rt.now().Add(deviceLockTTL)
	w.rt.logf("wallet nodes started")
	return nil
}

func (w *Wallet) Stop(context.Context) error {
	_, unlock, err := w.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if !w.running {
		return capability.NewError(capability.CodeNotRunning, "wallet nodes already stopped")
	}
	w.running = false
	for _, p := range w.rt.store.Peers {
		p.Connected = false
	}
	w.rt.logf("wallet nodes stopped")
	return nil
}

// DeleteAll clears stored state. The wallet is unusable afterwards.
func (w *Wallet) DeleteAll(context.Context) error {
	_, unlock, err := w.lock()
	if err != nil {
		return err
	}
	defer unlock()
	w.running = false
	w.rt.store = nil
	w.rt.active = nil
	w.rt.logf("all wallet data deleted")
	return nil
}

func (w *Wallet) ShowSeed(context.Context) (string, error) {
	store, unlock, err := w.lock()
	if err != nil {
		return "", err
	}
	defer unlock()
	return store.Mnemonic, nil
}

func (w *Wallet) ChangePassword(_ context.Context, oldPassword, newPassword *string) error {
	store, unlock, err := w.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if !store.passwordMatches(oldPassword) {
		return capability.NewError(capability.CodeIncorrectPassword, "old password does not match")
	}
	store.PasswordHash = hashPassword(newPassword)
	w.rt.logf("password changed")
	return nil
}

// snapshotInvoice detaches a stored invoice from later in-place updates.
func snapshotInvoice(inv *capability.Invoice) *capability.Invoice {
	if inv == nil {
		return nil
	}
	out := *inv
	out.Labels = slices.Clone(inv.Labels)
	return &out
}
