package worker

import (
	"slices"

	"lightning-worker/go-backend/internal/capability"
)

// Records leave the actor as fresh values built from explicit field lists so
// nothing aliases module memory and no field is silently dropped.

func copyInvoice(in *capability.Invoice) *capability.Invoice {
	if in == nil {
		return nil
	}
	return &capability.Invoice{
		AmountSats:           clonePtr(in.AmountSats),
		Bolt11:               clonePtr(in.Bolt11),
		Description:          clonePtr(in.Description),
		Expire:               in.Expire,
		Expired:              in.Expired,
		FeesPaid:             clonePtr(in.FeesPaid),
		Inbound:              in.Inbound,
		Labels:               cloneStrings(in.Labels),
		LastUpdated:          in.LastUpdated,
		Paid:                 in.Paid,
		PayeePubkey:          clonePtr(in.PayeePubkey),
		PaymentHash:          in.PaymentHash,
		PotentialHodlInvoice: in.PotentialHodlInvoice,
		Preimage:             clonePtr(in.Preimage),
		PrivacyLevel:         in.PrivacyLevel,
		Status:               in.Status,
	}
}

func copyBalance(in *capability.Balance) *capability.Balance {
	if in == nil {
		return nil
	}
	return &capability.Balance{
		Lightning:   in.Lightning,
		Confirmed:   in.Confirmed,
		Unconfirmed: in.Unconfirmed,
		Closing:     in.Closing,
	}
}

func copyChannelClosure(in capability.ChannelClosure) capability.ChannelClosure {
	return capability.ChannelClosure{
		ChannelID:         clonePtr(in.ChannelID),
		NodeID:            clonePtr(in.NodeID),
		Reason:            in.Reason,
		Timestamp:         in.Timestamp,
		ChannelFundingTxo: clonePtr(in.ChannelFundingTxo),
	}
}

func copyBip21(in *capability.Bip21RawMaterials) *capability.Bip21RawMaterials {
	if in == nil {
		return nil
	}
	return &capability.Bip21RawMaterials{
		Address:   in.Address,
		Invoice:   clonePtr(in.Invoice),
		BTCAmount: clonePtr(in.BTCAmount),
		Labels:    cloneStrings(in.Labels),
	}
}

func copyChannel(in capability.Channel) capability.Channel {
	return capability.Channel{
		UserChanID:    in.UserChanID,
		Balance:       in.Balance,
		Size:          in.Size,
		Reserve:       in.Reserve,
		Inbound:       in.Inbound,
		Outpoint:      clonePtr(in.Outpoint),
		Peer:          in.Peer,
		Confirmations: in.Confirmations,
		IsOutbound:    in.IsOutbound,
		IsUsable:      in.IsUsable,
	}
}

func copyPeer(in capability.Peer) capability.Peer {
	return capability.Peer{
		Pubkey:           in.Pubkey,
		ConnectionString: clonePtr(in.ConnectionString),
		Alias:            clonePtr(in.Alias),
		Label:            clonePtr(in.Label),
		IsConnected:      in.IsConnected,
	}
}

func copyLSPConfig(in *capability.LSPConfig) *capability.LSPConfig {
	if in == nil {
		return nil
	}
	return &capability.LSPConfig{
		URL:              clonePtr(in.URL),
		ConnectionString: clonePtr(in.ConnectionString),
		Token:            clonePtr(in.Token),
	}
}

func copyTransaction(in *capability.Transaction) *capability.Transaction {
	if in == nil {
		return nil
	}
	return &capability.Transaction{
		Txid:             in.Txid,
		Received:         in.Received,
		Sent:             in.Sent,
		Fee:              clonePtr(in.Fee),
		ConfirmationTime: clonePtr(in.ConfirmationTime),
		Labels:           cloneStrings(in.Labels),
	}
}

func copyActivityItem(in capability.ActivityItem) capability.ActivityItem {
	return capability.ActivityItem{
		Kind:        in.Kind,
		ID:          in.ID,
		AmountSats:  clonePtr(in.AmountSats),
		Inbound:     in.Inbound,
		Labels:      cloneStrings(in.Labels),
		LastUpdated: clonePtr(in.LastUpdated),
	}
}

func copyEach[T any](in []T, copyFn func(T) T) []T {
	out := make([]T, 0, len(in))
	for _, item := range in {
		out = append(out, copyFn(item))
	}
	return out
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}
