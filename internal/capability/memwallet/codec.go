package memwallet

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/mr-tron/base58"

	"lightning-worker/go-backend/internal/capability"
)

// Networks and their address version bytes / invoice prefixes. Prefixes are
// ordered longest first so "lnbcrt" is not mistaken for "lnbc".
var networks = map[string]struct {
	addressVersion byte
	invoicePrefix  string
}{
	"bitcoin": {addressVersion: 0x00, invoicePrefix: "lnbc"},
	"testnet": {addressVersion: 0x6f, invoicePrefix: "lntb"},
	"signet":  {addressVersion: 0x6f, invoicePrefix: "lntbs"},
	"regtest": {addressVersion: 0x6f, invoicePrefix: "lnbcrt"},
}

var invoicePrefixes = []struct {
	prefix  string
	network string
}{
	{"lnbcrt", "regtest"},
	{"lntbs", "signet"},
	{"lntb", "testnet"},
	{"lnbc", "bitcoin"},
}

func validNetwork(network string) bool {
	_, ok := networks[network]
	return ok
}

func doubleSHA256(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// encodeAddress produces a base58check pay-to-pubkey-hash address.
func encodeAddress(network string, payload []byte) string {
	body := make([]byte, 0, 25)
	body = append(body, networks[network].addressVersion)
	body = append(body, payload[:20]...)
	body = append(body, doubleSHA256(body)[:4]...)
	return base58.Encode(body)
}

func validateAddress(network, address string) error {
	raw, err := base58.Decode(strings.TrimSpace(address))
	if err != nil || len(raw) != 25 {
		return capability.NewError(capability.CodeInvalidArgument, "invalid address")
	}
	if !bytes.Equal(doubleSHA256(raw[:21])[:4], raw[21:]) {
		return capability.NewError(capability.CodeInvalidArgument, "invalid address checksum")
	}
	if raw[0] != networks[network].addressVersion {
		return capability.NewError(capability.CodeNetworkMismatch, "address is for a different network")
	}
	return nil
}

// invoicePayload is the data carried inside an encoded payment request.
type invoicePayload struct {
	network     string
	paymentHash [32]byte
	amountSats  uint64
	expiresAt   uint64
	payee       [33]byte
	description string
}

func encodeInvoice(p invoicePayload) string {
	buf := make([]byte, 0, 32+8+8+33+len(p.description))
	buf = append(buf, p.paymentHash[:]...)
	buf = binary.BigEndian.AppendUint64(buf, p.amountSats)
	buf = binary.BigEndian.AppendUint64(buf, p.expiresAt)
	buf = append(buf, p.payee[:]...)
	buf = append(buf, p.description...)
	buf = append(buf, doubleSHA256(buf)[:4]...)
	return networks[p.network].invoicePrefix + "1" + base58.Encode(buf)
}

func decodeInvoice(raw string) (invoicePayload, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > len("lightning:") && strings.EqualFold(raw[:len("lightning:")], "lightning:") {
		raw = raw[len("lightning:"):]
	}
	invalid := capability.NewError(capability.CodeInvoiceInvalid, "cannot parse payment request")

	var p invoicePayload
	lower := strings.ToLower(raw)
	for _, candidate := range invoicePrefixes {
		if strings.HasPrefix(lower, candidate.prefix+"1") {
			p.network = candidate.network
			raw = raw[len(candidate.prefix)+1:]
			break
		}
	}
	if p.network == "" {
		return p, invalid
	}
	body, err := base58.Decode(raw)
	if err != nil || len(body) < 32+8+8+33+4 {
		return p, invalid
	}
	sum, data := body[len(body)-4:], body[:len(body)-4]
	if !bytes.Equal(doubleSHA256(data)[:4], sum) {
		return p, invalid
	}
	copy(p.paymentHash[:], data[:32])
	p.amountSats = binary.BigEndian.Uint64(data[32:40])
	p.expiresAt = binary.BigEndian.Uint64(data[40:48])
	copy(p.payee[:], data[48:81])
	p.description = string(data[81:])
	return p, nil
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// nodeKey derives a compressed-pubkey shaped node id from seed material.
func nodeKey(material []byte) [33]byte {
	sum := sha256.Sum256(material)
	var out [33]byte
	out[0] = 0x02
	copy(out[1:], sum[:])
	return out
}

func nodeKeyHex(material []byte) string {
	k := nodeKey(material)
	return hex.EncodeToString(k[:])
}

func validPubkey(pubkey string) bool {
	raw, err := hex.DecodeString(pubkey)
	return err == nil && len(raw) == 33 && (raw[0] == 0x02 || raw[0] == 0x03)
}

func txidHex() string {
	return hex.EncodeToString(randomBytes(32))
}
