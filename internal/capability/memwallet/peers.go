package memwallet

import (
	"fmt"
	"net"
	"strings"

	ma "github.com/multiformats/go-multiaddr"

	"lightning-worker/go-backend/internal/capability"
)

// parseConnectionString turns "pubkey@host:port" into the peer's pubkey and
// transport address.
func parseConnectionString(conn string) (string, ma.Multiaddr, error) {
	pubkey, hostport, ok := strings.Cut(strings.TrimSpace(conn), "@")
	if !ok || !validPubkey(pubkey) {
		return "", nil, capability.NewError(capability.CodePeerConnectionError, "connection string must be pubkey@host:port")
	}
	host, port, err := net.SplitHostPort(hostport)
	if err != nil || host == "" {
		return "", nil, capability.NewError(capability.CodePeerConnectionError, "invalid peer address "+hostport)
	}
	proto := "dns"
	if ip := net.ParseIP(host); ip != nil {
		proto = "ip6"
		if ip.To4() != nil {
			proto = "ip4"
		}
	}
	addr, err := ma.NewMultiaddr(fmt.Sprintf("/%s/%s/tcp/%s", proto, host, port))
	if err != nil {
		return "", nil, capability.NewError(capability.CodePeerConnectionError, err.Error())
	}
	return strings.ToLower(pubkey), addr, nil
}

func formatConnectionString(pubkey string, addr ma.Multiaddr) string {
	var host string
	for _, code := range []int{ma.P_IP4, ma.P_IP6, ma.P_DNS} {
		if v, err := addr.ValueForProtocol(code); err == nil {
			host = v
			break
		}
	}
	port, _ := addr.ValueForProtocol(ma.P_TCP)
	return pubkey + "@" + net.JoinHostPort(host, port)
}
