package settings

// Name identifies one recognized wallet setting.
type Name string

const (
	Network                 Name = "network"
	Proxy                   Name = "proxy"
	Esplora                 Name = "esplora"
	RGS                     Name = "rgs"
	LSP                     Name = "lsp"
	LSPSConnectionString    Name = "lsps_connection_string"
	LSPSToken               Name = "lsps_token"
	Auth                    Name = "auth"
	Subscriptions           Name = "subscriptions"
	Storage                 Name = "storage"
	Scorer                  Name = "scorer"
	SelfHosted              Name = "selfhosted"
	BlindAuth               Name = "blind_auth"
	Hermes                  Name = "hermes"
	LNEventBroadcastChannel Name = "ln_event_broadcast_channel"
)

const StorageKeyPrefix = "USER_SETTINGS_"

// Entry describes where a setting is persisted and where its compiled
// default comes from.
type Entry struct {
	Name       Name
	StorageKey string
	EnvKey     string
	// Fallback is used when the environment does not provide a value.
	Fallback    string
	HasFallback bool
	// EnvEmptyIsSet makes an exported-but-empty env var a present "" default
	// instead of falling back.
	EnvEmptyIsSet bool
}

var entries = []Entry{
	withFallback(Network, "LNW_NETWORK", "testnet"),
	withFallback(Proxy, "LNW_PROXY", "wss://websocket-proxy.devops-5f8.workers.dev"),
	withFallback(Esplora, "LNW_ESPLORA", "https://cell.mempool.space/testnet/api"),
	envOnly(RGS, "LNW_RGS"),
	withFallback(LSP, "LNW_LSP", "https://api.internal.joyid.dev"),
	envOnly(LSPSConnectionString, "LNW_LSPS_CONNECTION_STRING"),
	envOnly(LSPSToken, "LNW_LSPS_TOKEN"),
	envOnly(Auth, "LNW_AUTH"),
	envOnly(Subscriptions, "LNW_SUBSCRIPTIONS"),
	withFallback(Storage, "LNW_STORAGE", "https://vs.joyid.dev/v2"),
	envOnly(Scorer, "LNW_SCORER"),
	envOnly(SelfHosted, "LNW_SELFHOSTED"),
	envOnly(BlindAuth, "LNW_BLIND_AUTH"),
	envOnly(Hermes, "LNW_HERMES"),
	{
		Name:          LNEventBroadcastChannel,
		StorageKey:    StorageKeyPrefix + string(LNEventBroadcastChannel),
		EnvKey:        "LNW_BROADCAST_CHANNEL",
		Fallback:      "joyid_ln_event_broadcast_channel",
		HasFallback:   true,
		EnvEmptyIsSet: true,
	},
}

var entryIndex = func() map[Name]int {
	idx := make(map[Name]int, len(entries))
	for i, e := range entries {
		if _, dup := idx[e.Name]; dup {
			panic("settings: duplicate entry " + string(e.Name))
		}
		idx[e.Name] = i
	}
	return idx
}()

func withFallback(name Name, envKey, fallback string) Entry {
	return Entry{
		Name:        name,
		StorageKey:  StorageKeyPrefix + string(name),
		EnvKey:      envKey,
		Fallback:    fallback,
		HasFallback: true,
	}
}

func envOnly(name Name, envKey string) Entry {
	return Entry{
		Name:          name,
		StorageKey:    StorageKeyPrefix + string(name),
		EnvKey:        envKey,
		EnvEmptyIsSet: true,
	}
}

// Entries returns the fixed set of recognized settings in declaration order.
func Entries() []Entry {
	return append([]Entry(nil), entries...)
}

func Lookup(name Name) (Entry, bool) {
	i, ok := entryIndex[name]
	if !ok {
		return Entry{}, false
	}
	return entries[i], true
}

func ParseName(raw string) (Name, bool) {
	_, ok := entryIndex[Name(raw)]
	return Name(raw), ok
}
