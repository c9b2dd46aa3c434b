package rpc

// The API is versioned by major only. A request may pin api_version; the
// server answers when it falls within [apiMinSupported, apiCurrent].
const (
	apiCurrent          = 1
	apiMinSupported     = 1
	notificationVersion = 1
)

type versionInfo struct {
	Current      int    `json:"current_version"`
	MinSupported int    `json:"min_supported_version"`
	Default      int    `json:"default_version"`
	Policy       string `json:"policy"`
}

func checkAPIVersion(v *int) *rpcError {
	switch {
	case v == nil:
		return nil
	case *v < apiMinSupported:
		return &rpcError{Code: rpcCodeVersionTooOld, Message: "rpc api version is deprecated and no longer supported"}
	case *v > apiCurrent:
		return &rpcError{Code: rpcCodeVersionTooNew, Message: "rpc api version is not supported by this server"}
	default:
		return nil
	}
}

func currentVersionInfo() versionInfo {
	return versionInfo{
		Current:      apiCurrent,
		MinSupported: apiMinSupported,
		Default:      apiCurrent,
		Policy:       "major-only; requests outside [min_supported_version, current_version] are rejected",
	}
}
